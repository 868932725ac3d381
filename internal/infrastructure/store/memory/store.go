// Package memory provides an in-memory RecordStore used only by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/avolkov/docvault/internal/core/domain"
)

type Store struct {
	mu        sync.RWMutex
	documents map[string]domain.CachedDocument
	blobs     map[string][]byte
	queue     map[string]domain.QueueItem

	// FailWrites makes every write return domain.ErrStorage, for
	// exercising storage-failure paths.
	FailWrites bool
}

func NewStore() *Store {
	return &Store{
		documents: make(map[string]domain.CachedDocument),
		blobs:     make(map[string][]byte),
		queue:     make(map[string]domain.QueueItem),
	}
}

func (s *Store) writeErr(op string) error {
	if s.FailWrites {
		return domain.WrapError(domain.ErrStorage, op, domain.ErrStorage)
	}
	return nil
}

func (s *Store) PutDocument(_ context.Context, doc *domain.CachedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("put document"); err != nil {
		return err
	}
	s.documents[doc.ID] = *doc
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*domain.CachedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get document", domain.ErrNotFound)
	}
	copyDoc := doc
	return &copyDoc, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("delete document"); err != nil {
		return err
	}
	delete(s.documents, id)
	return nil
}

func (s *Store) ListDocuments(_ context.Context) ([]domain.CachedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.CachedDocument, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (s *Store) PutBlob(_ context.Context, documentID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("put blob"); err != nil {
		return err
	}
	s.blobs[documentID] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetBlob(_ context.Context, documentID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get blob", domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) DeleteBlob(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("delete blob"); err != nil {
		return err
	}
	delete(s.blobs, documentID)
	return nil
}

func (s *Store) PutQueueItem(_ context.Context, item *domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("put queue item"); err != nil {
		return err
	}
	s.queue[item.ID] = *item
	return nil
}

func (s *Store) GetQueueItem(_ context.Context, id string) (*domain.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.queue[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get queue item", domain.ErrNotFound)
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) DeleteQueueItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("delete queue item"); err != nil {
		return err
	}
	if _, ok := s.queue[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete queue item", domain.ErrNotFound)
	}
	delete(s.queue, id)
	return nil
}

func (s *Store) ListQueueItems(_ context.Context, statuses ...domain.QueueStatus) ([]domain.QueueItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[domain.QueueStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var items []domain.QueueItem
	for _, item := range s.queue {
		if len(wanted) == 0 || wanted[item.Status] {
			items = append(items, item)
		}
	}
	// ULID ids sort in creation order.
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) UpdateQueueStatus(_ context.Context, id string, status domain.QueueStatus, retry bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("update queue status"); err != nil {
		return err
	}
	item, ok := s.queue[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update queue status", domain.ErrNotFound)
	}
	item.Status = status
	item.Retry = retry
	s.queue[id] = item
	return nil
}

func (s *Store) PutUploadIntent(ctx context.Context, doc *domain.CachedDocument, data []byte, item *domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr("put upload intent"); err != nil {
		return err
	}
	s.documents[doc.ID] = *doc
	s.blobs[doc.ID] = append([]byte(nil), data...)
	s.queue[item.ID] = *item
	return nil
}

func (s *Store) AggregateStats(_ context.Context) (domain.CacheStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.CacheStats{DocumentCount: len(s.documents)}
	for _, data := range s.blobs {
		stats.TotalBlobBytes += int64(len(data))
	}
	for _, item := range s.queue {
		switch item.Status {
		case domain.QueuePending:
			stats.PendingSyncCount++
		case domain.QueueFailed:
			stats.FailedSyncCount++
		}
	}
	return stats, nil
}
