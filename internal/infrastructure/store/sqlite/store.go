package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/avolkov/docvault/internal/core/domain"
)

// Store is the durable local record store backed by an embedded SQLite
// database. Every write failure is wrapped as domain.ErrStorage so
// callers can distinguish storage-medium problems from remote ones.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenDB opens (creating if needed) the cache database at path.
// WAL plus a busy timeout keeps concurrent readers from tripping over
// the sync pass.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size INTEGER NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL DEFAULT '',
	extracted_text TEXT NOT NULL DEFAULT '',
	processing_status TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	is_favorite INTEGER NOT NULL DEFAULT 0,
	pending_upload INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS blobs (
	document_id TEXT PRIMARY KEY,
	content BLOB NOT NULL,
	byte_size INTEGER NOT NULL,
	stored_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS queue_items (
	id TEXT PRIMARY KEY,
	operation TEXT NOT NULL,
	target_table TEXT NOT NULL,
	record_id TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	retry INTEGER NOT NULL DEFAULT 0,
	idempotency_key TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_queue_items_status ON queue_items(status);
`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return domain.WrapError(domain.ErrStorage, "execute schema ddl", err)
	}
	return nil
}

func (s *Store) PutDocument(ctx context.Context, doc *domain.CachedDocument) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (
	id, file_name, file_type, file_size, storage_path, extracted_text,
	processing_status, metadata, is_favorite, pending_upload, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	file_name = excluded.file_name,
	file_type = excluded.file_type,
	file_size = excluded.file_size,
	storage_path = excluded.storage_path,
	extracted_text = excluded.extracted_text,
	processing_status = excluded.processing_status,
	metadata = excluded.metadata,
	is_favorite = excluded.is_favorite,
	pending_upload = excluded.pending_upload,
	updated_at = excluded.updated_at
`,
		doc.ID, doc.FileName, doc.FileType, doc.FileSize, doc.StoragePath, doc.ExtractedText,
		string(doc.ProcessingStatus), metaJSON, boolToInt(doc.IsFavorite), boolToInt(doc.PendingUpload),
		doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "upsert document", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.CachedDocument, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, file_name, file_type, file_size, storage_path, extracted_text,
	processing_status, metadata, is_favorite, pending_upload, created_at, updated_at
FROM documents
WHERE id = ?
`, id)
	return scanDocument(row)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return domain.WrapError(domain.ErrStorage, "delete document", err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]domain.CachedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, file_name, file_type, file_size, storage_path, extracted_text,
	processing_status, metadata, is_favorite, pending_upload, created_at, updated_at
FROM documents
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list documents", err)
	}
	defer rows.Close()

	var docs []domain.CachedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate documents", err)
	}
	return docs, nil
}

func (s *Store) PutBlob(ctx context.Context, documentID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO blobs (document_id, content, byte_size, stored_at)
VALUES (?,?,?,?)
ON CONFLICT(document_id) DO UPDATE SET
	content = excluded.content,
	byte_size = excluded.byte_size,
	stored_at = excluded.stored_at
`, documentID, data, len(data), time.Now().UTC().UnixMilli())
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "upsert blob", err)
	}
	return nil
}

func (s *Store) GetBlob(ctx context.Context, documentID string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM blobs WHERE document_id = ?`, documentID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get blob", err)
		}
		return nil, domain.WrapError(domain.ErrStorage, "get blob", err)
	}
	return data, nil
}

func (s *Store) DeleteBlob(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE document_id = ?`, documentID); err != nil {
		return domain.WrapError(domain.ErrStorage, "delete blob", err)
	}
	return nil
}

func (s *Store) PutQueueItem(ctx context.Context, item *domain.QueueItem) error {
	payload := item.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO queue_items (
	id, operation, target_table, record_id, payload, status, retry,
	idempotency_key, user_id, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?)
`,
		item.ID, string(item.Operation), item.TargetTable, item.RecordID, string(payload),
		string(item.Status), boolToInt(item.Retry), item.IdempotencyKey, item.UserID,
		item.CreatedAt.UnixMilli(), item.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "insert queue item", err)
	}
	return nil
}

func (s *Store) GetQueueItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, operation, target_table, record_id, payload, status, retry,
	idempotency_key, user_id, created_at, updated_at
FROM queue_items
WHERE id = ?
`, id)
	return scanQueueItem(row)
}

func (s *Store) DeleteQueueItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "delete queue item", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete queue item", sql.ErrNoRows)
	}
	return nil
}

func (s *Store) ListQueueItems(ctx context.Context, statuses ...domain.QueueStatus) ([]domain.QueueItem, error) {
	// Queue item ids are ULIDs, so id order is creation order.
	query := `
SELECT id, operation, target_table, record_id, payload, status, retry,
	idempotency_key, user_id, created_at, updated_at
FROM queue_items
`
	var args []any
	if len(statuses) > 0 {
		query += `WHERE status IN (?` + repeatPlaceholder(len(statuses)-1) + `)
`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += `ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list queue items", err)
	}
	defer rows.Close()

	var items []domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate queue items", err)
	}
	return items, nil
}

func (s *Store) UpdateQueueStatus(ctx context.Context, id string, status domain.QueueStatus, retry bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE queue_items
SET status = ?, retry = ?, updated_at = ?
WHERE id = ?
`, string(status), boolToInt(retry), time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "update queue status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrNotFound, "update queue status", sql.ErrNoRows)
	}
	return nil
}

// PutUploadIntent records the placeholder document, its content bytes,
// and the queue item in one transaction.
func (s *Store) PutUploadIntent(ctx context.Context, doc *domain.CachedDocument, data []byte, item *domain.QueueItem) error {
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	payload := item.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "begin upload intent tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO documents (
	id, file_name, file_type, file_size, storage_path, extracted_text,
	processing_status, metadata, is_favorite, pending_upload, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`,
		doc.ID, doc.FileName, doc.FileType, doc.FileSize, doc.StoragePath, doc.ExtractedText,
		string(doc.ProcessingStatus), metaJSON, boolToInt(doc.IsFavorite), boolToInt(doc.PendingUpload),
		doc.CreatedAt.UnixMilli(), doc.UpdatedAt.UnixMilli(),
	); err != nil {
		return domain.WrapError(domain.ErrStorage, "insert placeholder document", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO blobs (document_id, content, byte_size, stored_at) VALUES (?,?,?,?)
`, doc.ID, data, len(data), time.Now().UTC().UnixMilli()); err != nil {
		return domain.WrapError(domain.ErrStorage, "insert upload blob", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO queue_items (
	id, operation, target_table, record_id, payload, status, retry,
	idempotency_key, user_id, created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?)
`,
		item.ID, string(item.Operation), item.TargetTable, item.RecordID, string(payload),
		string(item.Status), boolToInt(item.Retry), item.IdempotencyKey, item.UserID,
		item.CreatedAt.UnixMilli(), item.UpdatedAt.UnixMilli(),
	); err != nil {
		return domain.WrapError(domain.ErrStorage, "insert upload queue item", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrStorage, "commit upload intent tx", err)
	}
	return nil
}

func (s *Store) AggregateStats(ctx context.Context) (domain.CacheStats, error) {
	var stats domain.CacheStats

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.DocumentCount)
	if err != nil {
		return domain.CacheStats{}, domain.WrapError(domain.ErrStorage, "count documents", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(byte_size), 0) FROM blobs`).Scan(&stats.TotalBlobBytes)
	if err != nil {
		return domain.CacheStats{}, domain.WrapError(domain.ErrStorage, "sum blob bytes", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_items WHERE status = ?`, string(domain.QueuePending),
	).Scan(&stats.PendingSyncCount)
	if err != nil {
		return domain.CacheStats{}, domain.WrapError(domain.ErrStorage, "count pending items", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_items WHERE status = ?`, string(domain.QueueFailed),
	).Scan(&stats.FailedSyncCount)
	if err != nil {
		return domain.CacheStats{}, domain.WrapError(domain.ErrStorage, "count failed items", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.CachedDocument, error) {
	var doc domain.CachedDocument
	var metaRaw []byte
	var status string
	var favorite, pending int
	var createdAt, updatedAt int64

	err := row.Scan(
		&doc.ID, &doc.FileName, &doc.FileType, &doc.FileSize, &doc.StoragePath, &doc.ExtractedText,
		&status, &metaRaw, &favorite, &pending, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", err)
		}
		return nil, domain.WrapError(domain.ErrStorage, "scan document", err)
	}

	if len(metaRaw) > 0 {
		if err := json.Unmarshal(metaRaw, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	doc.ProcessingStatus = domain.ProcessingStatus(status)
	doc.IsFavorite = favorite != 0
	doc.PendingUpload = pending != 0
	doc.CreatedAt = time.UnixMilli(createdAt).UTC()
	doc.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &doc, nil
}

func scanQueueItem(row rowScanner) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var operation, status, payload string
	var retry int
	var createdAt, updatedAt int64

	err := row.Scan(
		&item.ID, &operation, &item.TargetTable, &item.RecordID, &payload, &status, &retry,
		&item.IdempotencyKey, &item.UserID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get queue item", err)
		}
		return nil, domain.WrapError(domain.ErrStorage, "scan queue item", err)
	}

	item.Operation = domain.Operation(operation)
	item.Status = domain.QueueStatus(status)
	item.Payload = json.RawMessage(payload)
	item.Retry = retry != 0
	item.CreatedAt = time.UnixMilli(createdAt).UTC()
	item.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}
