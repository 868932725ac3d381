package domain

import (
	"encoding/json"
	"time"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpUpload Operation = "upload"
)

type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueSyncing QueueStatus = "syncing"
	QueueFailed  QueueStatus = "failed"
)

// QueueItem is one durable unit of remote-bound work. It stays in the
// record store until the operation succeeds or the caller discards it;
// a failed attempt marks it failed/retry, never drops it.
type QueueItem struct {
	ID             string          `json:"id"`
	Operation      Operation       `json:"operation"`
	TargetTable    string          `json:"target_table"`
	RecordID       string          `json:"record_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Status         QueueStatus     `json:"status"`
	Retry          bool            `json:"retry"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	UserID         string          `json:"user_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// UploadSpec is the payload of an OpUpload queue item. DocumentID names
// the local placeholder document whose blob holds the file bytes.
type UploadSpec struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	Analyze    bool   `json:"analyze"`
	Classify   bool   `json:"classify"`
}

// UploadFile carries the bytes and identity of a file queued for upload.
type UploadFile struct {
	FileName string
	FileType string
	Data     []byte
}

// UploadOptions selects the remote effect for an upload intent: a
// backend analysis call, or a direct metadata insert.
type UploadOptions struct {
	Analyze  bool
	Classify bool
}

// AnalyzeRequest is the input to the backend analyze-and-persist call.
type AnalyzeRequest struct {
	FileName string
	FileType string
	Data     []byte
	UserID   string
	Classify bool
}
