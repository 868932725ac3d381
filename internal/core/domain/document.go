package domain

import "time"

type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingRunning   ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// CachedDocument is the local copy of a remote document's metadata.
// Content bytes live in the blob record kind, keyed by the document id.
// While PendingUpload is true the id is a locally generated placeholder;
// the sync pass rewrites it once the remote store assigns the real one.
type CachedDocument struct {
	ID               string            `json:"id"`
	FileName         string            `json:"file_name"`
	FileType         string            `json:"file_type"`
	FileSize         int64             `json:"file_size"`
	StoragePath      string            `json:"storage_path,omitempty"`
	ExtractedText    string            `json:"extracted_text,omitempty"`
	ProcessingStatus ProcessingStatus  `json:"processing_status"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IsFavorite       bool              `json:"is_favorite"`
	PendingUpload    bool              `json:"pending_upload"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
