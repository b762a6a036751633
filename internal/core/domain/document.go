package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the registry record for one live file_id: who owns it, where the
// raw bytes sit, and how far ingestion got. The retrievable content itself
// lives in the two indexes, not here.
type Document struct {
	FileID       string         `json:"file_id"`
	Tenant       TenantKey      `json:"tenant"`
	StoragePath  string         `json:"storage_path"`
	MimeType     string         `json:"mime_type,omitempty"`
	PassageCount int            `json:"passage_count"`
	Status       DocumentStatus `json:"status"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IngestMode selects dedup semantics: create fails on an existing file_id,
// upsert deletes any live passage set first.
type IngestMode string

const (
	IngestCreate IngestMode = "create"
	IngestUpsert IngestMode = "upsert"
)

func (m IngestMode) Valid() bool {
	return m == IngestCreate || m == IngestUpsert
}

// LexicalSyncOp names a replicated lexical index mutation.
type LexicalSyncOp string

const (
	LexicalSyncUpsert LexicalSyncOp = "upsert"
	LexicalSyncDelete LexicalSyncOp = "delete"
)

// LexicalSyncEvent carries a lexical index mutation from the worker to the
// process holding the index files. Upserts ship the passages, deletes the
// tenant filter of the set going away.
type LexicalSyncEvent struct {
	Op       LexicalSyncOp     `json:"op"`
	Filter   map[string]string `json:"filter,omitempty"`
	Passages []Passage         `json:"passages,omitempty"`
}

// IngestJob is the queue payload handed from the API to the worker.
type IngestJob struct {
	Tenant      TenantKey  `json:"tenant"`
	StorageKey  string     `json:"storage_key"`
	MimeType    string     `json:"mime_type,omitempty"`
	Mode        IngestMode `json:"mode"`
	RequestedAt time.Time  `json:"requested_at"`
}
