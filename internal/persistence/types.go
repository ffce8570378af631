package persistence

import "time"

// File statuses follow the upload lifecycle.
const (
	FileStatusUploaded    = "uploaded"
	FileStatusTranslating = "translating"
	FileStatusTranslated  = "translated"
)

// Translation statuses follow the job lifecycle.
const (
	TranslationStatusPending = "pending"
	TranslationStatusRunning = "running"
	TranslationStatusDone    = "done"
	TranslationStatusFailed  = "failed"
)

// FileRecord represents a file uploaded by a user. The bytes live in
// upload storage under StoredPath; this record owns their lifecycle.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StoredPath string    `json:"stored_path"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TranslationRecord represents the result of one translation of a file.
// Deleting the parent file cascades to its translations.
type TranslationRecord struct {
	ID             string    `json:"id"`
	FileID         string    `json:"file_id"`
	SrcLanguage    string    `json:"src_language"`
	DstLanguage    string    `json:"dst_language"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
