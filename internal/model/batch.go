package model

import "time"

// BatchStatus tracks an upload through the ingestion pipeline.
type BatchStatus string

const (
	BatchReceived   BatchStatus = "received"
	BatchParsed     BatchStatus = "parsed"
	BatchDeduped    BatchStatus = "deduped"
	BatchPersisted  BatchStatus = "persisted"
	BatchReconciled BatchStatus = "reconciled"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Batch is one CSV upload event. RecordCount is the number of
// transactions the upload actually inserted, not the number of rows in
// the file.
type Batch struct {
	ID          string
	Filename    string
	Status      BatchStatus
	RecordCount int
	FailReason  string
	CreatedAt   time.Time
}
