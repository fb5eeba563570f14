package model

import "time"

// QueueStatus represents the processing state of an enrichment job.
type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s QueueStatus) IsValid() bool {
	switch s {
	case QueueStatusPending, QueueStatusProcessing, QueueStatusCompleted, QueueStatusFailed:
		return true
	}
	return false
}

// QueueItem is a unit of scheduled (re-)enrichment work.
type QueueItem struct {
	ID            string      `json:"id"`
	WordProfileID string      `json:"word_profile_id"`
	Priority      int         `json:"priority"`
	Status        QueueStatus `json:"status"`
	RetryCount    int         `json:"retry_count"`
	MaxRetries    int         `json:"max_retries"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	// AvailableAt gates retries: a pending item is not claimed before it.
	AvailableAt time.Time  `json:"available_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the item will never be processed again.
func (q *QueueItem) IsTerminal() bool {
	switch q.Status {
	case QueueStatusCompleted:
		return true
	case QueueStatusFailed:
		return q.RetryCount >= q.MaxRetries
	}
	return false
}

// CanRetry reports whether another attempt is allowed after the current
// failure has been counted.
func (q *QueueItem) CanRetry() bool {
	return q.RetryCount < q.MaxRetries
}

// QueueStats holds aggregate counts by status.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}
