package history

import "time"

// Run statuses
const (
	StatusRunning  = "running"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusRejected = "rejected"
)

// RunRecord represents one webhook execution for a key
type RunRecord struct {
	ID              int64      `json:"id"`
	RunID           string     `json:"run_id"`
	Key             string     `json:"key"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	Targets         int        `json:"targets"`
	Event           *string    `json:"event,omitempty"`
	DeliveryID      *string    `json:"delivery_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
}

// KeyStatus is the latest activity recorded for a key
type KeyStatus struct {
	Key           string      `json:"key"`
	LatestRun     *RunRecord  `json:"latest_run,omitempty"`
	RecentHistory []RunRecord `json:"recent_history"`
}
