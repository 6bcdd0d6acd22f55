package history

import "time"

// Status is the outcome of a conversion run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one row of the ledger.
type Run struct {
	ID           int64
	RunID        string
	InputPath    string
	InputSize    int64
	Title        string
	Author       string
	Chapters     int
	OutputDir    string
	Status       Status
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
