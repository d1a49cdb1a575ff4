package journal

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an attempt.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Step statuses.
const (
	StepOK      = "ok"
	StepSkipped = "skipped"
	StepFailed  = "failed"
)

// AttemptInfo describes the submission being attempted.
type AttemptInfo struct {
	RequestID      string
	GiftRequestID  int64
	CorrelationID  string
	UserEmail      string
	RequestType    string
	TreeCount      int
	RecipientCount int
}

// Attempt is one journaled submission.
type Attempt struct {
	ID     int64
	Status Status
	AttemptInfo
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Duration returns how long the attempt ran, or zero while it is running.
func (a Attempt) Duration() time.Duration {
	if a.FinishedAt == nil {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

// StepRecord is one stage reached by an attempt.
type StepRecord struct {
	ID         int64
	AttemptID  int64
	Step       string
	Status     string
	Detail     string
	RecordedAt time.Time
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
