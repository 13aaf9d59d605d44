// Package job tracks the lifecycle of backup, restore, and migration
// operations and schedules recurring runs. A job moves pending →
// processing → completed/failed; the two final states are terminal and a
// job that reached one can never be mutated again.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies what a job does.
type Kind string

const (
	// KindFull backs up the database and the file tree
	KindFull Kind = "full"
	// KindDatabase backs up the database only
	KindDatabase Kind = "database"
	// KindFiles backs up the file tree only
	KindFiles Kind = "files"
	// KindRestore restores a backup container
	KindRestore Kind = "restore"
	// KindMigrate runs a URL migration
	KindMigrate Kind = "migrate"
)

// AllKinds lists every known job kind.
var AllKinds = []Kind{KindFull, KindDatabase, KindFiles, KindRestore, KindMigrate}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch kind := Kind(s); kind {
	case KindFull, KindDatabase, KindFiles, KindRestore, KindMigrate:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown job kind: %q", s)
	}
}

// Status is a job's lifecycle state.
type Status string

const (
	// StatusPending means the job is created but not yet running
	StatusPending Status = "pending"
	// StatusProcessing means the job is running
	StatusProcessing Status = "processing"
	// StatusCompleted means the job finished successfully
	StatusCompleted Status = "completed"
	// StatusFailed means the job finished with an error
	StatusFailed Status = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s
// to next. Pending jobs may fail directly (validation failures happen
// before any work starts); terminal states allow nothing.
func (s Status) CanTransitionTo(next Status) bool {
	allowed := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusFailed},
		StatusProcessing: {StatusCompleted, StatusFailed},
	}
	for _, n := range allowed[s] {
		if n == next {
			return true
		}
	}
	return false
}

// DestinationResult records the outcome of one upload destination.
type DestinationResult struct {
	Kind       string `json:"kind"`
	RemotePath string `json:"remote_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result is the payload of a completed job.
type Result struct {
	OutputPath   string              `json:"output_path,omitempty"`
	OutputName   string              `json:"output_name,omitempty"`
	Size         int64               `json:"size,omitempty"`
	Checksum     string              `json:"checksum,omitempty"`
	Destinations []DestinationResult `json:"destinations,omitempty"`
}

// Job is one tracked operation.
type Job struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// GenerateJobID creates a sortable, collision-resistant job identifier.
func GenerateJobID() string {
	return fmt.Sprintf("job-%s-%s", time.Now().Format("20060102-150405"), uuid.New().String()[:8])
}

// GenerateBackupName creates a container file name carrying the creation
// time and kind, prefixed so retention can scope pruning to one schedule.
func GenerateBackupName(prefix string, kind Kind) string {
	return fmt.Sprintf("%s-%s-%s-%s.zip",
		prefix, time.Now().Format("20060102-150405"), kind, uuid.New().String()[:8])
}

// Validate validates the Job fields.
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID cannot be empty")
	}
	if _, err := ParseKind(string(j.Kind)); err != nil {
		return err
	}
	switch j.Status {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
	default:
		return fmt.Errorf("invalid job status: %q", j.Status)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("job progress must be between 0 and 100, got %d", j.Progress)
	}
	return nil
}

// Clone returns a deep copy so repository callers never share state.
func (j *Job) Clone() *Job {
	clone := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		r.Destinations = append([]DestinationResult(nil), j.Result.Destinations...)
		clone.Result = &r
	}
	return &clone
}
