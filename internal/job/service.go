package job

import (
	"context"
	"fmt"
	"time"

	"sitevault/internal/errors"
	"sitevault/internal/logging"
)

// StatusView is the external query surface for a job: enough for a caller
// or UI to render progress without exposing the full model.
type StatusView struct {
	Status     Status `json:"status"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
	OutputSize int64  `json:"output_size,omitempty"`
}

// Service owns every job transition. No other component mutates a job's
// status: orchestration code creates a job here, marks it processing,
// feeds progress, and finishes it exactly once.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

// NewService creates a job service on top of a repository.
func NewService(repo Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a new pending job and returns it.
func (s *Service) Create(ctx context.Context, kind Kind) (*Job, error) {
	j := &Job{
		ID:        GenerateJobID(),
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	s.logger.LogJobTransition(j.ID, "", string(StatusPending))
	return j, nil
}

// Start moves a job to processing.
func (s *Service) Start(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusProcessing, func(j *Job) {
		now := time.Now().UTC()
		j.StartedAt = &now
		j.Progress = 0
		j.Message = "started"
	})
}

// SetProgress updates a running job's progress percentage and message.
func (s *Service) SetProgress(ctx context.Context, id string, pct int, msg string) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status.IsTerminal() {
		return errors.NewValidationError(
			fmt.Sprintf("job %s is already %s and cannot be updated", id, j.Status), nil)
	}
	j.Progress = pct
	j.Message = msg
	return s.repo.Update(ctx, j)
}

// Complete finishes a job successfully with its result payload.
func (s *Service) Complete(ctx context.Context, id string, result *Result) error {
	return s.transition(ctx, id, StatusCompleted, func(j *Job) {
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.Progress = 100
		j.Message = "completed"
		j.Result = result
	})
}

// Fail finishes a job with an error message.
func (s *Service) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return s.transition(ctx, id, StatusFailed, func(j *Job) {
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.Message = msg
		j.Error = msg
	})
}

// Get returns the full job record.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}

// Status returns the external status view of a job.
func (s *Service) Status(ctx context.Context, id string) (*StatusView, error) {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &StatusView{
		Status:   j.Status,
		Progress: j.Progress,
		Message:  j.Message,
	}
	if j.Error != "" {
		view.Message = j.Error
	}
	if j.Result != nil {
		view.OutputPath = j.Result.OutputPath
		view.OutputSize = j.Result.Size
	}
	return view, nil
}

// List returns jobs matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Job, error) {
	return s.repo.List(ctx, filter)
}

// transition applies a guarded state change. Terminal jobs reject every
// mutation.
func (s *Service) transition(ctx context.Context, id string, next Status, apply func(*Job)) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !j.Status.CanTransitionTo(next) {
		return errors.NewValidationError(
			fmt.Sprintf("job %s cannot move from %s to %s", id, j.Status, next), nil)
	}

	from := j.Status
	j.Status = next
	apply(j)
	if err := s.repo.Update(ctx, j); err != nil {
		return err
	}
	s.logger.LogJobTransition(id, string(from), string(next))
	return nil
}
