package job

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sitevault/internal/errors"
)

// Filter narrows a job listing. Zero values match everything.
type Filter struct {
	Kind   Kind
	Status Status
	Limit  int
}

// Repository persists jobs.
type Repository interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, j *Job) error
	List(ctx context.Context, filter Filter) ([]*Job, error)
}

// MemoryRepository keeps jobs in process memory. Used by tests and by
// one-shot CLI invocations that do not need job state to survive the
// process.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]*Job)}
}

// Create stores a new job.
func (r *MemoryRepository) Create(_ context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return errors.NewValidationError("invalid job", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[j.ID]; exists {
		return errors.NewValidationError("job "+j.ID+" already exists", nil)
	}
	r.jobs[j.ID] = j.Clone()
	return nil
}

// Get returns a copy of the job with the given ID.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job "+id+" not found", nil)
	}
	return j.Clone(), nil
}

// Update replaces the stored job.
func (r *MemoryRepository) Update(_ context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return errors.NewValidationError("invalid job", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[j.ID]; !ok {
		return errors.NewNotFoundError("job "+j.ID+" not found", nil)
	}
	r.jobs[j.ID] = j.Clone()
	return nil
}

// List returns matching jobs, newest first.
func (r *MemoryRepository) List(_ context.Context, filter Filter) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Job
	for _, j := range r.jobs {
		if matchesFilter(j, filter) {
			out = append(out, j.Clone())
		}
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FileRepository persists jobs as a JSON document next to the backups, so
// job state survives across CLI invocations. Writes go through a temp
// file and an atomic rename.
type FileRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileRepository creates a repository backed by the given JSON file.
// The file is created on first write.
func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		return nil, errors.NewValidationError("job repository path cannot be empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewIOError("failed to create job repository directory", err)
	}
	return &FileRepository{path: path}, nil
}

// Create stores a new job.
func (r *FileRepository) Create(_ context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return errors.NewValidationError("invalid job", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := jobs[j.ID]; exists {
		return errors.NewValidationError("job "+j.ID+" already exists", nil)
	}
	jobs[j.ID] = j.Clone()
	return r.save(jobs)
}

// Get returns the job with the given ID.
func (r *FileRepository) Get(_ context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.load()
	if err != nil {
		return nil, err
	}
	j, ok := jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job "+id+" not found", nil)
	}
	return j, nil
}

// Update replaces the stored job.
func (r *FileRepository) Update(_ context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return errors.NewValidationError("invalid job", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := jobs[j.ID]; !ok {
		return errors.NewNotFoundError("job "+j.ID+" not found", nil)
	}
	jobs[j.ID] = j.Clone()
	return r.save(jobs)
}

// List returns matching jobs, newest first.
func (r *FileRepository) List(_ context.Context, filter Filter) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.load()
	if err != nil {
		return nil, err
	}

	var out []*Job
	for _, j := range jobs {
		if matchesFilter(j, filter) {
			out = append(out, j)
		}
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *FileRepository) load() (map[string]*Job, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]*Job), nil
	}
	if err != nil {
		return nil, errors.NewIOError("failed to read job repository", err)
	}

	var jobs map[string]*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, errors.NewIOError("job repository file is corrupt", err)
	}
	if jobs == nil {
		jobs = make(map[string]*Job)
	}
	return jobs, nil
}

func (r *FileRepository) save(jobs map[string]*Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return errors.NewIOError("failed to encode job repository", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".jobs-*.json")
	if err != nil {
		return errors.NewIOError("failed to create job repository temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIOError("failed to write job repository", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to close job repository temp file", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to replace job repository", err)
	}
	return nil
}

func matchesFilter(j *Job, filter Filter) bool {
	if filter.Kind != "" && j.Kind != filter.Kind {
		return false
	}
	if filter.Status != "" && j.Status != filter.Status {
		return false
	}
	return true
}

func sortNewestFirst(jobs []*Job) {
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID > jobs[b].ID
		}
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
}
