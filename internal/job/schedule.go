package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"sitevault/internal/errors"
)

// Frequency is how often a schedule fires.
type Frequency string

const (
	// FrequencyHourly fires at the top of every hour
	FrequencyHourly Frequency = "hourly"
	// FrequencyTwiceDaily fires every twelve hours
	FrequencyTwiceDaily Frequency = "twice-daily"
	// FrequencyDaily fires once a day at the configured hour
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly fires on the configured weekday
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly fires on the configured day of the month
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency converts a string into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case FrequencyHourly, FrequencyTwiceDaily, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown schedule frequency: %q", s)
	}
}

// Schedule describes one recurring backup.
type Schedule struct {
	ID           string     `yaml:"id" json:"id"`
	Name         string     `yaml:"name" json:"name"`
	Kind         Kind       `yaml:"kind" json:"kind"`
	Frequency    Frequency  `yaml:"frequency" json:"frequency"`
	Hour         int        `yaml:"hour" json:"hour"`
	Weekday      int        `yaml:"weekday" json:"weekday"`           // 0 = Sunday, weekly only
	DayOfMonth   int        `yaml:"day_of_month" json:"day_of_month"` // monthly only, clamped to month length
	Destinations []string   `yaml:"destinations,omitempty" json:"destinations,omitempty"`
	Retention    int        `yaml:"retention" json:"retention"` // completed backups to keep, 0 = unlimited
	NextRun      *time.Time `yaml:"next_run,omitempty" json:"next_run,omitempty"`
	LastRun      *time.Time `yaml:"last_run,omitempty" json:"last_run,omitempty"`
	Active       bool       `yaml:"active" json:"active"`
}

// GenerateScheduleID creates a new schedule identifier.
func GenerateScheduleID() string {
	return "sched-" + uuid.New().String()[:8]
}

// Validate validates the Schedule fields.
func (s *Schedule) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("schedule ID cannot be empty")
	}
	if s.Name == "" {
		return fmt.Errorf("schedule name cannot be empty")
	}
	switch s.Kind {
	case KindFull, KindDatabase, KindFiles:
	default:
		return fmt.Errorf("schedule kind must be full, database, or files, got %q", s.Kind)
	}
	if _, err := ParseFrequency(string(s.Frequency)); err != nil {
		return err
	}
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("schedule hour must be between 0 and 23, got %d", s.Hour)
	}
	if s.Frequency == FrequencyWeekly && (s.Weekday < 0 || s.Weekday > 6) {
		return fmt.Errorf("schedule weekday must be between 0 and 6, got %d", s.Weekday)
	}
	if s.Frequency == FrequencyMonthly && (s.DayOfMonth < 1 || s.DayOfMonth > 31) {
		return fmt.Errorf("schedule day of month must be between 1 and 31, got %d", s.DayOfMonth)
	}
	if s.Retention < 0 {
		return fmt.Errorf("schedule retention cannot be negative, got %d", s.Retention)
	}
	return nil
}

// NextAfter computes the first trigger time strictly after now. The result
// depends only on the schedule and now, so recomputing after a run always
// moves the schedule forward.
func (s *Schedule) NextAfter(now time.Time) time.Time {
	switch s.Frequency {
	case FrequencyHourly:
		return now.Truncate(time.Hour).Add(time.Hour)

	case FrequencyTwiceDaily:
		return now.Truncate(time.Hour).Add(12 * time.Hour)

	case FrequencyDaily:
		next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case FrequencyWeekly:
		days := (s.Weekday - int(now.Weekday()) + 7) % 7
		next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, now.Location())
		next = next.AddDate(0, 0, days)
		if !next.After(now) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case FrequencyMonthly:
		next := monthlyOn(now.Year(), now.Month(), s.DayOfMonth, s.Hour, now.Location())
		if !next.After(now) {
			year, month := now.Year(), now.Month()+1
			next = monthlyOn(year, month, s.DayOfMonth, s.Hour, now.Location())
		}
		return next
	}

	// Unknown frequencies never become due.
	return now.AddDate(100, 0, 0)
}

// monthlyOn clamps the configured day to the target month's length, so a
// day-31 schedule fires on Feb 28/29 rather than skipping February.
func monthlyOn(year int, month time.Month, day, hour int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}

// scheduleFile is the on-disk YAML document.
type scheduleFile struct {
	Schedules []*Schedule `yaml:"schedules"`
}

// ScheduleStore persists schedules in one YAML file. Writes go through a
// temp file and an atomic rename.
type ScheduleStore struct {
	mu   sync.Mutex
	path string
}

// NewScheduleStore creates a store backed by the given YAML file. The
// file is created on first write.
func NewScheduleStore(path string) (*ScheduleStore, error) {
	if path == "" {
		return nil, errors.NewValidationError("schedule store path cannot be empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.NewIOError("failed to create schedule store directory", err)
	}
	return &ScheduleStore{path: path}, nil
}

// List returns all schedules in name order.
func (s *ScheduleStore) List() ([]*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the schedule with the given ID.
func (s *ScheduleStore) Get(id string) (*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, sched := range schedules {
		if sched.ID == id {
			return sched, nil
		}
	}
	return nil, errors.NewNotFoundError("schedule "+id+" not found", nil)
}

// Save inserts or replaces a schedule.
func (s *ScheduleStore) Save(sched *Schedule) error {
	if err := sched.Validate(); err != nil {
		return errors.NewValidationError("invalid schedule", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range schedules {
		if existing.ID == sched.ID {
			schedules[i] = sched
			replaced = true
			break
		}
	}
	if !replaced {
		schedules = append(schedules, sched)
	}
	return s.save(schedules)
}

// Delete removes a schedule.
func (s *ScheduleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.load()
	if err != nil {
		return err
	}

	kept := schedules[:0]
	found := false
	for _, sched := range schedules {
		if sched.ID == id {
			found = true
			continue
		}
		kept = append(kept, sched)
	}
	if !found {
		return errors.NewNotFoundError("schedule "+id+" not found", nil)
	}
	return s.save(kept)
}

func (s *ScheduleStore) load() ([]*Schedule, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewIOError("failed to read schedule store", err)
	}

	var doc scheduleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewIOError("schedule store file is corrupt", err)
	}

	sort.Slice(doc.Schedules, func(a, b int) bool {
		return doc.Schedules[a].Name < doc.Schedules[b].Name
	})
	return doc.Schedules, nil
}

func (s *ScheduleStore) save(schedules []*Schedule) error {
	data, err := yaml.Marshal(scheduleFile{Schedules: schedules})
	if err != nil {
		return errors.NewIOError("failed to encode schedule store", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".schedules-*.yaml")
	if err != nil {
		return errors.NewIOError("failed to create schedule store temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIOError("failed to write schedule store", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to close schedule store temp file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to replace schedule store", err)
	}
	return nil
}
