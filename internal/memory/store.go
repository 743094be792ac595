// Package memory is the per-user profile store: demographics, consultation
// history, daily food logs and goals, one JSON file per user.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abchbx/nutrition-agent/internal/recordstore"
)

// ErrNotFound is returned by Update when the user has no profile.
var ErrNotFound = errors.New("profile not found")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store reads and writes profiles. Nothing is cached: every call re-reads
// the file and every change rewrites it in full. The mutex only serializes
// read-modify-write cycles inside this process.
type Store struct {
	records *recordstore.Store[Profile]
	clock   Clock
	mu      sync.Mutex
}

// Open returns a Store over dir, creating it if needed.
func Open(dir string) (*Store, error) {
	return OpenWithClock(dir, realClock{})
}

// OpenWithClock is Open with a custom clock (for testing).
func OpenWithClock(dir string, clock Clock) (*Store, error) {
	records, err := recordstore.New[Profile](dir, migrations(clock)...)
	if err != nil {
		return nil, err
	}
	return &Store{records: records, clock: clock}, nil
}

// migrations upgrade older files. Version 0 is the original layout with
// demographics only; version 1 added consultations and timestamps; version 2
// added daily logs and goals.
func migrations(clock Clock) []recordstore.Migration {
	return []recordstore.Migration{
		{
			From: 0,
			Name: "consultations-and-timestamps",
			Apply: func(doc map[string]json.RawMessage) error {
				if err := recordstore.SetDefault(doc, "consultations", []Consultation{}); err != nil {
					return err
				}
				created, hasCreated := doc["created_at"]
				updated, hasUpdated := doc["updated_at"]
				switch {
				case hasCreated && !hasUpdated:
					doc["updated_at"] = created
				case !hasCreated && hasUpdated:
					doc["created_at"] = updated
				case !hasCreated && !hasUpdated:
					now := Timestamp{clock.Now()}
					if err := recordstore.SetDefault(doc, "created_at", now); err != nil {
						return err
					}
					return recordstore.SetDefault(doc, "updated_at", now)
				}
				return nil
			},
		},
		{
			From: 1,
			Name: "daily-logs-and-goals",
			Apply: func(doc map[string]json.RawMessage) error {
				if err := recordstore.SetDefault(doc, "daily_logs", []DailyLog{}); err != nil {
					return err
				}
				return recordstore.SetDefault(doc, "goals", []Goal{})
			},
		},
	}
}

// Dir returns the profiles directory.
func (s *Store) Dir() string {
	return s.records.Dir()
}

// Users lists the ids of all stored profiles.
func (s *Store) Users() ([]string, error) {
	return s.records.Keys()
}

// Get returns the profile for userID. A missing profile and one that fails
// to parse or validate are both reported as absent; the latter is logged and
// its file is left untouched.
func (s *Store) Get(userID string) (*Profile, bool) {
	p, err := s.records.Load(userID)
	if err != nil {
		if !errors.Is(err, recordstore.ErrNotFound) {
			slog.Warn("memory: unreadable profile treated as absent", "user_id", userID, "error", err)
		}
		return nil, false
	}
	return &p, true
}

// Create stores a new profile filled with defaults and the fields set in
// patch. When a profile file already exists the call becomes an Update.
func (s *Store) Create(userID string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records.Exists(userID) {
		return s.update(userID, patch)
	}

	now := Timestamp{s.clock.Now()}
	p := Profile{
		UserID:              userID,
		Name:                userID,
		Age:                 DefaultAge,
		Gender:              DefaultGender,
		HeightCM:            DefaultHeightCM,
		WeightKG:            DefaultWeightKG,
		ActivityLevel:       DefaultActivityLevel,
		HealthGoal:          DefaultHealthGoal,
		DietaryRestrictions: DefaultDietaryRestrictions,
		Preferences:         DefaultPreferences,
		CreatedAt:           now,
		UpdatedAt:           now,
		Consultations:       []Consultation{},
		DailyLogs:           []DailyLog{},
		Goals:               []Goal{},
	}
	patch.apply(&p)
	if err := s.records.Save(userID, p); err != nil {
		return fmt.Errorf("creating profile %s: %w", userID, err)
	}
	slog.Info("memory: profile created", "user_id", userID)
	return nil
}

// Update merges the set fields of patch into an existing profile.
func (s *Store) Update(userID string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(userID, patch)
}

func (s *Store) update(userID string, patch Patch) error {
	return s.mutate(userID, func(p *Profile) error {
		patch.apply(p)
		return nil
	})
}

// mutate loads, changes, stamps and saves one profile. Callers hold s.mu.
func (s *Store) mutate(userID string, fn func(p *Profile) error) error {
	p, err := s.records.Load(userID)
	if errors.Is(err, recordstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading profile %s: %w", userID, err)
	}
	if err := fn(&p); err != nil {
		return err
	}
	p.UpdatedAt = s.next(p.UpdatedAt)
	if err := s.records.Save(userID, p); err != nil {
		return fmt.Errorf("saving profile %s: %w", userID, err)
	}
	return nil
}

// next returns a timestamp strictly after prev, using the clock when it has
// moved forward.
func (s *Store) next(prev Timestamp) Timestamp {
	now := s.clock.Now()
	if !now.After(prev.Time) {
		now = prev.Add(time.Nanosecond)
	}
	return Timestamp{now}
}

// AppendConsultation records a question and its answer. It reports false
// when the user has no profile; no profile is created here.
func (s *Store) AppendConsultation(userID, question, answer, category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.records.Exists(userID) {
		slog.Warn("memory: consultation for unknown user", "user_id", userID)
		return false
	}
	err := s.mutate(userID, func(p *Profile) error {
		now := s.clock.Now()
		p.Consultations = append(p.Consultations, Consultation{
			ID:        fmt.Sprintf("%s_%s", userID, now.Format("20060102_150405")),
			UserID:    userID,
			Date:      now.Format(DateLayout),
			Question:  question,
			Answer:    answer,
			Category:  category,
			CreatedAt: Timestamp{now},
		})
		return nil
	})
	if err != nil {
		slog.Error("memory: appending consultation failed", "user_id", userID, "error", err)
		return false
	}
	return true
}

// AppendDailyLogEntry adds entry to the log for date (YYYY-MM-DD), creating
// that day's log on first use. Logs stay sorted by date.
func (s *Store) AppendDailyLogEntry(userID, date string, entry DailyLogEntry) bool {
	if _, err := time.Parse(DateLayout, date); err != nil {
		slog.Warn("memory: rejecting daily log entry with bad date", "user_id", userID, "date", date)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(userID, func(p *Profile) error {
		if entry.LoggedAt.IsZero() {
			entry.LoggedAt = Timestamp{s.clock.Now()}
		}
		for i := range p.DailyLogs {
			if p.DailyLogs[i].Date == date {
				p.DailyLogs[i].Entries = append(p.DailyLogs[i].Entries, entry)
				return nil
			}
		}
		p.DailyLogs = append(p.DailyLogs, DailyLog{Date: date, Entries: []DailyLogEntry{entry}})
		sort.SliceStable(p.DailyLogs, func(i, j int) bool {
			return p.DailyLogs[i].Date < p.DailyLogs[j].Date
		})
		return nil
	})
	if err != nil {
		slog.Warn("memory: appending daily log entry failed", "user_id", userID, "date", date, "error", err)
		return false
	}
	return true
}

// GetLogsForRange returns the logs dated start through end inclusive, in
// ascending date order. Bad dates, an inverted range and an absent profile
// all yield nil.
func (s *Store) GetLogsForRange(userID, start, end string) []DailyLog {
	if _, err := time.Parse(DateLayout, start); err != nil {
		return nil
	}
	if _, err := time.Parse(DateLayout, end); err != nil {
		return nil
	}
	if start > end {
		return nil
	}

	p, ok := s.Get(userID)
	if !ok {
		return nil
	}
	var out []DailyLog
	for _, l := range p.DailyLogs {
		if l.Date >= start && l.Date <= end {
			out = append(out, l)
		}
	}
	return out
}

// SetGoal stores a new goal. The id, status and timestamps of g are
// assigned here; the stored goal is returned.
func (s *Store) SetGoal(userID string, g Goal) (Goal, bool) {
	if g.Description == "" {
		slog.Warn("memory: rejecting goal without description", "user_id", userID)
		return Goal{}, false
	}
	if g.Deadline != "" {
		if _, err := time.Parse(DateLayout, g.Deadline); err != nil {
			slog.Warn("memory: rejecting goal with bad deadline", "user_id", userID, "deadline", g.Deadline)
			return Goal{}, false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored Goal
	err := s.mutate(userID, func(p *Profile) error {
		now := Timestamp{s.clock.Now()}
		g.ID = uuid.NewString()
		g.Status = GoalActive
		g.CreatedAt = now
		g.UpdatedAt = now
		p.Goals = append(p.Goals, g)
		stored = g
		return nil
	})
	if err != nil {
		slog.Warn("memory: setting goal failed", "user_id", userID, "error", err)
		return Goal{}, false
	}
	return stored, true
}

var errGoalNotFound = errors.New("goal not found")

// UpdateGoalStatus changes the status of one goal; nothing else about the
// goal can change.
func (s *Store) UpdateGoalStatus(userID, goalID string, status GoalStatus) bool {
	if !status.Valid() {
		slog.Warn("memory: rejecting unknown goal status", "user_id", userID, "status", status)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(userID, func(p *Profile) error {
		for i := range p.Goals {
			if p.Goals[i].ID == goalID {
				p.Goals[i].Status = status
				p.Goals[i].UpdatedAt = Timestamp{s.clock.Now()}
				return nil
			}
		}
		return errGoalNotFound
	})
	if err != nil {
		slog.Warn("memory: updating goal status failed", "user_id", userID, "goal_id", goalID, "error", err)
		return false
	}
	return true
}
