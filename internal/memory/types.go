package memory

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for daily logs and deadlines.
const DateLayout = "2006-01-02"

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// Valid reports whether s is a known status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalAbandoned:
		return true
	}
	return false
}

// Profile is everything stored for one user.
type Profile struct {
	SchemaVersion       int            `json:"schema_version"`
	UserID              string         `json:"user_id"`
	Name                string         `json:"name"`
	Age                 int            `json:"age"`
	Gender              string         `json:"gender"`
	HeightCM            float64        `json:"height"`
	WeightKG            float64        `json:"weight"`
	ActivityLevel       string         `json:"activity_level"`
	HealthGoal          string         `json:"health_goal"`
	DietaryRestrictions string         `json:"dietary_restrictions"`
	Preferences         string         `json:"preferences"`
	CreatedAt           Timestamp      `json:"created_at"`
	UpdatedAt           Timestamp      `json:"updated_at"`
	Consultations       []Consultation `json:"consultations"`
	DailyLogs           []DailyLog     `json:"daily_logs"`
	Goals               []Goal         `json:"goals"`
}

// Consultation is one answered question. It is never modified once stored.
type Consultation struct {
	ID        string    `json:"consultation_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	CreatedAt Timestamp `json:"created_at"`
}

// DailyLog groups the entries recorded for one calendar date.
type DailyLog struct {
	Date    string          `json:"date"`
	Entries []DailyLogEntry `json:"entries"`
}

// DailyLogEntry is a snapshot of what was eaten, with nutrients already
// scaled to the logged amount.
type DailyLogEntry struct {
	FoodName string    `json:"food_name"`
	Query    string    `json:"query,omitempty"` // logged text, when it differs from FoodName
	Amount   float64   `json:"amount"`
	Unit     string    `json:"unit"`
	Calories float64   `json:"calories"`
	Protein  float64   `json:"protein"`
	Carbs    float64   `json:"carbs"`
	Fat      float64   `json:"fat"`
	Source   string    `json:"source,omitempty"`
	LoggedAt Timestamp `json:"logged_at"`
}

// Totals sums the entries of a log.
func (l DailyLog) Totals() (calories, protein, carbs, fat float64) {
	for _, e := range l.Entries {
		calories += e.Calories
		protein += e.Protein
		carbs += e.Carbs
		fat += e.Fat
	}
	return
}

// Goal is a user target. Only Status changes after creation.
type Goal struct {
	ID          string     `json:"goal_id"`
	Description string     `json:"description"`
	TargetValue float64    `json:"target_value"`
	Unit        string     `json:"unit"`
	Deadline    string     `json:"deadline,omitempty"`
	Status      GoalStatus `json:"status"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   Timestamp  `json:"updated_at"`
}

func (p *Profile) SetSchemaVersion(v int) { p.SchemaVersion = v }

// Validate checks the invariants every stored profile must hold.
func (p *Profile) Validate() error {
	var errs []error
	if p.UserID == "" {
		errs = append(errs, errors.New("user_id is empty"))
	}
	if p.Age < 0 {
		errs = append(errs, fmt.Errorf("age %d is negative", p.Age))
	}
	if p.HeightCM < 0 || p.WeightKG < 0 {
		errs = append(errs, errors.New("height and weight must not be negative"))
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		errs = append(errs, errors.New("created_at and updated_at are required"))
	}
	if p.UpdatedAt.Before(p.CreatedAt.Time) {
		errs = append(errs, errors.New("updated_at is before created_at"))
	}

	prev := ""
	for i, l := range p.DailyLogs {
		if _, err := time.Parse(DateLayout, l.Date); err != nil {
			errs = append(errs, fmt.Errorf("daily_logs[%d]: bad date %q", i, l.Date))
			continue
		}
		if l.Date <= prev {
			errs = append(errs, fmt.Errorf("daily_logs[%d]: %s is not after %s", i, l.Date, prev))
		}
		prev = l.Date
	}

	ids := make(map[string]bool, len(p.Goals))
	for i, g := range p.Goals {
		if g.ID == "" || ids[g.ID] {
			errs = append(errs, fmt.Errorf("goals[%d]: missing or duplicate goal_id", i))
		}
		ids[g.ID] = true
		if !g.Status.Valid() {
			errs = append(errs, fmt.Errorf("goals[%d]: unknown status %q", i, g.Status))
		}
	}
	return errors.Join(errs...)
}

// RecentConsultations returns up to n of the latest consultations, oldest
// first.
func (p *Profile) RecentConsultations(n int) []Consultation {
	if n <= 0 || len(p.Consultations) == 0 {
		return nil
	}
	start := len(p.Consultations) - n
	if start < 0 {
		start = 0
	}
	out := make([]Consultation, len(p.Consultations)-start)
	copy(out, p.Consultations[start:])
	return out
}

// ActiveGoals returns the goals whose status is active.
func (p *Profile) ActiveGoals() []Goal {
	var out []Goal
	for _, g := range p.Goals {
		if g.Status == GoalActive {
			out = append(out, g)
		}
	}
	return out
}
