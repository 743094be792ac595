package dailylog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/resolver"
)

var (
	ErrEmptyDescription = errors.New("dailylog: empty food description")
	ErrNotStored        = errors.New("dailylog: entry could not be stored")
)

// UnresolvedError carries the outcome of a lookup that found no food.
type UnresolvedError struct {
	Outcome resolver.Outcome
}

func (e *UnresolvedError) Error() string {
	if e.Outcome.Kind == resolver.Suggestions {
		return resolver.Format(e.Outcome, false)
	}
	return e.Outcome.Reason
}

// Resolver looks up nutrients for a food name.
type Resolver interface {
	Resolve(ctx context.Context, query string, opts resolver.Options) resolver.Outcome
}

// Store persists log entries.
type Store interface {
	AppendDailyLogEntry(userID, date string, entry memory.DailyLogEntry) bool
}

// Logger resolves food descriptions and appends them to a user's log.
type Logger struct {
	resolver Resolver
	store    Store
	now      func() time.Time
}

func NewLogger(r Resolver, s Store) *Logger {
	return &Logger{resolver: r, store: s, now: time.Now}
}

// Log parses description, resolves the food and appends the scaled entry
// to the user's log for date. An empty date means today.
func (l *Logger) Log(ctx context.Context, userID, date, description string) (memory.DailyLogEntry, error) {
	p := Parse(description)
	if p.Food == "" {
		return memory.DailyLogEntry{}, ErrEmptyDescription
	}
	if date == "" {
		date = l.now().Format(memory.DateLayout)
	}

	out := l.resolver.Resolve(ctx, p.Food, resolver.Options{})
	if out.Kind != resolver.Found {
		return memory.DailyLogEntry{}, &UnresolvedError{Outcome: out}
	}

	entry := Entry(p, out.Result)
	if !l.store.AppendDailyLogEntry(userID, date, entry) {
		return memory.DailyLogEntry{}, ErrNotStored
	}
	slog.Info("dailylog: entry stored", "user_id", userID, "date", date, "food", entry.FoodName, "tier", out.Result.Tier)
	return entry, nil
}

// Entry builds the nutrient snapshot for a portion of a resolved food.
// Per-serving results scale by the number of servings.
func Entry(p Portion, r *resolver.NutrientResult) memory.DailyLogEntry {
	scale := p.Scale()
	if r.Basis == resolver.PerServing {
		scale = p.Amount
		if scale <= 0 {
			scale = 1
		}
	}
	e := memory.DailyLogEntry{
		FoodName: r.Name,
		Amount:   p.Amount,
		Unit:     p.Unit,
		Calories: r.Nutrients.Calories * scale,
		Protein:  r.Nutrients.Protein * scale,
		Carbs:    r.Nutrients.Carbs * scale,
		Fat:      r.Nutrients.Fat * scale,
		Source:   string(r.Tier),
	}
	// The snapshot names the food the nutrients were measured for.
	if e.FoodName == "" {
		e.FoodName = p.Food
	} else if e.FoodName != p.Food {
		e.Query = p.Food
	}
	return e
}

// Confirmation is the message shown after a successful log.
func Confirmation(e memory.DailyLogEntry, date string) string {
	return fmt.Sprintf("✅ 成功记录: %g %s %s (热量: %.1fkcal, 蛋白质: %.1fg) 到 %s 的日志中。",
		e.Amount, e.Unit, e.FoodName, e.Calories, e.Protein, date)
}
