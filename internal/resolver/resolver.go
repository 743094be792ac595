// Package resolver turns a free-text food mention into nutrient data by
// trying, in order, USDA FoodData Central, the local food table, the
// semantic index over that table, and Nutritionix.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/nutritionix"
	"github.com/abchbx/nutrition-agent/internal/semantic"
	"github.com/abchbx/nutrition-agent/internal/usda"
)

const (
	// DefaultTierTimeout bounds each external tier call.
	DefaultTierTimeout = 10 * time.Second

	semanticCandidates = 3
)

// USDA nutrient IDs mapped onto the canonical fields.
const (
	nutrientProtein  = 1003
	nutrientFat      = 1004
	nutrientCarbs    = 1005
	nutrientEnergy   = 1008
	nutrientFiber    = 1079
	nutrientCalcium  = 1087
	nutrientIron     = 1089
	nutrientVitaminC = 1162
)

// AuthoritativeSource looks a food up in a curated database.
type AuthoritativeSource interface {
	Search(ctx context.Context, query string) (*usda.Food, error)
}

// Table is the exact-match view of the local food table.
type Table interface {
	ExactMatch(name string) (foodtable.Record, bool)
}

// SemanticSearcher returns nearest food records for a query.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, k int) []semantic.Hit
}

// SecondarySource parses a natural-language food description.
type SecondarySource interface {
	Natural(ctx context.Context, query string) ([]nutritionix.Food, error)
}

// Sources are the tiers. Any of them may be nil; a nil tier is skipped.
type Sources struct {
	Authoritative AuthoritativeSource
	Table         Table
	Index         SemanticSearcher
	Secondary     SecondarySource
	// TierTimeout bounds each external call. Zero selects DefaultTierTimeout.
	TierTimeout time.Duration
}

// Options tune a single Resolve call.
type Options struct {
	Detailed bool
}

// Engine resolves food mentions.
type Engine struct {
	src Sources
}

// New creates an Engine over src.
func New(src Sources) *Engine {
	if src.TierTimeout <= 0 {
		src.TierTimeout = DefaultTierTimeout
	}
	return &Engine{src: src}
}

// Resolve runs the tiers in order and stops at the first that answers. It
// never returns an error: misses and provider failures move on to the next
// tier, and the last tier's failure becomes a NotFound reason.
func (e *Engine) Resolve(ctx context.Context, query string, opts Options) Outcome {
	q := strings.TrimSpace(query)
	out := e.resolve(ctx, q, opts)
	out.Query = q
	return out
}

func (e *Engine) resolve(ctx context.Context, q string, opts Options) Outcome {
	if q == "" {
		return Outcome{Kind: NotFound, Reason: "请提供要查询的食物名称。"}
	}

	if res, ok := e.authoritative(ctx, q, opts); ok {
		return Outcome{Kind: Found, Result: res}
	}

	if e.src.Table != nil {
		if rec, ok := e.src.Table.ExactMatch(q); ok {
			slog.Info("resolver: local exact match", "query", q)
			return Outcome{Kind: Found, Result: fromRecord(rec, q, TierLocal, opts)}
		}
	}

	if e.src.Index != nil {
		hits := e.src.Index.Search(ctx, q, semanticCandidates)
		if len(hits) > 0 {
			if hit, ok := acceptable(q, hits); ok {
				slog.Info("resolver: semantic match", "query", q, "food", hit.Record.Name, "distance", hit.Distance)
				return Outcome{Kind: Found, Result: fromRecord(hit.Record, q, TierSemantic, opts)}
			}
			names := make([]string, len(hits))
			for i, h := range hits {
				names[i] = h.Record.Name
			}
			slog.Info("resolver: no close semantic match, offering suggestions", "query", q, "candidates", names)
			return Outcome{Kind: Suggestions, Suggestions: names}
		}
	}

	return e.secondary(ctx, q, opts)
}

func (e *Engine) authoritative(ctx context.Context, q string, opts Options) (*NutrientResult, bool) {
	if e.src.Authoritative == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, e.src.TierTimeout)
	defer cancel()

	food, err := e.src.Authoritative.Search(ctx, q)
	if err != nil {
		if errors.Is(err, usda.ErrNoAPIKey) || errors.Is(err, usda.ErrNoResults) {
			slog.Debug("resolver: authoritative miss", "query", q, "reason", err)
		} else {
			slog.Warn("resolver: authoritative source failed", "query", q, "error", err)
		}
		return nil, false
	}
	slog.Info("resolver: authoritative match", "query", q, "food", food.Description)
	return fromUSDA(food, q, opts), true
}

func (e *Engine) secondary(ctx context.Context, q string, opts Options) Outcome {
	if e.src.Secondary == nil {
		return notFound(q, nutritionix.ErrNotConfigured)
	}
	ctx, cancel := context.WithTimeout(ctx, e.src.TierTimeout)
	defer cancel()

	foods, err := e.src.Secondary.Natural(ctx, q)
	if err != nil {
		slog.Warn("resolver: secondary source failed", "query", q, "error", err)
		return notFound(q, err)
	}
	slog.Info("resolver: secondary match", "query", q, "items", len(foods))
	return Outcome{Kind: Found, Result: fromNutritionix(foods, q, opts)}
}

// acceptable picks the nearest hit whose name equals, contains or is
// contained in the query, ignoring case. hits are already nearest first.
func acceptable(q string, hits []semantic.Hit) (semantic.Hit, bool) {
	lq := strings.ToLower(q)
	for _, h := range hits {
		name := strings.ToLower(h.Record.Name)
		if name == "" {
			continue
		}
		if name == lq || strings.Contains(name, lq) || strings.Contains(lq, name) {
			return h, true
		}
	}
	return semantic.Hit{}, false
}

func notFound(q string, err error) Outcome {
	var se *nutritionix.StatusError
	var reason string
	switch {
	case errors.Is(err, nutritionix.ErrNotConfigured):
		reason = fmt.Sprintf("抱歉，本地数据库中未找到'%s'，且未配置外部API密钥。", q)
	case errors.Is(err, nutritionix.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		reason = "API 请求超时，请稍后再试。"
	case errors.As(err, &se):
		reason = fmt.Sprintf("API 请求失败: %d %s", se.Code, strings.TrimSpace(se.Body))
	case errors.Is(err, nutritionix.ErrEmpty):
		reason = fmt.Sprintf("抱歉，通过API也未能查询到 '%s' 的营养信息。", q)
	default:
		reason = fmt.Sprintf("调用API时发生未知错误: %v", err)
	}
	return Outcome{Kind: NotFound, Reason: reason, Err: err}
}
