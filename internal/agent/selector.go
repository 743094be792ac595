package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/abchbx/nutrition-agent/internal/engine"
)

const selectionTimeout = 10 * time.Second

// Chatter is the chat half of an inference engine.
type Chatter interface {
	Chat(ctx context.Context, req engine.ChatRequest) (string, error)
}

// Selector asks the model which tool fits a message.
type Selector struct {
	client Chatter
	model  string
}

func NewSelector(client Chatter, model string) *Selector {
	return &Selector{client: client, model: model}
}

type selection struct {
	Tool        string  `json:"tool"`
	Food        string  `json:"food"`
	Detailed    bool    `json:"detailed"`
	Category    string  `json:"category"`
	Meal        string  `json:"meal"`
	Calories    float64 `json:"calories"`
	Preferences string  `json:"preferences"`
	Question    string  `json:"question"`
	DetailLevel string  `json:"detail_level"`
	Myth        string  `json:"myth"`
}

// Select returns the chosen operation. Any failure, "none", an unknown tool
// or missing arguments all report false, and the turn runs without a tool.
func (s *Selector) Select(ctx context.Context, message, profileSummary string) (Operation, bool) {
	if strings.TrimSpace(message) == "" {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, selectionTimeout)
	defer cancel()

	zero := 0.0
	raw, err := s.client.Chat(ctx, engine.ChatRequest{
		Model:       s.model,
		Messages:    selectionPrompt(message, profileSummary),
		Schema:      selectionSchema(),
		Temperature: &zero,
	})
	if err != nil {
		slog.Warn("tool selection chat failed", "error", err)
		return nil, false
	}

	var sel selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		slog.Warn("failed to unmarshal tool selection", "error", err, "response", raw)
		return nil, false
	}
	op, ok := sel.operation(message)
	if !ok && sel.Tool != toolNone {
		slog.Warn("tool selection rejected", "tool", sel.Tool)
	}
	return op, ok
}

func (s selection) operation(message string) (Operation, bool) {
	trim := strings.TrimSpace
	switch s.Tool {
	case toolNutritionQuery:
		if trim(s.Food) == "" {
			return nil, false
		}
		return QueryNutrient{Food: trim(s.Food), Detailed: s.Detailed}, true
	case toolCategorySearch:
		if trim(s.Category) == "" {
			return nil, false
		}
		return SearchCategory{Category: trim(s.Category)}, true
	case toolDietAdvice:
		return AdviseDiet{}, true
	case toolMealPlan:
		if trim(s.Meal) == "" || s.Calories <= 0 {
			return nil, false
		}
		return PlanMeal{Meal: trim(s.Meal), Calories: int(s.Calories), Preferences: orDefault(s.Preferences, "无")}, true
	case toolNutritionQA:
		q := trim(s.Question)
		if q == "" {
			q = trim(message)
		}
		return AnswerQuestion{Question: q, DetailLevel: orDefault(s.DetailLevel, "中等")}, true
	case toolNutritionMyth:
		m := trim(s.Myth)
		if m == "" {
			m = trim(message)
		}
		return ExplainMyth{Myth: m}, true
	}
	return nil, false
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func selectionSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"tool":         {Type: "string", Description: "The tool to run, or none", Enum: append(append([]string{}, ToolNames...), toolNone)},
			"food":         {Type: "string", Description: "Food name for nutrition_query"},
			"detailed":     {Type: "boolean", Description: "Whether micronutrients were asked for"},
			"category":     {Type: "string", Description: "Food category for category_search"},
			"meal":         {Type: "string", Description: "早餐, 午餐, 晚餐 or 加餐 for meal_plan"},
			"calories":     {Type: "number", Description: "Target kcal for meal_plan"},
			"preferences":  {Type: "string", Description: "Food preferences for meal_plan"},
			"question":     {Type: "string", Description: "Question for nutrition_qa"},
			"detail_level": {Type: "string", Description: "简单, 中等 or 详细", Enum: []string{"简单", "中等", "详细"}},
			"myth":         {Type: "string", Description: "Claim for nutrition_myth"},
		},
		Required: []string{"tool"},
	}
}
