package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abchbx/nutrition-agent/internal/diet"
	"github.com/abchbx/nutrition-agent/internal/engine"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/knowledge"
	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/resolver"
)

const (
	answerTimeout = 120 * time.Second
	knowledgeK    = 3
)

// Resolver looks up the nutrients of one food.
type Resolver interface {
	Resolve(ctx context.Context, query string, opts resolver.Options) resolver.Outcome
}

// KnowledgeSearcher finds passages relevant to a question.
type KnowledgeSearcher interface {
	Search(ctx context.Context, question string, k int) []knowledge.Passage
}

// Executor runs operations against the nutrition backends.
type Executor struct {
	Resolver    Resolver
	Catalog     diet.Catalog
	Knowledge   KnowledgeSearcher
	Chat        Chatter
	Model       string
	Temperature *float64
}

// Run executes op for the given profile and returns its text result.
func (x *Executor) Run(ctx context.Context, op Operation, p *memory.Profile) (string, error) {
	switch op := op.(type) {
	case QueryNutrient:
		out := x.Resolver.Resolve(ctx, op.Food, resolver.Options{Detailed: op.Detailed})
		return resolver.Format(out, op.Detailed), nil
	case SearchCategory:
		return x.searchCategory(op.Category), nil
	case AdviseDiet:
		return x.adviseDiet(ctx, p)
	case PlanMeal:
		return x.complete(ctx, fmt.Sprintf(mealTemplate, op.Meal, op.Calories, op.Preferences, diet.AllFoods(x.Catalog)))
	case AnswerQuestion:
		return x.answerQuestion(ctx, op)
	case ExplainMyth:
		return x.complete(ctx, fmt.Sprintf(mythTemplate, op.Myth))
	case nil:
		return "", errors.New("no operation")
	default:
		return "", fmt.Errorf("unknown operation %T", op)
	}
}

func (x *Executor) searchCategory(category string) string {
	foods := x.Catalog.ByCategory(category)
	if len(foods) == 0 {
		return fmt.Sprintf("未找到类别'%s'的食物。可用类别包括：%s", category, strings.Join(x.Catalog.Categories(), ", "))
	}
	return FormatCategory(category, foods)
}

// FormatCategory lists the foods of one category.
func FormatCategory(category string, foods []foodtable.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📂 %s类食物列表：\n\n", category)
	for _, f := range foods {
		fmt.Fprintf(&sb, "• %s\n", f.Name)
		fmt.Fprintf(&sb, "  热量: %g千卡/100g | 蛋白质: %gg/100g\n", f.Calories, f.Protein)
	}
	fmt.Fprintf(&sb, "\n💡 共找到 %d 种%s类食物", len(foods), category)
	return sb.String()
}

func (x *Executor) adviseDiet(ctx context.Context, p *memory.Profile) (string, error) {
	if p == nil {
		return "", errors.New("diet advice needs a profile")
	}
	a, err := diet.Assess(diet.Body{
		Age:           p.Age,
		Gender:        p.Gender,
		HeightCM:      p.HeightCM,
		WeightKG:      p.WeightKG,
		ActivityLevel: p.ActivityLevel,
		HealthGoal:    p.HealthGoal,
	})
	if err != nil {
		return "", fmt.Errorf("assessing profile: %w", err)
	}

	info := fmt.Sprintf("- **年龄:** %d岁\n- **性别:** %s\n- **身高:** %gcm\n- **体重:** %gkg\n- **BMI:** %.1f\n- **基础代谢率:** %.0f千卡/天\n- **活动水平:** %s\n- **健康目标:** %s\n- **饮食限制:** %s\n- **食物偏好:** %s\n",
		p.Age, p.Gender, p.HeightCM, p.WeightKG, a.BMI, a.BMR,
		p.ActivityLevel, p.HealthGoal, p.DietaryRestrictions, p.Preferences)

	advice, err := x.complete(ctx, fmt.Sprintf(adviceTemplate, info, diet.AvailableFoods(x.Catalog, p.DietaryRestrictions)))
	if err != nil {
		return "", err
	}
	return diet.Summary(a) + "\n--- \n🍽️ **个性化饮食建议报告**\n" + advice, nil
}

func (x *Executor) answerQuestion(ctx context.Context, op AnswerQuestion) (string, error) {
	var passages []knowledge.Passage
	if x.Knowledge != nil {
		passages = x.Knowledge.Search(ctx, op.Question, knowledgeK)
	}
	kctx := knowledge.Context(passages)
	if kctx == "" {
		kctx = noKnowledgeContext
	}
	return x.complete(ctx, fmt.Sprintf(qaTemplate, op.Question, kctx, op.DetailLevel))
}

func (x *Executor) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	out, err := x.Chat.Chat(ctx, engine.ChatRequest{
		Model:       x.Model,
		Messages:    []engine.Message{{Role: "user", Content: prompt}},
		Temperature: x.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return out, nil
}
