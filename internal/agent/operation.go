// Package agent runs one conversational turn: it picks a nutrition tool,
// runs it and composes the answer.
package agent

// Operation is one of the closed set of tools the agent can run.
type Operation interface {
	// Name is the tool name shown to the model.
	Name() string
	operation()
}

type QueryNutrient struct {
	Food     string
	Detailed bool
}

type SearchCategory struct {
	Category string
}

// AdviseDiet takes everything it needs from the user's profile.
type AdviseDiet struct{}

type PlanMeal struct {
	Meal        string
	Calories    int
	Preferences string
}

type AnswerQuestion struct {
	Question    string
	DetailLevel string
}

type ExplainMyth struct {
	Myth string
}

const (
	toolNutritionQuery = "nutrition_query"
	toolCategorySearch = "category_search"
	toolDietAdvice     = "diet_advice"
	toolMealPlan       = "meal_plan"
	toolNutritionQA    = "nutrition_qa"
	toolNutritionMyth  = "nutrition_myth"
	toolNone           = "none"
)

// ToolNames lists the selectable tools in prompt order.
var ToolNames = []string{
	toolNutritionQuery, toolCategorySearch, toolDietAdvice,
	toolMealPlan, toolNutritionQA, toolNutritionMyth,
}

func (QueryNutrient) Name() string  { return toolNutritionQuery }
func (SearchCategory) Name() string { return toolCategorySearch }
func (AdviseDiet) Name() string     { return toolDietAdvice }
func (PlanMeal) Name() string       { return toolMealPlan }
func (AnswerQuestion) Name() string { return toolNutritionQA }
func (ExplainMyth) Name() string    { return toolNutritionMyth }

func (QueryNutrient) operation()  {}
func (SearchCategory) operation() {}
func (AdviseDiet) operation()     {}
func (PlanMeal) operation()       {}
func (AnswerQuestion) operation() {}
func (ExplainMyth) operation()    {}

// Category is the consultation category recorded for a turn.
func Category(op Operation) string {
	if op == nil {
		return "general"
	}
	return op.Name()
}
