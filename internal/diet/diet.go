// Package diet computes body metrics and daily energy needs.
package diet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abchbx/nutrition-agent/internal/foodtable"
)

const defaultActivity = 1.375

var activityMultipliers = map[string]float64{
	"久坐":   1.2,
	"轻度活动": 1.375,
	"中度活动": 1.55,
	"重度活动": 1.725,
}

var goalFactors = map[string]float64{
	"减肥": 0.8,
	"增重": 1.2,
	"增肌": 1.15,
}

// Body is the part of a profile the calculations need.
type Body struct {
	Age           int
	Gender        string
	HeightCM      float64
	WeightKG      float64
	ActivityLevel string
	HealthGoal    string
}

// Assessment is the computed summary for a Body.
type Assessment struct {
	BMI           float64 `json:"bmi"`
	Status        string  `json:"bmi_status"`
	BMR           float64 `json:"bmr"`
	Multiplier    float64 `json:"activity_multiplier"`
	DailyCalories float64 `json:"daily_calories"`
}

// BMI is weight over height squared, height in metres.
func BMI(weightKG, heightCM float64) float64 {
	m := heightCM / 100
	return weightKG / (m * m)
}

// BMIStatus classifies a BMI on the Chinese adult scale.
func BMIStatus(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "偏瘦"
	case bmi < 24:
		return "正常"
	case bmi < 28:
		return "偏胖"
	default:
		return "肥胖"
	}
}

// BMR is the Mifflin-St Jeor resting energy estimate in kcal/day.
func BMR(b Body) float64 {
	base := 10*b.WeightKG + 6.25*b.HeightCM - 5*float64(b.Age)
	if isMale(b.Gender) {
		return base + 5
	}
	return base - 161
}

func isMale(g string) bool {
	g = strings.ToLower(strings.TrimSpace(g))
	return g == "男" || g == "male" || g == "m"
}

// ActivityMultiplier maps an activity level to its factor. Unknown levels
// count as light activity.
func ActivityMultiplier(level string) float64 {
	if m, ok := activityMultipliers[level]; ok {
		return m
	}
	return defaultActivity
}

// GoalFactor adjusts maintenance calories for a health goal.
func GoalFactor(goal string) float64 {
	if f, ok := goalFactors[goal]; ok {
		return f
	}
	return 1
}

// Assess computes BMI, BMR and the goal-adjusted daily calories.
func Assess(b Body) (Assessment, error) {
	if b.HeightCM <= 0 || b.WeightKG <= 0 {
		return Assessment{}, errors.New("height and weight must be positive")
	}
	if b.Age < 0 {
		return Assessment{}, fmt.Errorf("invalid age %d", b.Age)
	}

	bmi := BMI(b.WeightKG, b.HeightCM)
	bmr := BMR(b)
	mult := ActivityMultiplier(b.ActivityLevel)
	return Assessment{
		BMI:           bmi,
		Status:        BMIStatus(bmi),
		BMR:           bmr,
		Multiplier:    mult,
		DailyCalories: bmr * mult * GoalFactor(b.HealthGoal),
	}, nil
}

// Catalog is the subset of the food table used to list foods.
type Catalog interface {
	Categories() []string
	ByCategory(category string) []foodtable.Record
}

// AvailableFoods lists foods by category, honouring a dietary restriction:
// vegetarians get no meat and gluten-free diets get a note instead of the
// grain list.
func AvailableFoods(c Catalog, restriction string) string {
	var b strings.Builder
	for _, cat := range c.Categories() {
		if restriction == "素食" && cat == "肉类" {
			continue
		}
		if restriction == "无麸质" && cat == "谷物" {
			fmt.Fprintf(&b, "- **%s:** 建议选择无麸质谷物\n", cat)
			continue
		}
		foods := c.ByCategory(cat)
		if len(foods) == 0 {
			continue
		}
		names := make([]string, len(foods))
		for i, f := range foods {
			names[i] = f.Name
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", cat, strings.Join(names, ", "))
	}
	return b.String()
}

// AllFoods lists every food with its calories per 100 g.
func AllFoods(c Catalog) string {
	var b strings.Builder
	for _, cat := range c.Categories() {
		foods := c.ByCategory(cat)
		if len(foods) == 0 {
			continue
		}
		parts := make([]string, len(foods))
		for i, f := range foods {
			parts[i] = fmt.Sprintf("%s(%g千卡/100g)", f.Name, f.Calories)
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", cat, strings.Join(parts, ", "))
	}
	return b.String()
}

// Summary renders an assessment as the Markdown block shown above advice.
func Summary(a Assessment) string {
	var b strings.Builder
	b.WriteString("📊 **健康数据计算结果**\n")
	fmt.Fprintf(&b, "- **BMI:** %.1f (%s)\n", a.BMI, a.Status)
	fmt.Fprintf(&b, "- **基础代谢率:** %.0f 千卡/天\n", a.BMR)
	fmt.Fprintf(&b, "- **估算每日总热量需求:** %.0f 千卡/天\n", a.DailyCalories)
	return b.String()
}
