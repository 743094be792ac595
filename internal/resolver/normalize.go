package resolver

import (
	"fmt"
	"strings"

	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/nutritionix"
	"github.com/abchbx/nutrition-agent/internal/usda"
)

func ptr(v float64) *float64 { return &v }

func fromRecord(r foodtable.Record, q string, tier Tier, opts Options) *NutrientResult {
	r = r.Normalized()
	res := &NutrientResult{
		Name:     r.Name,
		Query:    q,
		Category: r.Category,
		Tier:     tier,
		Basis:    PerHundredGrams,
		Detailed: opts.Detailed,
		Nutrients: Nutrients{
			Calories: r.Calories,
			Protein:  r.Protein,
			Carbs:    r.Carbs,
			Fat:      r.Fat,
		},
	}
	if opts.Detailed {
		res.Nutrients.Fiber = ptr(r.Fiber)
		res.Nutrients.VitaminC = ptr(r.VitaminC)
		res.Nutrients.Calcium = ptr(r.Calcium)
		res.Nutrients.Iron = ptr(r.Iron)
	}
	return res
}

// fromUSDA maps the whitelisted nutrient IDs and keeps everything else in
// Overflow. Search results are already per 100 g.
func fromUSDA(food *usda.Food, q string, opts Options) *NutrientResult {
	var n, micro Nutrients
	micro.Fiber, micro.VitaminC, micro.Calcium, micro.Iron = ptr(0), ptr(0), ptr(0), ptr(0)
	overflow := make(map[string]Amount)

	for _, fn := range food.Nutrients {
		v := fn.Value
		if v < 0 {
			v = 0
		}
		switch fn.ID {
		case nutrientEnergy:
			n.Calories = v
		case nutrientProtein:
			n.Protein = v
		case nutrientCarbs:
			n.Carbs = v
		case nutrientFat:
			n.Fat = v
		case nutrientFiber:
			*micro.Fiber = v
		case nutrientVitaminC:
			*micro.VitaminC = v
		case nutrientCalcium:
			*micro.Calcium = v
		case nutrientIron:
			*micro.Iron = v
		default:
			if fn.Name == "" {
				continue
			}
			if _, dup := overflow[fn.Name]; !dup {
				overflow[fn.Name] = Amount{Value: v, Unit: strings.ToLower(fn.Unit)}
			}
		}
	}

	if opts.Detailed {
		n.Fiber, n.VitaminC, n.Calcium, n.Iron = micro.Fiber, micro.VitaminC, micro.Calcium, micro.Iron
	}
	if len(overflow) == 0 {
		overflow = nil
	}
	name := food.Description
	if name == "" {
		name = q
	}
	return &NutrientResult{
		Name:      name,
		Query:     q,
		Tier:      TierAuthoritative,
		Basis:     PerHundredGrams,
		Nutrients: n,
		Overflow:  overflow,
		Detailed:  opts.Detailed,
	}
}

func servingOf(f nutritionix.Food) string {
	s := strings.TrimSpace(fmt.Sprintf("%s %s", formatNumber(f.ServingQty), f.ServingUnit))
	if f.ServingQty == 0 && f.ServingUnit == "" {
		s = ""
	}
	return s
}

// fromNutritionix converts a single item with a known serving weight to
// per 100 g. Anything else stays per serving; a multi-item answer is the sum
// over the whole described meal.
func fromNutritionix(foods []nutritionix.Food, q string, opts Options) *NutrientResult {
	res := &NutrientResult{Query: q, Tier: TierSecondary, Detailed: opts.Detailed}

	if len(foods) == 1 {
		f := foods[0]
		res.Name = f.Name
		if res.Name == "" {
			res.Name = q
		}
		res.Serving = servingOf(f)
		scale := 1.0
		res.Basis = PerServing
		if f.ServingWeightGrams > 0 {
			scale = 100 / f.ServingWeightGrams
			res.Basis = PerHundredGrams
		}
		res.Nutrients = Nutrients{
			Calories: nonNeg(f.Calories) * scale,
			Protein:  nonNeg(f.Protein) * scale,
			Carbs:    nonNeg(f.Carbs) * scale,
			Fat:      nonNeg(f.Fat) * scale,
		}
		if opts.Detailed {
			res.Nutrients.Fiber = ptr(nonNeg(f.Fiber) * scale)
		}
		return res
	}

	res.Name = q
	res.Basis = PerServing
	res.Serving = "合计"
	var fiber float64
	for _, f := range foods {
		it := Item{
			Name:     f.Name,
			Serving:  servingOf(f),
			Calories: nonNeg(f.Calories),
			Protein:  nonNeg(f.Protein),
			Carbs:    nonNeg(f.Carbs),
			Fat:      nonNeg(f.Fat),
		}
		res.Items = append(res.Items, it)
		res.Nutrients.Calories += it.Calories
		res.Nutrients.Protein += it.Protein
		res.Nutrients.Carbs += it.Carbs
		res.Nutrients.Fat += it.Fat
		fiber += nonNeg(f.Fiber)
	}
	if opts.Detailed {
		res.Nutrients.Fiber = ptr(fiber)
	}
	return res
}

func nonNeg(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	return v
}
