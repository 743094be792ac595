package resolver

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// formatNumber prints v with at most two decimals and no trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func sourceLabel(r *NutrientResult) string {
	switch r.Tier {
	case TierAuthoritative:
		return "USDA FoodData Central"
	case TierLocal:
		return "本地数据"
	case TierSemantic:
		return fmt.Sprintf("本地数据（相似匹配，查询: %s）", r.Query)
	case TierSecondary:
		if len(r.Items) > 0 {
			return "来自 Nutritionix API (复合查询)"
		}
		return "来自 Nutritionix API"
	}
	return string(r.Tier)
}

func basisLabel(r *NutrientResult) string {
	switch {
	case len(r.Items) > 0:
		return "总计营养"
	case r.Basis == PerHundredGrams:
		return "基础营养 (每100g)"
	default:
		return fmt.Sprintf("基础营养 (份量: %s)", r.Serving)
	}
}

// Format renders an Outcome as the Markdown answer shown to users.
func Format(out Outcome, detailed bool) string {
	switch out.Kind {
	case Suggestions:
		quoted := make([]string, len(out.Suggestions))
		for i, s := range out.Suggestions {
			quoted[i] = "'" + s + "'"
		}
		return fmt.Sprintf("本地数据库中未找到'%s'，您是否想查询: %s？", out.Query, strings.Join(quoted, ", "))
	case NotFound:
		return out.Reason
	}

	r := out.Result
	if r == nil {
		return "未找到营养信息。"
	}

	var b strings.Builder
	b.WriteString("### 🍎 食物营养查询\n\n")
	if len(r.Items) == 0 {
		fmt.Fprintf(&b, "*   **食物名称**: %s\n", r.Name)
	}
	fmt.Fprintf(&b, "*   **来源**: %s\n", sourceLabel(r))
	if r.Tier == TierSecondary && r.Basis == PerHundredGrams && r.Serving != "" {
		fmt.Fprintf(&b, "*   **换算自份量**: %s\n", r.Serving)
	}
	fmt.Fprintf(&b, "*   **%s**:\n", basisLabel(r))
	fmt.Fprintf(&b, "    *   热量: %s 千卡\n", formatNumber(r.Nutrients.Calories))
	fmt.Fprintf(&b, "    *   蛋白质: %s g\n", formatNumber(r.Nutrients.Protein))
	fmt.Fprintf(&b, "    *   碳水化合物: %s g\n", formatNumber(r.Nutrients.Carbs))
	fmt.Fprintf(&b, "    *   脂肪: %s g\n", formatNumber(r.Nutrients.Fat))

	if detailed {
		unit := "每100g"
		if r.Basis == PerServing {
			unit = "每份"
		}
		fmt.Fprintf(&b, "*   **详细营养 (%s)**:\n", unit)
		micro := []struct {
			label string
			v     *float64
			unit  string
		}{
			{"膳食纤维", r.Nutrients.Fiber, "g"},
			{"维生素C", r.Nutrients.VitaminC, "mg"},
			{"钙", r.Nutrients.Calcium, "mg"},
			{"铁", r.Nutrients.Iron, "mg"},
		}
		for _, m := range micro {
			if m.v == nil {
				fmt.Fprintf(&b, "    *   %s: 未提供\n", m.label)
				continue
			}
			fmt.Fprintf(&b, "    *   %s: %s %s\n", m.label, formatNumber(*m.v), m.unit)
		}

		if len(r.Overflow) > 0 {
			names := make([]string, 0, len(r.Overflow))
			for name := range r.Overflow {
				names = append(names, name)
			}
			sort.Strings(names)
			b.WriteString("*   **其他营养素**:\n")
			for _, name := range names {
				a := r.Overflow[name]
				fmt.Fprintf(&b, "    *   %s: %s %s\n", name, formatNumber(a.Value), a.Unit)
			}
		}
	}

	if len(r.Items) > 0 {
		b.WriteString("\n*   **详细列表**:\n")
		for _, it := range r.Items {
			fmt.Fprintf(&b, "    *   %s %s: %s 千卡\n", it.Serving, it.Name, formatNumber(it.Calories))
		}
	}
	return b.String()
}
