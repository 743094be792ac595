// Package dailylog turns a free-text food mention into a stored log entry.
package dailylog

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultUnit is used when a description names no unit.
const DefaultUnit = "份"

// Portion is a parsed food description.
type Portion struct {
	Food   string
	Amount float64
	Unit   string
}

var (
	numericRe = regexp.MustCompile(`^(\d*\.?\d+)\s*(.*)$`)

	// Longest first so "kg" wins over "g".
	units = []string{"千克", "公斤", "毫升", "kg", "ml", "克", "g", "个", "杯", "碗", "份", "片", "根", "块", "勺", "盒", "瓶", "只", "颗"}

	wordNumbers = map[string]float64{"半": 0.5, "一": 1, "两": 2, "二": 2, "三": 3, "四": 4, "五": 5, "六": 6, "七": 7, "八": 8, "九": 9, "十": 10}
)

// Parse reads "<amount><unit><food>" descriptions such as "100克鸡胸肉",
// "2 个 鸡蛋" or "一杯牛奶". Without a leading amount the whole text is the
// food, amount 1 of DefaultUnit.
func Parse(description string) Portion {
	s := strings.ToLower(strings.TrimSpace(description))

	amount, rest, ok := leadingAmount(s)
	if !ok {
		return Portion{Food: s, Amount: 1, Unit: DefaultUnit}
	}

	rest = strings.TrimSpace(rest)
	unit := DefaultUnit
	if u, ok := unitPrefix(rest); ok {
		unit = u
		rest = strings.TrimSpace(strings.TrimPrefix(rest, u))
	}
	if rest == "" {
		return Portion{Food: s, Amount: 1, Unit: DefaultUnit}
	}
	return Portion{Food: rest, Amount: amount, Unit: unit}
}

func leadingAmount(s string) (float64, string, bool) {
	if m := numericRe.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 1, m[2], true
		}
		return v, m[2], true
	}
	// Spelled-out numbers only count when a unit follows, so 五花肉 stays
	// a food.
	for w, v := range wordNumbers {
		rest, found := strings.CutPrefix(s, w)
		if !found {
			continue
		}
		if _, ok := unitPrefix(strings.TrimSpace(rest)); ok {
			return v, rest, true
		}
	}
	return 0, s, false
}

// unitPrefix finds the unit that s starts with. Something must follow the
// unit, and a latin unit must not run into more latin letters.
func unitPrefix(s string) (string, bool) {
	for _, u := range units {
		rest, found := strings.CutPrefix(s, u)
		if !found || strings.TrimSpace(rest) == "" {
			continue
		}
		if isLatin(u[len(u)-1]) && isLatin(rest[0]) {
			continue
		}
		return u, true
	}
	return "", false
}

func isLatin(c byte) bool { return c >= 'a' && c <= 'z' }

// Scale is the factor applied to per-100g values for this portion. Mass
// and volume units scale by weight; any other unit counts as one 100 g
// portion per unit.
func (p Portion) Scale() float64 {
	if p.Amount <= 0 {
		return 1
	}
	switch p.Unit {
	case "g", "克", "ml", "毫升":
		return p.Amount / 100
	case "kg", "千克", "公斤":
		return p.Amount * 10
	default:
		return p.Amount
	}
}
