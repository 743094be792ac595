package memory

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Profile defaults for newly created users.
const (
	DefaultAge                 = 30
	DefaultGender              = "未知"
	DefaultHeightCM            = 170.0
	DefaultWeightKG            = 65.0
	DefaultActivityLevel       = "轻度活动"
	DefaultHealthGoal          = "维持体重"
	DefaultDietaryRestrictions = "无"
	DefaultPreferences         = "无"
)

// Patch lists the profile fields a caller may change. Nil fields are left
// as they are.
type Patch struct {
	Name                *string
	Age                 *int
	Gender              *string
	HeightCM            *float64
	WeightKG            *float64
	ActivityLevel       *string
	HealthGoal          *string
	DietaryRestrictions *string
	Preferences         *string
}

// PatchKeys are the keys PatchFromMap understands, in display order.
var PatchKeys = []string{
	"name", "age", "gender", "height", "weight",
	"activity_level", "health_goal", "dietary_restrictions", "preferences",
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) apply(prof *Profile) {
	if p.Name != nil {
		prof.Name = *p.Name
	}
	if p.Age != nil {
		prof.Age = *p.Age
	}
	if p.Gender != nil {
		prof.Gender = *p.Gender
	}
	if p.HeightCM != nil {
		prof.HeightCM = *p.HeightCM
	}
	if p.WeightKG != nil {
		prof.WeightKG = *p.WeightKG
	}
	if p.ActivityLevel != nil {
		prof.ActivityLevel = *p.ActivityLevel
	}
	if p.HealthGoal != nil {
		prof.HealthGoal = *p.HealthGoal
	}
	if p.DietaryRestrictions != nil {
		prof.DietaryRestrictions = *p.DietaryRestrictions
	}
	if p.Preferences != nil {
		prof.Preferences = *p.Preferences
	}
}

// PatchFromMap builds a Patch from loosely typed input such as decoded JSON,
// MCP tool arguments or key=value CLI flags. Keys it does not recognize are
// returned, sorted, rather than silently dropped. A recognized key with a
// value of the wrong type is an error.
func PatchFromMap(m map[string]any) (Patch, []string, error) {
	var p Patch
	var unknown []string
	for k, v := range m {
		switch k {
		case "name":
			s, err := toString(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.Name = &s
		case "age":
			f, err := toFloat(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			if f != math.Trunc(f) {
				return Patch{}, nil, fmt.Errorf("age: %v is not a whole number", v)
			}
			age := int(f)
			p.Age = &age
		case "gender":
			s, err := toString(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.Gender = &s
		case "height":
			f, err := toFloat(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.HeightCM = &f
		case "weight":
			f, err := toFloat(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.WeightKG = &f
		case "activity_level":
			s, err := toString(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.ActivityLevel = &s
		case "health_goal":
			s, err := toString(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.HealthGoal = &s
		case "dietary_restrictions":
			s, err := toString(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.DietaryRestrictions = &s
		case "preferences":
			s, err := toString(k, v)
			if err != nil {
				return Patch{}, nil, err
			}
			p.Preferences = &s
		default:
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return p, unknown, nil
}

func toString(key string, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case float64, int, int64:
		return fmt.Sprint(x), nil
	}
	return "", fmt.Errorf("%s: expected a string, got %T", key, v)
}

func toFloat(key string, v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", key, x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%s: expected a number, got %T", key, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("%s: %v is out of range", key, v)
	}
	return f, nil
}
