package resolver

// Tier names the source that answered a query.
type Tier string

const (
	TierAuthoritative Tier = "authoritative"
	TierLocal         Tier = "local"
	TierSemantic      Tier = "semantic"
	TierSecondary     Tier = "secondary"
)

// Basis says what quantity the nutrient values describe.
type Basis string

const (
	PerHundredGrams Basis = "per_100g"
	PerServing      Basis = "per_serving"
)

// Nutrients is the canonical field set. The four micronutrient fields are
// only filled in detailed mode; a nil value inside a detailed result means
// the source does not report it.
type Nutrients struct {
	Calories float64  `json:"calories"`
	Protein  float64  `json:"protein"`
	Carbs    float64  `json:"carbs"`
	Fat      float64  `json:"fat"`
	Fiber    *float64 `json:"fiber,omitempty"`
	VitaminC *float64 `json:"vitamin_c,omitempty"`
	Calcium  *float64 `json:"calcium,omitempty"`
	Iron     *float64 `json:"iron,omitempty"`
}

// Amount is a value with its unit as reported by the source.
type Amount struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Item is one food of a summed secondary result, per its own serving.
type Item struct {
	Name     string  `json:"name"`
	Serving  string  `json:"serving"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// NutrientResult is one resolved food.
type NutrientResult struct {
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	Category  string    `json:"category,omitempty"`
	Tier      Tier      `json:"tier"`
	Basis     Basis     `json:"basis"`
	Serving   string    `json:"serving,omitempty"`
	Nutrients Nutrients `json:"nutrients"`
	// Overflow holds authoritative nutrients outside the canonical set,
	// keyed by the source's own nutrient name.
	Overflow map[string]Amount `json:"overflow,omitempty"`
	Items    []Item            `json:"items,omitempty"`
	Detailed bool              `json:"detailed"`
}

// Kind is the shape of an Outcome.
type Kind string

const (
	Found       Kind = "found"
	Suggestions Kind = "suggestions"
	NotFound    Kind = "not_found"
)

// Outcome is what Resolve returns. Exactly one of Result (Found),
// Suggestions (Suggestions) or Reason (NotFound) is meaningful. Err keeps the
// last underlying error of a NotFound for callers that branch on it.
type Outcome struct {
	Query       string          `json:"query"`
	Kind        Kind            `json:"kind"`
	Result      *NutrientResult `json:"result,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Err         error           `json:"-"`
}
