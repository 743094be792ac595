package foodtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const utf8BOM = "\ufeff"

// Columns is the CSV header written by Save, in order.
var Columns = []string{
	"food_name", "calories", "protein", "carbs", "fat",
	"fiber", "vitamin_c", "calcium", "iron", "category",
}

// Record is one food row. Nutrient values are per 100 g edible portion.
type Record struct {
	Name     string  `json:"food_name"`
	Category string  `json:"category"`
	Calories float64 `json:"calories"`  // kcal
	Protein  float64 `json:"protein"`   // g
	Carbs    float64 `json:"carbs"`     // g
	Fat      float64 `json:"fat"`       // g
	Fiber    float64 `json:"fiber"`     // g
	VitaminC float64 `json:"vitamin_c"` // mg
	Calcium  float64 `json:"calcium"`   // mg
	Iron     float64 `json:"iron"`      // mg
}

// Normalized returns a copy with every nutrient clamped to a finite value >= 0.
func (r Record) Normalized() Record {
	r.Calories = clamp(r.Calories)
	r.Protein = clamp(r.Protein)
	r.Carbs = clamp(r.Carbs)
	r.Fat = clamp(r.Fat)
	r.Fiber = clamp(r.Fiber)
	r.VitaminC = clamp(r.VitaminC)
	r.Calcium = clamp(r.Calcium)
	r.Iron = clamp(r.Iron)
	return r
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Table is an in-memory food dataset with exact-name and category lookups.
// It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	records []Record
	byName  map[string]int
}

// New builds a table from records in order.
func New(records ...Record) *Table {
	t := &Table{byName: make(map[string]int)}
	for _, r := range records {
		t.Add(r)
	}
	return t
}

// Add appends a record. When a name repeats, ExactMatch keeps returning the
// first one.
func (t *Table) Add(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r = r.Normalized()
	if _, ok := t.byName[r.Name]; !ok {
		t.byName[r.Name] = len(t.records)
	}
	t.records = append(t.records, r)
}

// ExactMatch does a case-sensitive lookup on the food name.
func (t *Table) ExactMatch(name string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.byName[name]
	if !ok {
		return Record{}, false
	}
	return t.records[i], true
}

// ByCategory returns the records in category, in insertion order.
func (t *Table) ByCategory(category string) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Record
	for _, r := range t.records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (t *Table) Categories() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.records {
		if seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		out = append(out, r.Category)
	}
	return out
}

// All returns a copy of every record in insertion order.
func (t *Table) All() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Len returns the number of records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Load reads the CSV at path. When the file is missing, empty or cannot be
// parsed, the built-in seed is returned and written to path; a corrupt file
// is moved aside to path+".corrupt" first. Load never fails: persistence
// problems are logged and the in-memory table is still returned.
func Load(path string) *Table {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("food table not found, creating seed data", "path", path)
		return seedAndPersist(path)
	case err != nil:
		slog.Warn("could not read food table, using seed data", "path", path, "error", err)
		return New(Seed()...)
	}

	records, err := Parse(bytes.NewReader(data))
	if err == nil && len(records) == 0 {
		err = errors.New("no rows")
	}
	if err != nil {
		slog.Warn("food table is corrupt, regenerating seed data", "path", path, "error", err)
		if rerr := os.Rename(path, path+".corrupt"); rerr != nil {
			slog.Warn("could not move corrupt food table aside", "path", path, "error", rerr)
		}
		return seedAndPersist(path)
	}

	slog.Info("loaded food table", "path", path, "records", len(records))
	return New(records...)
}

func seedAndPersist(path string) *Table {
	t := New(Seed()...)
	if err := t.Save(path); err != nil {
		slog.Warn("could not persist seed food table", "path", path, "error", err)
	}
	return t
}

// Parse decodes CSV rows. Columns are located by header name; food_name is
// required, every other column is optional. Missing or unparsable nutrient
// cells become 0.
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
		cols[strings.ToLower(h)] = i
	}
	nameCol, ok := cols["food_name"]
	if !ok {
		return nil, errors.New("missing food_name column")
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, name string) float64 {
		v, err := strconv.ParseFloat(cell(row, name), 64)
		if err != nil {
			return 0
		}
		return v
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if nameCol >= len(row) || strings.TrimSpace(row[nameCol]) == "" {
			continue
		}
		rec := Record{
			Name:     strings.TrimSpace(row[nameCol]),
			Category: cell(row, "category"),
			Calories: num(row, "calories"),
			Protein:  num(row, "protein"),
			Carbs:    num(row, "carbs"),
			Fat:      num(row, "fat"),
			Fiber:    num(row, "fiber"),
			VitaminC: num(row, "vitamin_c"),
			Calcium:  num(row, "calcium"),
			Iron:     num(row, "iron"),
		}
		records = append(records, rec.Normalized())
	}
	return records, nil
}

// Save writes the table as UTF-8 CSV with a BOM so spreadsheet tools pick
// the right encoding.
func (t *Table) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range t.All() {
		row := []string{
			r.Name, f(r.Calories), f(r.Protein), f(r.Carbs), f(r.Fat),
			f(r.Fiber), f(r.VitaminC), f(r.Calcium), f(r.Iron), r.Category,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding csv: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
