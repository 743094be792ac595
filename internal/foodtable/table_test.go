package foodtable

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExactMatchReturnsInsertedRecords(t *testing.T) {
	records := []Record{
		{Name: "苹果", Category: "水果", Calories: 52, Protein: 0.3},
		{Name: "Apple", Category: "fruit", Calories: 52, Iron: 0.1},
		{Name: "豆腐", Category: "豆制品", Calories: 76, Calcium: 350},
	}
	tbl := New(records...)

	for _, want := range records {
		got, ok := tbl.ExactMatch(want.Name)
		if !ok {
			t.Fatalf("ExactMatch(%q) not found", want.Name)
		}
		if got != want {
			t.Errorf("ExactMatch(%q) = %+v, want %+v", want.Name, got, want)
		}
	}
}

func TestExactMatchIsCaseSensitive(t *testing.T) {
	tbl := New(Record{Name: "Apple"})

	if _, ok := tbl.ExactMatch("apple"); ok {
		t.Error("ExactMatch must be case-sensitive")
	}
	if _, ok := tbl.ExactMatch("Apple "); ok {
		t.Error("ExactMatch must not trim")
	}
}

func TestExactMatchFirstDuplicateWins(t *testing.T) {
	tbl := New(
		Record{Name: "米饭", Calories: 130},
		Record{Name: "米饭", Calories: 999},
	)
	got, _ := tbl.ExactMatch("米饭")
	if got.Calories != 130 {
		t.Errorf("Calories = %v, want first inserted 130", got.Calories)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
}

func TestNegativeValuesClampToZero(t *testing.T) {
	tbl := New(Record{Name: "x", Calories: -5, Fat: 2})
	got, _ := tbl.ExactMatch("x")
	if got.Calories != 0 || got.Fat != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestByCategoryKeepsInsertionOrder(t *testing.T) {
	tbl := New(Seed()...)

	fruits := tbl.ByCategory("水果")
	want := []string{"苹果", "香蕉", "橙子", "草莓", "葡萄"}
	if len(fruits) != len(want) {
		t.Fatalf("got %d fruits, want %d", len(fruits), len(want))
	}
	for i, name := range want {
		if fruits[i].Name != name {
			t.Errorf("fruits[%d] = %q, want %q", i, fruits[i].Name, name)
		}
	}

	if got := tbl.ByCategory("糖果"); len(got) != 0 {
		t.Errorf("unknown category returned %d records", len(got))
	}
}

func TestCategoriesDeduplicated(t *testing.T) {
	tbl := New(Seed()...)

	got := tbl.Categories()
	want := []string{"水果", "肉类", "蛋类", "乳制品", "谷物", "蔬菜", "豆制品"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Categories = %v, want %v", got, want)
	}
}

func TestLoadMissingFileWritesSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nutrition_data.csv")

	tbl := Load(path)
	if tbl.Len() != 20 {
		t.Fatalf("Len = %d, want 20 seed records", tbl.Len())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("seed file not written: %v", err)
	}

	// Reloading reads the persisted seed back unchanged.
	again := Load(path)
	apple, ok := again.ExactMatch("苹果")
	if !ok {
		t.Fatal("苹果 missing after reload")
	}
	if apple.Calories != 52 || apple.Category != "水果" {
		t.Errorf("苹果 = %+v", apple)
	}
	milk, _ := again.ExactMatch("牛奶")
	if milk.Iron != 0.03 {
		t.Errorf("牛奶 iron = %v, want 0.03", milk.Iron)
	}
}

func TestLoadCorruptFileRegeneratesSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrition_data.csv")
	if err := os.WriteFile(path, []byte("name,kcal\n\"broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl := Load(path)
	if tbl.Len() != 20 {
		t.Fatalf("Len = %d, want 20", tbl.Len())
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("corrupt file not moved aside: %v", err)
	}
}

func TestLoadEmptyFileRegeneratesSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutrition_data.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if tbl := Load(path); tbl.Len() != 20 {
		t.Fatalf("Len = %d, want 20", tbl.Len())
	}
}

func TestParseMissingCellsBecomeZero(t *testing.T) {
	csv := "\ufefffood_name,category,calories,protein\n苹果,水果,52,\n梨,水果,abc,0.4\n,水果,1,1\n"

	records, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (blank name skipped)", len(records))
	}
	if records[0].Calories != 52 || records[0].Protein != 0 || records[0].Iron != 0 {
		t.Errorf("苹果 = %+v", records[0])
	}
	if records[1].Calories != 0 || records[1].Protein != 0.4 {
		t.Errorf("梨 = %+v", records[1])
	}
}

func TestParseRequiresNameColumn(t *testing.T) {
	if _, err := Parse(strings.NewReader("name,calories\nx,1\n")); err == nil {
		t.Fatal("expected error without food_name column")
	}
}
