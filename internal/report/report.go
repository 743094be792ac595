// Package report summarizes a user's daily logs over a period.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/abchbx/nutrition-agent/internal/memory"
)

// Kind selects the report window.
type Kind string

const (
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// Days is the window length, end date included.
func (k Kind) Days() int {
	switch k {
	case Weekly:
		return 7
	case Monthly:
		return 30
	}
	return 0
}

func (k Kind) label() string {
	if k == Monthly {
		return "过去一个月"
	}
	return "过去一周"
}

// Source supplies logs for a date range.
type Source interface {
	GetLogsForRange(userID, start, end string) []memory.DailyLog
}

// Report is the computed summary for one window.
type Report struct {
	UserID      string  `json:"user_id"`
	Kind        Kind    `json:"kind"`
	Start       string  `json:"start"`
	End         string  `json:"end"`
	DaysLogged  int     `json:"days_logged"`
	Entries     int     `json:"entries"`
	AvgCalories float64 `json:"avg_calories"`
	AvgProtein  float64 `json:"avg_protein"`
	AvgCarbs    float64 `json:"avg_carbs"`
	AvgFat      float64 `json:"avg_fat"`
	Days        []Day   `json:"days"`
}

// Day is the total intake of one logged date.
type Day struct {
	Date     string  `json:"date"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Generate computes the report for the window ending at end. Averages are
// taken over days that have logs.
func Generate(src Source, userID string, kind Kind, end time.Time) (Report, error) {
	n := kind.Days()
	if n == 0 {
		return Report{}, fmt.Errorf("unsupported report type %q", kind)
	}
	endStr := end.Format(memory.DateLayout)
	startStr := end.AddDate(0, 0, -(n - 1)).Format(memory.DateLayout)

	r := Report{UserID: userID, Kind: kind, Start: startStr, End: endStr}
	for _, l := range src.GetLogsForRange(userID, startStr, endStr) {
		if len(l.Entries) == 0 {
			continue
		}
		cal, p, c, f := l.Totals()
		r.Days = append(r.Days, Day{Date: l.Date, Calories: cal, Protein: p, Carbs: c, Fat: f})
		r.Entries += len(l.Entries)
		r.AvgCalories += cal
		r.AvgProtein += p
		r.AvgCarbs += c
		r.AvgFat += f
	}
	r.DaysLogged = len(r.Days)
	if r.DaysLogged > 0 {
		d := float64(r.DaysLogged)
		r.AvgCalories /= d
		r.AvgProtein /= d
		r.AvgCarbs /= d
		r.AvgFat /= d
	}
	return r, nil
}

// Markdown renders the report. An empty window gets an explicit message.
func (r Report) Markdown() string {
	if r.DaysLogged == 0 {
		return fmt.Sprintf("在 %s (%s 至 %s) 内未找到任何饮食记录。", r.Kind.label(), r.Start, r.End)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### 📊 您的%s营养报告 (%s 至 %s)\n\n", r.Kind.label(), r.Start, r.End)
	fmt.Fprintf(&b, "- **记录天数**: %d 天\n", r.DaysLogged)
	fmt.Fprintf(&b, "- **记录条目**: %d 条\n", r.Entries)
	fmt.Fprintf(&b, "- **平均每日热量摄入**: %.1f kcal\n", r.AvgCalories)
	fmt.Fprintf(&b, "- **平均每日蛋白质摄入**: %.1f g\n", r.AvgProtein)
	fmt.Fprintf(&b, "- **平均每日碳水化合物摄入**: %.1f g\n", r.AvgCarbs)
	fmt.Fprintf(&b, "- **平均每日脂肪摄入**: %.1f g\n\n", r.AvgFat)

	b.WriteString("| 日期 | 热量 (kcal) | 蛋白质 (g) | 碳水 (g) | 脂肪 (g) |\n")
	b.WriteString("| :--- | ---: | ---: | ---: | ---: |\n")
	for _, d := range r.Days {
		fmt.Fprintf(&b, "| %s | %.1f | %.1f | %.1f | %.1f |\n", d.Date, d.Calories, d.Protein, d.Carbs, d.Fat)
	}
	return b.String()
}
