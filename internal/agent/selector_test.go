package agent

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/abchbx/nutrition-agent/internal/engine"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		message string
		want    Operation
		ok      bool
	}{
		{"query", `{"tool":"nutrition_query","food":" 苹果 ","detailed":true}`, "苹果的维生素", QueryNutrient{Food: "苹果", Detailed: true}, true},
		{"category", `{"tool":"category_search","category":"水果"}`, "水果有哪些", SearchCategory{Category: "水果"}, true},
		{"advice", `{"tool":"diet_advice"}`, "给我饮食建议", AdviseDiet{}, true},
		{"meal", `{"tool":"meal_plan","meal":"早餐","calories":450}`, "早餐吃什么", PlanMeal{Meal: "早餐", Calories: 450, Preferences: "无"}, true},
		{"qa falls back to message", `{"tool":"nutrition_qa"}`, "什么是膳食纤维", AnswerQuestion{Question: "什么是膳食纤维", DetailLevel: "中等"}, true},
		{"myth", `{"tool":"nutrition_myth","myth":"吃鸡蛋会升高胆固醇"}`, "x", ExplainMyth{Myth: "吃鸡蛋会升高胆固醇"}, true},
		{"none", `{"tool":"none"}`, "你好", nil, false},
		{"unknown tool", `{"tool":"web_search"}`, "x", nil, false},
		{"query without food", `{"tool":"nutrition_query"}`, "x", nil, false},
		{"meal without calories", `{"tool":"meal_plan","meal":"午餐"}`, "x", nil, false},
		{"malformed", `not json`, "x", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelector(replying(tt.reply), "qwen")
			got, ok := s.Select(context.Background(), tt.message, "")
			if ok != tt.ok || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select = %#v, %v; want %#v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSelectSendsSchemaAndModel(t *testing.T) {
	chat := replying(`{"tool":"none"}`)
	NewSelector(chat, "qwen").Select(context.Background(), "你好", "姓名: alice")

	if len(chat.reqs) != 1 {
		t.Fatalf("got %d requests", len(chat.reqs))
	}
	req := chat.reqs[0]
	if req.Model != "qwen" || req.Schema == nil {
		t.Fatalf("request = %+v", req)
	}
	enum := req.Schema.Properties["tool"].Enum
	if len(enum) != len(ToolNames)+1 || enum[len(enum)-1] != "none" {
		t.Errorf("tool enum = %v", enum)
	}
	if req.Temperature == nil || *req.Temperature != 0 {
		t.Error("selection should run at temperature 0")
	}
}

func TestSelectChatError(t *testing.T) {
	chat := &mockChatter{chatFn: func(context.Context, engine.ChatRequest) (string, error) {
		return "", errors.New("boom")
	}}
	if _, ok := NewSelector(chat, "m").Select(context.Background(), "x", ""); ok {
		t.Error("expected no selection")
	}
}

func TestSelectHasDeadline(t *testing.T) {
	var deadline time.Time
	chat := &mockChatter{chatFn: func(ctx context.Context, _ engine.ChatRequest) (string, error) {
		deadline, _ = ctx.Deadline()
		return `{"tool":"none"}`, nil
	}}
	NewSelector(chat, "m").Select(context.Background(), "x", "")

	if deadline.IsZero() || time.Until(deadline) > selectionTimeout {
		t.Errorf("deadline = %v", deadline)
	}
}

func TestSelectEmptyMessageSkipsModel(t *testing.T) {
	chat := replying(`{"tool":"diet_advice"}`)
	if _, ok := NewSelector(chat, "m").Select(context.Background(), " ", ""); ok {
		t.Error("empty message selected a tool")
	}
	if len(chat.reqs) != 0 {
		t.Error("model was called for an empty message")
	}
}
