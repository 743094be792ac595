package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/abchbx/nutrition-agent/internal/engine"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/knowledge"
	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/resolver"
)

type fakeResolver struct {
	gotQuery string
	gotOpts  resolver.Options
}

func (f *fakeResolver) Resolve(_ context.Context, q string, opts resolver.Options) resolver.Outcome {
	f.gotQuery, f.gotOpts = q, opts
	return resolver.Outcome{Query: q, Kind: resolver.Found, Result: &resolver.NutrientResult{
		Name: q, Tier: resolver.TierLocal, Basis: resolver.PerHundredGrams,
		Nutrients: resolver.Nutrients{Calories: 52},
	}}
}

type fakeKnowledge struct {
	passages []knowledge.Passage
	gotK     int
}

func (f *fakeKnowledge) Search(_ context.Context, _ string, k int) []knowledge.Passage {
	f.gotK = k
	return f.passages
}

func newExecutor(chat Chatter) (*Executor, *fakeResolver, *fakeKnowledge) {
	r := &fakeResolver{}
	k := &fakeKnowledge{}
	return &Executor{
		Resolver:  r,
		Catalog:   foodtable.New(foodtable.Seed()...),
		Knowledge: k,
		Chat:      chat,
		Model:     "qwen",
	}, r, k
}

func lastPrompt(m *mockChatter) string {
	req := m.reqs[len(m.reqs)-1]
	return req.Messages[len(req.Messages)-1].Content
}

func TestRunQueryNutrient(t *testing.T) {
	x, r, _ := newExecutor(replying(""))

	out, err := x.Run(context.Background(), QueryNutrient{Food: "苹果", Detailed: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.gotQuery != "苹果" || !r.gotOpts.Detailed {
		t.Errorf("resolver got %q %+v", r.gotQuery, r.gotOpts)
	}
	if !strings.Contains(out, "苹果") || !strings.Contains(out, "52") {
		t.Errorf("output = %s", out)
	}
}

func TestRunSearchCategory(t *testing.T) {
	x, _, _ := newExecutor(replying(""))

	out, _ := x.Run(context.Background(), SearchCategory{Category: "蛋类"}, nil)
	want := "📂 蛋类类食物列表：\n\n• 鸡蛋\n  热量: 155千卡/100g | 蛋白质: 13g/100g\n\n💡 共找到 1 种蛋类类食物"
	if out != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}

	miss, _ := x.Run(context.Background(), SearchCategory{Category: "糖果"}, nil)
	if !strings.HasPrefix(miss, "未找到类别'糖果'的食物。可用类别包括：水果, 肉类") {
		t.Errorf("miss = %s", miss)
	}
}

func TestRunAdviseDiet(t *testing.T) {
	chat := replying("## 📊 健康数据与热量评估")
	x, _, _ := newExecutor(chat)
	p := &memory.Profile{Age: 30, Gender: "男", HeightCM: 180, WeightKG: 75, ActivityLevel: "中度活动", HealthGoal: "减肥", DietaryRestrictions: "素食"}

	out, err := x.Run(context.Background(), AdviseDiet{}, p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(out, "📊 **健康数据计算结果**") || !strings.Contains(out, "1730 千卡/天") {
		t.Errorf("output = %s", out)
	}
	prompt := lastPrompt(chat)
	if strings.Contains(prompt, "牛肉") {
		t.Error("vegetarian prompt lists meat")
	}
	if chat.reqs[0].Model != "qwen" {
		t.Errorf("model = %s", chat.reqs[0].Model)
	}
}

func TestRunAdviseDietNeedsProfile(t *testing.T) {
	x, _, _ := newExecutor(replying(""))
	if _, err := x.Run(context.Background(), AdviseDiet{}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunPlanMealListsFoods(t *testing.T) {
	chat := replying("| 主食 |")
	x, _, _ := newExecutor(chat)

	if _, err := x.Run(context.Background(), PlanMeal{Meal: "早餐", Calories: 400, Preferences: "无"}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	p := lastPrompt(chat)
	if !strings.Contains(p, "约 400 千卡") || !strings.Contains(p, "燕麦(68千卡/100g)") {
		t.Errorf("prompt = %s", p)
	}
}

func TestRunAnswerQuestionUsesKnowledge(t *testing.T) {
	chat := replying("#### 🎯 核心答案")
	x, _, k := newExecutor(chat)
	k.passages = []knowledge.Passage{{Content: "膳食纤维有助于肠道健康"}}

	if _, err := x.Run(context.Background(), AnswerQuestion{Question: "纤维的作用", DetailLevel: "简单"}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if k.gotK != 3 {
		t.Errorf("k = %d, want 3", k.gotK)
	}
	p := lastPrompt(chat)
	if !strings.Contains(p, "膳食纤维有助于肠道健康") || !strings.Contains(p, "简单") {
		t.Errorf("prompt = %s", p)
	}
}

func TestRunAnswerQuestionWithoutKnowledge(t *testing.T) {
	chat := replying("ok")
	x, _, _ := newExecutor(chat)
	x.Knowledge = nil

	x.Run(context.Background(), AnswerQuestion{Question: "q", DetailLevel: "中等"}, nil)
	if !strings.Contains(lastPrompt(chat), noKnowledgeContext) {
		t.Error("fallback context missing")
	}
}

func TestRunExplainMythChatError(t *testing.T) {
	chat := &mockChatter{chatFn: func(context.Context, engine.ChatRequest) (string, error) {
		return "", errors.New("down")
	}}
	x, _, _ := newExecutor(chat)

	if _, err := x.Run(context.Background(), ExplainMyth{Myth: "x"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunNilOperation(t *testing.T) {
	x, _, _ := newExecutor(replying(""))
	if _, err := x.Run(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
