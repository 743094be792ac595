package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abchbx/nutrition-agent/internal/dailylog"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/resolver"
)

type mockResolver struct {
	foods map[string]resolver.Nutrients
	calls []string
}

func (m *mockResolver) Resolve(_ context.Context, q string, opts resolver.Options) resolver.Outcome {
	m.calls = append(m.calls, q)
	n, ok := m.foods[q]
	if !ok {
		return resolver.Outcome{Query: q, Kind: resolver.NotFound, Reason: "抱歉，未找到该食物的营养信息。"}
	}
	return resolver.Outcome{Query: q, Kind: resolver.Found, Result: &resolver.NutrientResult{
		Name: q, Query: q, Tier: resolver.TierLocal, Basis: resolver.PerHundredGrams,
		Nutrients: n, Detailed: opts.Detailed,
	}}
}

type mockAssistant struct {
	chatFn func(ctx context.Context, userID, message string) string
}

func (m *mockAssistant) Chat(ctx context.Context, userID, message string) string {
	return m.chatFn(ctx, userID, message)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestDeps(t *testing.T) (Deps, *memory.Store) {
	t.Helper()
	store, err := memory.Open(t.TempDir())
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	res := &mockResolver{foods: map[string]resolver.Nutrients{
		"苹果":  {Calories: 52, Protein: 0.3, Carbs: 14, Fat: 0.2},
		"鸡胸肉": {Calories: 165, Protein: 31, Fat: 3.6},
	}}
	return Deps{
		Resolver: res,
		Catalog:  foodtable.New(foodtable.Seed()...),
		Assistant: &mockAssistant{chatFn: func(_ context.Context, userID, message string) string {
			return userID + ":" + message
		}},
		Profiles: store,
		Logger:   dailylog.NewLogger(res, store),
		Now:      func() time.Time { return testNow },
	}, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Token = "secret"
	rr := do(t, NewHandler(deps), http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := decode[map[string]string](t, rr); body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestBearerAuth(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Token = "secret"
	h := NewHandler(deps)

	if rr := do(t, h, http.MethodGet, "/v1/categories", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/categories", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rr.Code)
	}
}

func TestChat(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rr := do(t, h, http.MethodPost, "/v1/chat", `{"user_id":"u1","message":"苹果热量多少"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	if got := decode[chatResponse](t, rr); got.Answer != "u1:苹果热量多少" {
		t.Errorf("answer = %q", got.Answer)
	}

	for _, body := range []string{`{"user_id":"u1"}`, `{"message":"hi"}`, `not json`, `{"user_id":"u1","message":"x","extra":1}`} {
		if rr := do(t, h, http.MethodPost, "/v1/chat", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestChatUnavailable(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Assistant = nil
	rr := do(t, NewHandler(deps), http.MethodPost, "/v1/chat", `{"user_id":"u1","message":"hi"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestFood(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rr := do(t, h, http.MethodGet, "/v1/foods/"+"%E8%8B%B9%E6%9E%9C"+"?detailed=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	got := decode[foodResponse](t, rr)
	if got.Kind != resolver.Found || got.Result.Nutrients.Calories != 52 || !got.Result.Detailed {
		t.Errorf("outcome = %+v", got.Outcome)
	}
	if !strings.Contains(got.Text, "苹果") {
		t.Errorf("text = %q", got.Text)
	}

	miss := do(t, h, http.MethodGet, "/v1/foods/unicorn", "")
	if miss.Code != http.StatusNotFound {
		t.Errorf("miss status = %d, want 404", miss.Code)
	}
	if got := decode[foodResponse](t, miss); got.Kind != resolver.NotFound || got.Reason == "" {
		t.Errorf("miss outcome = %+v", got.Outcome)
	}
}

func TestCategories(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rr := do(t, h, http.MethodGet, "/v1/categories", "")
	cats := decode[map[string][]string](t, rr)["categories"]
	if len(cats) == 0 || cats[0] != "水果" {
		t.Errorf("categories = %v", cats)
	}

	rr = do(t, h, http.MethodGet, "/v1/categories/%E8%9B%8B%E7%B1%BB/foods", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	foods := decode[[]foodtable.Record](t, rr)
	if len(foods) != 1 || foods[0].Name != "鸡蛋" {
		t.Errorf("foods = %+v", foods)
	}

	if rr := do(t, h, http.MethodGet, "/v1/categories/none/foods", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown category status = %d, want 404", rr.Code)
	}
}

func TestProfileLifecycle(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	if rr := do(t, h, http.MethodGet, "/v1/profiles/u1", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("absent profile status = %d, want 404", rr.Code)
	}

	rr := do(t, h, http.MethodPut, "/v1/profiles/u1", `{"name":"小王","age":28,"weight":70.5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rr.Code, rr.Body)
	}
	p := decode[memory.Profile](t, rr)
	if p.Name != "小王" || p.Age != 28 || p.WeightKG != 70.5 || p.HeightCM != memory.DefaultHeightCM {
		t.Errorf("profile = %+v", p)
	}

	rr = do(t, h, http.MethodPut, "/v1/profiles/u1", `{"age":29}`)
	if p := decode[memory.Profile](t, rr); p.Age != 29 || p.Name != "小王" {
		t.Errorf("merged profile = %+v", p)
	}

	rr = do(t, h, http.MethodGet, "/v1/profiles/u1", "")
	if p := decode[memory.Profile](t, rr); p.UserID != "u1" {
		t.Errorf("get profile = %+v", p)
	}
}

func TestPutProfileRejects(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	cases := map[string]string{
		"unknown field": `{"favourite_color":"red"}`,
		"wrong type":    `{"age":"old"}`,
		"fractional":    `{"age":28.5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if rr := do(t, h, http.MethodPut, "/v1/profiles/u1", body); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
	if _, ok := deps.Profiles.Get("u1"); ok {
		t.Error("rejected patches created a profile")
	}
}

func TestDailyLogs(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)
	if err := store.Create("u1", memory.Patch{}); err != nil {
		t.Fatal(err)
	}

	rr := do(t, h, http.MethodPost, "/v1/profiles/u1/logs", `{"description":"200g 苹果"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	got := decode[logResponse](t, rr)
	if got.Date != "2026-03-10" || got.Entry.Calories != 104 || got.Entry.Unit != "g" {
		t.Errorf("log response = %+v", got)
	}
	if !strings.HasPrefix(got.Confirmation, "✅ 成功记录") {
		t.Errorf("confirmation = %q", got.Confirmation)
	}

	do(t, h, http.MethodPost, "/v1/profiles/u1/logs", `{"description":"100g 鸡胸肉","date":"2026-03-08"}`)

	rr = do(t, h, http.MethodGet, "/v1/profiles/u1/logs?start=2026-03-01&end=2026-03-10", "")
	logs := decode[[]memory.DailyLog](t, rr)
	if len(logs) != 2 || logs[0].Date != "2026-03-08" || logs[1].Date != "2026-03-10" {
		t.Errorf("logs = %+v", logs)
	}

	rr = do(t, h, http.MethodGet, "/v1/profiles/u1/logs", "")
	if logs := decode[[]memory.DailyLog](t, rr); len(logs) != 1 {
		t.Errorf("default range logs = %+v", logs)
	}
}

func TestDailyLogErrors(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)
	if err := store.Create("u1", memory.Patch{}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name, path, body string
		want             int
	}{
		{"empty description", "/v1/profiles/u1/logs", `{"description":"  "}`, http.StatusBadRequest},
		{"bad date", "/v1/profiles/u1/logs", `{"description":"苹果","date":"10/03/2026"}`, http.StatusBadRequest},
		{"unknown food", "/v1/profiles/u1/logs", `{"description":"unicorn"}`, http.StatusNotFound},
		{"unknown user", "/v1/profiles/ghost/logs", `{"description":"苹果"}`, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if rr := do(t, h, http.MethodPost, c.path, c.body); rr.Code != c.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, c.want, rr.Body)
			}
		})
	}

	if rr := do(t, h, http.MethodGet, "/v1/profiles/u1/logs?start=yesterday", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad range status = %d, want 400", rr.Code)
	}
}

func TestGoals(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)
	if err := store.Create("u1", memory.Patch{}); err != nil {
		t.Fatal(err)
	}

	rr := do(t, h, http.MethodPost, "/v1/profiles/u1/goals", `{"description":"减重5公斤","target_value":5,"unit":"kg","deadline":"2026-06-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	g := decode[memory.Goal](t, rr)
	if g.ID == "" || g.Status != memory.GoalActive {
		t.Errorf("goal = %+v", g)
	}

	if rr := do(t, h, http.MethodPost, "/v1/profiles/u1/goals", `{"description":"x","deadline":"soon"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad deadline status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodPatch, "/v1/profiles/u1/goals/"+g.ID, `{"status":"completed"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d: %s", rr.Code, rr.Body)
	}
	p, _ := store.Get("u1")
	if p.Goals[0].Status != memory.GoalCompleted {
		t.Errorf("status = %s, want completed", p.Goals[0].Status)
	}

	if rr := do(t, h, http.MethodPatch, "/v1/profiles/u1/goals/"+g.ID, `{"status":"paused"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid status code = %d, want 400", rr.Code)
	}
	if rr := do(t, h, http.MethodPatch, "/v1/profiles/u1/goals/nope", `{"status":"abandoned"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown goal code = %d, want 404", rr.Code)
	}
}

func TestReport(t *testing.T) {
	deps, store := newTestDeps(t)
	h := NewHandler(deps)
	if err := store.Create("u1", memory.Patch{}); err != nil {
		t.Fatal(err)
	}
	store.AppendDailyLogEntry("u1", "2026-03-09", memory.DailyLogEntry{FoodName: "a", Calories: 1000})
	store.AppendDailyLogEntry("u1", "2026-03-10", memory.DailyLogEntry{FoodName: "b", Calories: 2000})
	store.AppendDailyLogEntry("u1", "2026-03-01", memory.DailyLogEntry{FoodName: "old", Calories: 9000})

	rr := do(t, h, http.MethodGet, "/v1/profiles/u1/report", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var rep struct {
		Start       string  `json:"start"`
		DaysLogged  int     `json:"days_logged"`
		AvgCalories float64 `json:"avg_calories"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Start != "2026-03-04" || rep.DaysLogged != 2 || rep.AvgCalories != 1500 {
		t.Errorf("report = %+v", rep)
	}

	rr = do(t, h, http.MethodGet, "/v1/profiles/u1/report?kind=monthly&format=markdown", "")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %s", ct)
	}
	if !strings.Contains(rr.Body.String(), "过去一个月") {
		t.Errorf("markdown = %s", rr.Body)
	}

	if rr := do(t, h, http.MethodGet, "/v1/profiles/u1/report?kind=yearly", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("yearly status = %d, want 400", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/v1/profiles/ghost/report", ""); rr.Code != http.StatusNotFound {
		t.Errorf("ghost status = %d, want 404", rr.Code)
	}
}
