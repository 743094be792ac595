package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abchbx/nutrition-agent/internal/dailylog"
	"github.com/abchbx/nutrition-agent/internal/foodtable"
	"github.com/abchbx/nutrition-agent/internal/memory"
	"github.com/abchbx/nutrition-agent/internal/report"
	"github.com/abchbx/nutrition-agent/internal/resolver"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Resolver looks up nutrient data for a food mention.
type Resolver interface {
	Resolve(ctx context.Context, query string, opts resolver.Options) resolver.Outcome
}

// Catalog is the category view of the local food table.
type Catalog interface {
	Categories() []string
	ByCategory(category string) []foodtable.Record
}

// Assistant answers a free-text message for a user.
type Assistant interface {
	Chat(ctx context.Context, userID, message string) string
}

// Profiles is the user memory store.
type Profiles interface {
	Get(userID string) (*memory.Profile, bool)
	Create(userID string, patch memory.Patch) error
	GetLogsForRange(userID, start, end string) []memory.DailyLog
	SetGoal(userID string, g memory.Goal) (memory.Goal, bool)
	UpdateGoalStatus(userID, goalID string, status memory.GoalStatus) bool
}

// FoodLogger records eaten food into a user's daily log.
type FoodLogger interface {
	Log(ctx context.Context, userID, date, description string) (memory.DailyLogEntry, error)
}

// Deps holds what the HTTP and MCP surfaces need. Any of the services may
// be nil; routes backed by a nil service answer 503.
type Deps struct {
	Resolver  Resolver
	Catalog   Catalog
	Assistant Assistant
	Profiles  Profiles
	Logger    FoodLogger
	// Token, when set, is required as a bearer token on /v1 routes.
	Token string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) today() string {
	return d.now().Format(memory.DateLayout)
}

// NewHandler returns the REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))

		r.Get("/foods/{name}", handleFood(deps))
		r.Get("/categories", handleCategories(deps))
		r.Get("/categories/{category}/foods", handleCategoryFoods(deps))

		r.Route("/profiles/{id}", func(r chi.Router) {
			r.Get("/", handleGetProfile(deps))
			r.Put("/", handlePutProfile(deps))
			r.Post("/logs", handleAddLog(deps))
			r.Get("/logs", handleListLogs(deps))
			r.Post("/goals", handleAddGoal(deps))
			r.Patch("/goals/{goalID}", handleGoalStatus(deps))
			r.Get("/report", handleReport(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	UserID string `json:"user_id"`
	Answer string `json:"answer"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Assistant == nil {
			unavailable(w, "chat")
			return
		}
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and message are required")
			return
		}
		answer := deps.Assistant.Chat(r.Context(), req.UserID, req.Message)
		writeJSON(w, http.StatusOK, chatResponse{UserID: req.UserID, Answer: answer})
	}
}

type foodResponse struct {
	resolver.Outcome
	Text string `json:"text"`
}

func handleFood(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Resolver == nil {
			unavailable(w, "food lookup")
			return
		}
		detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))
		out := deps.Resolver.Resolve(r.Context(), chi.URLParam(r, "name"), resolver.Options{Detailed: detailed})

		status := http.StatusOK
		if out.Kind != resolver.Found {
			status = http.StatusNotFound
		}
		writeJSON(w, status, foodResponse{Outcome: out, Text: resolver.Format(out, detailed)})
	}
}

func handleCategories(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Catalog == nil {
			unavailable(w, "food table")
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"categories": deps.Catalog.Categories()})
	}
}

func handleCategoryFoods(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Catalog == nil {
			unavailable(w, "food table")
			return
		}
		category := chi.URLParam(r, "category")
		foods := deps.Catalog.ByCategory(category)
		if len(foods) == 0 {
			httpError(w, http.StatusNotFound, "not_found_error", "no foods in category %q", category)
			return
		}
		writeJSON(w, http.StatusOK, foods)
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := profile(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handlePutProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Profiles == nil {
			unavailable(w, "profiles")
			return
		}
		id := chi.URLParam(r, "id")

		var fields map[string]any
		if !decodeBody(w, r, &fields) {
			return
		}
		patch, unknown, err := memory.PatchFromMap(fields)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if len(unknown) > 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown profile fields: %s", strings.Join(unknown, ", "))
			return
		}
		if err := deps.Profiles.Create(id, patch); err != nil {
			slog.Warn("api: saving profile failed", "user_id", id, "error", err)
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "profile not saved: %v", err)
			return
		}
		p, ok := deps.Profiles.Get(id)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "profile %s saved but unreadable", id)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

type logRequest struct {
	Description string `json:"description"`
	Date        string `json:"date"`
}

type logResponse struct {
	Date         string               `json:"date"`
	Entry        memory.DailyLogEntry `json:"entry"`
	Confirmation string               `json:"confirmation"`
}

func handleAddLog(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Logger == nil {
			unavailable(w, "food logging")
			return
		}
		id := chi.URLParam(r, "id")

		var req logRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Date == "" {
			req.Date = deps.today()
		} else if !validDate(req.Date) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "date must be YYYY-MM-DD, got %q", req.Date)
			return
		}

		entry, err := deps.Logger.Log(r.Context(), id, req.Date, req.Description)
		var unresolved *dailylog.UnresolvedError
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, logResponse{
				Date:         req.Date,
				Entry:        entry,
				Confirmation: dailylog.Confirmation(entry, req.Date),
			})
		case errors.Is(err, dailylog.ErrEmptyDescription):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "description is required")
		case errors.As(err, &unresolved):
			httpError(w, http.StatusNotFound, "not_found_error", "%s", unresolved.Error())
		case errors.Is(err, dailylog.ErrNotStored):
			httpError(w, http.StatusNotFound, "not_found_error", "no profile for user %s", id)
		default:
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		}
	}
}

func handleListLogs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := profile(w, r, deps); !ok {
			return
		}
		q := r.URL.Query()
		end := q.Get("end")
		if end == "" {
			end = deps.today()
		}
		start := q.Get("start")
		if start == "" {
			start = end
		}
		if !validDate(start) || !validDate(end) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "start and end must be YYYY-MM-DD")
			return
		}
		logs := deps.Profiles.GetLogsForRange(chi.URLParam(r, "id"), start, end)
		if logs == nil {
			logs = []memory.DailyLog{}
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

type goalRequest struct {
	Description string  `json:"description"`
	TargetValue float64 `json:"target_value"`
	Unit        string  `json:"unit"`
	Deadline    string  `json:"deadline"`
}

func handleAddGoal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := profile(w, r, deps); !ok {
			return
		}
		var req goalRequest
		if !decodeBody(w, r, &req) {
			return
		}
		g, ok := deps.Profiles.SetGoal(chi.URLParam(r, "id"), memory.Goal{
			Description: req.Description,
			TargetValue: req.TargetValue,
			Unit:        req.Unit,
			Deadline:    req.Deadline,
		})
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "goal needs a description and a YYYY-MM-DD deadline if one is given")
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

func handleGoalStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := profile(w, r, deps); !ok {
			return
		}
		var req struct {
			Status memory.GoalStatus `json:"status"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if !req.Status.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "status must be active, completed or abandoned")
			return
		}
		goalID := chi.URLParam(r, "goalID")
		if !deps.Profiles.UpdateGoalStatus(chi.URLParam(r, "id"), goalID, req.Status) {
			httpError(w, http.StatusNotFound, "not_found_error", "goal %s not found", goalID)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := profile(w, r, deps); !ok {
			return
		}
		q := r.URL.Query()
		kind := report.Kind(q.Get("kind"))
		if kind == "" {
			kind = report.Weekly
		}
		end := deps.now()
		if s := q.Get("end"); s != "" {
			t, err := time.Parse(memory.DateLayout, s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "end must be YYYY-MM-DD, got %q", s)
				return
			}
			end = t
		}

		rep, err := report.Generate(deps.Profiles, chi.URLParam(r, "id"), kind, end)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if q.Get("format") == "markdown" {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
			w.Write([]byte(rep.Markdown()))
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// profile loads the profile named in the path, writing the error response
// when it cannot.
func profile(w http.ResponseWriter, r *http.Request, deps Deps) (*memory.Profile, bool) {
	if deps.Profiles == nil {
		unavailable(w, "profiles")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	p, ok := deps.Profiles.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "not_found_error", "no profile for user %s", id)
		return nil, false
	}
	return p, true
}

func validDate(s string) bool {
	_, err := time.Parse(memory.DateLayout, s)
	return err == nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encoding response failed", "error", err)
	}
}

func unavailable(w http.ResponseWriter, what string) {
	httpError(w, http.StatusServiceUnavailable, "api_error", "%s is not configured", what)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
