package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/abchbx/nutrition-agent/internal/dailylog"
	"github.com/abchbx/nutrition-agent/internal/report"
	"github.com/abchbx/nutrition-agent/internal/resolver"
)

// NewMCPServer creates an MCP server with the nutrition tools registered.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"nutrition-agent",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Nutrition lookups, food logging and per-user diet reports."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("query_nutrient",
			mcp.WithDescription("Look up the nutrient content of a food. Values are per 100 g unless the result says otherwise."),
			mcp.WithString("food", mcp.Description("Food name, Chinese or English"), mcp.Required()),
			mcp.WithBoolean("detailed", mcp.Description("Include fiber, vitamin C, calcium and iron")),
		),
		mcpQueryNutrient(deps),
	)

	s.AddTool(
		mcp.NewTool("search_category",
			mcp.WithDescription("List the foods of one category in the local food table."),
			mcp.WithString("category", mcp.Description("Category name, e.g. 水果"), mcp.Required()),
		),
		mcpSearchCategory(deps),
	)

	s.AddTool(
		mcp.NewTool("log_food",
			mcp.WithDescription("Record eaten food in a user's daily log, e.g. \"200g 鸡胸肉\"."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Amount, unit and food"), mcp.Required()),
			mcp.WithString("date", mcp.Description("YYYY-MM-DD, defaults to today")),
		),
		mcpLogFood(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return a user's stored profile as JSON."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("nutrition_report",
			mcp.WithDescription("Summarize a user's logged intake over the past week or month."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("kind", mcp.Description("weekly or monthly (default weekly)"), mcp.Enum(string(report.Weekly), string(report.Monthly))),
		),
		mcpNutritionReport(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask the nutrition assistant a question on behalf of a user."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("message", mcp.Description("The question"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	return s
}

func mcpQueryNutrient(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Resolver == nil {
			return mcpError("food lookup is not configured"), nil
		}
		food, err := req.RequireString("food")
		if err != nil {
			return mcpError("food is required"), nil
		}
		detailed := req.GetBool("detailed", false)

		out := deps.Resolver.Resolve(ctx, food, resolver.Options{Detailed: detailed})
		text := resolver.Format(out, detailed)
		if out.Kind != resolver.Found {
			return mcpError(text), nil
		}
		return mcpText(text), nil
	}
}

func mcpSearchCategory(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Catalog == nil {
			return mcpError("food table is not configured"), nil
		}
		category, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		foods := deps.Catalog.ByCategory(category)
		if len(foods) == 0 {
			return mcpError(fmt.Sprintf("no foods in category %q; known categories: %v", category, deps.Catalog.Categories())), nil
		}
		b, err := json.Marshal(foods)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal foods: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpLogFood(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Logger == nil {
			return mcpError("food logging is not configured"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}
		date := req.GetString("date", "")
		if date == "" {
			date = deps.today()
		} else if !validDate(date) {
			return mcpError(fmt.Sprintf("date must be YYYY-MM-DD, got %q", date)), nil
		}

		entry, err := deps.Logger.Log(ctx, userID, date, description)
		if err != nil {
			if errors.Is(err, dailylog.ErrNotStored) {
				return mcpError(fmt.Sprintf("no profile for user %s", userID)), nil
			}
			return mcpError(err.Error()), nil
		}
		return mcpText(dailylog.Confirmation(entry, date)), nil
	}
}

func mcpGetProfile(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Profiles == nil {
			return mcpError("profiles are not configured"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		p, ok := deps.Profiles.Get(userID)
		if !ok {
			return mcpError(fmt.Sprintf("no profile for user %s", userID)), nil
		}
		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpNutritionReport(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Profiles == nil {
			return mcpError("profiles are not configured"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		if _, ok := deps.Profiles.Get(userID); !ok {
			return mcpError(fmt.Sprintf("no profile for user %s", userID)), nil
		}
		kind := report.Kind(req.GetString("kind", string(report.Weekly)))

		rep, err := report.Generate(deps.Profiles, userID, kind, deps.now())
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(rep.Markdown()), nil
	}
}

const askTimeout = 3 * time.Minute

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Assistant == nil {
			return mcpError("chat is not configured"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		ctx, cancel := context.WithTimeout(ctx, askTimeout)
		defer cancel()
		return mcpText(deps.Assistant.Chat(ctx, userID, message)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
