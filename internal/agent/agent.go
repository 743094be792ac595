package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abchbx/nutrition-agent/internal/engine"
	"github.com/abchbx/nutrition-agent/internal/memory"
)

const (
	failurePrefix = "处理用户消息时发生错误: "
	emptyAnswer   = "抱歉，我没有找到合适的答案。"
)

// ProfileStore is the part of the memory store a turn needs.
type ProfileStore interface {
	Get(userID string) (*memory.Profile, bool)
	Create(userID string, patch memory.Patch) error
	AppendConsultation(userID, question, answer, category string) bool
}

// ToolSelector picks the operation for a message.
type ToolSelector interface {
	Select(ctx context.Context, message, profileSummary string) (Operation, bool)
}

// Runner executes an operation.
type Runner interface {
	Run(ctx context.Context, op Operation, p *memory.Profile) (string, error)
}

// Agent answers user messages with memory of the user.
type Agent struct {
	store       ProfileStore
	selector    ToolSelector
	runner      Runner
	chat        Chatter
	model       string
	temperature *float64
}

// Config wires an Agent.
type Config struct {
	Store       ProfileStore
	Selector    ToolSelector
	Runner      Runner
	Chat        Chatter
	Model       string
	Temperature *float64
}

func New(cfg Config) *Agent {
	return &Agent{
		store:       cfg.Store,
		selector:    cfg.Selector,
		runner:      cfg.Runner,
		chat:        cfg.Chat,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// GetProfile returns the stored profile for userID.
func (a *Agent) GetProfile(userID string) (*memory.Profile, bool) {
	return a.store.Get(userID)
}

// CreateOrUpdateProfile creates the profile or merges patch into it.
func (a *Agent) CreateOrUpdateProfile(userID string, patch memory.Patch) bool {
	if err := a.store.Create(userID, patch); err != nil {
		slog.Warn("agent: saving profile failed", "user_id", userID, "error", err)
		return false
	}
	return true
}

// Chat runs one turn for userID and always returns text. Errors come back
// as a message starting with the failure marker.
func (a *Agent) Chat(ctx context.Context, userID, message string) string {
	answer, category, err := a.turn(ctx, userID, message)
	if err != nil {
		slog.Error("agent: turn failed", "user_id", userID, "error", err)
		return failurePrefix + err.Error()
	}
	if !a.store.AppendConsultation(userID, message, answer, category) {
		slog.Warn("agent: consultation not recorded", "user_id", userID)
	}
	return answer
}

func (a *Agent) turn(ctx context.Context, userID, message string) (answer, category string, err error) {
	if strings.TrimSpace(userID) == "" {
		return "", "", errors.New("empty user id")
	}
	if strings.TrimSpace(message) == "" {
		return "", "", errors.New("empty message")
	}

	p, ok := a.store.Get(userID)
	if !ok {
		slog.Info("agent: new user, creating default profile", "user_id", userID)
		name := userID
		if err := a.store.Create(userID, memory.Patch{Name: &name}); err != nil {
			return "", "", fmt.Errorf("creating profile: %w", err)
		}
		if p, ok = a.store.Get(userID); !ok {
			return "", "", errors.New("profile unavailable after create")
		}
	}

	op, selected := a.selector.Select(ctx, message, ProfileSummary(p))
	var toolResult string
	if selected {
		slog.Info("agent: running tool", "user_id", userID, "tool", op.Name())
		toolResult, err = a.runner.Run(ctx, op, p)
		if err != nil {
			slog.Warn("agent: tool failed", "tool", op.Name(), "error", err)
			toolResult = fmt.Sprintf("工具 %s 执行失败: %v", op.Name(), err)
		}
	} else {
		op = nil
	}

	answer, err = a.compose(ctx, p, message, op, toolResult)
	if err != nil {
		// A tool answer is still worth returning when the final composition
		// fails.
		if op == nil || toolResult == "" {
			return "", "", err
		}
		slog.Warn("agent: composing answer failed, returning tool result", "error", err)
		answer = toolResult
	}
	return answer, Category(op), nil
}

func (a *Agent) compose(ctx context.Context, p *memory.Profile, message string, op Operation, toolResult string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	out, err := a.chat.Chat(ctx, engine.ChatRequest{
		Model:       a.model,
		Messages:    answerPrompt(TurnContext(p, message), op, toolResult),
		Temperature: a.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("composing answer: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return emptyAnswer, nil
	}
	return out, nil
}
