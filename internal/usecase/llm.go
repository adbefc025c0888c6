package usecase

import (
	"context"
	"log/slog"
	"time"

	"crisis-assistant/internal/domain"
)

// LLMClient is the chat capability the service depends on. Any error means
// the LLM is unavailable for this turn.
type LLMClient interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// ReadyChecker is an LLMClient that can report whether its model is loaded.
type ReadyChecker interface {
	LLMClient
	Ready(ctx context.Context) error
}

// ProbeLLM runs the single startup readiness probe. It returns the client and
// true when the model is available, and nil and false otherwise. A failed probe
// disables the LLM path for the process lifetime; it never aborts startup.
func ProbeLLM(ctx context.Context, c ReadyChecker, timeout time.Duration) (LLMClient, bool) {
	if c == nil {
		return nil, false
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Ready(probeCtx); err != nil {
		slog.WarnContext(ctx, "llm not available, using rule-based responses only", "err", err)
		return nil, false
	}
	slog.InfoContext(ctx, "llm available for conversation")
	return c, true
}
