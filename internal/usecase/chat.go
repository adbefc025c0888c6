package usecase

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"crisis-assistant/internal/classifier"
	"crisis-assistant/internal/domain"
)

const (
	defaultMaxMessage   = 2000
	defaultProbeTimeout = 3 * time.Second
	maxSessionIDLen     = 128
	lockStripes         = 64

	SourceStatic = "static"
	SourceLLM    = "llm"
)

// ContentTable is the read-only set of canned replies.
type ContentTable interface {
	Welcome() string
	Help() string
	Decline() string
	ProblemWithPrompt(topic domain.Topic) string
	Solutions(topic domain.Topic) string
}

type StateStore interface {
	GetState(ctx context.Context, sessionID string) (domain.DialogueState, error)
	SaveState(ctx context.Context, state domain.DialogueState) error
}

type ChatService struct {
	content       ContentTable
	state         StateStore
	llm           LLMClient
	maxMessageLen int
	locks         sessionLocks
}

type RespondInput struct {
	Message   string
	SessionID string
}

type RespondOutput struct {
	Response  string
	SessionID string
	Intent    domain.IntentKind
	Topic     domain.Topic
	Source    string
}

type Option func(*ChatService)

// WithLLM enables the hybrid path. A nil client keeps the service rule-based.
func WithLLM(llm LLMClient) Option {
	return func(s *ChatService) {
		s.llm = llm
	}
}

func WithMaxMessageLength(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

func NewChatService(c ContentTable, st StateStore, opts ...Option) (*ChatService, error) {
	if c == nil {
		return nil, errors.New("usecase: content table must not be nil")
	}
	if st == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	s := &ChatService{
		content:       c,
		state:         st,
		maxMessageLen: defaultMaxMessage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode reports which classification rules the service applies.
func (s *ChatService) Mode() classifier.Mode {
	if s.llm != nil {
		return classifier.Hybrid
	}
	return classifier.RuleBased
}

// Respond runs one turn: load the session state, classify, produce the reply
// and persist the next state.
func (s *ChatService) Respond(ctx context.Context, in RespondInput) (RespondOutput, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}
	if !validSessionID(sessionID) {
		return RespondOutput{}, newError(ErrorInvalidInput, ReasonInvalidSessionID, nil)
	}
	if utf8.RuneCountInString(in.Message) > s.maxMessageLen {
		return RespondOutput{}, newError(ErrorInvalidInput, ReasonMessageTooLong, nil)
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	state, err := s.state.GetState(ctx, sessionID)
	if err != nil {
		return RespondOutput{}, newError(ErrorInternal, ReasonStateLoad, err)
	}
	state.SessionID = sessionID

	out := s.generate(ctx, in.Message, &state)
	out.SessionID = sessionID

	state.Turns++
	state.UpdatedAt = time.Now().UTC()
	if err := s.state.SaveState(ctx, state); err != nil {
		return RespondOutput{}, newError(ErrorInternal, ReasonStateSave, err)
	}
	return out, nil
}

func (s *ChatService) generate(ctx context.Context, message string, state *domain.DialogueState) RespondOutput {
	intent := classifier.Classify(message, *state, s.Mode())

	if intent.Kind == domain.IntentConversational {
		if text, ok := s.converse(ctx, message); ok {
			return RespondOutput{Response: text, Intent: intent.Kind, Source: SourceLLM}
		}
		intent = classifier.Classify(message, *state, classifier.RuleBased)
	}

	switch intent.Kind {
	case domain.IntentEmpty:
		return static(s.content.Welcome(), intent)

	case domain.IntentTopic:
		state.Remember(intent.Topic)
		return static(s.content.ProblemWithPrompt(intent.Topic), intent)

	case domain.IntentAffirm:
		topic := state.LastTopic
		state.Forget()
		out := static(s.content.Solutions(topic), intent)
		out.Topic = topic
		return out

	case domain.IntentDecline:
		state.Forget()
		if text, ok := s.converse(ctx, declineInstruction); ok {
			return RespondOutput{Response: text, Intent: intent.Kind, Source: SourceLLM}
		}
		return static(s.content.Decline(), intent)

	default:
		if text, ok := s.converse(ctx, message); ok {
			return RespondOutput{Response: text, Intent: intent.Kind, Source: SourceLLM}
		}
		return static(s.content.Help(), intent)
	}
}

// converse asks the LLM for a reply. Every failure, including an empty reply,
// is logged and reported as unavailable.
func (s *ChatService) converse(ctx context.Context, text string) (string, bool) {
	if s.llm == nil {
		return "", false
	}
	reply, err := s.llm.Chat(ctx, buildPromptMessages(text))
	if err != nil {
		slog.WarnContext(ctx, "llm conversation failed", "err", err)
		return "", false
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		slog.WarnContext(ctx, "llm returned an empty reply")
		return "", false
	}
	return reply, true
}

func static(text string, intent domain.Intent) RespondOutput {
	return RespondOutput{Response: text, Intent: intent.Kind, Topic: intent.Topic, Source: SourceStatic}
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

// sessionLocks serializes turns of the same session within this process.
type sessionLocks struct {
	mu [lockStripes]sync.Mutex
}

func (l *sessionLocks) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	m := &l.mu[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

var newUUID = func() string {
	return uuid.NewString()
}
