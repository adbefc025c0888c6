package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"crisis-assistant/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSessionID     = "X-Session-Id"

	tooLongText        = "Your message is too long. Please shorten it and try again."
	invalidSessionText = "Invalid session ID."
)

type ChatUseCase interface {
	Respond(ctx context.Context, in usecase.RespondInput) (usecase.RespondOutput, error)
}

// Replies holds the static texts the handler answers with when the usecase
// cannot.
type Replies interface {
	Greeting() string
	BadRequest() string
}

type chatRequest struct {
	Message   string
	SessionID string
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// result is a transport-neutral reply shared by the Lambda and HTTP paths.
type result struct {
	status    int
	body      any
	sessionID string
}

type Handler struct {
	chat    ChatUseCase
	replies Replies
	cors    corsPolicy
}

type Option func(*Handler)

// WithAllowedOrigins restricts CORS to the given origins. "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.cors = newCORSPolicy(origins)
	}
}

func NewHandler(chat ChatUseCase, replies Replies, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat usecase must not be nil")
	}
	if replies == nil {
		return nil, errors.New("handler: replies must not be nil")
	}
	h := &Handler{chat: chat, replies: replies, cors: newCORSPolicy(nil)}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle is the API Gateway proxy entry point.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	headers := map[string]string{
		"Content-Type":      "application/json",
		headerCorrelationID: correlationID,
	}
	h.cors.apply(headers, headerValue(req.Headers, "Origin"))

	path := strings.TrimRight(req.Path, "/")
	var res result
	switch {
	case req.HTTPMethod == http.MethodOptions:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: headers}, nil
	case path == "/chat" && req.HTTPMethod == http.MethodPost:
		res = h.serveChat(ctx, correlationID, []byte(req.Body), headerValue(req.Headers, headerSessionID))
	case path == "/health" && req.HTTPMethod == http.MethodGet:
		res = health()
	case path == "/chat" || path == "/health":
		res = result{status: http.StatusMethodNotAllowed, body: chatResponse{Error: "METHOD_NOT_ALLOWED"}}
	default:
		res = result{status: http.StatusNotFound, body: chatResponse{Error: "NOT_FOUND"}}
	}

	if res.sessionID != "" {
		headers[headerSessionID] = res.sessionID
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.status,
		Headers:    headers,
		Body:       mustJSON(res.body),
	}, nil
}

// serveChat runs one chat turn. Internal faults answer 200 with the greeting
// so that the caller never sees them.
func (h *Handler) serveChat(ctx context.Context, correlationID string, body []byte, headerSession string) result {
	start := time.Now()

	in, ok := decodeChatRequest(body)
	if !ok {
		slog.InfoContext(ctx, "rejected chat request", "correlationId", correlationID, "reason", "bad_request")
		return badRequest(h.replies.BadRequest())
	}
	if in.SessionID == "" {
		in.SessionID = strings.TrimSpace(headerSession)
	}

	out, err := h.chat.Respond(ctx, usecase.RespondInput{Message: in.Message, SessionID: in.SessionID})
	if err != nil {
		if reason, ok := usecase.AsInvalidInput(err); ok {
			slog.InfoContext(ctx, "rejected chat request",
				"correlationId", correlationID,
				"reason", reason,
				"messageLength", len(in.Message),
			)
			return badRequest(invalidInputText(reason))
		}
		slog.ErrorContext(ctx, "chat turn failed",
			"correlationId", correlationID,
			"sessionId", in.SessionID,
			"err", err,
		)
		return result{
			status:    http.StatusOK,
			body:      chatResponse{Response: h.replies.Greeting(), SessionID: in.SessionID},
			sessionID: in.SessionID,
		}
	}

	slog.InfoContext(ctx, "chat turn",
		"correlationId", correlationID,
		"sessionId", out.SessionID,
		"intent", out.Intent.String(),
		"topic", string(out.Topic),
		"source", out.Source,
		"messageLength", len(in.Message),
		"latencyMs", time.Since(start).Milliseconds(),
	)
	return result{
		status:    http.StatusOK,
		body:      chatResponse{Response: out.Response, SessionID: out.SessionID},
		sessionID: out.SessionID,
	}
}

// decodeChatRequest accepts a JSON object with at least one field. A missing
// message is the empty message; message and sessionId must be strings when
// present.
func decodeChatRequest(body []byte) (chatRequest, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return chatRequest{}, false
	}
	var in chatRequest
	if raw, ok := fields["message"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &in.Message); err != nil {
			return chatRequest{}, false
		}
	}
	if raw, ok := fields["sessionId"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &in.SessionID); err != nil {
			return chatRequest{}, false
		}
		in.SessionID = strings.TrimSpace(in.SessionID)
	}
	return in, true
}

func invalidInputText(reason string) string {
	switch reason {
	case usecase.ReasonMessageTooLong:
		return tooLongText
	case usecase.ReasonInvalidSessionID:
		return invalidSessionText
	default:
		return "Invalid request."
	}
}

func badRequest(text string) result {
	return result{
		status: http.StatusBadRequest,
		body:   chatResponse{Response: text, Error: string(usecase.ErrorInvalidInput)},
	}
}

func health() result {
	return result{status: http.StatusOK, body: healthResponse{Status: "healthy"}}
}

func headerValue(headers map[string]string, key string) string {
	if v := strings.TrimSpace(headers[key]); v != "" {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"INTERNAL_ERROR"}`
	}
	return string(b)
}
