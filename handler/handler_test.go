package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"crisis-assistant/internal/domain"
	"crisis-assistant/internal/usecase"
)

const (
	greeting   = "Hello! I'm GAZA 101. How can I help you today?"
	badReqText = "Please send a message."
)

type stubUseCase struct {
	out   usecase.RespondOutput
	err   error
	in    usecase.RespondInput
	calls int
}

func (s *stubUseCase) Respond(_ context.Context, in usecase.RespondInput) (usecase.RespondOutput, error) {
	s.in = in
	s.calls++
	return s.out, s.err
}

type stubReplies struct{}

func (stubReplies) Greeting() string   { return greeting }
func (stubReplies) BadRequest() string { return badReqText }

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chat",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, uc ChatUseCase, opts ...Option) *Handler {
	t.Helper()
	h, err := NewHandler(uc, stubReplies{}, opts...)
	require.NoError(t, err)
	return h
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, stubReplies{})
	require.Error(t, err)
	_, err = NewHandler(&stubUseCase{}, nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.RespondOutput{
		Response:  "problem text",
		SessionID: "sess-1",
		Intent:    domain.IntentTopic,
		Topic:     domain.TopicWater,
		Source:    usecase.SourceStatic,
	}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"message":"tell me about water","sessionId":"sess-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, usecase.RespondInput{Message: "tell me about water", SessionID: "sess-1"}, uc.in)

	out := parseBody[chatResponse](t, resp.Body)
	require.Equal(t, "problem text", out.Response)
	require.Equal(t, "sess-1", out.SessionID)
	require.Empty(t, out.Error)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Equal(t, "sess-1", resp.Headers["X-Session-Id"])
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestHandle_SessionFromHeader(t *testing.T) {
	uc := &stubUseCase{out: usecase.RespondOutput{Response: "ok", SessionID: "from-header"}}
	h := mustNewHandler(t, uc)

	event := makeEvent(`{"message":"hi"}`)
	event.Headers["x-session-id"] = "from-header"
	_, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "from-header", uc.in.SessionID)
}

func TestHandle_BodySessionWinsOverHeader(t *testing.T) {
	uc := &stubUseCase{out: usecase.RespondOutput{Response: "ok", SessionID: "body"}}
	h := mustNewHandler(t, uc)

	event := makeEvent(`{"message":"hi","sessionId":"body"}`)
	event.Headers["X-Session-Id"] = "header"
	_, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "body", uc.in.SessionID)
}

func TestHandle_MissingMessageIsEmpty(t *testing.T) {
	uc := &stubUseCase{out: usecase.RespondOutput{Response: "welcome", SessionID: "s"}}
	h := mustNewHandler(t, uc)

	resp, err := h.Handle(context.Background(), makeEvent(`{"sessionId":"s"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "", uc.in.Message)
}

func TestHandle_BadRequestBodies(t *testing.T) {
	for _, body := range []string{`not-json`, `{}`, `[]`, `"hi"`, ``, `{"message":42}`, `{"message":"x","sessionId":7}`} {
		uc := &stubUseCase{}
		h := mustNewHandler(t, uc)

		resp, err := h.Handle(context.Background(), makeEvent(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)

		out := parseBody[chatResponse](t, resp.Body)
		require.Equal(t, badReqText, out.Response)
		require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
		require.Zero(t, uc.calls, "usecase must not run for body %q", body)
	}
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		response string
		code     string
	}{
		{name: "too long", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "message_too_long"}, status: http.StatusBadRequest, response: tooLongText, code: string(usecase.ErrorInvalidInput)},
		{name: "bad session", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_session_id"}, status: http.StatusBadRequest, response: invalidSessionText, code: string(usecase.ErrorInvalidInput)},
		{name: "state load", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "state_load_error", Err: errors.New("boom")}, status: http.StatusOK, response: greeting},
		{name: "state save", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "state_save_error"}, status: http.StatusOK, response: greeting},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusOK, response: greeting},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mustNewHandler(t, &stubUseCase{err: tc.err})

			resp, err := h.Handle(context.Background(), makeEvent(`{"message":"water","sessionId":"s-1"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[chatResponse](t, resp.Body)
			require.Equal(t, tc.response, out.Response)
			require.Equal(t, tc.code, out.Error)
			require.NotContains(t, resp.Body, "boom")
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.RespondOutput{Response: "ok", SessionID: "s"}}
	h := mustNewHandler(t, uc)

	event := makeEvent(`{"message":"hi"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestHandle_Health(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/health/"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", parseBody[healthResponse](t, resp.Body).Status)
}

func TestHandle_Routing(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/chat"})
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandle_Preflight(t *testing.T) {
	h := mustNewHandler(t, &stubUseCase{})
	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodOptions,
		Path:       "/chat",
		Headers:    map[string]string{"origin": "https://example.org"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Contains(t, resp.Headers["Access-Control-Allow-Headers"], "X-Session-Id")
}

func TestHandle_RestrictedOrigins(t *testing.T) {
	uc := &stubUseCase{out: usecase.RespondOutput{Response: "ok", SessionID: "s"}}
	h := mustNewHandler(t, uc, WithAllowedOrigins([]string{"https://app.example.org"}))

	event := makeEvent(`{"message":"hi"}`)
	event.Headers["Origin"] = "https://app.example.org"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "https://app.example.org", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "Origin", resp.Headers["Vary"])

	event.Headers["Origin"] = "https://evil.example.com"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.NotContains(t, resp.Headers, "Access-Control-Allow-Origin")
}

func TestParseOrigins(t *testing.T) {
	require.Equal(t, []string{"https://a", "https://b"}, ParseOrigins(" https://a , ,https://b"))
	require.Nil(t, ParseOrigins(""))
}
