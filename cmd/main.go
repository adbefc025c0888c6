package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"crisis-assistant/handler"
	"crisis-assistant/internal/content"
	"crisis-assistant/internal/integrations/ollama"
	"crisis-assistant/internal/integrations/openai"
	"crisis-assistant/internal/integrations/paramstore"
	"crisis-assistant/internal/repository"
	"crisis-assistant/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	})))

	port := envInt("PORT", 7860)
	allowedOrigins := handler.ParseOrigins(envString("ALLOWED_ORIGINS", "*"))
	contentFile := os.Getenv("CONTENT_FILE")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 2000)
	stateBackend := strings.ToLower(envString("STATE_BACKEND", "memory"))
	sessionTTL := envDuration("SESSION_TTL", 30*time.Minute)
	paramPrefix := strings.TrimRight(os.Getenv("PARAM_PREFIX"), "/")

	llmEnabled := envBool("LLM_ENABLED", false)
	llmProvider := strings.ToLower(envString("LLM_PROVIDER", "ollama"))
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	llmModel := envString("LLM_MODEL", "llama3.2:latest")
	llmTimeout := envDuration("LLM_TIMEOUT", 10*time.Second)
	llmProbeTimeout := envDuration("LLM_PROBE_TIMEOUT", 3*time.Second)

	// ---- Content ----
	table, err := content.Load(contentFile)
	if err != nil {
		slog.Error("failed to load content table", "err", err, "file", contentFile)
		os.Exit(1)
	}

	// ---- AWS SDK config (only when an AWS component is selected) ----
	var awsCfg *aws.Config
	if stateBackend == "dynamodb" || paramPrefix != "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		awsCfg = &cfg
	}

	var ssmClient *paramstore.Client
	if paramPrefix != "" {
		ssmClient, err = paramstore.New(awsssm.NewFromConfig(*awsCfg), paramPrefix)
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		llmModel = override(ctx, ssmClient, "config/llm_model", llmModel)
		llmBaseURL = override(ctx, ssmClient, "config/llm_base_url", llmBaseURL)
	}

	// ---- State store ----
	var store usecase.StateStore
	switch stateBackend {
	case "memory":
		store = repository.NewMemoryStore(sessionTTL)
	case "dynamodb":
		store, err = repository.NewDynamoStore(awsdynamodb.NewFromConfig(*awsCfg), mustEnv("STATE_TABLE"), sessionTTL)
	case "postgres":
		store, err = newPostgresStore(ctx, mustEnv("DATABASE_URL"), sessionTTL)
	default:
		slog.Error("unknown state backend", "backend", stateBackend)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("failed to create state store", "backend", stateBackend, "err", err)
		os.Exit(1)
	}

	// ---- LLM (probed once; failure keeps the service rule-based) ----
	opts := []usecase.Option{usecase.WithMaxMessageLength(maxMessageLen)}
	if llmEnabled {
		checker, err := newLLMClient(llmProvider, llmBaseURL, llmModel, llmTimeout, ssmClient, paramPrefix)
		if err != nil {
			slog.Error("failed to create LLM client", "provider", llmProvider, "err", err)
			os.Exit(1)
		}
		if llm, ok := usecase.ProbeLLM(ctx, checker, llmProbeTimeout); ok {
			opts = append(opts, usecase.WithLLM(llm))
		}
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(table, store, opts...)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	slog.Info("chat service ready", "mode", chatService.Mode().String(), "stateBackend", stateBackend)

	h, err := handler.NewHandler(chatService, table, handler.WithAllowedOrigins(allowedOrigins))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(h.Handle)
		return
	}
	if err := serve(ctx, h.Router(), port); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func newLLMClient(provider, baseURL, model string, timeout time.Duration, ps *paramstore.Client, paramPrefix string) (usecase.ReadyChecker, error) {
	switch provider {
	case "ollama":
		return ollama.NewClient(
			ollama.WithBaseURL(baseURL),
			ollama.WithModel(model),
			ollama.WithTimeout(timeout),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithHTTPClient(&http.Client{Timeout: timeout}),
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			opts = append(opts, openai.WithAPIKey(key))
		} else if ps != nil {
			opts = append(opts, openai.WithParamStore(ps, paramPrefix))
		}
		return openai.NewClient(opts...)
	default:
		return nil, errors.New("unknown LLM provider " + strconv.Quote(provider))
	}
}

func newPostgresStore(ctx context.Context, dsn string, ttl time.Duration) (*repository.PostgresStore, error) {
	db, err := repository.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		return nil, err
	}
	store, err := repository.NewPostgresStore(db, ttl)
	if err != nil {
		return nil, err
	}
	go purgeExpired(ctx, store, ttl)
	return store, nil
}

// purgeExpired deletes expired session rows once per TTL until ctx ends.
func purgeExpired(ctx context.Context, store *repository.PostgresStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				slog.WarnContext(ctx, "failed to purge expired sessions", "err", err)
				continue
			}
			slog.DebugContext(ctx, "purged expired sessions", "count", n)
		}
	}
}

func serve(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func override(ctx context.Context, ps *paramstore.Client, rel, fallback string) string {
	v, err := ps.Override(ctx, rel, fallback)
	if err != nil {
		slog.Warn("failed to read parameter override", "name", rel, "err", err)
	}
	return v
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseLevel(v string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
