// Command liveagentd runs the live-data agent HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/agent"
	"github.com/ternlabs/liveagent/connector"
	pgconn "github.com/ternlabs/liveagent/connector/postgres"
	"github.com/ternlabs/liveagent/connector/restapi"
	"github.com/ternlabs/liveagent/connector/sqlite"
	"github.com/ternlabs/liveagent/conversation"
	pgstore "github.com/ternlabs/liveagent/conversation/postgres"
	"github.com/ternlabs/liveagent/llm"
	"github.com/ternlabs/liveagent/llm/anthropic"
	"github.com/ternlabs/liveagent/llm/openai"
	"github.com/ternlabs/liveagent/sandbox"
	"github.com/ternlabs/liveagent/server"
	"github.com/ternlabs/liveagent/tools"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "liveagent.yaml", "path to the configuration file")
	logJSON := flag.Bool("log-json", false, "emit JSON logs")
	flag.Parse()

	logger := newLogger(*logJSON)
	slog.SetDefault(logger)

	cfg, err := liveagent.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return err
	}

	registry := connector.NewRegistry(connector.WithLogger(logger))
	if err := registerConnectors(registry, cfg.Connectors); err != nil {
		return err
	}
	registry.ConnectAll(ctx)
	defer func() {
		if err := registry.CloseAll(); err != nil {
			logger.Warn("closing connectors", slog.String("error", err.Error()))
		}
	}()

	sb := sandbox.New(registry, sandbox.WithLogger(logger))

	toolRegistry := tools.NewRegistry()
	if err := registerTools(toolRegistry, sb, cfg.Tools); err != nil {
		return err
	}
	logger.Info("tools registered", slog.Int("count", toolRegistry.Len()))

	store, cleanup, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer cleanup()

	ag := agent.New(provider, toolRegistry,
		agent.WithConfig(agent.Config{
			Model:           cfg.LLM.Model,
			MaxTokens:       cfg.LLM.MaxTokens,
			Temperature:     cfg.LLM.Temperature,
			MaxTurns:        cfg.Agent.MaxTurns,
			ModelRetries:    cfg.Agent.ModelRetries,
			RetryInterval:   500 * time.Millisecond,
			RequireLiveData: *cfg.Agent.RequireLiveData,
			SystemPrompt:    cfg.Agent.SystemPrompt,
		}),
		agent.WithLogger(logger),
		agent.WithStore(store),
	)

	srv := server.New(ag, registry, server.Config{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		RequestTimeout: cfg.Server.RequestTimeout.Std(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	},
		server.WithStore(store),
		server.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(jsonOut bool) *slog.Logger {
	var handler slog.Handler
	if jsonOut {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}

func buildProvider(cfg liveagent.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}), nil
	case "openai", "ollama":
		return openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func registerConnectors(registry *connector.Registry, configs []liveagent.ConnectorConfig) error {
	for _, cc := range configs {
		var c connector.Connector
		switch cc.Type {
		case "postgres":
			c = pgconn.New(pgconn.Config{
				DSN:           cc.DSN,
				ReadOnly:      *cc.ReadOnly,
				MaxRows:       cc.MaxRows,
				QueryTimeout:  cc.QueryTimeout.Std(),
				MaxConcurrent: cc.MaxConcurrent,
			})
		case "sqlite":
			c = sqlite.New(sqlite.Config{
				DSN:           cc.DSN,
				ReadOnly:      *cc.ReadOnly,
				MaxRows:       cc.MaxRows,
				QueryTimeout:  cc.QueryTimeout.Std(),
				MaxConcurrent: cc.MaxConcurrent,
			})
		case "http":
			c = restapi.New(restapi.Config{
				BaseURL:       cc.BaseURL,
				Headers:       cc.Headers,
				HealthPath:    cc.HealthPath,
				DataPath:      cc.DataPath,
				TimestampPath: cc.TimestampPath,
				RedactFields:  cc.RedactFields,
				MaxRows:       cc.MaxRows,
				QueryTimeout:  cc.QueryTimeout.Std(),
				MaxConcurrent: cc.MaxConcurrent,
			})
		default:
			return fmt.Errorf("connector %q: unsupported type %q", cc.ID, cc.Type)
		}
		if err := registry.Register(cc.ID, c); err != nil {
			return err
		}
	}
	return nil
}

func registerTools(registry *tools.Registry, sb *sandbox.Sandbox, configs []liveagent.ToolConfig) error {
	for _, tc := range configs {
		params := make([]tools.ParamSpec, len(tc.Params))
		for i, p := range tc.Params {
			params[i] = tools.ParamSpec{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
				Required:    p.Required,
			}
		}
		tool := tools.NewQueryTool(sb, tools.QuerySpec{
			Name:        tc.Name,
			Description: tc.Description,
			Connector:   tc.Connector,
			Query:       tc.Query,
			Params:      params,
		})
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func buildStore(ctx context.Context, cfg liveagent.StorageConfig) (conversation.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: creating pool: %w", err)
		}
		if _, err := pool.Exec(ctx, pgstore.Migration("")); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("storage: applying migration: %w", err)
		}
		return pgstore.New(pool), pool.Close, nil
	default:
		return conversation.NewMemoryStore(), func() {}, nil
	}
}
