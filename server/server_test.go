package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/agent"
	"github.com/ternlabs/liveagent/connector"
	"github.com/ternlabs/liveagent/conversation"
	"github.com/ternlabs/liveagent/llm"
	"github.com/ternlabs/liveagent/tools"
)

type staticProvider struct {
	resp *llm.Response
	err  error
}

func (p *staticProvider) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

type staticConnector struct {
	health liveagent.HealthState
}

func (c *staticConnector) Connect(ctx context.Context) error { return nil }

func (c *staticConnector) Query(ctx context.Context, query string, params map[string]any) (*liveagent.QueryResult, error) {
	return &liveagent.QueryResult{}, nil
}

func (c *staticConnector) Health(ctx context.Context) liveagent.HealthState { return c.health }

func (c *staticConnector) Close() error { return nil }

func (c *staticConnector) Limits() connector.Limits {
	return connector.Limits{Kind: connector.KindSQL, ReadOnly: true, MaxConcurrent: 1}
}

func newTestServer(t *testing.T, provider llm.Provider, states map[string]liveagent.HealthState, store conversation.Store) *Server {
	t.Helper()

	registry := connector.NewRegistry()
	for id, state := range states {
		if err := registry.Register(id, &staticConnector{health: state}); err != nil {
			t.Fatal(err)
		}
	}

	cfg := agent.DefaultConfig()
	cfg.RequireLiveData = false
	cfg.ModelRetries = 0
	ag := agent.New(provider, tools.NewRegistry(), agent.WithConfig(cfg))

	opts := []Option{}
	if store != nil {
		opts = append(opts, WithStore(store))
	}
	return New(ag, registry, Config{}, opts...)
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		srv := newTestServer(t, &staticProvider{}, map[string]liveagent.HealthState{
			"shop-db": liveagent.HealthHealthy,
		}, nil)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		var body struct {
			Status     string                           `json:"status"`
			Connectors map[string]liveagent.HealthState `json:"connectors"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Status != "ok" {
			t.Errorf("status = %q", body.Status)
		}
		if body.Connectors["shop-db"] != liveagent.HealthHealthy {
			t.Errorf("shop-db = %s", body.Connectors["shop-db"])
		}
	})

	t.Run("one unreachable", func(t *testing.T) {
		srv := newTestServer(t, &staticProvider{}, map[string]liveagent.HealthState{
			"shop-db": liveagent.HealthHealthy,
			"api":     liveagent.HealthUnreachable,
		}, nil)

		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestAskEndpoint(t *testing.T) {
	t.Run("answers", func(t *testing.T) {
		provider := &staticProvider{resp: &llm.Response{
			Content:    "50 laptops in stock.",
			StopReason: llm.StopReasonEnd,
		}}
		srv := newTestServer(t, provider, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask",
			strings.NewReader(`{"question":"How many laptops?"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var answer agent.Answer
		if err := json.NewDecoder(rec.Body).Decode(&answer); err != nil {
			t.Fatal(err)
		}
		if answer.Text != "50 laptops in stock." {
			t.Errorf("Text = %q", answer.Text)
		}
		if answer.Provenance != liveagent.ProvenanceNone {
			t.Errorf("Provenance = %s", answer.Provenance)
		}
	})

	t.Run("missing question", func(t *testing.T) {
		srv := newTestServer(t, &staticProvider{}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		srv := newTestServer(t, &staticProvider{}, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`not json`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("model failure maps to bad gateway", func(t *testing.T) {
		provider := &staticProvider{err: liveagent.ErrModelCommunication}
		srv := newTestServer(t, provider, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask",
			strings.NewReader(`{"question":"hi"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Error.Code != string(liveagent.ErrCodeModel) {
			t.Errorf("code = %q", body.Error.Code)
		}
	})
}

func TestConversationEndpoint(t *testing.T) {
	store := conversation.NewMemoryStore()
	conv := liveagent.NewConversation()
	conv.AddUserTurn("hello")
	if err := store.Save(context.Background(), conv); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(t, &staticProvider{}, nil, store)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/v1/conversations/"+conv.ID, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got liveagent.Conversation
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.ID != conv.ID {
			t.Errorf("ID = %q", got.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/v1/conversations/missing", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &staticProvider{}, nil, nil)

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("no request id assigned")
		}
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-123")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
			t.Errorf("X-Request-ID = %q", got)
		}
	})
}

func TestRateLimit(t *testing.T) {
	registry := connector.NewRegistry()
	cfg := agent.DefaultConfig()
	cfg.RequireLiveData = false
	ag := agent.New(&staticProvider{resp: &llm.Response{Content: "hi"}}, tools.NewRegistry(), agent.WithConfig(cfg))

	srv := New(ag, registry, Config{RateLimit: 1, RateBurst: 1})

	first := httptest.NewRecorder()
	srv.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	srv.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
}
