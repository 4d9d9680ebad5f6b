package restapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	liveagent "github.com/ternlabs/liveagent"
)

func connected(t *testing.T, cfg Config) *Connector {
	t.Helper()
	c := New(cfg)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestQueryNormalizesRows(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sku"); got != "A-100" {
			t.Errorf("sku param = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"sku": "A-100", "price": 19.99, "internalCost": 12.5},
				{"sku": "A-101", "price": 24.99, "internalCost": 15.0}
			],
			"meta": {"updatedAt": "2026-03-01T12:00:00Z"}
		}`))
	}))
	defer ts.Close()

	c := connected(t, Config{
		BaseURL:       ts.URL,
		DataPath:      "data",
		TimestampPath: "meta.updatedAt",
		RedactFields:  []string{"data.#.internalCost"},
	})

	result, err := c.Query(context.Background(), "/v1/prices", map[string]any{"sku": "A-100"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if result.Count != 2 {
		t.Fatalf("Count = %d, want 2", result.Count)
	}
	if result.Rows[0]["sku"] != "A-100" {
		t.Errorf("rows[0] = %v", result.Rows[0])
	}
	for i, row := range result.Rows {
		if _, leaked := row["internalCost"]; leaked {
			t.Errorf("rows[%d] still carries a redacted field", i)
		}
	}

	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !result.DataTimestamp.Equal(want) {
		t.Errorf("DataTimestamp = %v, want %v", result.DataTimestamp, want)
	}
}

func TestQueryScalarAndObject(t *testing.T) {
	t.Run("object becomes one row", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"sku": "A-100", "price": 19.99}`))
		}))
		defer ts.Close()

		c := connected(t, Config{BaseURL: ts.URL})
		result, err := c.Query(context.Background(), "/v1/price", nil)
		if err != nil {
			t.Fatal(err)
		}
		if result.Count != 1 || result.Rows[0]["sku"] != "A-100" {
			t.Errorf("rows = %v", result.Rows)
		}
	})

	t.Run("scalar wraps under value", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`42`))
		}))
		defer ts.Close()

		c := connected(t, Config{BaseURL: ts.URL})
		result, err := c.Query(context.Background(), "/v1/count", nil)
		if err != nil {
			t.Fatal(err)
		}
		if result.Count != 1 || result.Rows[0]["value"] != float64(42) {
			t.Errorf("rows = %v", result.Rows)
		}
	})
}

func TestQuerySendsConfiguredHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := connected(t, Config{
		BaseURL: ts.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	if _, err := c.Query(context.Background(), "/v1/x", nil); err != nil {
		t.Fatal(err)
	}
}

func TestQueryUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := connected(t, Config{BaseURL: ts.URL})
	if _, err := c.Query(context.Background(), "/v1/x", nil); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestConnectRejectsBadBaseURL(t *testing.T) {
	c := New(Config{BaseURL: "not a url"})
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("invalid base url accepted")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   liveagent.HealthState
	}{
		{"healthy", http.StatusOK, liveagent.HealthHealthy},
		{"degraded on 500", http.StatusInternalServerError, liveagent.HealthDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/health") {
					t.Errorf("probe hit %q", r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			c := connected(t, Config{BaseURL: ts.URL})
			if got := c.Health(context.Background()); got != tt.want {
				t.Errorf("Health = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("unreachable before connect", func(t *testing.T) {
		c := New(Config{BaseURL: "http://localhost:1"})
		if got := c.Health(context.Background()); got != liveagent.HealthUnreachable {
			t.Errorf("Health = %s", got)
		}
	})
}
