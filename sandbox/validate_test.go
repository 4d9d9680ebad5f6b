package sandbox

import (
	"errors"
	"testing"

	liveagent "github.com/ternlabs/liveagent"
)

func TestValidateSQL(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		params   map[string]any
		readOnly bool
		wantErr  bool
	}{
		{
			name:     "plain select",
			query:    "SELECT name, quantity FROM inventory",
			readOnly: true,
		},
		{
			name:     "select with named placeholder",
			query:    "SELECT * FROM inventory WHERE name = @name",
			params:   map[string]any{"name": "laptop"},
			readOnly: true,
		},
		{
			name:     "select with positional placeholder",
			query:    "SELECT * FROM inventory WHERE name = $1",
			params:   map[string]any{"name": "laptop"},
			readOnly: true,
		},
		{
			name:     "multiple positional placeholders",
			query:    "SELECT * FROM inventory WHERE name = $1 AND region = $2",
			params:   map[string]any{"name": "laptop", "region": "eu"},
			readOnly: true,
		},
		{
			name:     "question mark placeholders",
			query:    "SELECT * FROM inventory WHERE name = ? AND region = ?",
			params:   map[string]any{"name": "laptop", "region": "eu"},
			readOnly: true,
		},
		{
			name:     "insert blocked on read-only",
			query:    "INSERT INTO inventory (name) VALUES (@name)",
			params:   map[string]any{"name": "laptop"},
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "update blocked on read-only",
			query:    "UPDATE inventory SET quantity = 0",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "drop blocked on read-only",
			query:    "DROP TABLE inventory",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "lowercase delete blocked",
			query:    "delete from inventory",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "insert allowed when connector is writable",
			query:    "INSERT INTO audit_log (entry) VALUES (@entry)",
			params:   map[string]any{"entry": "checked"},
			readOnly: false,
		},
		{
			name:     "keyword inside string literal allowed",
			query:    "SELECT * FROM products WHERE name = 'DROP shipment'",
			readOnly: true,
		},
		{
			name:     "keyword as identifier substring allowed",
			query:    "SELECT created_at, updated_at FROM inventory",
			readOnly: true,
		},
		{
			name:     "multiple statements rejected",
			query:    "SELECT 1; SELECT 2",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "trailing semicolon allowed",
			query:    "SELECT 1;",
			readOnly: true,
		},
		{
			name:     "line comment rejected",
			query:    "SELECT 1 -- hide the rest",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "block comment rejected",
			query:    "SELECT /* sneaky */ 1",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "empty query rejected",
			query:    "   ",
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "params without placeholders rejected",
			query:    "SELECT * FROM inventory",
			params:   map[string]any{"name": "laptop"},
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "param without matching placeholder rejected",
			query:    "SELECT * FROM inventory WHERE name = @name",
			params:   map[string]any{"name": "laptop", "region": "eu"},
			readOnly: true,
			wantErr:  true,
		},
		{
			name:     "interpolated param value rejected",
			query:    "SELECT * FROM inventory WHERE name = 'laptop' AND region = @region",
			params:   map[string]any{"name": "laptop", "region": "eu"},
			readOnly: true,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSQL(tt.query, tt.params, tt.readOnly)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected rejection, got nil")
				}
				if !errors.Is(err, liveagent.ErrUnsafeQuery) {
					t.Errorf("expected ErrUnsafeQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
		})
	}
}

func TestValidateHTTP(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		params  map[string]any
		wantErr bool
	}{
		{
			name:   "relative path",
			path:   "/v1/prices",
			params: map[string]any{"sku": "A-100"},
		},
		{
			name:    "absolute url rejected",
			path:    "https://evil.example.com/v1/prices",
			wantErr: true,
		},
		{
			name:    "non-rooted path rejected",
			path:    "v1/prices",
			wantErr: true,
		},
		{
			name:    "inline query string rejected",
			path:    "/v1/prices?sku=A-100",
			wantErr: true,
		},
		{
			name:    "fragment rejected",
			path:    "/v1/prices#frag",
			wantErr: true,
		},
		{
			name:    "path traversal rejected",
			path:    "/v1/../admin",
			wantErr: true,
		},
		{
			name:    "param spliced into path rejected",
			path:    "/v1/prices/A-100",
			params:  map[string]any{"sku": "A-100"},
			wantErr: true,
		},
		{
			name:    "empty path rejected",
			path:    "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTP(tt.path, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected rejection, got nil")
				}
				if !errors.Is(err, liveagent.ErrUnsafeQuery) {
					t.Errorf("expected ErrUnsafeQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
		})
	}
}

func TestStripLiteralsAndComments(t *testing.T) {
	t.Run("doubled quote escape", func(t *testing.T) {
		normalized, hasComment := stripLiteralsAndComments("SELECT 'it''s fine' FROM t")
		if hasComment {
			t.Error("no comment expected")
		}
		if got, want := normalized, "SELECT   FROM t"; got != want {
			t.Errorf("normalized = %q, want %q", got, want)
		}
	})

	t.Run("dash comment detected", func(t *testing.T) {
		_, hasComment := stripLiteralsAndComments("SELECT 1 -- trailing")
		if !hasComment {
			t.Error("expected comment detection")
		}
	})

	t.Run("dashes inside literal are not a comment", func(t *testing.T) {
		_, hasComment := stripLiteralsAndComments("SELECT '--not a comment' FROM t")
		if hasComment {
			t.Error("literal content flagged as comment")
		}
	})
}
