package liveagent

import (
	"time"

	"github.com/google/uuid"
)

// HealthState describes the availability of a backing data source.
type HealthState string

const (
	// HealthHealthy means the source answered its last health probe.
	HealthHealthy HealthState = "healthy"

	// HealthDegraded means the source answered but reported problems.
	HealthDegraded HealthState = "degraded"

	// HealthUnreachable means the source could not be contacted.
	HealthUnreachable HealthState = "unreachable"
)

// Provenance tags where the data behind an answer came from.
type Provenance string

const (
	// ProvenanceLiveData means at least one successful live fetch backs the answer.
	ProvenanceLiveData Provenance = "live_data"

	// ProvenanceNone means the answer was produced without any live fetch.
	ProvenanceNone Provenance = "none"
)

// QueryResult is the outcome of a single connector invocation. It is the
// unit of live data the rest of the system reasons about: immutable once
// built and never reused across tool calls.
type QueryResult struct {
	// Rows is the result payload as a sequence of column-name keyed rows.
	Rows []map[string]any `json:"rows"`

	// Count is the number of rows or items returned.
	Count int `json:"count"`

	// Duration is how long the connector took to produce the result.
	Duration time.Duration `json:"duration"`

	// DataTimestamp is when the underlying store produced the value.
	// Connectors that cannot report one leave it zero and the sandbox
	// stamps its own completion time instead.
	DataTimestamp time.Time `json:"dataTimestamp"`

	// Source identifies the connector that produced the result.
	Source string `json:"source"`
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation proposed by the model. It exists only
// within one loop iteration.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Observation records the outcome of a tool execution as fed back to the
// model.
type Observation struct {
	ToolCallID string `json:"toolCallId"`

	// Tool is the tool that was executed.
	Tool string `json:"tool"`

	// Content is the serialized result, or the failure message when
	// IsError is set.
	Content string `json:"content"`

	IsError bool `json:"isError"`

	// DataTimestamp carries the QueryResult stamp for successful
	// executions.
	DataTimestamp time.Time `json:"dataTimestamp,omitempty"`

	// Source is the connector the data came from.
	Source string `json:"source,omitempty"`
}

// Turn is one entry in a conversation: a user question, an assistant
// reply (possibly proposing tool calls), or a tool observation.
type Turn struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
	Observation *Observation `json:"observation,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Conversation is the ordered turn history for one question's lifetime.
// It is owned exclusively by one agent invocation and never shared
// across concurrent requests.
type Conversation struct {
	ID        string    `json:"id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewConversation creates an empty conversation with a fresh ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		Turns:     []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddUserTurn appends a user question.
func (c *Conversation) AddUserTurn(content string) *Turn {
	return c.append(Turn{Role: RoleUser, Content: content})
}

// AddAssistantTurn appends an assistant reply with any proposed tool calls.
func (c *Conversation) AddAssistantTurn(content string, calls []ToolCall) *Turn {
	return c.append(Turn{Role: RoleAssistant, Content: content, ToolCalls: calls})
}

// AddToolTurn appends a tool observation.
func (c *Conversation) AddToolTurn(obs Observation) *Turn {
	return c.append(Turn{Role: RoleTool, Observation: &obs})
}

func (c *Conversation) append(t Turn) *Turn {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now()
	c.Turns = append(c.Turns, t)
	c.UpdatedAt = t.CreatedAt
	return &c.Turns[len(c.Turns)-1]
}

// NewRequestID generates a unique request identifier.
func NewRequestID() string {
	return uuid.NewString()
}
