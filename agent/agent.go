// Package agent implements the planning loop that drives a question to
// an answer: ask the model, execute proposed tool calls through their
// handlers, feed observations back, repeat until an answer or a bound.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	liveagent "github.com/ternlabs/liveagent"
	"github.com/ternlabs/liveagent/conversation"
	"github.com/ternlabs/liveagent/llm"
	"github.com/ternlabs/liveagent/tools"
)

// State is a phase of the planning loop.
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTool  State = "executing_tool"
	StateAnswered       State = "answered"
	StateFailed         State = "failed"
	StateBudgetExceeded State = "budget_exceeded"
)

// budgetMessage is the user-visible reply when the loop hits its bound.
const budgetMessage = "I was unable to determine an answer within the allotted steps."

const defaultSystemPrompt = `You answer questions about dynamic business data.

Rules:
1. Never answer questions about inventory, orders, users, or any other changing data from memory. Call a tool to fetch live data first.
2. If a tool returns an error, report the error. Do not invent values.
3. When you answer from tool results, say the data is live and include its timestamp.`

// Config bounds and tunes the planning loop.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float32

	// MaxTurns bounds the number of model calls per question.
	MaxTurns int

	// ModelRetries bounds retries of a failed model call.
	ModelRetries int

	// RetryInterval is the initial backoff between model retries.
	RetryInterval time.Duration

	// RequireLiveData rejects a direct answer once and re-prompts for a
	// tool call when no successful tool execution has been observed.
	RequireLiveData bool

	// SystemPrompt overrides the built-in system prompt.
	SystemPrompt string
}

// DefaultConfig returns sensible loop defaults.
func DefaultConfig() Config {
	return Config{
		Model:           "gpt-4o",
		MaxTokens:       1024,
		MaxTurns:        10,
		ModelRetries:    3,
		RetryInterval:   500 * time.Millisecond,
		RequireLiveData: true,
	}
}

// Agent runs the plan, act, observe loop for inbound questions. One
// Agent serves many concurrent questions; all per-question state lives
// in the Ask call.
type Agent struct {
	provider llm.Provider
	tools    *tools.Registry
	store    conversation.Store
	config   Config
	logger   *slog.Logger
}

// Option configures the agent.
type Option func(*Agent)

// WithConfig sets the loop configuration.
func WithConfig(cfg Config) Option {
	return func(a *Agent) { a.config = cfg }
}

// WithLogger sets the agent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithStore archives finished conversations. The archive is write-only
// for the agent: answers are never served from it.
func WithStore(store conversation.Store) Option {
	return func(a *Agent) { a.store = store }
}

// New creates an agent over the given model provider and tool registry.
func New(provider llm.Provider, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		provider: provider,
		tools:    registry,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer is the outcome of one question.
type Answer struct {
	ConversationID string `json:"conversationId"`

	// Text is the model's final reply, or the fixed budget message.
	Text string `json:"answer"`

	State State `json:"state"`

	// Provenance is "live_data" when at least one successful tool
	// execution backs the answer, else "none".
	Provenance liveagent.Provenance `json:"provenance"`

	// DataTimestamp is the newest data stamp among the observations
	// backing the answer.
	DataTimestamp *time.Time `json:"dataTimestamp,omitempty"`

	ToolsUsed []string `json:"toolsUsed,omitempty"`

	// Steps is how many model calls the loop consumed.
	Steps int `json:"steps"`

	// Trace is the sequence of loop states, for observability.
	Trace []State `json:"trace,omitempty"`

	Usage llm.Usage `json:"-"`
}

// Ask answers a single natural-language question. The conversation
// state it builds is owned by this call alone and discarded (or
// archived) when the loop terminates.
func (a *Agent) Ask(ctx context.Context, question string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}

	conv := liveagent.NewConversation()
	conv.AddUserTurn(question)

	msgs := []llm.Message{{Role: llm.RoleUser, Content: question}}
	defs := a.tools.Definitions()
	trace := []State{StateAwaitingModel}

	var (
		toolsUsed    []string
		newest       time.Time
		usage        llm.Usage
		liveObserved bool
		nudged       bool
		steps        int
	)

	for steps < a.config.MaxTurns {
		steps++

		resp, err := a.callModel(ctx, msgs, defs)
		if err != nil {
			trace = append(trace, StateFailed)
			a.archive(ctx, conv)
			return nil, liveagent.NewAgentError(liveagent.ErrCodeModel, "model call failed", err)
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		if len(resp.ToolCalls) == 0 {
			if a.config.RequireLiveData && !liveObserved && !nudged && a.tools.Len() > 0 {
				// Direct answer with no live observation: reject once
				// and re-prompt for a tool call.
				nudged = true
				conv.AddAssistantTurn(resp.Content, nil)
				reminder := "Do not answer from memory. Call one of the available tools to fetch live data first, or state that you cannot answer."
				conv.AddUserTurn(reminder)
				msgs = append(msgs,
					llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
					llm.Message{Role: llm.RoleUser, Content: reminder},
				)
				continue
			}

			conv.AddAssistantTurn(resp.Content, nil)
			trace = append(trace, StateAnswered)
			a.archive(ctx, conv)

			answer := &Answer{
				ConversationID: conv.ID,
				Text:           resp.Content,
				State:          StateAnswered,
				Provenance:     liveagent.ProvenanceNone,
				ToolsUsed:      toolsUsed,
				Steps:          steps,
				Trace:          trace,
				Usage:          usage,
			}
			if liveObserved {
				answer.Provenance = liveagent.ProvenanceLiveData
				stamp := newest
				answer.DataTimestamp = &stamp
			}
			return answer, nil
		}

		trace = append(trace, StateExecutingTool)

		calls := make([]liveagent.ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			calls[i] = liveagent.ToolCall{ID: tc.ID, Name: tc.Name, Args: tc.Args}
		}
		conv.AddAssistantTurn(resp.Content, calls)
		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			obs := a.executeTool(ctx, tc)

			if ctx.Err() != nil {
				// In-flight work was cancelled; discard partials.
				trace = append(trace, StateFailed)
				a.archive(ctx, conv)
				return nil, liveagent.NewAgentError(liveagent.ErrCodeTimeout, "request cancelled",
					fmt.Errorf("%w: %v", liveagent.ErrTimeout, ctx.Err()))
			}

			if !obs.IsError {
				liveObserved = true
				toolsUsed = appendUnique(toolsUsed, tc.Name)
				if obs.DataTimestamp.After(newest) {
					newest = obs.DataTimestamp
				}
			}

			conv.AddToolTurn(obs)
			msgs = append(msgs, llm.Message{
				Role: llm.RoleTool,
				ToolResult: &llm.ToolResult{
					ToolCallID: tc.ID,
					Content:    obs.Content,
					IsError:    obs.IsError,
				},
			})
		}

		trace = append(trace, StateAwaitingModel)
	}

	trace = append(trace, StateBudgetExceeded)
	a.archive(ctx, conv)
	a.logger.Warn("planning loop exhausted its step budget",
		slog.String("conversation", conv.ID),
		slog.Int("steps", steps),
	)

	return &Answer{
		ConversationID: conv.ID,
		Text:           budgetMessage,
		State:          StateBudgetExceeded,
		Provenance:     liveagent.ProvenanceNone,
		ToolsUsed:      toolsUsed,
		Steps:          steps,
		Trace:          trace,
		Usage:          usage,
	}, nil
}

// callModel invokes the provider, retrying transport failures with
// exponential backoff up to the configured bound.
func (a *Agent) callModel(ctx context.Context, msgs []llm.Message, defs []tools.Definition) (*llm.Response, error) {
	req := llm.Request{
		Model:       a.config.Model,
		System:      a.systemPrompt(),
		Messages:    msgs,
		Tools:       defs,
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}

	policy := backoff.NewExponentialBackOff()
	if a.config.RetryInterval > 0 {
		policy.InitialInterval = a.config.RetryInterval
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(a.config.ModelRetries)), ctx)

	return backoff.RetryNotifyWithData(func() (*llm.Response, error) {
		return a.provider.Chat(ctx, req)
	}, b, func(err error, wait time.Duration) {
		a.logger.Warn("model call failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", wait),
		)
	})
}

// executeTool resolves and runs one proposed tool call. Failures become
// observations fed back to the model, never automatic retries: the
// model decides whether to try different arguments or give up.
func (a *Agent) executeTool(ctx context.Context, tc llm.ToolCall) liveagent.Observation {
	obs := liveagent.Observation{ToolCallID: tc.ID, Tool: tc.Name}

	fail := func(err error) liveagent.Observation {
		obs.IsError = true
		obs.Content = err.Error()
		a.logger.Warn("tool call failed",
			slog.String("tool", tc.Name),
			slog.String("error", err.Error()),
		)
		return obs
	}

	// Unregistered tools fail closed; nothing is ever executed for them.
	tool, err := a.tools.Resolve(tc.Name)
	if err != nil {
		return fail(err)
	}
	if err := tools.ValidateArgs(tool, tc.Args); err != nil {
		return fail(err)
	}

	result, err := tool.Handler(ctx, tc.Args)
	if err != nil {
		return fail(err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fail(fmt.Errorf("encoding result: %w", err))
	}

	obs.Content = string(payload)
	obs.DataTimestamp = result.DataTimestamp
	obs.Source = result.Source
	return obs
}

// archive persists the finished conversation when a store is
// configured. Best effort: the archive is never read to answer.
func (a *Agent) archive(ctx context.Context, conv *liveagent.Conversation) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(context.WithoutCancel(ctx), conv); err != nil {
		a.logger.Warn("archiving conversation failed",
			slog.String("conversation", conv.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Agent) systemPrompt() string {
	if a.config.SystemPrompt != "" {
		return a.config.SystemPrompt
	}
	return defaultSystemPrompt
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
