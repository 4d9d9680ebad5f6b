package liveagent

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Callers match with errors.Is.
var (
	// ErrUnknownTool indicates a tool call named an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateTool indicates a tool name was registered twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidToolArguments indicates a tool call was missing required
	// parameters or carried values of the wrong type.
	ErrInvalidToolArguments = errors.New("invalid tool arguments")

	// ErrUnknownConnector indicates no connector is registered under the
	// requested identifier.
	ErrUnknownConnector = errors.New("unknown connector")

	// ErrDuplicateConnector indicates a connector id was registered twice.
	ErrDuplicateConnector = errors.New("connector already registered")

	// ErrUnsafeQuery indicates the sandbox rejected a query before any
	// network call: a blocked mutation or unparameterized input.
	ErrUnsafeQuery = errors.New("unsafe query rejected")

	// ErrConnection indicates the backing store could not be reached.
	ErrConnection = errors.New("connector unavailable")

	// ErrQueryExecution indicates the backing store failed to run the query.
	ErrQueryExecution = errors.New("query execution failed")

	// ErrTimeout indicates a query exceeded its execution timeout and was
	// cancelled.
	ErrTimeout = errors.New("query timed out")

	// ErrResultTooLarge indicates a query returned more rows than the
	// connector's cap allows. The result is discarded, never truncated.
	ErrResultTooLarge = errors.New("result exceeds row limit")

	// ErrModelCommunication indicates the language model layer failed.
	ErrModelCommunication = errors.New("model communication failed")

	// ErrMalformedModelOutput indicates the model returned output that
	// could not be parsed into a tool call or an answer.
	ErrMalformedModelOutput = errors.New("malformed model output")

	// ErrBudgetExceeded indicates the planning loop hit its iteration bound.
	ErrBudgetExceeded = errors.New("step budget exceeded")
)

// ErrorCode classifies failures for transport-layer mapping and logs.
type ErrorCode string

const (
	ErrCodeUnknownTool      ErrorCode = "unknown_tool"
	ErrCodeDuplicateTool    ErrorCode = "duplicate_tool"
	ErrCodeInvalidArguments ErrorCode = "invalid_tool_arguments"
	ErrCodeUnknownConnector ErrorCode = "unknown_connector"
	ErrCodeUnsafeQuery      ErrorCode = "unsafe_query"
	ErrCodeConnection       ErrorCode = "connection"
	ErrCodeQueryExecution   ErrorCode = "query_execution"
	ErrCodeTimeout          ErrorCode = "timeout"
	ErrCodeResultTooLarge   ErrorCode = "result_too_large"
	ErrCodeModel            ErrorCode = "model_communication"
	ErrCodeBudgetExceeded   ErrorCode = "budget_exceeded"
	ErrCodeInternal         ErrorCode = "internal"
)

// AgentError attaches a code and context message to an underlying
// sentinel so transports can map failures without string matching.
type AgentError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// NewAgentError builds an AgentError wrapping err.
func NewAgentError(code ErrorCode, message string, err error) *AgentError {
	return &AgentError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err, walking the wrap chain.
// Unclassified errors report ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	switch {
	case errors.Is(err, ErrUnknownTool):
		return ErrCodeUnknownTool
	case errors.Is(err, ErrDuplicateTool):
		return ErrCodeDuplicateTool
	case errors.Is(err, ErrInvalidToolArguments):
		return ErrCodeInvalidArguments
	case errors.Is(err, ErrUnknownConnector):
		return ErrCodeUnknownConnector
	case errors.Is(err, ErrUnsafeQuery):
		return ErrCodeUnsafeQuery
	case errors.Is(err, ErrConnection):
		return ErrCodeConnection
	case errors.Is(err, ErrTimeout):
		return ErrCodeTimeout
	case errors.Is(err, ErrResultTooLarge):
		return ErrCodeResultTooLarge
	case errors.Is(err, ErrQueryExecution):
		return ErrCodeQueryExecution
	case errors.Is(err, ErrModelCommunication), errors.Is(err, ErrMalformedModelOutput):
		return ErrCodeModel
	case errors.Is(err, ErrBudgetExceeded):
		return ErrCodeBudgetExceeded
	}
	return ErrCodeInternal
}
