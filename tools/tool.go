// Package tools provides the fixed tool set the agent can invoke.
//
// Information Hiding:
// - Argument decoding and coercion hidden behind Dispatch
// - Workspace and process access hidden in tool implementations
// - Error classification internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadArguments marks a call whose arguments are missing or malformed.
var ErrBadArguments = errors.New("bad arguments")

// Kind names one of the tools. The set is closed.
type Kind string

const (
	KindWriteScript   Kind = "write_script"
	KindWriteFile     Kind = "write_file"
	KindRunScript     Kind = "run_script"
	KindReadFile      Kind = "read_file"
	KindListWorkspace Kind = "list_workspace"
)

// Kinds lists every tool kind in registration order.
var Kinds = []Kind{
	KindWriteScript,
	KindWriteFile,
	KindRunScript,
	KindReadFile,
	KindListWorkspace,
}

// ParseKind maps a tool name to its Kind. Matching ignores case and
// surrounding whitespace.
func ParseKind(name string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, k := range Kinds {
		if k == normalized {
			return k, true
		}
	}
	return "", false
}

// Status is the outcome of a tool call.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// ErrorKind classifies a failed tool call.
type ErrorKind string

const (
	ErrorNone           ErrorKind = ""
	ErrorPathRejected   ErrorKind = "PathRejected"
	ErrorNotFound       ErrorKind = "NotFound"
	ErrorBadArguments   ErrorKind = "BadArguments"
	ErrorTimeout        ErrorKind = "Timeout"
	ErrorExecutionError ErrorKind = "ExecutionError"
	ErrorInternal       ErrorKind = "Internal"
)

// Call is a tool invocation requested by the model.
type Call struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// Result is what a tool call produced. Failures are values, not Go errors.
type Result struct {
	Tool      Kind      `json:"tool"`
	Status    Status    `json:"status"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Output    string    `json:"output"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
}

// Success returns true if the call completed with status ok.
func (r Result) Success() bool {
	return r.Status == StatusOK
}

// Observation renders the result as text for the model.
func (r Result) Observation() string {
	switch r.Status {
	case StatusOK:
		return fmt.Sprintf("OK: %s", r.Output)
	case StatusTimeout:
		return fmt.Sprintf("TIMEOUT: %s", r.Output)
	default:
		return fmt.Sprintf("ERROR [%s]: %s", r.ErrorKind, r.Output)
	}
}

// SuccessResult creates a successful result.
func SuccessResult(kind Kind, output string) Result {
	return Result{Tool: kind, Status: StatusOK, Output: output}
}

// FailureResult creates a failed result of the given error kind.
func FailureResult(kind Kind, errKind ErrorKind, err error) Result {
	return Result{Tool: kind, Status: StatusError, ErrorKind: errKind, Output: err.Error()}
}

// FailureResultf creates a failed result with a formatted message.
func FailureResultf(kind Kind, errKind ErrorKind, format string, args ...interface{}) Result {
	return FailureResult(kind, errKind, fmt.Errorf(format, args...))
}

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Kind        Kind            `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Kind, m.Description)
}

// Tool is implemented by each of the fixed tools.
type Tool interface {
	// Metadata returns tool metadata (kind, description, parameters).
	Metadata() ToolMetadata

	// Validate checks arguments before execution. Errors wrap ErrBadArguments.
	Validate(args json.RawMessage) error

	// Execute runs the tool. It never returns a Go error; failures are
	// reported in the Result.
	Execute(ctx context.Context, args json.RawMessage) Result
}
