// Package agent provides the reasoning loop that drives tools from model
// decisions.
//
// Contains the states, errors and response types of a run.
package agent

import (
	"errors"

	"github.com/richinex/reasoner/llm"
	"github.com/richinex/reasoner/model"
)

var (
	// ErrLoopExhausted is returned when the iteration bound is reached
	// without a final answer.
	ErrLoopExhausted = errors.New("iteration limit reached without a final answer")

	// ErrParseFailure is returned after too many consecutive replies that
	// held neither a tool call nor a final answer.
	ErrParseFailure = errors.New("model replies could not be parsed")

	// ErrBusy is returned when Run is called while another run is active.
	ErrBusy = errors.New("agent is already running a task")
)

// State is a position in the loop's state machine.
type State int

const (
	StateStart State = iota
	StateThinking
	StateActing
	StateObserving
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateThinking:
		return "thinking"
	case StateActing:
		return "acting"
	case StateObserving:
		return "observing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Step is an alias for model.Step for loop iterations.
type Step = model.Step

// ToolCall is an alias for model.ToolCall for tool call metadata.
type ToolCall = model.ToolCall

// Metadata contains metadata about a run.
type Metadata struct {
	RunID           string
	ExecutionTimeMs uint64
	Iterations      int
	ParseFailures   int
	ToolCalls       []ToolCall
	TokenUsage      llm.TokenUsage
	LLMCalls        int
}

// Response is the outcome of one run: a final answer, or a failure and the
// state the loop was in.
type Response struct {
	State    State
	Answer   string
	Err      error
	Steps    []Step
	Metadata Metadata
}

// IsSuccess reports whether the run reached a final answer.
func (r Response) IsSuccess() bool {
	return r.State == StateDone
}

// ResultText returns the answer, or the failure reason.
func (r Response) ResultText() string {
	if r.IsSuccess() {
		return r.Answer
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return "run failed"
}

// StepObserver is called after every iteration.
type StepObserver func(Step)
