// Reasoning loop implementation.
//
// Start → Thinking → Acting → Observing → (Thinking | Done | Failed)
//
// Information Hiding:
// - Conversation history construction hidden
// - LLM communication hidden
// - Tool dispatch and journaling coordination hidden

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	jsonutil "github.com/richinex/reasoner/internal/json"
	"github.com/richinex/reasoner/llm"
	"github.com/richinex/reasoner/model"
	"github.com/richinex/reasoner/storage"
	"github.com/richinex/reasoner/tools"
)

// Toolbox is the tool surface the loop drives. *tools.Registry satisfies it.
type Toolbox interface {
	Dispatch(ctx context.Context, call tools.Call) tools.Result
	Description() string
}

// Agent runs one task at a time against a toolbox. It keeps no history
// between runs.
type Agent struct {
	config  Config
	client  *llm.Client
	toolbox Toolbox
	journal storage.Journal
	logger  *zap.Logger
	onStep  StepObserver
	running atomic.Bool
}

// New creates an agent. Zero bounds in config fall back to the defaults.
func New(config Config, client *llm.Client, toolbox Toolbox) *Agent {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.MaxParseFailures <= 0 {
		config.MaxParseFailures = DefaultMaxParseFailures
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	return &Agent{
		config:  config,
		client:  client,
		toolbox: toolbox,
		logger:  zap.NewNop(),
	}
}

// WithJournal records every run and tool call in j. Nil disables journaling.
func (a *Agent) WithJournal(j storage.Journal) *Agent {
	a.journal = j
	return a
}

// WithLogger sets the logger. Nil keeps the current one.
func (a *Agent) WithLogger(logger *zap.Logger) *Agent {
	if logger != nil {
		a.logger = logger.Named("agent")
	}
	return a
}

// OnStep registers a callback invoked after each iteration.
func (a *Agent) OnStep(fn StepObserver) *Agent {
	a.onStep = fn
	return a
}

// Config returns the agent's configuration.
func (a *Agent) Config() Config {
	return a.config
}

// run holds the state of one Run call.
type run struct {
	id            string
	task          string
	started       time.Time
	history       []llm.ChatMessage
	steps         []Step
	toolCalls     []ToolCall
	usage         llm.TokenUsage
	llmCalls      int
	iterations    int
	parseFailures int
	state         State
}

// Run drives the loop for task until a final answer, the iteration bound,
// repeated parse failure, a model error or ctx cancellation.
func (a *Agent) Run(ctx context.Context, task string) Response {
	if !a.running.CompareAndSwap(false, true) {
		return Response{State: StateFailed, Err: ErrBusy}
	}
	defer a.running.Store(false)

	r := &run{
		id:      uuid.NewString(),
		task:    task,
		started: time.Now(),
		state:   StateStart,
	}
	r.history = []llm.ChatMessage{
		llm.SystemMessage(a.systemPrompt()),
		llm.UserMessage(fmt.Sprintf("Task: %s", task)),
	}

	logger := a.logger.With(zap.String("run_id", r.id))
	logger.Info("run started", zap.String("task", task))
	a.beginJournal(ctx, r)

	consecutiveFailures := 0
	for iteration := 1; iteration <= a.config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return a.fail(ctx, r, fmt.Errorf("run cancelled: %w", err))
		}
		r.iterations = iteration
		remaining := a.config.MaxIterations - iteration

		// Think
		r.state = StateThinking
		reply, usage, err := a.client.ChatWithUsage(ctx, r.history)
		r.llmCalls++
		r.usage.Add(usage)
		if err != nil {
			return a.fail(ctx, r, fmt.Errorf("model call failed: %w", err))
		}

		decision, err := jsonutil.ParseDecision(reply)
		if err != nil {
			consecutiveFailures++
			r.parseFailures++
			logger.Debug("unparseable reply", zap.Int("iteration", iteration), zap.Error(err))

			observation := parseFailureObservation(consecutiveFailures, a.config.MaxParseFailures)
			a.record(r, Step{Iteration: iteration, Thought: reply, Observation: &observation})

			if consecutiveFailures >= a.config.MaxParseFailures {
				return a.fail(ctx, r, fmt.Errorf("%w: %d consecutive replies without a tool call or final answer", ErrParseFailure, consecutiveFailures))
			}
			r.history = append(r.history,
				llm.AssistantMessage(reply),
				llm.UserMessage(observation+urgency(remaining)),
			)
			continue
		}
		consecutiveFailures = 0

		if decision.IsFinal {
			answer := decision.Answer()
			a.record(r, Step{Iteration: iteration, Thought: decision.Thought, Observation: &answer})
			return a.done(ctx, r, answer)
		}

		// Act
		r.state = StateActing
		result, call := a.act(ctx, r, decision.Action)
		logger.Debug("tool dispatched",
			zap.Int("iteration", iteration),
			zap.String("tool", call.Name),
			zap.String("status", call.Status))

		// Observe
		r.state = StateObserving
		observation := result.Observation()
		r.history = append(r.history,
			llm.AssistantMessage(canonicalReply(decision)),
			llm.UserMessage(fmt.Sprintf(
				"Observation: %s%s\n\nIs the task complete? If yes, set is_final=true.",
				observation, urgency(remaining))),
		)
		toolName := decision.Action.Tool
		a.record(r, Step{Iteration: iteration, Thought: decision.Thought, Action: &toolName, Observation: &observation})
	}

	return a.fail(ctx, r, fmt.Errorf("%w (%d iterations)", ErrLoopExhausted, a.config.MaxIterations))
}

// act dispatches one tool call and records its metrics.
func (a *Agent) act(ctx context.Context, r *run, action *model.Action) (tools.Result, ToolCall) {
	started := time.Now()
	result := a.toolbox.Dispatch(ctx, tools.Call{Tool: action.Tool, Input: action.Input})

	call := ToolCall{
		Name:       action.Tool,
		InputSize:  len(action.Input),
		OutputSize: len(result.Output),
		DurationMs: uint64(time.Since(started).Milliseconds()),
		Success:    result.Success(),
		Status:     string(result.Status),
		ErrorKind:  string(result.ErrorKind),
		ExitCode:   result.ExitCode,
	}
	r.toolCalls = append(r.toolCalls, call)

	if a.journal != nil {
		err := a.journal.RecordToolCall(context.WithoutCancel(ctx), storage.ToolCallRecord{
			RunID:       r.id,
			Seq:         len(r.toolCalls),
			Tool:        call.Name,
			Status:      call.Status,
			ErrorKind:   call.ErrorKind,
			ExitCode:    call.ExitCode,
			InputBytes:  call.InputSize,
			OutputBytes: call.OutputSize,
			DurationMs:  call.DurationMs,
			At:          started,
		})
		if err != nil {
			a.logger.Warn("failed to journal tool call", zap.String("run_id", r.id), zap.Error(err))
		}
	}
	return result, call
}

func (a *Agent) record(r *run, step Step) {
	r.steps = append(r.steps, step)
	if a.onStep != nil {
		a.onStep(step)
	}
}

func (a *Agent) done(ctx context.Context, r *run, answer string) Response {
	r.state = StateDone
	resp := a.response(r)
	resp.Answer = answer
	a.finishJournal(ctx, r, storage.RunDone, "")
	a.logger.Info("run finished",
		zap.String("run_id", r.id),
		zap.Int("iterations", r.iterations),
		zap.Int("tool_calls", len(r.toolCalls)))
	return resp
}

func (a *Agent) fail(ctx context.Context, r *run, err error) Response {
	r.state = StateFailed
	resp := a.response(r)
	resp.Err = err
	a.finishJournal(ctx, r, storage.RunFailed, err.Error())

	fields := []zap.Field{zap.String("run_id", r.id), zap.Int("iterations", r.iterations), zap.Error(err)}
	if errors.Is(err, context.Canceled) {
		a.logger.Info("run cancelled", fields...)
	} else {
		a.logger.Warn("run failed", fields...)
	}
	return resp
}

func (a *Agent) response(r *run) Response {
	return Response{
		State: r.state,
		Steps: r.steps,
		Metadata: Metadata{
			RunID:           r.id,
			ExecutionTimeMs: uint64(time.Since(r.started).Milliseconds()),
			Iterations:      r.iterations,
			ParseFailures:   r.parseFailures,
			ToolCalls:       r.toolCalls,
			TokenUsage:      r.usage,
			LLMCalls:        r.llmCalls,
		},
	}
}

// Journal helpers. Journal errors never end a run.

func (a *Agent) beginJournal(ctx context.Context, r *run) {
	if a.journal == nil {
		return
	}
	provider := a.client.Provider()
	err := a.journal.BeginRun(context.WithoutCancel(ctx), storage.RunRecord{
		ID:        r.id,
		Task:      r.task,
		Provider:  provider.Name(),
		Model:     provider.Model(),
		Workspace: a.config.Workspace,
		StartedAt: r.started,
	})
	if err != nil {
		a.logger.Warn("failed to journal run start", zap.String("run_id", r.id), zap.Error(err))
	}
}

func (a *Agent) finishJournal(ctx context.Context, r *run, status storage.RunStatus, reason string) {
	if a.journal == nil {
		return
	}
	err := a.journal.FinishRun(context.WithoutCancel(ctx), r.id, storage.RunOutcome{
		Status:      status,
		Reason:      reason,
		Iterations:  r.iterations,
		ToolCalls:   len(r.toolCalls),
		TotalTokens: r.usage.TotalTokens,
		FinishedAt:  time.Now(),
	})
	if err != nil {
		a.logger.Warn("failed to journal run finish", zap.String("run_id", r.id), zap.Error(err))
	}
}

// Prompt helpers

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(
		`%s

Available Tools:
%s

You have a maximum of %d iterations.
Respond with exactly one JSON object per reply, in this format:
{
  "thought": "your reasoning",
  "action": {"tool": "name", "input": {...}},
  "is_final": false,
  "final_answer": null
}

Call one tool per reply and wait for its observation.
When complete: is_final=true, action=null, provide final_answer.`,
		a.config.SystemPrompt,
		a.toolbox.Description(),
		a.config.MaxIterations,
	)
}

// canonicalReply re-encodes a decision so the history holds JSON even when
// the model answered in ReAct text.
func canonicalReply(d model.Decision) string {
	msg := map[string]interface{}{
		"thought": d.Thought,
		"action": map[string]interface{}{
			"tool":  d.Action.Tool,
			"input": d.Action.Input,
		},
		"is_final": false,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Sprintf(`{"thought": %q}`, d.Thought)
	}
	return string(data)
}

func parseFailureObservation(failures, max int) string {
	return fmt.Sprintf(
		"Observation: your last output could not be parsed (%d of %d allowed). Try again: reply with a single JSON object containing either an action or is_final=true with a final_answer.",
		failures, max)
}

func urgency(remaining int) string {
	if remaining <= 0 || remaining > 2 {
		return ""
	}
	return fmt.Sprintf("\n\nWARNING: Only %d iterations remaining!", remaining)
}
