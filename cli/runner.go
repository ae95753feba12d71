// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Agent setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/richinex/reasoner/agent"
	"github.com/richinex/reasoner/config"
	"github.com/richinex/reasoner/llm"
	"github.com/richinex/reasoner/storage"
)

// Options holds CLI execution options. Zero values leave the loaded
// configuration untouched.
type Options struct {
	Provider    string
	ConfigPath  string
	Workspace   string
	MaxIter     int
	TimeoutSecs int
	LogLevel    string
	Journal     string
	Verbose     bool
}

func (o Options) apply(s *config.Settings) {
	if o.Workspace != "" {
		s.Workspace.Root = o.Workspace
	}
	if o.MaxIter > 0 {
		s.Agent.MaxIterations = o.MaxIter
	}
	if o.TimeoutSecs > 0 {
		s.Runner.TimeoutSecs = o.TimeoutSecs
	}
	if o.LogLevel != "" {
		s.Logging.Level = o.LogLevel
	}
	if o.Journal != "" {
		s.Journal.Path = o.Journal
	}
}

// RunTask executes a single task and prints the answer.
func RunTask(ctx context.Context, task string, out io.Writer, opts Options) error {
	env, err := Setup(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	provider, err := createProvider(env.Settings)
	if err != nil {
		return err
	}
	return runTask(ctx, env, provider, task, out, opts.Verbose)
}

func runTask(ctx context.Context, env *Environment, provider llm.Provider, task string, out io.Writer, verbose bool) error {
	a, err := env.NewAgent(provider, stepPrinter(out, verbose))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Workspace: %s\n", env.Store.Root())
	fmt.Fprintf(out, "Running task with %s/%s...\n\n", provider.Name(), provider.Model())

	response := a.Run(ctx, task)
	printResponse(out, response, verbose)
	if !response.IsSuccess() {
		return fmt.Errorf("task failed: %w", response.Err)
	}
	return nil
}

// Chat starts an interactive session. Every line is a fresh task against
// the same workspace; "exit" or "quit" leaves.
func Chat(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	env, err := Setup(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	provider, err := createProvider(env.Settings)
	if err != nil {
		return err
	}
	return chat(ctx, env, provider, in, out, opts.Verbose)
}

func chat(ctx context.Context, env *Environment, provider llm.Provider, in io.Reader, out io.Writer, verbose bool) error {
	a, err := env.NewAgent(provider, stepPrinter(out, verbose))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Workspace: %s\n", env.Store.Root())
	fmt.Fprintf(out, "Chat with %s/%s. Type 'exit' to quit.\n\n", provider.Name(), provider.Model())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		response := a.Run(ctx, input)
		fmt.Fprintln(out)
		printResponse(out, response, verbose)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return scanner.Err()
}

// ListTools prints the tool registry.
func ListTools(out io.Writer, opts Options, verbose bool) error {
	env, err := Setup(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	fmt.Fprintln(out, "Available tools:")
	fmt.Fprintln(out)

	for _, meta := range env.Registry.List() {
		fmt.Fprintf(out, "  %s\n", meta.Kind)
		fmt.Fprintf(out, "    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Fprintln(out, "    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(out, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

// ListWorkspace prints the files in the workspace.
func ListWorkspace(out io.Writer, opts Options) error {
	env, err := Setup(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	entries, err := env.Store.List()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Workspace: %s\n", env.Store.Root())
	if len(entries) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return nil
	}
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Fprintf(out, "  %-40s %8d\n", name, e.Size)
	}
	return nil
}

// ShowJournal prints recent runs, or the tool calls of one run.
func ShowJournal(ctx context.Context, out io.Writer, opts Options, runID string, limit int, asJSON bool) error {
	env, err := Setup(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.Journal == nil {
		return fmt.Errorf("journal is disabled; set --journal or REASONER_JOURNAL")
	}

	if runID != "" {
		run, err := env.Journal.Run(ctx, runID)
		if err != nil {
			return err
		}
		calls, err := env.Journal.ToolCalls(ctx, runID)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, map[string]any{"run": run, "tool_calls": calls})
		}
		printRun(out, run)
		for _, c := range calls {
			exit := "-"
			if c.ExitCode != nil {
				exit = fmt.Sprintf("%d", *c.ExitCode)
			}
			fmt.Fprintf(out, "  #%-3d %-15s %-8s %-15s exit=%-4s %6dms  in=%dB out=%dB\n",
				c.Seq, c.Tool, c.Status, c.ErrorKind, exit, c.DurationMs, c.InputBytes, c.OutputBytes)
		}
		return nil
	}

	runs, err := env.Journal.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		printRun(out, run)
	}
	return nil
}

// Output helpers

const maxStepObservationLen = 400

// stepPrinter streams steps as they happen in verbose mode.
func stepPrinter(out io.Writer, verbose bool) agent.StepObserver {
	if !verbose {
		return nil
	}
	return func(step agent.Step) {
		fmt.Fprintf(out, "[%d] %s\n", step.Iteration, truncateString(strings.TrimSpace(step.Thought), maxStepObservationLen))
		if step.Action != nil {
			fmt.Fprintf(out, "    Action: %s\n", *step.Action)
		}
		if step.Observation != nil {
			obs := truncateString(*step.Observation, maxStepObservationLen)
			fmt.Fprintf(out, "    Observation: %s\n", obs)
		}
		fmt.Fprintln(out)
	}
}

func printResponse(out io.Writer, response agent.Response, verbose bool) {
	if response.IsSuccess() {
		fmt.Fprintf(out, "%s\n\n", response.Answer)
	} else {
		fmt.Fprintf(out, "Failed: %s\n\n", response.ResultText())
	}

	meta := response.Metadata
	fmt.Fprintf(out, "(%d iterations, %d tool calls, %s)\n",
		meta.Iterations, len(meta.ToolCalls), time.Duration(meta.ExecutionTimeMs)*time.Millisecond)
	if verbose {
		printTokenStats(out, meta)
	}
}

func printRun(out io.Writer, run storage.RunRecord) {
	fmt.Fprintf(out, "%s  %-7s  %s/%s  iter=%d tools=%d tokens=%d  %s",
		run.ID, run.Status, run.Provider, run.Model, run.Iterations, run.ToolCalls, run.TotalTokens,
		run.StartedAt.Format(time.DateTime))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(out, " (%s)", d.Round(time.Millisecond))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %s\n", truncateString(run.Task, 100))
	if run.Reason != "" {
		fmt.Fprintf(out, "    reason: %s\n", run.Reason)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// printTokenStats prints token usage statistics.
func printTokenStats(out io.Writer, meta agent.Metadata) {
	usage := meta.TokenUsage
	fmt.Fprintf(out, "\nToken Usage:\n")
	fmt.Fprintf(out, "  LLM calls: %d\n", meta.LLMCalls)
	fmt.Fprintf(out, "  Prompt tokens: %d\n", usage.PromptTokens)
	fmt.Fprintf(out, "  Completion tokens: %d\n", usage.CompletionTokens)
	fmt.Fprintf(out, "  Total tokens: %d\n", usage.TotalTokens)
	if meta.ParseFailures > 0 {
		fmt.Fprintf(out, "  Parse failures: %d\n", meta.ParseFailures)
	}
	fmt.Fprintf(out, "  Run ID: %s\n", meta.RunID)
}
