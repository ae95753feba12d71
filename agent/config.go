// Agent configuration types.
//
// Information Hiding:
// - Default values hidden
// - Bound validation hidden

package agent

import "fmt"

const (
	// DefaultMaxIterations bounds the number of model calls per run.
	DefaultMaxIterations = 15

	// DefaultMaxParseFailures bounds consecutive unparseable replies.
	DefaultMaxParseFailures = 3
)

// DefaultSystemPrompt describes the agent's job. Tool descriptions and the
// reply format are appended at run time.
const DefaultSystemPrompt = `You are a problem-solving agent working inside a sandboxed workspace directory.
Solve the task by writing scripts and data files into the workspace, running the scripts, reading their output and fixing errors until you can answer.
File names are flat: no directories, no absolute paths, no "..".
Scripts only see the workspace as their working directory.`

// Config holds agent configuration.
type Config struct {
	// SystemPrompt guides the agent's behavior.
	SystemPrompt string

	// MaxIterations is the mandatory upper bound on model calls.
	MaxIterations int

	// MaxParseFailures ends the run after this many consecutive replies
	// that could not be parsed.
	MaxParseFailures int

	// Workspace labels journal entries with the workspace root.
	Workspace string
}

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:     DefaultSystemPrompt,
		MaxIterations:    DefaultMaxIterations,
		MaxParseFailures: DefaultMaxParseFailures,
	}
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxParseFailures < 1 {
		return fmt.Errorf("max parse failures must be at least 1, got %d", c.MaxParseFailures)
	}
	return nil
}
