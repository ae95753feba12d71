// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/richinex/reasoner/llm"
	"github.com/richinex/reasoner/storage"
)

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder(client, registry).MaxIterations(10).Build()
type Builder struct {
	config  Config
	client  *llm.Client
	toolbox Toolbox
	journal storage.Journal
	logger  *zap.Logger
	onStep  StepObserver
}

// NewBuilder creates a builder with default bounds.
func NewBuilder(client *llm.Client, toolbox Toolbox) *Builder {
	return &Builder{
		config:  DefaultConfig(),
		client:  client,
		toolbox: toolbox,
	}
}

// SystemPrompt replaces the base system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.config.SystemPrompt = prompt
	return b
}

// MaxIterations sets the iteration bound.
func (b *Builder) MaxIterations(n int) *Builder {
	b.config.MaxIterations = n
	return b
}

// MaxParseFailures sets the consecutive parse failure bound.
func (b *Builder) MaxParseFailures(n int) *Builder {
	b.config.MaxParseFailures = n
	return b
}

// Workspace labels journal entries.
func (b *Builder) Workspace(root string) *Builder {
	b.config.Workspace = root
	return b
}

// Journal records runs and tool calls.
func (b *Builder) Journal(j storage.Journal) *Builder {
	b.journal = j
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// OnStep registers a callback invoked after each iteration.
func (b *Builder) OnStep(fn StepObserver) *Builder {
	b.onStep = fn
	return b
}

// Build validates the configuration and creates the agent.
func (b *Builder) Build() (*Agent, error) {
	if b.client == nil {
		return nil, fmt.Errorf("agent requires a model client")
	}
	if b.toolbox == nil {
		return nil, fmt.Errorf("agent requires a tool registry")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	a := New(b.config, b.client, b.toolbox).
		WithJournal(b.journal).
		WithLogger(b.logger)
	if b.onStep != nil {
		a.OnStep(b.onStep)
	}
	return a, nil
}
