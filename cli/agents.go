// Agent factory and environment setup.
//
// Information Hiding:
// - Workspace, runner, registry and journal wiring hidden
// - Provider construction from settings hidden
// - Flag-over-config precedence hidden

package cli

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/richinex/reasoner/agent"
	"github.com/richinex/reasoner/config"
	"github.com/richinex/reasoner/llm"
	"github.com/richinex/reasoner/logging"
	"github.com/richinex/reasoner/runner"
	"github.com/richinex/reasoner/sandbox"
	"github.com/richinex/reasoner/storage"
	"github.com/richinex/reasoner/tools"
	"github.com/richinex/reasoner/workspace"
)

// Environment holds every component a command needs. One environment
// serves one workspace.
type Environment struct {
	Settings config.Settings
	Logger   *zap.Logger
	Store    *workspace.Store
	Runner   *runner.Runner
	Registry *tools.Registry
	Journal  storage.Journal // nil when journaling is disabled
}

// Setup loads settings, applies flag overrides and builds the environment.
func Setup(opts Options) (*Environment, error) {
	settings, err := config.Load(opts.ConfigPath, opts.Provider)
	if err != nil {
		return nil, err
	}
	opts.apply(&settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return NewEnvironment(settings)
}

// NewEnvironment builds the workspace, runner, tool registry and journal
// described by settings.
func NewEnvironment(settings config.Settings) (*Environment, error) {
	logger, err := logging.New(settings.Logging.Level, settings.Logging.JSON)
	if err != nil {
		return nil, err
	}

	store, err := workspace.Open(settings.Workspace.Root, workspace.Options{
		Policy: sandbox.Policy{
			ScriptExt:      settings.Workspace.ScriptExt,
			DataExtensions: settings.Workspace.DataExtensions,
		},
		MaxFileBytes: settings.Workspace.MaxFileBytes,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	interpreter, err := settings.Runner.InterpreterArgs()
	if err != nil {
		return nil, err
	}
	r := runner.New(store, runner.Options{
		Interpreter:    interpreter,
		Timeout:        settings.Runner.Timeout(),
		MaxOutputChars: settings.Runner.MaxOutputChars,
		Logger:         logger,
	})

	registry, err := tools.NewRegistry(store, r, tools.Options{
		MaxOutputChars: settings.Runner.MaxOutputChars,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	journal, err := openJournal(settings.Journal)
	if err != nil {
		return nil, err
	}

	return &Environment{
		Settings: settings,
		Logger:   logger,
		Store:    store,
		Runner:   r,
		Registry: registry,
		Journal:  journal,
	}, nil
}

func openJournal(cfg config.JournalConfig) (storage.Journal, error) {
	switch {
	case !cfg.Enabled():
		return nil, nil
	case cfg.InMemory():
		return storage.NewMemoryJournal(), nil
	default:
		j, err := storage.OpenSqlite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		return j, nil
	}
}

// Close releases the journal and flushes the logger.
func (e *Environment) Close() error {
	var errs []error
	if e.Journal != nil {
		errs = append(errs, e.Journal.Close())
	}
	_ = e.Logger.Sync() // stderr sync fails on some terminals
	return errors.Join(errs...)
}

// NewAgent creates an agent bound to this environment's registry and
// journal.
func (e *Environment) NewAgent(provider llm.Provider, onStep agent.StepObserver) (*agent.Agent, error) {
	client := llm.NewClient(provider).WithRetries(e.Settings.LLM.MaxRetries)

	b := agent.NewBuilder(client, e.Registry).
		MaxIterations(e.Settings.Agent.MaxIterations).
		MaxParseFailures(e.Settings.Agent.MaxParseFailures).
		Workspace(e.Store.Root()).
		Logger(e.Logger)
	if e.Journal != nil {
		b = b.Journal(e.Journal)
	}
	if onStep != nil {
		b = b.OnStep(onStep)
	}
	return b.Build()
}

// createProvider builds the model provider named in settings.
func createProvider(settings config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		BaseURL(settings.LLM.BaseURL).
		APIKey(apiKey)
}
