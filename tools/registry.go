// Package tools provides tool management and dispatch.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Argument validation performed before any tool runs
// - Dispatch never lets a tool failure escape as a Go error

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/richinex/reasoner/sandbox"
	"github.com/richinex/reasoner/workspace"
)

// DefaultMaxOutputChars bounds every observation.
const DefaultMaxOutputChars = 12000

// Options configures a Registry.
type Options struct {
	MaxOutputChars int
	Logger         *zap.Logger
}

// Registry holds the fixed tool set in registration order.
type Registry struct {
	mu             sync.RWMutex
	tools          map[Kind]Tool
	order          []Kind
	maxOutputChars int
	logger         *zap.Logger
}

// NewRegistry creates a registry with all five tools bound to store and
// runner.
func NewRegistry(store *workspace.Store, r ScriptRunner, opts Options) (*Registry, error) {
	guard := store.Guard()
	return NewRegistryWith(store, r, guard.ScriptExt(), guard.Allowed(sandbox.OpWriteData), opts)
}

// NewRegistryWith creates a registry over arbitrary Files and ScriptRunner
// implementations.
func NewRegistryWith(files Files, r ScriptRunner, scriptExt string, dataExts []string, opts Options) (*Registry, error) {
	maxChars := opts.MaxOutputChars
	if maxChars <= 0 {
		maxChars = DefaultMaxOutputChars
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := &Registry{
		tools:          make(map[Kind]Tool),
		maxOutputChars: maxChars,
		logger:         logger.Named("tools"),
	}

	tools := []Tool{
		NewWriteScriptTool(files, scriptExt),
		NewWriteFileTool(files, dataExts),
		NewRunScriptTool(r, maxChars),
		NewReadFileTool(files, maxChars),
		NewListWorkspaceTool(files),
	}
	for _, t := range tools {
		if err := registry.register(t); err != nil {
			return nil, fmt.Errorf("failed to register tools: %w", err)
		}
	}
	return registry, nil
}

// register adds a tool. Only the closed set of kinds is accepted, once each.
func (r *Registry) register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := tool.Metadata().Kind
	if _, ok := ParseKind(string(kind)); !ok {
		return fmt.Errorf("unknown tool kind '%s'", kind)
	}
	if _, exists := r.tools[kind]; exists {
		return fmt.Errorf("tool '%s' already registered", kind)
	}
	r.tools[kind] = tool
	r.order = append(r.order, kind)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	kind, ok := ParseKind(name)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[kind]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.order))
	for _, kind := range r.order {
		names = append(names, string(kind))
	}
	return names
}

// List returns metadata for all registered tools in registration order.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.order))
	for _, kind := range r.order {
		metadata = append(metadata, r.tools[kind].Metadata())
	}
	return metadata
}

// Description returns a formatted description of all tools for LLM prompts.
func (r *Registry) Description() string {
	var descriptions []string
	for _, meta := range r.List() {
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}
		if len(params) == 0 {
			params = append(params, "  (none)")
		}

		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			meta.Kind, meta.Description, strings.Join(params, "\n")))
	}

	return strings.Join(descriptions, "\n\n")
}

// Definition is a JSON-schema shaped tool definition.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definitions returns JSON-schema shaped definitions for every tool.
func (r *Registry) Definitions() []Definition {
	metas := r.List()
	defs := make([]Definition, 0, len(metas))
	for _, meta := range metas {
		properties := make(map[string]any, len(meta.Parameters))
		required := []string{}
		for _, p := range meta.Parameters {
			prop := map[string]any{"type": p.ParamType, "description": p.Description}
			if p.ParamType == "array" {
				prop["items"] = map[string]any{"type": "string"}
			}
			properties[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		defs = append(defs, Definition{
			Name:        string(meta.Kind),
			Description: meta.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return defs
}

// Dispatch validates and executes one call. Unknown tools and malformed
// arguments come back as BadArguments results; output is always bounded.
func (r *Registry) Dispatch(ctx context.Context, call Call) Result {
	tool, ok := r.Get(call.Tool)
	if !ok {
		r.logger.Debug("unknown tool", zap.String("tool", call.Tool))
		return FailureResultf(Kind(call.Tool), ErrorBadArguments,
			"unknown tool %q; available tools: %s", call.Tool, strings.Join(r.Names(), ", "))
	}
	kind := tool.Metadata().Kind

	if err := tool.Validate(call.Input); err != nil {
		r.logger.Debug("invalid tool arguments", zap.String("tool", string(kind)), zap.Error(err))
		return FailureResult(kind, ErrorBadArguments, err)
	}

	result := r.execute(ctx, tool, call.Input)
	if !result.Truncated {
		result.Output, result.Truncated = Truncate(result.Output, r.maxOutputChars)
	}

	r.logger.Debug("tool executed",
		zap.String("tool", string(kind)),
		zap.String("status", string(result.Status)),
		zap.String("error_kind", string(result.ErrorKind)))
	return result
}

// execute runs the tool, converting a panic into an Internal result.
func (r *Registry) execute(ctx context.Context, tool Tool, input json.RawMessage) (result Result) {
	kind := tool.Metadata().Kind
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", zap.String("tool", string(kind)), zap.Any("panic", p))
			result = FailureResultf(kind, ErrorInternal, "tool %s failed unexpectedly: %v", kind, p)
		}
	}()
	return tool.Execute(ctx, input)
}
