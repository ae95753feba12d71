// Workspace Tools - write, read, list and run operations.
//
// Information Hiding:
// - Workspace access and path validation delegated to workspace.Store
// - Process execution delegated to runner.Runner
// - Error classification hidden

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/reasoner/runner"
	"github.com/richinex/reasoner/sandbox"
	"github.com/richinex/reasoner/workspace"
)

// Files is the workspace surface the tools need. *workspace.Store
// satisfies it.
type Files interface {
	Write(name, content string, kind workspace.Kind) (workspace.WriteResult, error)
	Read(name string) (string, error)
	List() ([]workspace.Entry, error)
}

// ScriptRunner runs workspace scripts. *runner.Runner satisfies it.
type ScriptRunner interface {
	Run(ctx context.Context, name string, args []string) (runner.Result, error)
}

// classify maps workspace and sandbox errors to error kinds.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, sandbox.ErrPathRejected):
		return ErrorPathRejected
	case errors.Is(err, ErrBadArguments), errors.Is(err, workspace.ErrTooLarge):
		return ErrorBadArguments
	default:
		return ErrorInternal
	}
}

// WriteTool creates or overwrites a workspace file. One instance serves
// scripts and another serves data files.
type WriteTool struct {
	kind     Kind
	fileKind workspace.Kind
	files    Files
	allowed  []string
}

// NewWriteScriptTool creates the write_script tool.
func NewWriteScriptTool(files Files, scriptExt string) *WriteTool {
	return &WriteTool{kind: KindWriteScript, fileKind: workspace.KindScript, files: files, allowed: []string{scriptExt}}
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(files Files, dataExts []string) *WriteTool {
	return &WriteTool{kind: KindWriteFile, fileKind: workspace.KindData, files: files, allowed: dataExts}
}

// Metadata returns the tool metadata.
func (t *WriteTool) Metadata() ToolMetadata {
	exts := strings.Join(t.allowed, ", ")
	desc := fmt.Sprintf("Create or overwrite a script in the workspace (extension: %s). Overwrites without asking.", exts)
	what := "Source code of the script"
	if t.kind == KindWriteFile {
		desc = fmt.Sprintf("Create or overwrite a text file in the workspace (extensions: %s). Overwrites without asking.", exts)
		what = "Full text content of the file"
	}
	return ToolMetadata{
		Kind:        t.kind,
		Description: desc,
		Parameters: []ToolParameter{
			{Name: "name", ParamType: "string", Description: "Plain file name, no directories", Required: true},
			{Name: "content", ParamType: "string", Description: what, Required: true},
		},
	}
}

// Validate validates the arguments.
func (t *WriteTool) Validate(args json.RawMessage) error {
	_, err := parseWriteArgs(args)
	return err
}

// Execute writes the file.
func (t *WriteTool) Execute(ctx context.Context, args json.RawMessage) Result {
	a, err := parseWriteArgs(args)
	if err != nil {
		return FailureResult(t.kind, ErrorBadArguments, err)
	}

	res, err := t.files.Write(a.Name, a.Content, t.fileKind)
	if err != nil {
		return FailureResult(t.kind, classify(err), err)
	}
	return SuccessResult(t.kind, fmt.Sprintf("Wrote %s (%d bytes)", res.Name, res.Bytes))
}

// ReadFileTool returns the content of a workspace file.
type ReadFileTool struct {
	files          Files
	maxOutputChars int
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(files Files, maxOutputChars int) *ReadFileTool {
	return &ReadFileTool{files: files, maxOutputChars: maxOutputChars}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Kind:        KindReadFile,
		Description: "Read a text file or script from the workspace",
		Parameters: []ToolParameter{
			{Name: "name", ParamType: "string", Description: "Plain file name, no directories", Required: true},
		},
	}
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	_, err := parseReadArgs(args)
	return err
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) Result {
	a, err := parseReadArgs(args)
	if err != nil {
		return FailureResult(KindReadFile, ErrorBadArguments, err)
	}

	content, err := t.files.Read(a.Name)
	if err != nil {
		return FailureResult(KindReadFile, classify(err), err)
	}

	out, truncated := Truncate(content, t.maxOutputChars)
	result := SuccessResult(KindReadFile, out)
	result.Truncated = truncated
	return result
}

// ListWorkspaceTool lists the workspace as JSON.
type ListWorkspaceTool struct {
	files Files
}

// NewListWorkspaceTool creates the list_workspace tool.
func NewListWorkspaceTool(files Files) *ListWorkspaceTool {
	return &ListWorkspaceTool{files: files}
}

// Metadata returns the tool metadata.
func (t *ListWorkspaceTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Kind:        KindListWorkspace,
		Description: "List files in the workspace with their sizes in bytes",
	}
}

// Validate accepts any input; the tool takes no arguments.
func (t *ListWorkspaceTool) Validate(args json.RawMessage) error {
	return nil
}

type listing struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Execute lists the workspace. Directories carry a trailing slash.
func (t *ListWorkspaceTool) Execute(ctx context.Context, args json.RawMessage) Result {
	entries, err := t.files.List()
	if err != nil {
		return FailureResult(KindListWorkspace, ErrorInternal, err)
	}

	items := make([]listing, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		items = append(items, listing{Name: name, Size: e.Size})
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return FailureResult(KindListWorkspace, ErrorInternal, err)
	}
	return SuccessResult(KindListWorkspace, string(data))
}

// RunScriptTool executes a workspace script.
type RunScriptTool struct {
	runner         ScriptRunner
	maxOutputChars int
}

// NewRunScriptTool creates the run_script tool.
func NewRunScriptTool(r ScriptRunner, maxOutputChars int) *RunScriptTool {
	return &RunScriptTool{runner: r, maxOutputChars: maxOutputChars}
}

// Metadata returns the tool metadata.
func (t *RunScriptTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Kind:        KindRunScript,
		Description: "Run a script that already exists in the workspace and return its stdout, stderr and exit code",
		Parameters: []ToolParameter{
			{Name: "name", ParamType: "string", Description: "Script file name, e.g. \"analyze.py\"", Required: true},
			{Name: "args", ParamType: "array", Description: "Command-line arguments, as a list or one quoted string", Required: false},
		},
	}
}

// Validate validates the arguments.
func (t *RunScriptTool) Validate(args json.RawMessage) error {
	_, err := parseRunArgs(args)
	return err
}

// Execute runs the script and formats its output.
func (t *RunScriptTool) Execute(ctx context.Context, args json.RawMessage) Result {
	a, err := parseRunArgs(args)
	if err != nil {
		return FailureResult(KindRunScript, ErrorBadArguments, err)
	}

	res, err := t.runner.Run(ctx, a.Name, a.Args)
	if err != nil {
		kind := classify(err)
		if kind == ErrorInternal && ctx.Err() == nil {
			kind = ErrorExecutionError
		}
		return FailureResult(KindRunScript, kind, err)
	}

	out, truncated := Truncate(formatRun(res), t.maxOutputChars)
	result := Result{
		Tool:      KindRunScript,
		Output:    out,
		Truncated: truncated || res.StdoutTruncated || res.StderrTruncated,
	}

	switch res.Status {
	case runner.StatusOK:
		result.Status = StatusOK
		result.ExitCode = intPtr(res.ExitCode)
	case runner.StatusTimeout:
		result.Status = StatusTimeout
		result.ErrorKind = ErrorTimeout
	default:
		result.Status = StatusError
		result.ErrorKind = ErrorExecutionError
		result.ExitCode = intPtr(res.ExitCode)
	}
	return result
}

func formatRun(res runner.Result) string {
	var b strings.Builder
	if res.Status == runner.StatusTimeout {
		fmt.Fprintf(&b, "script %s was killed after exceeding the time limit\n", res.Script)
	}
	b.WriteString("[STDOUT]\n")
	b.WriteString(res.Stdout)
	if !strings.HasSuffix(res.Stdout, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("[STDERR]\n")
	b.WriteString(res.Stderr)
	if !strings.HasSuffix(res.Stderr, "\n") {
		b.WriteString("\n")
	}
	if res.Status != runner.StatusTimeout {
		fmt.Fprintf(&b, "[EXIT_CODE]\n%d", res.ExitCode)
	} else {
		b.WriteString("[EXIT_CODE]\nnone (timed out)")
	}
	return b.String()
}

func intPtr(v int) *int {
	return &v
}
