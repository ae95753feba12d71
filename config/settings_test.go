package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REASONER_PROVIDER", "LLM_MAX_TOKENS", "LLM_TEMPERATURE", "LLM_MAX_RETRIES", "LLM_BASE_URL",
		"AGENT_MAX_ITERATIONS", "AGENT_MAX_PARSE_FAILURES",
		"REASONER_WORKSPACE", "REASONER_SCRIPT_EXT", "REASONER_MAX_FILE_BYTES",
		"REASONER_INTERPRETER", "REASONER_TIMEOUT_SECS", "REASONER_MAX_OUTPUT_CHARS",
		"REASONER_LOG_LEVEL", "REASONER_LOG_JSON", "REASONER_JOURNAL",
		"OPENAI_MODEL", "ANTHROPIC_MODEL", "DEEPSEEK_MODEL", "GEMINI_MODEL", "GROQ_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestNewValidProvider(t *testing.T) {
	clearEnv(t)
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
	if settings.LLM.Model != "gpt-4o" {
		t.Errorf("expected default model, got %q", settings.LLM.Model)
	}
}

func TestNewWithAlias(t *testing.T) {
	clearEnv(t)
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	clearEnv(t)
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	s, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.LLM.Provider != "groq" || s.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected provider defaults: %+v", s.LLM)
	}
	if s.LLM.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", s.LLM.Temperature)
	}
	if s.Agent.MaxIterations != 15 || s.Agent.MaxParseFailures != 3 {
		t.Errorf("unexpected agent defaults: %+v", s.Agent)
	}
	if s.Runner.Timeout() != 60*time.Second || s.Runner.MaxOutputChars != 12000 {
		t.Errorf("unexpected runner defaults: %+v", s.Runner)
	}
	if s.Workspace.MaxFileBytes != 1<<20 || s.Workspace.ScriptExt != ".py" {
		t.Errorf("unexpected workspace defaults: %+v", s.Workspace)
	}
	if s.Journal.Enabled() {
		t.Error("journal should be disabled by default")
	}
}

func TestProviderFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REASONER_PROVIDER", "gpt")

	s, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.Provider != "openai" {
		t.Errorf("expected openai, got %q", s.LLM.Provider)
	}

	s, err = New("deepseek")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.LLM.Provider != "deepseek" {
		t.Errorf("explicit provider should win over env, got %q", s.LLM.Provider)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_MAX_ITERATIONS", "5")
	t.Setenv("REASONER_TIMEOUT_SECS", "2")
	t.Setenv("REASONER_WORKSPACE", "/tmp/ws")
	t.Setenv("REASONER_INTERPRETER", "python3 -u")
	t.Setenv("REASONER_JOURNAL", "memory")
	t.Setenv("REASONER_LOG_JSON", "true")
	t.Setenv("GROQ_MODEL", "llama-3.1-8b-instant")

	s, err := New("groq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Agent.MaxIterations != 5 {
		t.Errorf("expected 5 iterations, got %d", s.Agent.MaxIterations)
	}
	if s.Runner.Timeout() != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", s.Runner.Timeout())
	}
	if s.Workspace.Root != "/tmp/ws" {
		t.Errorf("expected /tmp/ws, got %q", s.Workspace.Root)
	}
	args, err := s.Runner.InterpreterArgs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[0] != "python3" || args[1] != "-u" {
		t.Errorf("unexpected interpreter args: %v", args)
	}
	if !s.Journal.Enabled() || !s.Journal.InMemory() {
		t.Errorf("expected in-memory journal, got %+v", s.Journal)
	}
	if !s.Logging.JSON {
		t.Error("expected JSON logging")
	}
	if s.LLM.Model != "llama-3.1-8b-instant" {
		t.Errorf("expected model from env, got %q", s.LLM.Model)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")

	_, err := New("openai")
	if err == nil {
		t.Error("expected error for invalid LLM_MAX_TOKENS")
	}
}

func TestValidateRejectsBadBounds(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"AGENT_MAX_ITERATIONS":      "0",
		"AGENT_MAX_PARSE_FAILURES":  "0",
		"REASONER_TIMEOUT_SECS":     "0",
		"REASONER_MAX_OUTPUT_CHARS": "10",
		"REASONER_SCRIPT_EXT":       "py",
		"REASONER_INTERPRETER":      `python3 "unterminated`,
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := New("groq"); err == nil {
				t.Errorf("expected error for %s=%q", key, val)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "reasoner.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o-mini
  temperature: 0.2
agent:
  max_iterations: 8
workspace:
  root: ./sandbox
  data_extensions: [".txt", ".csv"]
runner:
  timeout_secs: 10
journal:
  path: runs.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.LLM.Provider != "openai" || s.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unexpected llm config: %+v", s.LLM)
	}
	if s.LLM.Temperature != 0.2 {
		t.Errorf("expected 0.2, got %v", s.LLM.Temperature)
	}
	if s.Agent.MaxIterations != 8 {
		t.Errorf("expected 8, got %d", s.Agent.MaxIterations)
	}
	// untouched keys keep their defaults
	if s.Agent.MaxParseFailures != 3 {
		t.Errorf("expected default parse failures, got %d", s.Agent.MaxParseFailures)
	}
	if len(s.Workspace.DataExtensions) != 2 {
		t.Errorf("expected 2 data extensions, got %v", s.Workspace.DataExtensions)
	}
	if s.Runner.TimeoutSecs != 10 {
		t.Errorf("expected 10, got %d", s.Runner.TimeoutSecs)
	}
	if s.Journal.Path != "runs.db" || s.Journal.InMemory() {
		t.Errorf("unexpected journal config: %+v", s.Journal)
	}

	t.Setenv("AGENT_MAX_ITERATIONS", "4")
	s, err = Load(path, "anthropic")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Agent.MaxIterations != 4 {
		t.Errorf("env should override file, got %d", s.Agent.MaxIterations)
	}
	if s.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("file model should not follow a provider override, got %q", s.LLM.Model)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("agent: [not, a, map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, ""); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")

	_, err := APIKeyFor("groq")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	clearEnv(t)
	model, err := ModelFor("groq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected model %q", model)
	}
}

func TestMustNewPanics(t *testing.T) {
	clearEnv(t)
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown provider")
		}
	}()
	MustNew("unknown_provider")
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) != 5 {
		t.Errorf("expected 5 supported providers, got %v", providers)
	}
}
