// Package config provides application settings loaded from an optional YAML
// file and environment variables.
//
// Settings are created via New() or Load() which handle:
// - Default value application
// - YAML file merging (file values override defaults)
// - Environment variable parsing with validation (env overrides file)
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Settings holds all application configuration.
type Settings struct {
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Runner    RunnerConfig    `yaml:"runner"`
	Logging   LoggingConfig   `yaml:"logging"`
	Journal   JournalConfig   `yaml:"journal"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   uint32  `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
}

// AgentConfig holds agent execution configuration.
type AgentConfig struct {
	MaxIterations    int `yaml:"max_iterations"`
	MaxParseFailures int `yaml:"max_parse_failures"`
}

// WorkspaceConfig locates the sandbox directory and its file policy.
type WorkspaceConfig struct {
	Root           string   `yaml:"root"`
	ScriptExt      string   `yaml:"script_ext"`
	DataExtensions []string `yaml:"data_extensions"`
	MaxFileBytes   int64    `yaml:"max_file_bytes"`
}

// RunnerConfig bounds script execution.
type RunnerConfig struct {
	// Interpreter is a shell-quoted command line, e.g. "python3 -u".
	// Empty selects the platform default.
	Interpreter    string `yaml:"interpreter"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxOutputChars int    `yaml:"max_output_chars"`
}

// Timeout returns the script timeout as a duration.
func (r RunnerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// InterpreterArgs splits Interpreter into command and arguments.
func (r RunnerConfig) InterpreterArgs() ([]string, error) {
	if strings.TrimSpace(r.Interpreter) == "" {
		return nil, nil
	}
	args, err := shlex.Split(r.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("invalid interpreter %q: %w", r.Interpreter, err)
	}
	return args, nil
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// JournalConfig locates the run journal. An empty path disables it and
// "memory" keeps it in process.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs should be journaled.
func (j JournalConfig) Enabled() bool {
	return j.Path != ""
}

// InMemory reports whether the journal lives only in process.
func (j JournalConfig) InMemory() bool {
	return j.Path == JournalMemory
}

// JournalMemory selects an in-process journal.
const JournalMemory = "memory"

// DefaultProvider is used when neither the caller, the file nor
// REASONER_PROVIDER names one.
const DefaultProvider = "groq"

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
	"groq":      {"GROQ_MODEL", "llama-3.3-70b-versatile", "GROQ_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// Defaults returns settings with every default applied.
func Defaults() Settings {
	return Settings{
		LLM: LLMConfig{
			Provider:    DefaultProvider,
			MaxTokens:   4096,
			Temperature: 0,
			MaxRetries:  2,
		},
		Agent: AgentConfig{
			MaxIterations:    15,
			MaxParseFailures: 3,
		},
		Workspace: WorkspaceConfig{
			Root:           "workspace",
			ScriptExt:      ".py",
			DataExtensions: []string{".txt", ".md", ".json", ".csv", ".log"},
			MaxFileBytes:   1024 * 1024,
		},
		Runner: RunnerConfig{
			TimeoutSecs:    60,
			MaxOutputChars: 12000,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// New creates settings for the specified provider, loading values from environment variables.
// An empty provider falls back to REASONER_PROVIDER, then DefaultProvider.
func New(provider string) (Settings, error) {
	return Load("", provider)
}

// Load reads the YAML file at path (if non-empty), applies environment
// overrides and resolves the provider. Returns an error if the provider is
// unknown or any value is invalid.
func Load(path, provider string) (Settings, error) {
	s := Defaults()

	if path != "" {
		if err := s.mergeFile(path); err != nil {
			return Settings{}, err
		}
	}

	fileProvider := normalizeProvider(s.LLM.Provider)

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}

	if provider != "" {
		s.LLM.Provider = provider
	}
	s.LLM.Provider = normalizeProvider(s.LLM.Provider)
	if s.LLM.Provider != fileProvider {
		// a model named in the file belongs to the file's provider
		s.LLM.Model = ""
	}

	info, err := getProviderInfo(s.LLM.Provider)
	if err != nil {
		return Settings{}, err
	}

	// Get model from environment, then file, then default
	if model := os.Getenv(info.modelEnv); model != "" {
		s.LLM.Model = model
	}
	if s.LLM.Model == "" {
		s.LLM.Model = info.defaultModel
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Validate checks that bounds are usable.
func (s Settings) Validate() error {
	switch {
	case s.Agent.MaxIterations < 1:
		return fmt.Errorf("max iterations must be at least 1, got %d", s.Agent.MaxIterations)
	case s.Agent.MaxParseFailures < 1:
		return fmt.Errorf("max parse failures must be at least 1, got %d", s.Agent.MaxParseFailures)
	case s.Runner.TimeoutSecs < 1:
		return fmt.Errorf("script timeout must be at least 1 second, got %d", s.Runner.TimeoutSecs)
	case s.Runner.MaxOutputChars < 100:
		return fmt.Errorf("max output chars must be at least 100, got %d", s.Runner.MaxOutputChars)
	case s.Workspace.Root == "":
		return fmt.Errorf("workspace root cannot be empty")
	case !strings.HasPrefix(s.Workspace.ScriptExt, "."):
		return fmt.Errorf("script extension must start with '.', got %q", s.Workspace.ScriptExt)
	case s.Workspace.MaxFileBytes < 1:
		return fmt.Errorf("max file bytes must be positive, got %d", s.Workspace.MaxFileBytes)
	case s.LLM.MaxRetries < 0:
		return fmt.Errorf("max retries cannot be negative, got %d", s.LLM.MaxRetries)
	}
	if _, err := s.Runner.InterpreterArgs(); err != nil {
		return err
	}
	return nil
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv() error {
	var err error

	if v := os.Getenv("REASONER_PROVIDER"); v != "" {
		s.LLM.Provider = v
	}
	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.Temperature, err = getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature); err != nil {
		return err
	}
	if s.LLM.MaxRetries, err = getEnvInt("LLM_MAX_RETRIES", s.LLM.MaxRetries); err != nil {
		return err
	}
	s.LLM.BaseURL = getEnvString("LLM_BASE_URL", s.LLM.BaseURL)

	if s.Agent.MaxIterations, err = getEnvInt("AGENT_MAX_ITERATIONS", s.Agent.MaxIterations); err != nil {
		return err
	}
	if s.Agent.MaxParseFailures, err = getEnvInt("AGENT_MAX_PARSE_FAILURES", s.Agent.MaxParseFailures); err != nil {
		return err
	}

	s.Workspace.Root = getEnvString("REASONER_WORKSPACE", s.Workspace.Root)
	s.Workspace.ScriptExt = getEnvString("REASONER_SCRIPT_EXT", s.Workspace.ScriptExt)
	if s.Workspace.MaxFileBytes, err = getEnvInt64("REASONER_MAX_FILE_BYTES", s.Workspace.MaxFileBytes); err != nil {
		return err
	}

	s.Runner.Interpreter = getEnvString("REASONER_INTERPRETER", s.Runner.Interpreter)
	if s.Runner.TimeoutSecs, err = getEnvInt("REASONER_TIMEOUT_SECS", s.Runner.TimeoutSecs); err != nil {
		return err
	}
	if s.Runner.MaxOutputChars, err = getEnvInt("REASONER_MAX_OUTPUT_CHARS", s.Runner.MaxOutputChars); err != nil {
		return err
	}

	s.Logging.Level = getEnvString("REASONER_LOG_LEVEL", s.Logging.Level)
	if s.Logging.JSON, err = getEnvBool("REASONER_LOG_JSON", s.Logging.JSON); err != nil {
		return err
	}

	s.Journal.Path = getEnvString("REASONER_JOURNAL", s.Journal.Path)
	return nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
