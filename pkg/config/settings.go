package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session defaults for the editor-side settings.
const (
	DefaultCLITimeoutSeconds   = 60
	DefaultLLMTimeoutSeconds   = 180
	DefaultLLMMaxContextChars  = 12000
	DefaultSlackTokenEnv       = "SLACK_TOKEN"
	DefaultLLMAPIKeyEnv        = "OPENAI_API_KEY"
	defaultSettingsFileName    = "margin-settings.yaml"
	defaultRootDirName         = "margin"
	defaultRootDirNameDesktop  = "Margin"
)

// Settings are the editor-session settings. They live outside the margin
// root, are owned by the host and are never written by the engine.
//
// Numeric fields use zero for "not set"; accessors apply defaults and floors.
type Settings struct {
	Root              string   `yaml:"margin_root" json:"margin_root"`
	CLIPath           string   `yaml:"margin_cli_path" json:"margin_cli_path"`
	CLITimeoutSeconds int      `yaml:"margin_cli_timeout_seconds" json:"margin_cli_timeout_seconds"`
	SlackTokenEnv     string   `yaml:"margin_slack_token_env" json:"margin_slack_token_env"`
	LLMClientPath     string   `yaml:"margin_llm_client_path" json:"margin_llm_client_path"`
	LLMClientArgs     []string `yaml:"margin_llm_client_args" json:"margin_llm_client_args"`
	LLMTimeoutSeconds int      `yaml:"margin_llm_timeout_seconds" json:"margin_llm_timeout_seconds"`

	LLMMaxContextChars  int    `yaml:"margin_llm_max_context_chars" json:"margin_llm_max_context_chars"`
	LLMMaxContextTokens int    `yaml:"margin_llm_max_context_tokens" json:"margin_llm_max_context_tokens"` // 0 disables token trimming
	LLMModel            string `yaml:"margin_llm_model" json:"margin_llm_model"`
	LLMBaseURL          string `yaml:"margin_llm_base_url" json:"margin_llm_base_url"`
	LLMAPIKeyEnv        string `yaml:"margin_llm_api_key_env" json:"margin_llm_api_key_env"`

	// AutoReplaceScratchTabWithFile overrides the config.json value for this
	// session when set.
	AutoReplaceScratchTabWithFile *bool `yaml:"margin_auto_replace_scratch_tab_with_file" json:"margin_auto_replace_scratch_tab_with_file"`
}

// DefaultSettingsPath returns the conventional settings file location under
// the user's config directory.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, defaultRootDirNameDesktop, defaultSettingsFileName), nil
}

// LoadSettings reads settings from a YAML file. A missing file yields zero
// settings, which resolve to defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	return settings, nil
}

// ResolveRoot returns the absolute margin root: the configured value with "~"
// expanded, or DefaultRoot when unset.
func (s *Settings) ResolveRoot() (string, error) {
	root := strings.TrimSpace(s.Root)
	if root == "" {
		def, err := DefaultRoot()
		if err != nil {
			return "", err
		}
		root = def
	}

	expanded, err := expandHome(root)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve margin root: %w", err)
	}
	return abs, nil
}

// CLITimeout returns the timeout for margin CLI calls.
func (s *Settings) CLITimeout() time.Duration {
	return secondsOr(s.CLITimeoutSeconds, DefaultCLITimeoutSeconds)
}

// LLMTimeout returns the timeout for LLM client calls.
func (s *Settings) LLMTimeout() time.Duration {
	return secondsOr(s.LLMTimeoutSeconds, DefaultLLMTimeoutSeconds)
}

// MaxContextChars returns the per-field character budget for LLM context.
func (s *Settings) MaxContextChars() int {
	if s.LLMMaxContextChars == 0 {
		return DefaultLLMMaxContextChars
	}
	return SafeInt(s.LLMMaxContextChars, DefaultLLMMaxContextChars, 1)
}

// SlackToken returns the name of the environment variable the CLI reads the
// Slack token from.
func (s *Settings) SlackToken() string {
	if s.SlackTokenEnv == "" {
		return DefaultSlackTokenEnv
	}
	return s.SlackTokenEnv
}

// APIKeyEnv returns the environment variable holding the LLM API key.
func (s *Settings) APIKeyEnv() string {
	if s.LLMAPIKeyEnv == "" {
		return DefaultLLMAPIKeyEnv
	}
	return s.LLMAPIKeyEnv
}

func secondsOr(value, def int) time.Duration {
	if value == 0 {
		return time.Duration(def) * time.Second
	}
	return time.Duration(SafeInt(value, def, 1)) * time.Second
}

// DefaultRoot returns the platform-conventional margin root.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, defaultRootDirNameDesktop), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", defaultRootDirNameDesktop), nil
	default:
		return filepath.Join(home, ".local", "share", defaultRootDirName), nil
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
