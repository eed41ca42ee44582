// Package config holds the typed margin configuration: the on-disk
// root/config.json overlay read by Store and the editor-session Settings.
package config

import (
	"math"
	"sort"
	"time"
)

const (
	// FileName is the optional JSON overlay inside the margin root.
	FileName = "config.json"

	// Default values for the on-disk configuration
	defaultAutosaveIntervalSeconds = 5
	defaultSnapshotIntervalMinutes = 10
	defaultPythonBin               = "python"
	defaultShell                   = "bash"
)

// Keys of the on-disk configuration object.
const (
	KeyAutosaveIntervalSeconds       = "autosave_interval_seconds"
	KeySnapshotIntervalMinutes       = "snapshot_interval_minutes"
	KeySearchPaths                   = "search_paths"
	KeyRemindEnabled                 = "remind_enabled"
	KeySlackEnabled                  = "slack_enabled"
	KeyMCPEnabled                    = "mcp_enabled"
	KeyMCPReadonly                   = "mcp_readonly"
	KeyForceMarkdownExtension        = "force_markdown_extension"
	KeyAutoReplaceScratchTabWithFile = "auto_replace_scratch_tab_with_file"
	KeySyntaxExtensionMap            = "syntax_extension_map"
	KeyRunBlock                      = "runblock"
)

// RunBlockConfig configures the interpreters the CLI uses for run-block.
type RunBlockConfig struct {
	PythonBin string `json:"python_bin"`
	Shell     string `json:"shell"`
}

// Config is the fully populated margin configuration. Values are read fresh
// for every persistence decision and never mutated afterwards.
type Config struct {
	AutosaveIntervalSeconds       int
	SnapshotIntervalMinutes       int
	SearchPaths                   []string
	RemindEnabled                 bool
	SlackEnabled                  bool
	MCPEnabled                    bool
	MCPReadonly                   bool
	ForceMarkdownExtension        bool
	AutoReplaceScratchTabWithFile bool
	SyntaxExtensionMap            map[string]string
	RunBlock                      RunBlockConfig

	// Extra keeps unknown top-level keys.
	Extra map[string]any
}

// Defaults returns the hardcoded configuration used when no overlay exists.
func Defaults() Config {
	return Config{
		AutosaveIntervalSeconds:       defaultAutosaveIntervalSeconds,
		SnapshotIntervalMinutes:       defaultSnapshotIntervalMinutes,
		SearchPaths:                   []string{"scratch", "inbox", "slack"},
		RemindEnabled:                 false,
		SlackEnabled:                  false,
		MCPEnabled:                    false,
		MCPReadonly:                   true,
		ForceMarkdownExtension:        true,
		AutoReplaceScratchTabWithFile: true,
		SyntaxExtensionMap: map[string]string{
			"Plain Text": "md",
			"Markdown":   "md",
			"Python":     "py",
			"JSON":       "json",
			"Shell":      "sh",
		},
		RunBlock: RunBlockConfig{PythonBin: defaultPythonBin, Shell: defaultShell},
	}
}

// AutosaveInterval returns the autosave interval, never below one second.
func (c Config) AutosaveInterval() time.Duration {
	return scaled(SafeInt(c.AutosaveIntervalSeconds, defaultAutosaveIntervalSeconds, 1), time.Second)
}

// SnapshotInterval returns the snapshot interval, never below one minute.
func (c Config) SnapshotInterval() time.Duration {
	return scaled(SafeInt(c.SnapshotIntervalMinutes, defaultSnapshotIntervalMinutes, 1), time.Minute)
}

// scaled multiplies n by unit, saturating at the largest Duration instead of
// wrapping negative.
func scaled(n int, unit time.Duration) time.Duration {
	if int64(n) > math.MaxInt64/int64(unit) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(n) * unit
}

// SetData merges top-level keys from data over c. Nested objects replace the
// current value wholesale. Loosely typed values are coerced; a value that
// cannot be coerced leaves the field unchanged.
func (c *Config) SetData(data map[string]any) {
	for key, value := range data {
		switch key {
		case KeyAutosaveIntervalSeconds:
			c.AutosaveIntervalSeconds = SafeInt(value, defaultAutosaveIntervalSeconds, 1)
		case KeySnapshotIntervalMinutes:
			c.SnapshotIntervalMinutes = SafeInt(value, defaultSnapshotIntervalMinutes, 1)
		case KeySearchPaths:
			if paths, ok := stringSlice(value); ok {
				c.SearchPaths = paths
			}
		case KeyRemindEnabled:
			c.RemindEnabled = truthy(value)
		case KeySlackEnabled:
			c.SlackEnabled = truthy(value)
		case KeyMCPEnabled:
			c.MCPEnabled = truthy(value)
		case KeyMCPReadonly:
			c.MCPReadonly = truthy(value)
		case KeyForceMarkdownExtension:
			c.ForceMarkdownExtension = truthy(value)
		case KeyAutoReplaceScratchTabWithFile:
			c.AutoReplaceScratchTabWithFile = truthy(value)
		case KeySyntaxExtensionMap:
			if m, ok := value.(map[string]any); ok {
				syntaxMap := make(map[string]string, len(m))
				for name, ext := range m {
					if s, ok := ext.(string); ok {
						syntaxMap[name] = s
					}
				}
				c.SyntaxExtensionMap = syntaxMap
			}
		case KeyRunBlock:
			if m, ok := value.(map[string]any); ok {
				rb := RunBlockConfig{}
				rb.PythonBin, _ = m["python_bin"].(string)
				rb.Shell, _ = m["shell"].(string)
				c.RunBlock = rb
			}
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[key] = value
		}
	}
}

// ExtraKeys returns the unknown top-level keys in sorted order.
func (c Config) ExtraKeys() []string {
	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringSlice(value any) ([]string, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// truthy mirrors how loosely typed JSON flags are read: null, false, zero,
// empty strings and empty collections are false.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
