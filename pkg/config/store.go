package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/margin/pkg/logging"
)

// ErrConfigMalformed describes a config.json that could not be used.
var ErrConfigMalformed = errors.New("malformed config")

// Store loads the configuration overlay from <root>/config.json.
//
// Load never fails: a missing, unreadable or malformed file yields the
// defaults and a log line. The file is re-read on every call so edits made
// while the editor is running are picked up by the next persistence decision.
type Store struct {
	root   string
	logger logging.Sink

	mu                  sync.RWMutex
	autoReplaceOverride *bool
}

// NewStore creates a store for the given margin root. A nil logger discards
// diagnostics.
func NewStore(root string, logger logging.Sink) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{root: root, logger: logger}
}

// Path returns the location of the overlay file.
func (s *Store) Path() string {
	return filepath.Join(s.root, FileName)
}

// SetAutoReplaceOverride sets the session-level value that takes precedence
// over both the file and the defaults for auto_replace_scratch_tab_with_file.
// Passing nil clears it.
func (s *Store) SetAutoReplaceOverride(value *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil {
		s.autoReplaceOverride = nil
		return
	}
	v := *value
	s.autoReplaceOverride = &v
}

// Load returns the defaults shallow-merged with the overlay file.
func (s *Store) Load() Config {
	cfg := Defaults()

	if data, err := s.readOverlay(); err != nil {
		s.logger.Warnf("Ignoring %s: %v", s.Path(), err)
	} else if data != nil {
		cfg.SetData(data)
		if extra := cfg.ExtraKeys(); len(extra) > 0 {
			s.logger.Debugf("Unknown keys in %s: %v", s.Path(), extra)
		}
	}

	s.mu.RLock()
	override := s.autoReplaceOverride
	s.mu.RUnlock()
	if override != nil {
		cfg.AutoReplaceScratchTabWithFile = *override
	}

	return cfg
}

// readOverlay returns nil, nil when the file does not exist.
func (s *Store) readOverlay() (map[string]any, error) {
	path := s.Path()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrConfigMalformed, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}

	data, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %s", ErrConfigMalformed, jsonKind(parsed))
	}
	return data, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
