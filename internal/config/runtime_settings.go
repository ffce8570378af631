package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

const DefaultRuntimeSettingsFile = "./data/settings.json"

// RuntimeSettings are the knobs adjustable through the API without a
// restart. Empty LLMAPIKey is valid: local endpoints need no token.
type RuntimeSettings struct {
	LLMAPIURL       string `json:"llm_api_url"`
	LLMAPIKey       string `json:"llm_api_key"`
	LLMModel        string `json:"llm_model"`
	MaxCharCount    int    `json:"max_char_count"`
	ChunkTargetSize int    `json:"chunk_target_size"`
	MaintenanceCron string `json:"maintenance_cron"`
}

func RuntimeSettingsFilePath() string {
	return getEnvString("SETTINGS_FILE", DefaultRuntimeSettingsFile)
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.LLMAPIURL) == "" {
		return fmt.Errorf("llm_api_url is required")
	}
	if strings.TrimSpace(s.LLMModel) == "" {
		return fmt.Errorf("llm_model is required")
	}
	if s.MaxCharCount <= 0 {
		return fmt.Errorf("max_char_count must be positive")
	}
	if s.ChunkTargetSize <= 0 {
		return fmt.Errorf("chunk_target_size must be positive")
	}
	if s.ChunkTargetSize >= s.MaxCharCount {
		return fmt.Errorf("chunk_target_size must be below max_char_count")
	}
	if strings.TrimSpace(s.MaintenanceCron) == "" {
		return fmt.Errorf("maintenance_cron is required")
	}
	if _, err := cron.ParseStandard(s.MaintenanceCron); err != nil {
		return fmt.Errorf("invalid maintenance_cron: %w", err)
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		LLMAPIURL:       c.LLM.APIURL,
		LLMAPIKey:       c.LLM.APIKey,
		LLMModel:        c.LLM.Model,
		MaxCharCount:    c.Translate.MaxCharCount,
		ChunkTargetSize: c.Translate.ChunkTargetSize,
		MaintenanceCron: c.Translate.MaintenanceCron,
	}
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.LLMAPIURL) != "" {
			c.LLM.APIURL = settings.LLMAPIURL
		}
		if strings.TrimSpace(settings.LLMAPIKey) != "" {
			c.LLM.APIKey = settings.LLMAPIKey
		}
		if strings.TrimSpace(settings.LLMModel) != "" {
			c.LLM.Model = settings.LLMModel
		}
		if settings.MaxCharCount > 0 {
			c.Translate.MaxCharCount = settings.MaxCharCount
		}
		if settings.ChunkTargetSize > 0 {
			c.Translate.ChunkTargetSize = settings.ChunkTargetSize
		}
		if strings.TrimSpace(settings.MaintenanceCron) != "" {
			c.Translate.MaintenanceCron = settings.MaintenanceCron
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}
