// Package config loads service configuration from defaults and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type LLMConfig struct {
	BaseURL      string
	APIKey       string
	ChatModel    string
	ExtractModel string
}

type StorageConfig struct {
	Backend string // "sqlite" or "memory"
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			ChatModel:    "gpt-4o-mini",
			ExtractModel: "gpt-4o-mini",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "dtwchat-data"
		}
	}
	return filepath.Join(dir, "dtwchat")
}

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "DTW_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "DTW_SERVER_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "DTW_LLM_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
	},
	{
		env: "DTW_LLM_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
	},
	{
		env: "DTW_LLM_CHAT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
	},
	{
		env: "DTW_LLM_EXTRACT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.ExtractModel = v.(string) },
	},
	{
		env: "DTW_STORAGE_BACKEND", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
	},
	{
		env: "DTW_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "DTW_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// Load builds the configuration from defaults plus DTW_* environment
// overrides. The completion API key is required; when DTW_LLM_API_KEY is
// unset it falls back to OPENAI_API_KEY.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: completion API key. Set DTW_LLM_API_KEY or OPENAI_API_KEY")
	}

	switch cfg.Storage.Backend {
	case "sqlite", "memory":
	default:
		return Config{}, fmt.Errorf("invalid storage backend %q: must be sqlite or memory", cfg.Storage.Backend)
	}

	return cfg, nil
}
