// Package config resolves pipeline configuration from a YAML file,
// environment variables, and CLI flags, tracking where each value came
// from. Precedence: CLI flag > environment > config file > default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ValueSource records where a resolved value came from.
type ValueSource string

const (
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Resolved is a single resolved configuration value with provenance.
type Resolved struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
}

// Config is the fully resolved pipeline configuration.
type Config struct {
	ConfigPath string `json:"config_path"`

	DBPath         Resolved `json:"db_path"`
	WindowHours    Resolved `json:"window_hours"`
	SchemaVersion  Resolved `json:"schema_version"`
	SourceDeviceID Resolved `json:"source_device_id"`
	PatternsPath   Resolved `json:"patterns_path"`
	LogLevel       Resolved `json:"log_level"`

	LLMProvider Resolved `json:"llm_provider"`
	LLMModel    Resolved `json:"llm_model"`
	LLMAPIKey   Resolved `json:"llm_api_key"`
}

// Options carries CLI-level overrides into resolution.
type Options struct {
	ConfigPath  string
	CLIDBPath   string
	CLIWindow   string
	CLILLM      string // provider/model
	CLIPatterns string
}

type fileConfig struct {
	DBPath         string  `yaml:"db_path"`
	WindowHours    float64 `yaml:"window_hours"`
	SchemaVersion  string  `yaml:"schema_version"`
	SourceDeviceID string  `yaml:"source_device_id"`
	PatternsPath   string  `yaml:"patterns_path"`
	LogLevel       string  `yaml:"log_level"`
	LLM            struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"llm"`
}

// DefaultConfigPath is ~/.chatseg/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatseg", "config.yaml")
}

// Resolve loads .env, the YAML config file (if present), and the
// environment, then applies CLI overrides.
func Resolve(opts Options) (*Config, error) {
	// .env values become plain environment variables; absence is fine.
	_ = godotenv.Load()

	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	var fc fileConfig
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{ConfigPath: path}

	cfg.DBPath = resolve(opts.CLIDBPath, os.Getenv("CHATSEG_DB_PATH"), fc.DBPath, "~/.chatseg/chatseg.db")
	cfg.WindowHours = resolve(opts.CLIWindow, os.Getenv("CHATSEG_WINDOW_HOURS"), floatString(fc.WindowHours), "2")
	cfg.SchemaVersion = resolve("", os.Getenv("CHATSEG_SCHEMA_VERSION"), fc.SchemaVersion, "1.0")
	cfg.SourceDeviceID = resolve("", os.Getenv("CHATSEG_SOURCE_DEVICE_ID"), fc.SourceDeviceID, "unknown")
	cfg.PatternsPath = resolve(opts.CLIPatterns, os.Getenv("CHATSEG_PATTERNS_PATH"), fc.PatternsPath, "")
	cfg.LogLevel = resolve("", os.Getenv("CHATSEG_LOG_LEVEL"), fc.LogLevel, "info")

	cliProvider, cliModel := splitLLMFlag(opts.CLILLM)
	cfg.LLMProvider = resolve(cliProvider, os.Getenv("CHATSEG_LLM_PROVIDER"), fc.LLM.Provider, "openai")
	cfg.LLMModel = resolve(cliModel, os.Getenv("CHATSEG_LLM_MODEL"), fc.LLM.Model, "")

	// The key env var follows the resolved provider so an OPENAI_API_KEY in
	// the environment is never handed to a different provider's endpoint.
	keyEnv := "OPENAI_API_KEY"
	if strings.EqualFold(cfg.LLMProvider.Value, "openrouter") {
		keyEnv = "OPENROUTER_API_KEY"
	}
	cfg.LLMAPIKey = resolve("", os.Getenv(keyEnv), fc.LLM.APIKey, "")

	return cfg, nil
}

// Window returns the resolved segmentation window in hours.
func (c *Config) Window() float64 {
	v, err := strconv.ParseFloat(c.WindowHours.Value, 64)
	if err != nil || v <= 0 {
		return 2
	}
	return v
}

// Logger builds the process logger: JSON to stderr, level from config.
func (c *Config) Logger(version string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", "chatseg").
		Str("version", version).
		Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel.Value))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func resolve(cli, env, file, def string) Resolved {
	switch {
	case cli != "":
		return Resolved{Value: cli, Source: SourceCLI}
	case env != "":
		return Resolved{Value: env, Source: SourceEnv}
	case file != "":
		return Resolved{Value: file, Source: SourceConfig}
	default:
		return Resolved{Value: def, Source: SourceDefault}
	}
}

func floatString(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func splitLLMFlag(flag string) (provider, model string) {
	if flag == "" {
		return "", ""
	}
	parts := strings.SplitN(flag, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
