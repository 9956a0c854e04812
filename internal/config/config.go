// Package config loads process configuration from defaults, an optional
// YAML file and GENAI_ environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/genai-monitor/internal/core/domain"
)

const (
	// EnvPrefix prefixes every environment override. Nested keys are
	// separated by "__", e.g. GENAI_MONITOR__FILE_PATH.
	EnvPrefix = "GENAI_"

	// EnvConfigPath names the variable that points at the YAML file.
	EnvConfigPath = "GENAI_CONFIG"

	DefaultConfigPath = "config.yaml"
	StorageSQLite     = "sqlite"
	DefaultFilePath   = "./genai-observability.db"
	DefaultPort       = 8090
)

type Config struct {
	Monitor Monitor      `koanf:"monitor"`
	Server  ServerConfig `koanf:"server"`
	OpenAI  OpenAIConfig `koanf:"openai"`
}

// Monitor configures event capture and persistence.
type Monitor struct {
	Storage        string `koanf:"storage"`   // only "sqlite"
	FilePath       string `koanf:"file_path"` // SQLite file or URI
	Debug          bool   `koanf:"debug"`
	CaptureContent bool   `koanf:"capture_content"` // keep raw prompts and completions
	EstimateTokens bool   `koanf:"estimate_tokens"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type OpenAIConfig struct {
	APIKey       string `koanf:"api_key"`
	BaseURL      string `koanf:"base_url"`
	DefaultModel string `koanf:"default_model"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Monitor: Monitor{}.WithDefaults(),
		Server:  ServerConfig{Port: DefaultPort},
	}
}

// WithDefaults fills unset fields.
func (m Monitor) WithDefaults() Monitor {
	if m.Storage == "" {
		m.Storage = StorageSQLite
	}
	if m.FilePath == "" {
		m.FilePath = DefaultFilePath
	}
	return m
}

// Validate reports the first invalid field.
func (m Monitor) Validate() error {
	if m.Storage != StorageSQLite {
		return domain.NewConfigurationError("storage", fmt.Sprintf("unsupported storage backend %q", m.Storage))
	}
	if strings.TrimSpace(m.FilePath) == "" {
		return domain.NewConfigurationError("file_path", "must not be empty")
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file named by GENAI_CONFIG (default config.yaml) if
// present, then applies environment overrides.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path. A missing file is not an
// error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", DefaultPort)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Monitor = cfg.Monitor.WithDefaults()
	cfg.OpenAI.APIKey = substituteEnvVars(cfg.OpenAI.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
