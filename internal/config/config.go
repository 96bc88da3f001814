package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvOverride records an environment variable override that was applied.
type EnvOverride struct {
	EnvVar    string      // e.g., "INCRC_MAX_CYCLES"
	Path      string      // e.g., "driver.maxCycles"
	Value     interface{} // the parsed value that was applied
	FromValue string      // original string value from env
}

// LoadResult contains the loaded config plus metadata about how it was loaded.
type LoadResult struct {
	Config       *Config
	ConfigPath   string
	EnvOverrides []EnvOverride
	UsedDefaults bool
}

// Config is the complete incrc configuration (schema v1).
type Config struct {
	Version    int          `json:"version" mapstructure:"version"`
	RepoRoot   string       `json:"repoRoot" mapstructure:"repoRoot"`
	Driver     DriverConfig `json:"driver" mapstructure:"driver"`
	Stamp      StampConfig  `json:"stamp" mapstructure:"stamp"`
	Staging    string       `json:"stagingDir" mapstructure:"stagingDir"`
	AnalysisDB string       `json:"analysisDb" mapstructure:"analysisDb"`
	Logging    LoggingConfig `json:"logging" mapstructure:"logging"`
	Watch      WatchConfig  `json:"watch" mapstructure:"watch"`
}

// DriverConfig mirrors the driver.Options knobs, expressed in a
// form viper/JSON can load and override.
type DriverConfig struct {
	StrictMode            bool    `json:"strictMode" mapstructure:"strictMode"`
	ApiDebug              bool    `json:"apiDebug" mapstructure:"apiDebug"`
	UseOptimizedSealed    bool    `json:"useOptimizedSealed" mapstructure:"useOptimizedSealed"`
	RelationsDebug        bool    `json:"relationsDebug" mapstructure:"relationsDebug"`
	Transactional         bool    `json:"transactional" mapstructure:"transactional"`
	RecompileAllFraction  float64 `json:"recompileAllFraction" mapstructure:"recompileAllFraction"`
	MaxCycles             int     `json:"maxCycles" mapstructure:"maxCycles"`
}

// StampConfig selects the stamp oracle's strategy for source/product stamps.
type StampConfig struct {
	// UseContentHash selects content-hash stamps over last-modified
	// timestamps.
	UseContentHash bool `json:"useContentHash" mapstructure:"useContentHash"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// WatchConfig controls the optional `compile --watch` filesystem watch loop.
type WatchConfig struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounceMs"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Driver: DriverConfig{
			StrictMode:           true,
			ApiDebug:             false,
			UseOptimizedSealed:   false,
			RelationsDebug:       false,
			Transactional:        true,
			RecompileAllFraction: 0.5,
			MaxCycles:            16,
		},
		Stamp: StampConfig{
			UseContentHash: true,
		},
		Staging:    ".incrc/staging",
		AnalysisDB: ".incrc/analysis.db",
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
		Watch: WatchConfig{
			Enabled:        false,
			DebounceMs:     300,
			IgnorePatterns: []string{"*.class", "*.tmp", ".incrc/**"},
		},
	}
}

// LoadConfig loads configuration from .incrc/config.json.
// For more detailed loading info (env overrides, config path), use
// LoadConfigWithDetails.
func LoadConfig(repoRoot string) (*Config, error) {
	result, err := LoadConfigWithDetails(repoRoot)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// LoadConfigWithDetails loads configuration and returns detailed info about
// how it was loaded.
func LoadConfigWithDetails(repoRoot string) (*LoadResult, error) {
	result := &LoadResult{}

	if configPath := os.Getenv("INCRC_CONFIG_PATH"); configPath != "" {
		cfg, err := loadConfigFromPath(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from INCRC_CONFIG_PATH=%s: %w", configPath, err)
		}
		result.Config = cfg
		result.ConfigPath = configPath
	} else {
		v := viper.New()
		v.SetDefault("version", 1)
		v.SetDefault("repoRoot", ".")

		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(repoRoot, ".incrc"))

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				result.Config = DefaultConfig()
				result.UsedDefaults = true
			} else {
				return nil, err
			}
		} else {
			var cfg Config
			if err := v.Unmarshal(&cfg); err != nil {
				return nil, err
			}
			result.Config = &cfg
			result.ConfigPath = v.ConfigFileUsed()
		}
	}

	result.EnvOverrides = applyEnvOverrides(result.Config)
	return result, nil
}

func loadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON in config file: %w", err)
	}
	return &cfg, nil
}

type envVarDef struct {
	path    string
	varType string // "string", "int", "float", "bool"
}

var envVarMappings = map[string]envVarDef{
	"INCRC_LOG_LEVEL":  {path: "logging.level", varType: "string"},
	"INCRC_LOG_FORMAT": {path: "logging.format", varType: "string"},

	"INCRC_STRICT_MODE":    {path: "driver.strictMode", varType: "bool"},
	"INCRC_API_DEBUG":      {path: "driver.apiDebug", varType: "bool"},
	"INCRC_TRANSACTIONAL":  {path: "driver.transactional", varType: "bool"},
	"INCRC_MAX_CYCLES":     {path: "driver.maxCycles", varType: "int"},
	"INCRC_RECOMPILE_ALL_FRACTION": {path: "driver.recompileAllFraction", varType: "float"},

	"INCRC_USE_CONTENT_HASH": {path: "stamp.useContentHash", varType: "bool"},

	"INCRC_STAGING_DIR": {path: "stagingDir", varType: "string"},
	"INCRC_ANALYSIS_DB": {path: "analysisDb", varType: "string"},

	"INCRC_WATCH_ENABLED":     {path: "watch.enabled", varType: "bool"},
	"INCRC_WATCH_DEBOUNCE_MS": {path: "watch.debounceMs", varType: "int"},
}

func applyEnvOverrides(cfg *Config) []EnvOverride {
	var overrides []EnvOverride

	for envVar, def := range envVarMappings {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		var parsedValue interface{}
		var err error

		switch def.varType {
		case "string":
			parsedValue = value
		case "int":
			parsedValue, err = strconv.Atoi(value)
			if err != nil {
				continue
			}
		case "float":
			parsedValue, err = strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
		case "bool":
			parsedValue, err = strconv.ParseBool(value)
			if err != nil {
				continue
			}
		}

		if applyOverride(cfg, def.path, parsedValue) {
			overrides = append(overrides, EnvOverride{
				EnvVar:    envVar,
				Path:      def.path,
				Value:     parsedValue,
				FromValue: value,
			})
		}
	}

	return overrides
}

func applyOverride(cfg *Config, path string, value interface{}) bool {
	parts := strings.Split(path, ".")

	switch parts[0] {
	case "stagingDir":
		if v, ok := value.(string); ok {
			cfg.Staging = v
			return true
		}
	case "analysisDb":
		if v, ok := value.(string); ok {
			cfg.AnalysisDB = v
			return true
		}
	case "logging":
		if len(parts) < 2 {
			return false
		}
		switch parts[1] {
		case "level":
			if v, ok := value.(string); ok {
				cfg.Logging.Level = v
				return true
			}
		case "format":
			if v, ok := value.(string); ok {
				cfg.Logging.Format = v
				return true
			}
		}
	case "driver":
		if len(parts) < 2 {
			return false
		}
		switch parts[1] {
		case "strictMode":
			if v, ok := value.(bool); ok {
				cfg.Driver.StrictMode = v
				return true
			}
		case "apiDebug":
			if v, ok := value.(bool); ok {
				cfg.Driver.ApiDebug = v
				return true
			}
		case "transactional":
			if v, ok := value.(bool); ok {
				cfg.Driver.Transactional = v
				return true
			}
		case "maxCycles":
			if v, ok := value.(int); ok {
				cfg.Driver.MaxCycles = v
				return true
			}
		case "recompileAllFraction":
			if v, ok := value.(float64); ok {
				cfg.Driver.RecompileAllFraction = v
				return true
			}
		}
	case "stamp":
		if len(parts) < 2 {
			return false
		}
		if parts[1] == "useContentHash" {
			if v, ok := value.(bool); ok {
				cfg.Stamp.UseContentHash = v
				return true
			}
		}
	case "watch":
		if len(parts) < 2 {
			return false
		}
		switch parts[1] {
		case "enabled":
			if v, ok := value.(bool); ok {
				cfg.Watch.Enabled = v
				return true
			}
		case "debounceMs":
			if v, ok := value.(int); ok {
				cfg.Watch.DebounceMs = v
				return true
			}
		}
	}

	return false
}

// GetSupportedEnvVars returns a list of all supported environment variables.
func GetSupportedEnvVars() []string {
	vars := make([]string, 0, len(envVarMappings))
	for v := range envVarMappings {
		vars = append(vars, v)
	}
	return vars
}

// Save writes the configuration to .incrc/config.json.
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".incrc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// SupportedConfigVersions lists config schema versions this code can handle.
var SupportedConfigVersions = []int{1}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported config version %d, supported versions: %v", c.Version, SupportedConfigVersions),
		}
	}
	if c.Driver.MaxCycles <= 0 {
		return &ConfigError{Field: "driver.maxCycles", Message: "must be positive"}
	}
	if c.Driver.RecompileAllFraction < 0 || c.Driver.RecompileAllFraction > 1 {
		return &ConfigError{Field: "driver.recompileAllFraction", Message: "must be between 0 and 1"}
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
