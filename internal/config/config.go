// Package config loads the .why.toml configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".why.toml"

// EnvPrefix prefixes every environment override, e.g.
// WHY_ANALYSIS_REMOVALTHRESHOLD=0.2 or WHY_LOGGING_LEVEL=debug.
const EnvPrefix = "WHY"

// Config represents the complete why configuration
type Config struct {
	General  GeneralConfig  `toml:"general" mapstructure:"general"`
	Analysis AnalysisConfig `toml:"analysis" mapstructure:"analysis"`
	Cache    CacheConfig    `toml:"cache" mapstructure:"cache"`
	Export   ExportConfig   `toml:"export" mapstructure:"export"`
	Watch    WatchConfig    `toml:"watch" mapstructure:"watch"`
	Logging  LoggingConfig  `toml:"logging" mapstructure:"logging"`
}

// GeneralConfig selects the project and which dependency classes are analyzed
type GeneralConfig struct {
	ProjectDir               string `toml:"projectDir" mapstructure:"projectDir"`
	IncludeDevDependencies   bool   `toml:"includeDevDependencies" mapstructure:"includeDevDependencies"`
	IncludeBuildDependencies bool   `toml:"includeBuildDependencies" mapstructure:"includeBuildDependencies"`
	MaxSearchDepth           int    `toml:"maxSearchDepth" mapstructure:"maxSearchDepth"`
}

// AnalysisConfig controls scanning and scoring
type AnalysisConfig struct {
	RemovalThreshold float64  `toml:"removalThreshold" mapstructure:"removalThreshold"`
	PartialThreshold float64  `toml:"partialThreshold" mapstructure:"partialThreshold"`
	Threads          int      `toml:"threads" mapstructure:"threads"` // 0 = GOMAXPROCS
	FollowSymlinks   bool     `toml:"followSymlinks" mapstructure:"followSymlinks"`
	ExcludePatterns  []string `toml:"excludePatterns" mapstructure:"excludePatterns"`
	MaxFileSizeBytes int64    `toml:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// CacheConfig contains scan cache configuration
type CacheConfig struct {
	Enabled       bool   `toml:"enabled" mapstructure:"enabled"`
	Path          string `toml:"path" mapstructure:"path"` // relative to the project root
	MemoryEntries int    `toml:"memoryEntries" mapstructure:"memoryEntries"`
}

// ExportConfig contains export defaults
type ExportConfig struct {
	DefaultFormat string `toml:"defaultFormat" mapstructure:"defaultFormat"`
	OutputDir     string `toml:"outputDir" mapstructure:"outputDir"`
}

// WatchConfig contains watch mode configuration
type WatchConfig struct {
	DebounceMs int `toml:"debounceMs" mapstructure:"debounceMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `toml:"format" mapstructure:"format"`
	Level  string `toml:"level" mapstructure:"level"`
	File   string `toml:"file" mapstructure:"file"` // optional, relative to the project root
}

// ExportFormats lists the formats accepted by export.defaultFormat.
var ExportFormats = []string{"json", "csv", "yaml"}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			ProjectDir:               ".",
			IncludeDevDependencies:   true,
			IncludeBuildDependencies: true,
			MaxSearchDepth:           5,
		},
		Analysis: AnalysisConfig{
			RemovalThreshold: 0.1,
			PartialThreshold: 0.3,
			Threads:          0,
			FollowSymlinks:   false,
			ExcludePatterns:  []string{"**/target/**", "**/node_modules/**", "**/.git/**"},
			MaxFileSizeBytes: 2000000,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Path:          ".why/cache.db",
			MemoryEntries: 4096,
		},
		Export: ExportConfig{
			DefaultFormat: "json",
			OutputDir:     ".",
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// LoadConfig loads <projectRoot>/.why.toml. A missing file yields the
// defaults with environment overrides applied.
func LoadConfig(projectRoot string) (*Config, error) {
	v := newViper()
	v.SetConfigName(strings.TrimSuffix(FileName, ".toml"))
	v.SetConfigType("toml")
	v.AddConfigPath(projectRoot)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Field: FileName, Message: err.Error()}
		}
	}
	return unmarshal(v)
}

// LoadConfigFromPath loads an explicit configuration file. The file must exist.
func LoadConfigFromPath(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Field: path, Message: err.Error()}
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: path, Message: err.Error()}
	}
	return unmarshal(v)
}

// newViper returns a viper instance with every default registered, so that
// environment overrides apply to keys absent from the file.
func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("general.projectDir", d.General.ProjectDir)
	v.SetDefault("general.includeDevDependencies", d.General.IncludeDevDependencies)
	v.SetDefault("general.includeBuildDependencies", d.General.IncludeBuildDependencies)
	v.SetDefault("general.maxSearchDepth", d.General.MaxSearchDepth)
	v.SetDefault("analysis.removalThreshold", d.Analysis.RemovalThreshold)
	v.SetDefault("analysis.partialThreshold", d.Analysis.PartialThreshold)
	v.SetDefault("analysis.threads", d.Analysis.Threads)
	v.SetDefault("analysis.followSymlinks", d.Analysis.FollowSymlinks)
	v.SetDefault("analysis.excludePatterns", d.Analysis.ExcludePatterns)
	v.SetDefault("analysis.maxFileSizeBytes", d.Analysis.MaxFileSizeBytes)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.memoryEntries", d.Cache.MemoryEntries)
	v.SetDefault("export.defaultFormat", d.Export.DefaultFormat)
	v.SetDefault("export.outputDir", d.Export.OutputDir)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "config", Message: err.Error()}
	}
	return &cfg, nil
}

// Save writes the configuration as TOML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := checkFraction("analysis.removalThreshold", c.Analysis.RemovalThreshold); err != nil {
		return err
	}
	if err := checkFraction("analysis.partialThreshold", c.Analysis.PartialThreshold); err != nil {
		return err
	}
	if c.Analysis.Threads < 0 {
		return &ConfigError{Field: "analysis.threads", Message: "must not be negative"}
	}
	if c.Analysis.MaxFileSizeBytes < 0 {
		return &ConfigError{Field: "analysis.maxFileSizeBytes", Message: "must not be negative"}
	}
	for _, p := range c.Analysis.ExcludePatterns {
		if !doublestar.ValidatePattern(p) {
			return &ConfigError{Field: "analysis.excludePatterns", Message: fmt.Sprintf("invalid glob %q", p)}
		}
	}
	if c.General.MaxSearchDepth < 0 {
		return &ConfigError{Field: "general.maxSearchDepth", Message: "must not be negative"}
	}
	if c.Cache.Enabled && c.Cache.MemoryEntries <= 0 {
		return &ConfigError{Field: "cache.memoryEntries", Message: "must be positive when the cache is enabled"}
	}
	if !contains(ExportFormats, strings.ToLower(c.Export.DefaultFormat)) {
		return &ConfigError{Field: "export.defaultFormat", Message: fmt.Sprintf("unknown format %q", c.Export.DefaultFormat)}
	}
	if c.Watch.DebounceMs < 0 {
		return &ConfigError{Field: "watch.debounceMs", Message: "must not be negative"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

func checkFraction(field string, v float64) error {
	if v < 0 || v > 1 {
		return &ConfigError{Field: field, Message: fmt.Sprintf("%v is outside [0, 1]", v)}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
