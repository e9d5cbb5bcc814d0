package core

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration document for a dispatcher.
type Config struct {
	// AlwaysWrap lists operators whose outputs are wrapped even when they alias
	// an unwrapped input. Entries match a bare or overload-qualified name.
	AlwaysWrap []string `json:"always_wrap" yaml:"always_wrap"`
	LogLevel   string   `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	// Catalogs are schema catalog files loaded at startup.
	Catalogs []string `json:"catalogs,omitempty" yaml:"catalogs,omitempty"`
}

// DefaultConfig returns the defaults: lift_fresh must be freshly allocated, and
// alias outputs must be tracked even though they share storage.
func DefaultConfig() Config {
	return Config{
		AlwaysWrap: []string{"aten::lift_fresh", "aten::alias"},
		LogLevel:   "info",
	}
}

// ParseConfig decodes a YAML document over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads and parses the YAML config at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Validate checks operator names and the log level.
func (c Config) Validate() error {
	for i, name := range c.AlwaysWrap {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("always_wrap entry %d is empty", i)
		}
	}
	if c.LogLevel != "" {
		if _, err := c.ZapLevel(); err != nil {
			return err
		}
	}
	for i, path := range c.Catalogs {
		if path == "" {
			return fmt.Errorf("catalog path %d is empty", i)
		}
	}
	return nil
}

// ZapLevel parses LogLevel. An empty level is info.
func (c Config) ZapLevel() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
