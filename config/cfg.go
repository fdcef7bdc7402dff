package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed config.yaml
var defaultConfig []byte

// Duration makes time.Duration YAML round-trippable in "30s" form.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration value '%s': %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type (
	// BundleConfig controls how external resources are embedded into output.
	BundleConfig struct {
		NoImages        bool     `yaml:"no_images"`
		NoFonts         bool     `yaml:"no_fonts"`
		InlineAssetVars bool     `yaml:"inline_asset_vars"`
		UserAgent       string   `yaml:"user_agent"`
		Timeout         Duration `yaml:"timeout"`
		MaxAssetSize    int64    `yaml:"max_asset_size"`
	}

	Config struct {
		Version int           `yaml:"version"`
		Bundle  BundleConfig  `yaml:"bundle"`
		Logging LoggingConfig `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported configuration version: %d", cfg.Version)
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path
// and superimposes its values on top of embedded defaults. Empty path returns
// defaults unchanged.
func LoadConfiguration(path string) (*Config, error) {
	cfg, err := unmarshalConfig(defaultConfig, &Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to process default configuration: %w", err)
	}
	if len(path) == 0 {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if cfg, err = unmarshalConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns default embedded configuration as a byte slice.
func Prepare() ([]byte, error) {
	// round-trip through the decoder so a broken embedded default is caught
	// here rather than at first use
	if _, err := unmarshalConfig(defaultConfig, &Config{}); err != nil {
		return nil, err
	}
	return defaultConfig, nil
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
