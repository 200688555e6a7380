package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	objsync "github.com/goliatone/go-objsync"
	"github.com/goliatone/go-objsync/pkg/activity"
	"github.com/goliatone/go-objsync/pkg/logging"
	"github.com/goliatone/go-objsync/pkg/source"
)

var (
	errUnknownEvaluator = errors.New("evaluator must be expr, cel or js")
	errJSUnavailable    = errors.New("js evaluator requires a build with the js_eval tag")
	errLayerFile        = errors.New("layer file is required")
	errLayerScope       = errors.New("layer scope is required")
)

// Config is the objsync command configuration file.
//
//	log:
//	  level: debug
//	activity:
//	  enabled: true
//	  channel: cli
//	  verbs: [objsync.changeset.applied]
//	evaluator: cel
//	skipArray: false
//	mapping: mapping.yaml
//	layers:
//	  - scope: user
//	    priority: 40
//	    file: user.yaml
//	    path: settings
type Config struct {
	Log       logging.LoggerConfig `yaml:"log"`
	Activity  activity.Config      `yaml:"activity"`
	Evaluator string               `yaml:"evaluator"`
	SkipArray bool                 `yaml:"skipArray"`
	Mapping   string               `yaml:"mapping"`
	Output    string               `yaml:"output"`
	Layers    []LayerConfig        `yaml:"layers"`
}

// LayerConfig declares one resolver layer read from a document file.
type LayerConfig struct {
	Scope    string `yaml:"scope"`
	Priority int    `yaml:"priority"`
	File     string `yaml:"file"`
	Path     string `yaml:"path"`
}

// SetDefaults fills empty settings. Layers without a priority are ranked by
// position, the first one strongest.
func (c *Config) SetDefaults() bool {
	changed := false
	if c.Log.Level == "" {
		c.Log.Level = "warn"
		changed = true
	}
	if c.Evaluator == "" {
		c.Evaluator = "expr"
		changed = true
	}
	if c.Output == "" {
		c.Output = string(source.FormatJSON)
		changed = true
	}
	for i := range c.Layers {
		if c.Layers[i].Priority == 0 {
			c.Layers[i].Priority = (len(c.Layers) - i) * 10
			changed = true
		}
	}
	return changed
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Evaluator) {
	case "expr", "cel":
	case "js":
		if !objsync.JSEvaluatorAvailable() {
			return errJSUnavailable
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownEvaluator, c.Evaluator)
	}
	if _, err := source.ParseFormat(c.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	for i, layer := range c.Layers {
		if layer.Scope == "" {
			return fmt.Errorf("layer %d: %w", i, errLayerScope)
		}
		if layer.File == "" {
			return fmt.Errorf("layer %q: %w", layer.Scope, errLayerFile)
		}
	}
	return nil
}

// loadConfig reads, defaults and validates the configuration at path. An
// empty path yields the defaults. Relative layer and mapping files resolve
// against the directory of the configuration file.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		fetcher, err := source.NewFetcher(path)()
		if err != nil {
			return nil, err
		}
		data, err := fetcher.Fetch()
		if err != nil {
			return nil, fmt.Errorf("reading data error: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing error: %w", err)
		}
		cfg.resolveFiles(filepath.Dir(fetcher.Path()))
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating error: %w", err)
	}
	return cfg, nil
}

func (c *Config) resolveFiles(dir string) {
	resolve := func(file string) string {
		if file == "" || filepath.IsAbs(file) {
			return file
		}
		return filepath.Join(dir, file)
	}
	c.Mapping = resolve(c.Mapping)
	for i := range c.Layers {
		c.Layers[i].File = resolve(c.Layers[i].File)
	}
}
