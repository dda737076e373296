// Package config loads the YAML configuration shared by the numclass
// binaries.
package config

import (
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/numclass/dataset/numbers"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
)

// Model loading modes.
const (
	ModeTrain = "train" // always build from the dataset
	ModeLoad  = "load"  // always load from models.dir
	ModeAuto  = "auto"  // load when models.dir holds models, otherwise build
)

// Config is the full configuration file.
type Config struct {
	HTTP struct {
		Port      int           `yaml:"port"`
		Timeout   time.Duration `yaml:"timeout"`
		CacheSize int           `yaml:"cache_size"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Models struct {
		Dir            string `yaml:"dir"`
		Mode           string `yaml:"mode"`
		SaveAfterBuild bool   `yaml:"save_after_build"`
		Strategy       string `yaml:"strategy"`
	} `yaml:"models"`
	Dataset struct {
		Train numbers.Range `yaml:"train"`
		Test  numbers.Range `yaml:"test"`
	} `yaml:"dataset"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = 8000
	cfg.HTTP.Timeout = 30 * time.Second
	cfg.HTTP.CacheSize = 4096
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.MaxSizeMB = 100
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	cfg.Models.Dir = "models"
	cfg.Models.Mode = ModeAuto
	cfg.Models.SaveAfterBuild = true
	cfg.Models.Strategy = "select_best"
	cfg.Dataset.Train = numbers.Range{Start: 1000, End: 2000, Step: 1}
	cfg.Dataset.Test = numbers.Range{Start: 1, End: 100, Step: 1}
	return cfg
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config %s", path)
	}
	defer file.Close()
	return Decode(file)
}

// Decode reads YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return errors.NewValidationError("http.port", "must be between 1 and 65535", c.HTTP.Port)
	}
	if c.HTTP.Timeout < 0 {
		return errors.NewValidationError("http.timeout", "must not be negative", c.HTTP.Timeout)
	}
	if c.HTTP.CacheSize < 0 {
		return errors.NewValidationError("http.cache_size", "must not be negative", c.HTTP.CacheSize)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return errors.NewValidationError("log.format", "must be \"json\" or \"console\"", c.Log.Format)
	}
	switch c.Models.Mode {
	case ModeTrain, ModeLoad, ModeAuto:
	default:
		return errors.NewValidationError("models.mode", "must be \"train\", \"load\" or \"auto\"", c.Models.Mode)
	}
	if c.Models.Dir == "" && (c.Models.Mode != ModeTrain || c.Models.SaveAfterBuild) {
		return errors.NewValidationError("models.dir", "required to load or save models", c.Models.Dir)
	}
	if c.Models.Strategy != "select_best" && c.Models.Strategy != "train_all" {
		return errors.NewValidationError("models.strategy", "must be \"select_best\" or \"train_all\"", c.Models.Strategy)
	}
	if err := c.Dataset.Train.Validate(); err != nil {
		return errors.Wrap(err, "dataset.train")
	}
	if err := c.Dataset.Test.Validate(); err != nil {
		return errors.Wrap(err, "dataset.test")
	}
	return nil
}

// LogOptions converts the log section for log.SetupLogger.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}
