// Package config loads run settings from a YAML file and turns them
// into engine parameters. Sizes stay human-readable strings here so a
// config file reads the same way the flags do.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mercury131/ps-disk-speed-tester/pkg/engine"
	"github.com/mercury131/ps-disk-speed-tester/pkg/units"
)

// Config represents the top-level configuration for one run.
type Config struct {
	Target   string   `yaml:"target"`
	Size     string   `yaml:"size"` // e.g. "10GB"
	Settings Settings `yaml:"settings"`
}

type Settings struct {
	ChunkSize string `yaml:"chunk_size"`  // per-write buffer, e.g. "1MB"
	Data      string `yaml:"data"`        // "random" or "zero"
	Mode      string `yaml:"mode"`        // "seq" or "rand"
	Engine    string `yaml:"engine_type"` // "sync" or "uring"
	Overwrite bool   `yaml:"overwrite"`
	Fsync     bool   `yaml:"fsync"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills the optional settings with the same values the
// CLI flag defaults use.
func (c *Config) ApplyDefaults() {
	if c.Settings.ChunkSize == "" {
		c.Settings.ChunkSize = "1MB"
	}
	if c.Settings.Data == "" {
		c.Settings.Data = engine.DataRandom
	}
	if c.Settings.Mode == "" {
		c.Settings.Mode = engine.ModeSequential
	}
	if c.Settings.Engine == "" {
		c.Settings.Engine = engine.EngineSync
	}
}

// Params converts the configuration into engine parameters. All string
// parsing happens here, so malformed input fails before any file is
// touched.
func (c *Config) Params() (engine.Params, error) {
	if c.Target == "" {
		return engine.Params{}, errors.New("target path is required")
	}
	if c.Size == "" {
		return engine.Params{}, errors.New("size is required")
	}
	size, err := units.ParseSize(c.Size)
	if err != nil {
		return engine.Params{}, err
	}
	chunk, err := units.ParseSize(c.Settings.ChunkSize)
	if err != nil {
		return engine.Params{}, errors.WithMessage(err, "chunk size")
	}
	if chunk <= 0 || chunk > units.GB {
		return engine.Params{}, errors.Errorf("chunk size %s out of range (1B to 1GB)", c.Settings.ChunkSize)
	}
	return engine.Params{
		Path:      c.Target,
		Size:      size,
		ChunkSize: int(chunk),
		Data:      c.Settings.Data,
		Mode:      c.Settings.Mode,
		Engine:    c.Settings.Engine,
		Overwrite: c.Settings.Overwrite,
		Fsync:     c.Settings.Fsync,
	}, nil
}
