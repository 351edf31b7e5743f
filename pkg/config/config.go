// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// AppName names the xdg directories
const AppName = "extsort"

// DefaultPoolSize is the number of concurrent copies when none is configured
const DefaultPoolSize = 10

// 📝 Parser decodes one config format
type Parser interface {
	// Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// Register adds a parser to the registry
func Register(p Parser) {
	parsers = append(parsers, p)
}

// GetParser returns the first parser that accepts filename, or nil
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// ⚙️ Config holds run settings. Source and destination are not part of it,
// they are always given on the command line.
type Config struct {
	PoolSize        int      `json:"pool_size,omitempty" yaml:"pool_size,omitempty" hcl:"pool_size,optional"`
	Include         []string `json:"include,omitempty" yaml:"include,omitempty" hcl:"include,optional"`
	Exclude         []string `json:"exclude,omitempty" yaml:"exclude,omitempty" hcl:"exclude,optional"`
	FailureLog      string   `json:"failure_log,omitempty" yaml:"failure_log,omitempty" hcl:"failure_log,optional"`
	FailureDB       string   `json:"failure_db,omitempty" yaml:"failure_db,omitempty" hcl:"failure_db,optional"`
	MetricsTextfile string   `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty" hcl:"metrics_textfile,optional"`
	LogLevel        string   `json:"log_level,omitempty" yaml:"log_level,omitempty" hcl:"log_level,optional"`

	location string
}

// Default returns a validated config with every default applied
func Default() *Config {
	cfg := &Config{}
	// defaults always validate
	_ = cfg.Validate()
	return cfg
}

// Location is the file the config was loaded from, empty for defaults
func (cfg *Config) Location() string {
	return cfg.location
}

// Level returns the parsed log level
func (cfg *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// ✅ Validate checks values and fills in defaults
func (cfg *Config) Validate() error {
	if cfg.PoolSize < 0 {
		return errors.Errorf("pool_size must not be negative, got %d", cfg.PoolSize)
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("invalid glob pattern %q", pattern)
		}
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = zerolog.InfoLevel.String()
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}

	if cfg.FailureLog == "" {
		cfg.FailureLog = filepath.Join(xdg.StateHome, AppName, "failures.jsonl")
	}
	cfg.FailureLog = filepath.Clean(cfg.FailureLog)
	if cfg.FailureDB != "" {
		cfg.FailureDB = filepath.Clean(cfg.FailureDB)
	}
	if cfg.MetricsTextfile != "" {
		cfg.MetricsTextfile = filepath.Clean(cfg.MetricsTextfile)
	}

	return nil
}

// 📂 Load reads, parses and validates the config at path
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	cfg.location = path

	return cfg, nil
}

// candidates are the file names Find looks for in a directory
var candidates = []string{".extsort.yaml", ".extsort.yml", ".extsort.json", ".extsort.hcl"}

// 🔍 Find loads the first config found in dir, then in the xdg config home.
// With no config file anywhere it returns the defaults.
func Find(ctx context.Context, dir string) (*Config, error) {
	paths := make([]string, 0, len(candidates)+3)
	for _, name := range candidates {
		paths = append(paths, filepath.Join(dir, name))
	}
	for _, name := range []string{"config.yaml", "config.json", "config.hcl"} {
		paths = append(paths, filepath.Join(xdg.ConfigHome, AppName, name))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return Load(ctx, path)
	}

	zerolog.Ctx(ctx).Debug().Str("dir", dir).Msg("no config file found, using defaults")
	return Default(), nil
}

func hasSuffixFold(filename string, suffixes ...string) bool {
	lower := strings.ToLower(strings.TrimSpace(filename))
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
