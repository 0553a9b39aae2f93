// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Methods accepted by --method.
const (
	MethodCG    = "cg"
	MethodVMLMB = "vmlmb"
	MethodTV    = "tv"
)

// Config describes a synthetic restoration run. It can be read from YAML,
// flags given on the command line take precedence.
type Config struct {
	Size    int     `yaml:"size"`
	Sigma   float64 `yaml:"sigma"`
	Noise   float64 `yaml:"noise"`
	Seed    uint64  `yaml:"seed"`
	Mu      float64 `yaml:"mu"`
	Epsilon float64 `yaml:"epsilon"`
	Method  string  `yaml:"method"`
	MaxIter int     `yaml:"maxIter"`
	Plot    string  `yaml:"plot"`
	Verbose bool    `yaml:"verbose"`
}

// DefaultConfig returns the settings used when neither a file nor a flag
// sets them.
func DefaultConfig() Config {
	return Config{
		Size:    128,
		Sigma:   2,
		Noise:   0.01,
		Seed:    1,
		Mu:      1e-3,
		Epsilon: 1e-2,
		Method:  MethodCG,
		MaxIter: 500,
	}
}

// LoadConfig overwrites the fields of cfg present in the YAML file.
func LoadConfig(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err = yaml.UnmarshalStrict(raw, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	switch {
	case c.Size < 8:
		return fmt.Errorf("size must be at least 8: %d", c.Size)
	case c.Size&(c.Size-1) != 0:
		return fmt.Errorf("size must be a power of two: %d", c.Size)
	case !(c.Sigma > 0):
		return fmt.Errorf("sigma must be positive: %g", c.Sigma)
	case !(c.Noise >= 0):
		return fmt.Errorf("noise must be non-negative: %g", c.Noise)
	case !(c.Mu >= 0):
		return fmt.Errorf("mu must be non-negative: %g", c.Mu)
	case !(c.Epsilon > 0):
		return fmt.Errorf("epsilon must be positive: %g", c.Epsilon)
	case c.MaxIter <= 0:
		return errors.New("max-iter must be positive")
	}
	switch c.Method {
	case MethodCG, MethodVMLMB, MethodTV:
	default:
		return fmt.Errorf("unknown method %q, expected one of cg, vmlmb, tv", c.Method)
	}
	return nil
}
