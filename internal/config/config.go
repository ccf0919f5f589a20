// Package config holds the tunable runtime options.
//
// Options come from three layers, later layers winning: built-in defaults,
// an optional pyrt.yaml file, and PYRT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Options is the top-level pyrt.yaml configuration.
type Options struct {
	// RecursionLimit bounds the interpreter call depth, like
	// sys.setrecursionlimit.
	RecursionLimit int `yaml:"recursion_limit"`

	// TraceCalls logs every dispatch and binding decision.
	TraceCalls bool `yaml:"trace_calls"`

	// TraceExceptions logs exception recording, chaining and handler
	// stack transitions.
	TraceExceptions bool `yaml:"trace_exceptions"`

	// TracePoll logs future state transitions.
	TracePoll bool `yaml:"trace_poll"`

	// Color controls traceback coloring on stderr: "auto", "always"
	// or "never".
	Color string `yaml:"color"`
}

func Default() Options {
	return Options{
		RecursionLimit: 1000,
		Color:          "auto",
	}
}

// Load reads path as yaml over the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// ApplyEnv overrides options from PYRT_* environment variables.
func (o *Options) ApplyEnv() {
	if v := os.Getenv("PYRT_RECURSION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			o.RecursionLimit = n
		}
	}
	if v := os.Getenv("PYRT_TRACE"); v != "" {
		o.TraceCalls = true
		o.TraceExceptions = true
		o.TracePoll = true
	}
	if v := os.Getenv("PYRT_COLOR"); v != "" {
		o.Color = v
	}
}

func (o Options) Validate() error {
	if o.RecursionLimit <= 0 {
		return fmt.Errorf("recursion_limit must be positive, got %d", o.RecursionLimit)
	}
	switch o.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", o.Color)
	}
	return nil
}
