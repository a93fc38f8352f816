package cmd

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/popsim/popsim/sim"
)

//go:embed run_config.schema.json
var runConfigSchemaJSON string

var runConfigSchema = jsonschema.MustCompileString("run_config.schema.json", runConfigSchemaJSON)

// RunConfig is the YAML run file. Every field is optional; unset fields
// keep the flag value.
type RunConfig struct {
	Exp         *int             `yaml:"exp"`
	ExpEnd      *int             `yaml:"exp_end"`
	RandomMax   *int             `yaml:"random_max"`
	Iterations  *int64           `yaml:"iterations"`
	Resolution  *int64           `yaml:"resolution"`
	Workers     *int             `yaml:"workers"`
	Repetitions *int             `yaml:"repetitions"`
	Seed        *int64           `yaml:"seed"`
	Dir         *string          `yaml:"dir"`
	Compress    *bool            `yaml:"compress"`
	Adversary   *AdversaryConfig `yaml:"adversary"`
}

// AdversaryConfig is the adversary section of the run file.
type AdversaryConfig struct {
	Enabled *bool                `yaml:"enabled"`
	Events  []sim.AdversaryEvent `yaml:"events"`
}

// LoadRunConfig reads, validates and strictly decodes a YAML run file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	return ParseRunConfig(data)
}

// ParseRunConfig validates data against the run file schema and decodes it
// with strict field checking (unknown keys are errors). An empty document
// yields a zero RunConfig.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	if err := validateRunConfig(data); err != nil {
		return nil, err
	}
	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	return &cfg, nil
}

// validateRunConfig checks the document against the embedded JSON schema.
// The YAML is re-encoded as JSON so the validator sees JSON value types.
func validateRunConfig(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing run config: %w", err)
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("run config is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("run config is not representable as JSON: %w", err)
	}
	if err := runConfigSchema.Validate(v); err != nil {
		return fmt.Errorf("invalid run config: %w", err)
	}
	return nil
}

// flagSet reports whether a flag was set on the command line.
type flagSet interface {
	Changed(name string) bool
}

// Apply copies every field set in the file onto the flag variables, unless
// the matching flag was set explicitly. It returns the adversary schedule
// from the file (nil when absent).
func (c *RunConfig) Apply(flags flagSet) []sim.AdversaryEvent {
	setValue(flags, "exp", c.Exp, &exp)
	setValue(flags, "exp-end", c.ExpEnd, &expEnd)
	setValue(flags, "random", c.RandomMax, &randomMax)
	setValue(flags, "workers", c.Workers, &workers)
	setValue(flags, "repetitions", c.Repetitions, &repetitions)
	setValue(flags, "iterations", c.Iterations, &iterations)
	setValue(flags, "resolution", c.Resolution, &resolution)
	setValue(flags, "seed", c.Seed, &seed)
	setValue(flags, "dir", c.Dir, &outputDir)
	setValue(flags, "compress", c.Compress, &compress)
	if c.Adversary == nil {
		return nil
	}
	setValue(flags, "adversary", c.Adversary.Enabled, &adversarial)
	return c.Adversary.Events
}

func setValue[T any](flags flagSet, name string, v *T, dst *T) {
	if v != nil && !flags.Changed(name) {
		*dst = *v
	}
}
