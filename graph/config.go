package graph

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultIndexName is the name of the sharded "by type" index.
const DefaultIndexName = "ByType"

// Config holds configuration for a Graph.
type Config struct {
	// Table is the name of the graph table.
	Table string `yaml:"table" validate:"required"`

	// IndexName is the global secondary index keyed by (GSIK, Type).
	// GetNodesOfType filters on Target and ttl inside the index, so the index
	// must project them: ProjectionType ALL, or INCLUDE with Node, Data,
	// Target and ttl. A KEYS_ONLY index returns no nodes.
	// Default: "ByType"
	IndexName string `yaml:"indexName" validate:"required"`

	// MaxGSIK is the number of shard buckets of the type index.
	// Every record is written to a bucket in [0, MaxGSIK) and GetNodesOfType
	// issues one query per bucket. Writers and readers must agree on it.
	// Max: 256
	MaxGSIK int `yaml:"maxGSIK" validate:"gt=0,lte=256"`

	// MaxConcurrency bounds the per-node expansion and delete fan-outs.
	// Default: 0 (unbounded, one goroutine per node or record)
	MaxConcurrency int `yaml:"maxConcurrency" validate:"gte=0"`
}

// DefaultConfig returns sensible defaults for a small deployment.
func DefaultConfig() Config {
	return Config{
		Table:     "GraphExample",
		IndexName: DefaultIndexName,
		MaxGSIK:   5,
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// validate fills optional defaults and rejects missing or out of range values.
func (c *Config) validate() error {
	if c.IndexName == "" {
		c.IndexName = DefaultIndexName
	}
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ConfigError{Field: fieldErrs[0].Field(), Tag: fieldErrs[0].Tag(), Param: fieldErrs[0].Param()}
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
}

// Validate reports whether the configuration is usable, applying defaults
// for optional fields first.
func (c *Config) Validate() error {
	return c.validate()
}

// LoadConfig decodes a YAML configuration over DefaultConfig and validates
// the result. Unknown keys are rejected.
//
//	table: Graph
//	maxGSIK: 16
//	maxConcurrency: 32
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
