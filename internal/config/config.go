// Package config loads the classifier's tunable tables from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/sftools/incident-classifier/internal/classifier"
	"github.com/sftools/incident-classifier/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds the classifier tables and the lookup-field defaults used by
// the form-filling collaborator. The rule table itself is code, not config.
type Config struct {
	// PrefixOverrides maps raw prefixes (lower-cased) to display strings
	PrefixOverrides map[string]string `yaml:"prefix_overrides"`

	// FormDefaults is the base form-default set
	FormDefaults []models.FormField `yaml:"form_defaults"`

	// LookupDefaults are the lookup-field searches for the case form
	LookupDefaults []models.LookupDefault `yaml:"lookup_defaults"`
}

// Default returns the compiled-in configuration (fallback when no config
// file is present).
func Default() *Config {
	return &Config{
		PrefixOverrides: classifier.DefaultPrefixOverrides(),
		FormDefaults:    classifier.DefaultFormDefaults(),
		LookupDefaults: []models.LookupDefault{
			{FieldLabel: "Account Name", SearchText: "Metapack PL", OptionContains: "Metapack Internal PL Cases"},
			{FieldLabel: "Contact Name", SearchText: "Metapack PL", OptionContains: "Metapack PL Internal Cases"},
		},
	}
}

// Load reads configuration from a YAML file. Sections missing from the file
// fall back to the compiled-in defaults.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	def := Default()
	if cfg.PrefixOverrides == nil {
		cfg.PrefixOverrides = def.PrefixOverrides
	}
	if len(cfg.FormDefaults) == 0 {
		cfg.FormDefaults = def.FormDefaults
	}
	if len(cfg.LookupDefaults) == 0 {
		cfg.LookupDefaults = def.LookupDefaults
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects entries that the form-filling collaborator cannot use.
func (c *Config) validate() error {
	for i, f := range c.FormDefaults {
		if f.FieldLabel == "" {
			return fmt.Errorf("form default %d: field label cannot be empty", i)
		}
	}
	for i, l := range c.LookupDefaults {
		if l.FieldLabel == "" {
			return fmt.Errorf("lookup default %d: field label cannot be empty", i)
		}
		if l.SearchText == "" {
			return fmt.Errorf("lookup default %q: search text cannot be empty", l.FieldLabel)
		}
	}
	return nil
}

// ClassifierConfig converts the loaded tables into classifier configuration.
func (c *Config) ClassifierConfig() classifier.Config {
	return classifier.Config{
		PrefixOverrides:  c.PrefixOverrides,
		BaseFormDefaults: c.FormDefaults,
	}
}
