package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the structure of the config.yaml file.
// Alias tables and premium names change more often than deploy settings and
// are easier to manage in YAML than env vars.
type YAMLConfig struct {
	Extraction ExtractionConfig `yaml:"extraction"`
	Premium    PremiumConfig    `yaml:"premium"`
}

// ExtractionConfig extends the built-in alias tables. Keys are canonical
// field names, values are extra candidate keys tried after the defaults.
type ExtractionConfig struct {
	Aliases AliasConfig `yaml:"aliases"`
}

type AliasConfig struct {
	Keywords map[string][]string `yaml:"keywords"`
	Research map[string][]string `yaml:"research"`
}

// PremiumConfig overrides which roles and plans grant unlimited access.
// An empty list keeps the built-in default.
type PremiumConfig struct {
	Roles []string `yaml:"roles"`
	Plans []string `yaml:"plans"`
}

// LoadYAMLConfig loads the YAML configuration file at path.
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// KeywordAliases returns the extra keyword record aliases, nil-safe.
func (c *YAMLConfig) KeywordAliases() map[string][]string {
	if c == nil {
		return nil
	}
	return c.Extraction.Aliases.Keywords
}

// ResearchAliases returns the extra research signal aliases, nil-safe.
func (c *YAMLConfig) ResearchAliases() map[string][]string {
	if c == nil {
		return nil
	}
	return c.Extraction.Aliases.Research
}

// PremiumRoles returns the configured premium roles or fallback.
func (c *YAMLConfig) PremiumRoles(fallback []string) []string {
	if c == nil || len(c.Premium.Roles) == 0 {
		return fallback
	}
	return c.Premium.Roles
}

// PremiumPlans returns the configured premium plans or fallback.
func (c *YAMLConfig) PremiumPlans(fallback []string) []string {
	if c == nil || len(c.Premium.Plans) == 0 {
		return fallback
	}
	return c.Premium.Plans
}
