package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProvidersFile is the on-disk provider configuration.
//
//	default = "deepseek"
//
//	[providers.deepseek]
//	api_key = "sk-..."
//	model = "deepseek-chat"
type ProvidersFile struct {
	Default   string                    `toml:"default"`
	Providers map[string]ProviderConfig `toml:"providers"`
}

// LoadProvidersFile decodes a providers TOML file.
func LoadProvidersFile(path string) (*ProvidersFile, error) {
	var pf ProvidersFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("failed to decode providers file %s: %w", path, err)
	}
	normalized := make(map[string]ProviderConfig, len(pf.Providers))
	for id, pc := range pf.Providers {
		normalized[strings.ToLower(id)] = pc
	}
	pf.Providers = normalized
	pf.Default = strings.ToLower(pf.Default)
	return &pf, nil
}

// Merge overlays the file onto the env-derived provider set. Blocks in the
// file replace env blocks with the same id; fields left empty in the file keep
// their env value.
func (c *Config) Merge(pf *ProvidersFile) {
	if pf == nil {
		return
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for id, pc := range pf.Providers {
		base := c.Providers[id]
		if pc.APIKey == "" {
			pc.APIKey = base.APIKey
		}
		if pc.Model == "" {
			pc.Model = base.Model
		}
		if pc.BaseURL == "" {
			pc.BaseURL = base.BaseURL
		}
		if pc.Extra == nil {
			pc.Extra = base.Extra
		}
		c.Providers[id] = pc
	}
	if pf.Default != "" {
		c.DefaultProvider = pf.Default
	}
}

// ProviderSnapshot returns a copy of the provider blocks.
func (c *Config) ProviderSnapshot() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(c.Providers))
	for id, pc := range c.Providers {
		out[id] = pc
	}
	return out
}
