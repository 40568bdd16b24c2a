package plugin

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	xerrors "AgentKit-Chain/internal/errors"
)

// ManagerConfig describes how the plugin manager should behave.
type ManagerConfig struct {
	PluginDir string                  `yaml:"plugin_dir"`
	Defaults  IsolationPolicy         `yaml:"defaults"`
	Plugins   map[string]PluginConfig `yaml:"plugins"`
}

// PluginConfig is the configuration block for a single plugin instance.
type PluginConfig struct {
	Enabled bool             `yaml:"enabled"`
	Path    string           `yaml:"path"`
	Config  map[string]any   `yaml:"config"`
	Policy  *IsolationPolicy `yaml:"policy"`
}

// IsolationPolicy governs which capabilities a plugin may declare.
type IsolationPolicy struct {
	AllowedCapabilities []Capability `yaml:"allowed_capabilities"`
	DeniedCapabilities  []Capability `yaml:"denied_capabilities"`
}

// Merge returns a new policy using values from other when not present.
func (p IsolationPolicy) Merge(other IsolationPolicy) IsolationPolicy {
	if len(p.AllowedCapabilities) == 0 {
		p.AllowedCapabilities = other.AllowedCapabilities
	}
	if len(p.DeniedCapabilities) == 0 {
		p.DeniedCapabilities = other.DeniedCapabilities
	}
	return p
}

// LoadManagerConfig reads a YAML manifest into a ManagerConfig.
func LoadManagerConfig(path string) (ManagerConfig, error) {
	var cfg ManagerConfig
	if path == "" {
		return cfg, xerrors.New(xerrors.CodeInvalidArgument, "plugin manifest path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read plugin manifest: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, xerrors.Wrap(CodePluginInvalid, err, "unmarshal plugin manifest")
	}
	if cfg.Plugins == nil {
		cfg.Plugins = map[string]PluginConfig{}
	}
	return cfg, nil
}

// NewManagerConfig builds a configuration that enables each id from
// "<dir>/<id>.so" with a shared allow-list.
func NewManagerConfig(dir string, allowed []string, enabled []string) (ManagerConfig, error) {
	caps, err := ParseCapabilities(allowed)
	if err != nil {
		return ManagerConfig{}, err
	}
	cfg := ManagerConfig{
		PluginDir: dir,
		Defaults:  IsolationPolicy{AllowedCapabilities: caps},
		Plugins:   make(map[string]PluginConfig, len(enabled)),
	}
	for _, id := range enabled {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		cfg.Plugins[id] = PluginConfig{Enabled: true, Path: id + ".so"}
	}
	return cfg, nil
}

// ParseCapabilities converts configured names into capabilities, rejecting unknown ones.
func ParseCapabilities(names []string) ([]Capability, error) {
	out := make([]Capability, 0, len(names))
	for _, name := range names {
		c := Capability(strings.ToLower(strings.TrimSpace(name)))
		switch c {
		case CapabilityWallet, CapabilityNetwork, CapabilityFilesystem:
			out = append(out, c)
		default:
			return nil, xerrors.New(CodePluginInvalid, fmt.Sprintf("unknown plugin capability %q", name))
		}
	}
	return out, nil
}

// Validate ensures the manager configuration is internally consistent.
func (c ManagerConfig) Validate() error {
	for id, plugin := range c.Plugins {
		if id == "" {
			return xerrors.New(CodePluginInvalid, "plugin id cannot be empty")
		}
		if !plugin.Enabled {
			continue
		}
		if plugin.Path == "" {
			return xerrors.New(CodePluginInvalid, fmt.Sprintf("plugin %s path cannot be empty when enabled", id))
		}
	}
	return nil
}
