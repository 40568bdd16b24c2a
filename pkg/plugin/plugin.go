package plugin

import (
	"context"
	"maps"

	"AgentKit-Chain/internal/action"
)

// Resource keys the host populates for every plugin.
const (
	// ResourceRegistry holds the shared *action.Registry.
	ResourceRegistry = "action:registry"
	// ResourceActionOptions holds the []action.Option built-in providers use.
	ResourceActionOptions = "action:options"
	// ResourceHTTPClient holds the shared *http.Client.
	ResourceHTTPClient = "http:client"
)

// Plugin defines the lifecycle hooks that each plugin implementation must satisfy.
type Plugin interface {
	// Info returns the static metadata for the plugin.
	Info() Info
	// Configure allows the plugin to inspect its configuration block prior to initialisation.
	// Implementations may mutate the configuration map to inject defaults.
	Configure(cfg map[string]any) error
	// Init prepares the plugin for use. Actions are normally defined here.
	Init(ctx *ExecutionContext) error
	// Start activates the plugin and should spawn long running routines if required.
	Start(ctx *ExecutionContext) error
	// Stop gracefully halts the plugin and releases any resources.
	Stop(ctx *ExecutionContext) error
	// Provider returns the action provider contributed to the Kit. It is only
	// consulted after a successful Start.
	Provider() action.Provider
}

// ExecutionContext is passed to plugins for every lifecycle stage.
type ExecutionContext struct {
	// C is the underlying context for cancellation and deadlines.
	C context.Context
	// Config is the plugin specific configuration block merged with manager overrides.
	Config map[string]any
	// Resources exposes shared services supplied by the host application.
	Resources map[string]any
	// WorkDir is the plugin's private directory; empty unless the plugin
	// declared CapabilityFilesystem and the isolation strategy provides one.
	WorkDir string
}

// Clone returns a shallow copy of the execution context so plugins can safely mutate maps.
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return nil
	}
	dup := *c
	if c.Config != nil {
		dup.Config = maps.Clone(c.Config)
	}
	if c.Resources != nil {
		dup.Resources = maps.Clone(c.Resources)
	}
	return &dup
}

// ActionOptions returns the host's provider options, or nil when none were supplied.
func (c *ExecutionContext) ActionOptions() []action.Option {
	if c == nil {
		return nil
	}
	opts, _ := c.Resources[ResourceActionOptions].([]action.Option)
	return opts
}

// Option modifies the behaviour of a plugin manager instance.
type Option func(*Manager)

// WithLoader overrides the default binary loader implementation.
func WithLoader(loader Loader) Option {
	return func(m *Manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}

// WithIsolationStrategy sets a custom isolation policy enforcement strategy.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.isolation = strategy
		}
	}
}

// WithResource registers a shared resource that will be exposed to all plugins.
func WithResource(key string, value any) Option {
	return func(m *Manager) {
		if key == "" || value == nil {
			return
		}
		if m.resources == nil {
			m.resources = make(map[string]any)
		}
		m.resources[key] = value
	}
}
