// Package config loads the AgentKit runtime configuration from a YAML file
// with AGENTKIT_ prefixed environment overrides and fills in defaults.
package config
