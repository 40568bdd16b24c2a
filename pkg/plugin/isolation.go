package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	xerrors "AgentKit-Chain/internal/errors"
)

// IsolationStrategy enforces security restrictions for plugins at runtime.
type IsolationStrategy interface {
	Validate(info Info, policy IsolationPolicy) error
	Prepare(info Info) error
	Cleanup(info Info) error
}

// Workspace is implemented by strategies that hand plugins a private directory.
type Workspace interface {
	WorkDir(info Info) string
}

// NoopIsolationStrategy performs only capability validation.
type NoopIsolationStrategy struct{}

// Validate ensures the plugin requested capabilities are allowed.
func (NoopIsolationStrategy) Validate(info Info, policy IsolationPolicy) error {
	for _, c := range policy.DeniedCapabilities {
		if slices.Contains(info.Capabilities, c) {
			return denied(info, c, "capability %s is explicitly denied")
		}
	}
	if len(policy.AllowedCapabilities) == 0 {
		return nil
	}
	for _, c := range info.Capabilities {
		if !slices.Contains(policy.AllowedCapabilities, c) {
			return denied(info, c, "capability %s not permitted")
		}
	}
	return nil
}

// Prepare implements IsolationStrategy.
func (NoopIsolationStrategy) Prepare(Info) error { return nil }

// Cleanup implements IsolationStrategy.
func (NoopIsolationStrategy) Cleanup(Info) error { return nil }

// DirectoryIsolation validates capabilities and gives plugins declaring
// CapabilityFilesystem a directory under Root. Directories survive Cleanup so
// plugin state persists across restarts.
type DirectoryIsolation struct {
	NoopIsolationStrategy
	Root string
}

// WorkDir returns the plugin's directory, or "" when it has no filesystem access.
func (d DirectoryIsolation) WorkDir(info Info) string {
	if d.Root == "" || !info.Has(CapabilityFilesystem) {
		return ""
	}
	return filepath.Join(d.Root, info.ID)
}

// Prepare creates the plugin's directory.
func (d DirectoryIsolation) Prepare(info Info) error {
	dir := d.WorkDir(info)
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return xerrors.Wrap(CodePluginLifecycle, err, "create plugin work dir", xerrors.WithMetadata("plugin", info.ID))
	}
	return nil
}

// NewIsolationStrategy returns a default isolation strategy if none is supplied.
func NewIsolationStrategy(strategy IsolationStrategy) IsolationStrategy {
	if strategy == nil {
		return NoopIsolationStrategy{}
	}
	return strategy
}

// MergePolicies combines the default and plugin specific isolation policies.
func MergePolicies(defaults IsolationPolicy, plugin *IsolationPolicy) IsolationPolicy {
	if plugin == nil {
		return defaults
	}
	merged := plugin.Merge(defaults)
	if len(merged.AllowedCapabilities) == 0 && len(merged.DeniedCapabilities) == 0 {
		return defaults
	}
	return merged
}

// EnsurePolicy returns an error when the isolation policy is empty and the plugin requests capabilities.
func EnsurePolicy(info Info, policy IsolationPolicy) error {
	if len(info.Capabilities) == 0 {
		return nil
	}
	if len(policy.AllowedCapabilities) == 0 && len(policy.DeniedCapabilities) == 0 {
		return xerrors.New(CodePluginCapabilityDenied, "plugins declaring capabilities require an isolation policy",
			xerrors.WithMetadata("plugin", info.ID))
	}
	return nil
}

func denied(info Info, c Capability, format string) error {
	return xerrors.New(CodePluginCapabilityDenied, fmt.Sprintf(format, c),
		xerrors.WithMetadata("plugin", info.ID),
		xerrors.WithMetadata("capability", string(c)))
}
