package plugin

import (
	goplugin "plugin"

	xerrors "AgentKit-Chain/internal/errors"
)

// Symbol is the exported name the loader resolves in a plugin binary.
const Symbol = "Plugin"

// Loader resolves plugin binaries into Plugin implementations.
type Loader interface {
	Load(path string) (Plugin, error)
}

// GoPluginLoader uses the Go standard library plugin mechanism to dynamically load modules.
type GoPluginLoader struct{}

// Load opens the shared object and searches for a `Plugin` symbol implementing the Plugin interface.
func (GoPluginLoader) Load(path string) (Plugin, error) {
	if path == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "plugin path cannot be empty")
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(CodePluginLoadFailed, err, "open plugin", xerrors.WithMetadata("path", path))
	}
	symbol, err := so.Lookup(Symbol)
	if err != nil {
		return nil, xerrors.Wrap(CodePluginLoadFailed, err, "lookup plugin symbol", xerrors.WithMetadata("path", path))
	}
	return resolve(symbol)
}

func resolve(symbol any) (Plugin, error) {
	switch p := symbol.(type) {
	case Plugin:
		return p, nil
	case *Plugin:
		if p == nil || *p == nil {
			return nil, xerrors.New(CodePluginLoadFailed, "plugin symbol is nil")
		}
		return *p, nil
	case func() Plugin:
		return p(), nil
	default:
		return nil, xerrors.New(CodePluginLoadFailed, "plugin symbol must implement plugin.Plugin")
	}
}
