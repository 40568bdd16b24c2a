package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
)

type fakePlugin struct {
	info     Info
	provider *action.Base
	startErr error
	workDir  string
	calls    []string
}

func newFakePlugin(id string, caps ...Capability) *fakePlugin {
	return &fakePlugin{info: Info{ID: id, Name: id, Version: "0.1.0", Capabilities: caps}}
}

func (f *fakePlugin) Info() Info { return f.info }

func (f *fakePlugin) Configure(cfg map[string]any) error {
	f.calls = append(f.calls, "configure")
	if _, ok := cfg["greeting"]; !ok {
		cfg["greeting"] = "hello"
	}
	return nil
}

func (f *fakePlugin) Init(ctx *ExecutionContext) error {
	f.calls = append(f.calls, "init")
	greeting, _ := ctx.Config["greeting"].(string)
	f.provider = action.NewBase(f.info.ID, f.info.ID+"Provider", ctx.ActionOptions()...)
	f.provider.MustDefine(action.Definition{
		Name:        f.info.ID + "_greet",
		Description: "Greets",
		Schema:      `{"type":"object"}`,
		Signature: action.Unbound(func(context.Context, action.Args) (string, error) {
			return greeting, nil
		}),
	})
	return nil
}

func (f *fakePlugin) Start(ctx *ExecutionContext) error {
	f.calls = append(f.calls, "start")
	f.workDir = ctx.WorkDir
	return f.startErr
}

func (f *fakePlugin) Stop(*ExecutionContext) error {
	f.calls = append(f.calls, "stop")
	return nil
}

func (f *fakePlugin) Provider() action.Provider {
	if f.provider == nil {
		return nil
	}
	return f.provider
}

type mapLoader map[string]Plugin

func (l mapLoader) Load(path string) (Plugin, error) {
	p, ok := l[filepath.Base(path)]
	if !ok {
		return nil, xerrors.New(CodePluginLoadFailed, "missing "+path)
	}
	return p, nil
}

func TestManagerLifecycleContributesProviders(t *testing.T) {
	reg := action.NewRegistry()
	m, err := NewManager(ManagerConfig{}, WithResource(ResourceActionOptions, []action.Option{action.WithRegistry(reg)}))
	require.NoError(t, err)

	b := newFakePlugin("beta")
	a := newFakePlugin("alpha")
	require.NoError(t, m.Register("beta", b, nil, IsolationPolicy{}))
	require.NoError(t, m.Register("alpha", a, map[string]any{"greeting": "hi"}, IsolationPolicy{}))
	require.Empty(t, m.Providers())

	require.NoError(t, m.StartAll(context.Background()))
	providers := m.Providers()
	require.Len(t, providers, 2)
	require.Equal(t, "alpha", providers[0].Name())
	require.Equal(t, "beta", providers[1].Name())

	entries, ok := reg.Lookup("alphaProvider")
	require.True(t, ok)
	require.Len(t, entries, 1)

	out, err := providers[0].Actions(nil)[0].Invoke(context.Background(), action.Args{})
	require.NoError(t, err)
	require.Equal(t, "hi", out)

	state, err := m.State("alpha")
	require.NoError(t, err)
	require.Equal(t, StateStarted, state)

	require.NoError(t, m.StopAll(context.Background()))
	require.Empty(t, m.Providers())
	require.Equal(t, []string{"configure", "init", "start", "stop"}, a.calls)
}

func TestRegisterRejectsBadPlugins(t *testing.T) {
	m, err := NewManager(ManagerConfig{})
	require.NoError(t, err)

	err = m.Register("", newFakePlugin("x"), nil, IsolationPolicy{})
	require.True(t, xerrors.HasCode(err, CodePluginInvalid))

	err = m.Register("other", newFakePlugin("x"), nil, IsolationPolicy{})
	require.True(t, xerrors.HasCode(err, CodePluginInvalid))

	require.NoError(t, m.Register("x", newFakePlugin("x"), nil, IsolationPolicy{}))
	err = m.Register("x", newFakePlugin("x"), nil, IsolationPolicy{})
	require.True(t, xerrors.HasCode(err, xerrors.CodeConflict))

	_, err = m.State("missing")
	require.True(t, xerrors.HasCode(err, CodePluginNotFound))
}

func TestCapabilityPolicy(t *testing.T) {
	m, err := NewManager(ManagerConfig{Defaults: IsolationPolicy{AllowedCapabilities: []Capability{CapabilityNetwork}}})
	require.NoError(t, err)

	require.NoError(t, m.Register("net", newFakePlugin("net", CapabilityNetwork), nil, IsolationPolicy{}))

	err = m.Register("signer", newFakePlugin("signer", CapabilityWallet), nil, IsolationPolicy{})
	require.True(t, xerrors.HasCode(err, CodePluginCapabilityDenied))

	err = m.Register("deny", newFakePlugin("deny", CapabilityNetwork), nil,
		IsolationPolicy{DeniedCapabilities: []Capability{CapabilityNetwork}})
	require.True(t, xerrors.HasCode(err, CodePluginCapabilityDenied))

	open, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	err = open.Register("net", newFakePlugin("net", CapabilityNetwork), nil, IsolationPolicy{})
	require.True(t, xerrors.HasCode(err, CodePluginCapabilityDenied), "capabilities need a policy")
}

func TestStartFailureKeepsPluginOut(t *testing.T) {
	m, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	p := newFakePlugin("flaky")
	p.startErr = errors.New("no upstream")
	require.NoError(t, m.Register("flaky", p, nil, IsolationPolicy{}))

	err = m.Start(context.Background(), "flaky")
	require.True(t, xerrors.HasCode(err, CodePluginLifecycle))
	require.Empty(t, m.Providers())

	state, err := m.State("flaky")
	require.NoError(t, err)
	require.Equal(t, StateInitialised, state)
}

func TestDirectoryIsolationWorkDir(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(
		ManagerConfig{Defaults: IsolationPolicy{AllowedCapabilities: []Capability{CapabilityFilesystem}}},
		WithIsolationStrategy(DirectoryIsolation{Root: root}),
	)
	require.NoError(t, err)
	p := newFakePlugin("notes", CapabilityFilesystem)
	plain := newFakePlugin("plain")
	require.NoError(t, m.Register("notes", p, nil, IsolationPolicy{}))
	require.NoError(t, m.Register("plain", plain, nil, IsolationPolicy{}))
	require.NoError(t, m.StartAll(context.Background()))

	require.Equal(t, filepath.Join(root, "notes"), p.workDir)
	info, err := os.Stat(p.workDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.Empty(t, plain.workDir)
}

func TestConfiguredPluginsLoadFromDir(t *testing.T) {
	cfg, err := NewManagerConfig("/opt/plugins", []string{"network"}, []string{"gamma", " "})
	require.NoError(t, err)
	require.Len(t, cfg.Plugins, 1)

	g := newFakePlugin("gamma", CapabilityNetwork)
	m, err := NewManager(cfg, WithLoader(mapLoader{"gamma.so": g}))
	require.NoError(t, err)
	require.Equal(t, []string{"gamma"}, m.IDs())
	require.Equal(t, "/opt/plugins/gamma.so", m.Statuses()[0].Source)

	_, err = NewManager(ManagerConfig{Plugins: map[string]PluginConfig{"ghost": {Enabled: true, Path: "ghost.so"}}},
		WithLoader(mapLoader{}))
	require.True(t, xerrors.HasCode(err, CodePluginLoadFailed))
}

func TestParseCapabilitiesAndManifest(t *testing.T) {
	caps, err := ParseCapabilities([]string{"Wallet", " filesystem "})
	require.NoError(t, err)
	require.Equal(t, []Capability{CapabilityWallet, CapabilityFilesystem}, caps)

	_, err = ParseCapabilities([]string{"execution"})
	require.True(t, xerrors.HasCode(err, CodePluginInvalid))

	path := filepath.Join(t.TempDir(), "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plugin_dir: /srv/plugins
defaults:
  allowed_capabilities: [network]
plugins:
  weather:
    enabled: true
    path: weather.so
    config:
      units: metric
`), 0o600))
	cfg, err := LoadManagerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/plugins", cfg.PluginDir)
	require.Equal(t, []Capability{CapabilityNetwork}, cfg.Defaults.AllowedCapabilities)
	require.Equal(t, "metric", cfg.Plugins["weather"].Config["units"])
	require.NoError(t, cfg.Validate())
}

func TestResolveSymbol(t *testing.T) {
	p := newFakePlugin("sym")
	var asIface Plugin = p

	got, err := resolve(&asIface)
	require.NoError(t, err)
	require.Same(t, p, got)

	got, err = resolve(func() Plugin { return p })
	require.NoError(t, err)
	require.Same(t, p, got)

	_, err = resolve(42)
	require.True(t, xerrors.HasCode(err, CodePluginLoadFailed))
}
