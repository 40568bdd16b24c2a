package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/logger"
)

// Manager keeps track of registered plugins and orchestrates their lifecycle.
type Manager struct {
	mu        sync.RWMutex
	registry  map[string]*instance
	loader    Loader
	isolation IsolationStrategy
	resources map[string]any
	defaults  IsolationPolicy
	log       *slog.Logger
}

type instance struct {
	mu     sync.Mutex
	Plugin Plugin
	Info   Info
	State  State
	Config map[string]any
	Policy IsolationPolicy
	Source string
}

// Status is a snapshot of one registered plugin.
type Status struct {
	Info   Info   `json:"info"`
	State  State  `json:"state"`
	Source string `json:"source"`
}

// NewManager constructs a manager using the supplied configuration and options.
func NewManager(cfg ManagerConfig, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		registry:  make(map[string]*instance),
		loader:    GoPluginLoader{},
		isolation: NewIsolationStrategy(nil),
		resources: make(map[string]any),
		defaults:  cfg.Defaults,
		log:       logger.Named("plugin"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.isolation = NewIsolationStrategy(m.isolation)
	if err := m.loadConfigured(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// Register registers a plugin instance directly with the manager.
func (m *Manager) Register(id string, p Plugin, cfg map[string]any, policy IsolationPolicy) error {
	return m.register(id, p, cfg, policy, "manual")
}

func (m *Manager) register(id string, p Plugin, cfg map[string]any, policy IsolationPolicy, source string) error {
	if id == "" {
		return xerrors.New(CodePluginInvalid, "plugin id cannot be empty")
	}
	if p == nil {
		return xerrors.New(CodePluginInvalid, "plugin implementation cannot be nil")
	}
	info := p.Info()
	if info.ID != "" && info.ID != id {
		return xerrors.New(CodePluginInvalid, fmt.Sprintf("plugin id mismatch: %s != %s", info.ID, id))
	}
	info = mergeInfo(info, id)
	policy = MergePolicies(m.defaults, &policy)
	if err := EnsurePolicy(info, policy); err != nil {
		return err
	}
	if err := m.isolation.Validate(info, policy); err != nil {
		return err
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	if err := p.Configure(cfg); err != nil {
		return xerrors.Wrap(CodePluginInvalid, err, fmt.Sprintf("configure plugin %s", id))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registry[id]; exists {
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("plugin %s already registered", id))
	}
	m.registry[id] = &instance{Plugin: p, Info: info, State: StateRegistered, Config: cfg, Policy: policy, Source: source}
	m.log.Info("插件已注册",
		slog.String("plugin", id),
		slog.String("version", info.Version),
		slog.String("source", source))
	return nil
}

// Load loads a plugin implementation from disk and registers it with the manager.
func (m *Manager) Load(id string, path string, cfg map[string]any, policy IsolationPolicy) error {
	if path == "" {
		return xerrors.New(CodePluginInvalid, "plugin path cannot be empty")
	}
	p, err := m.loader.Load(path)
	if err != nil {
		return err
	}
	return m.register(id, p, cfg, policy, path)
}

// Start initialises and starts a plugin by id.
func (m *Manager) Start(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.State == StateStarted {
		return nil
	}
	execCtx := m.execContext(ctx, inst)
	if inst.State == StateRegistered {
		if err := inst.Plugin.Init(execCtx.Clone()); err != nil {
			return lifecycleErr(err, "initialise", id)
		}
		inst.State = StateInitialised
	}
	if err := m.isolation.Prepare(inst.Info); err != nil {
		return err
	}
	if err := inst.Plugin.Start(execCtx.Clone()); err != nil {
		_ = m.isolation.Cleanup(inst.Info)
		return lifecycleErr(err, "start", id)
	}
	if inst.Plugin.Provider() == nil {
		_ = inst.Plugin.Stop(execCtx.Clone())
		_ = m.isolation.Cleanup(inst.Info)
		return xerrors.New(CodePluginInvalid, fmt.Sprintf("plugin %s started without an action provider", id))
	}
	inst.State = StateStarted
	m.log.Info("插件已启动", slog.String("plugin", id))
	return nil
}

// Stop halts a plugin if it is running.
func (m *Manager) Stop(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.State != StateStarted {
		return nil
	}
	if err := inst.Plugin.Stop(m.execContext(ctx, inst).Clone()); err != nil {
		return lifecycleErr(err, "stop", id)
	}
	if err := m.isolation.Cleanup(inst.Info); err != nil {
		return lifecycleErr(err, "cleanup isolation for", id)
	}
	inst.State = StateStopped
	m.log.Info("插件已停止", slog.String("plugin", id))
	return nil
}

// StartAll starts all registered plugins in id order.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, id := range m.IDs() {
		if err := m.Start(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops all active plugins in reverse id order. Every plugin is
// attempted; the first error is returned.
func (m *Manager) StopAll(ctx context.Context) error {
	ids := m.IDs()
	slices.Reverse(ids)
	var first error
	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil {
			m.log.Warn("插件停止失败", slog.String("plugin", id), slog.Any("error", err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// IDs returns the registered plugin ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.registry))
}

// Providers returns the action providers of started plugins in id order.
func (m *Manager) Providers() []action.Provider {
	var out []action.Provider
	for _, id := range m.IDs() {
		inst, err := m.get(id)
		if err != nil {
			continue
		}
		inst.mu.Lock()
		if inst.State == StateStarted {
			out = append(out, inst.Plugin.Provider())
		}
		inst.mu.Unlock()
	}
	return out
}

// State returns the lifecycle state of a plugin.
func (m *Manager) State(id string) (State, error) {
	inst, err := m.get(id)
	if err != nil {
		return "", err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.State, nil
}

// Statuses returns a snapshot of every registered plugin in id order.
func (m *Manager) Statuses() []Status {
	ids := m.IDs()
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		inst, err := m.get(id)
		if err != nil {
			continue
		}
		inst.mu.Lock()
		out = append(out, Status{Info: inst.Info, State: inst.State, Source: inst.Source})
		inst.mu.Unlock()
	}
	return out
}

func (m *Manager) get(id string) (*instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.registry[id]
	if !ok {
		return nil, xerrors.New(CodePluginNotFound, fmt.Sprintf("plugin %s not registered", id))
	}
	return inst, nil
}

func (m *Manager) execContext(ctx context.Context, inst *instance) *ExecutionContext {
	execCtx := &ExecutionContext{C: ctx, Config: inst.Config, Resources: m.resources}
	if ws, ok := m.isolation.(Workspace); ok {
		execCtx.WorkDir = ws.WorkDir(inst.Info)
	}
	return execCtx
}

func (m *Manager) loadConfigured(cfg ManagerConfig) error {
	for _, id := range slices.Sorted(maps.Keys(cfg.Plugins)) {
		pluginCfg := cfg.Plugins[id]
		if !pluginCfg.Enabled {
			continue
		}
		path := pluginCfg.Path
		if !filepath.IsAbs(path) && cfg.PluginDir != "" {
			path = filepath.Join(cfg.PluginDir, path)
		}
		policy := MergePolicies(cfg.Defaults, pluginCfg.Policy)
		if err := m.Load(id, path, maps.Clone(pluginCfg.Config), policy); err != nil {
			return err
		}
	}
	return nil
}

func mergeInfo(info Info, id string) Info {
	if info.ID == "" {
		info.ID = id
	}
	return info
}

func lifecycleErr(err error, stage, id string) error {
	return xerrors.Wrap(CodePluginLifecycle, err, fmt.Sprintf("%s plugin %s", stage, id),
		xerrors.WithMetadata("plugin", id),
		xerrors.WithMetadata("stage", stage))
}
