package agentkit

import (
	"context"
	"fmt"
	"log/slog"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/pkg/logger"
)

// Kit binds a wallet provider to an ordered set of action providers and
// dispatches calls by action name.
type Kit struct {
	wallet    web3.WalletProvider
	providers []action.Provider
	lenient   bool
	log       *slog.Logger
}

// Option customises a Kit.
type Option func(*Kit)

// WithLenientProviders downgrades empty providers from a construction error
// to a warning.
func WithLenientProviders() Option {
	return func(k *Kit) {
		k.lenient = true
	}
}

// New validates the provider set and returns a Kit. Every provider, nested
// ones included, must contribute at least one registered action.
func New(w web3.WalletProvider, providers []action.Provider, opts ...Option) (*Kit, error) {
	if w == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "AgentKit 需要一个钱包提供者")
	}
	k := &Kit{
		wallet:    w,
		providers: append([]action.Provider(nil), providers...),
		log:       logger.Named("agentkit"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}

	for _, p := range k.providers {
		if err := k.checkProvider(p); err != nil {
			return nil, err
		}
	}
	if _, err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Kit) checkProvider(p action.Provider) error {
	if p == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "动作提供者不能为空")
	}
	entries, _ := p.Registry().Lookup(p.Owner())
	if len(entries) == 0 {
		if !k.lenient {
			return xerrors.New(xerrors.CodeProviderEmpty,
				fmt.Sprintf("动作提供者 %s (%s) 没有注册任何动作", p.Name(), p.Owner()),
				xerrors.WithMetadata("provider", p.Name()))
		}
		k.log.Warn("动作提供者没有注册任何动作，已跳过",
			slog.String("provider", p.Name()),
			slog.String("owner", p.Owner()))
	}
	for _, child := range p.Nested() {
		if err := k.checkProvider(child); err != nil {
			return err
		}
	}
	return nil
}

// Wallet returns the bound wallet provider.
func (k *Kit) Wallet() web3.WalletProvider { return k.wallet }

// Providers returns the configured providers in order.
func (k *Kit) Providers() []action.Provider {
	return append([]action.Provider(nil), k.providers...)
}

// Actions returns the actions of every provider that supports the wallet's
// network, in configuration order. The list is rebuilt on every call.
func (k *Kit) Actions() []action.Action {
	network := k.wallet.Network()
	var out []action.Action
	for _, p := range k.providers {
		if !p.SupportsNetwork(network) {
			k.log.Debug("动作提供者不支持当前网络",
				slog.String("provider", p.Name()),
				slog.String("network", network.String()))
			continue
		}
		out = append(out, p.Actions(k.wallet)...)
	}
	return out
}

// Validate rebuilds the action list and fails on duplicate names.
func (k *Kit) Validate() ([]action.Action, error) {
	actions := k.Actions()
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if _, dup := seen[a.Name]; dup {
			return nil, xerrors.New(xerrors.CodeDuplicateAction,
				fmt.Sprintf("动作名称重复: %s", a.Name),
				xerrors.WithMetadata("action", a.Name))
		}
		seen[a.Name] = struct{}{}
	}
	return actions, nil
}

// Lookup finds an action by its published name.
func (k *Kit) Lookup(name string) (action.Action, error) {
	actions, err := k.Validate()
	if err != nil {
		return action.Action{}, err
	}
	for _, a := range actions {
		if a.Name == name {
			return a, nil
		}
	}
	return action.Action{}, xerrors.New(xerrors.CodeActionNotFound,
		fmt.Sprintf("未找到动作 %s", name),
		xerrors.WithMetadata("action", name))
}

// Invoke runs the named action with args.
func (k *Kit) Invoke(ctx context.Context, name string, args action.Args) (string, error) {
	a, err := k.Lookup(name)
	if err != nil {
		return "", err
	}
	return a.Invoke(ctx, args)
}

// Describe publishes name, description and schema of every current action.
func (k *Kit) Describe() []action.Spec {
	actions := k.Actions()
	specs := make([]action.Spec, 0, len(actions))
	for _, a := range actions {
		specs = append(specs, a.Spec())
	}
	return specs
}
