package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/telemetry"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/pkg/logger"
)

// Spec is the published form of an action.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Action is a descriptor bound to a wallet provider for one dispatch cycle.
type Action struct {
	Name           string
	Description    string
	Schema         *Schema
	RequiresWallet bool

	invoke func(ctx context.Context, args Args) (string, error)
}

// Invoke validates args and runs the body. Errors returned by the body are
// rendered into the result string; the returned error is reserved for
// rejected arguments and a missing wallet.
func (a Action) Invoke(ctx context.Context, args Args) (string, error) {
	if a.invoke == nil {
		return "", xerrors.Newf(xerrors.CodeActionNotFound, "动作 %s 未绑定实现", a.Name)
	}
	return a.invoke(ctx, args)
}

// Spec returns the published form of the action.
func (a Action) Spec() Spec {
	return Spec{Name: a.Name, Description: a.Description, Parameters: a.Schema.Raw()}
}

func bind(d Descriptor, w web3.WalletProvider) Action {
	return Action{
		Name:           d.Name,
		Description:    d.Description,
		Schema:         d.Schema,
		RequiresWallet: d.RequiresWallet,
		invoke: func(ctx context.Context, args Args) (string, error) {
			if err := d.Schema.Validate(args); err != nil {
				metrics.ObserveActionInvocation(d.Name, metrics.OutcomeInvalid)
				return "", err
			}
			if d.RequiresWallet && w == nil {
				return "", xerrors.Newf(xerrors.CodeActionWalletMissing, "动作 %s 需要钱包", d.Name)
			}
			out, err := d.Handler(ctx, w, args)
			if err != nil {
				return fmt.Sprintf("Error %s: %v", d.Name, err), nil
			}
			return out, nil
		},
	}
}

// Provider groups related actions under one owner.
type Provider interface {
	Name() string
	Owner() string
	SupportsNetwork(Network) bool
	Actions(w web3.WalletProvider) []Action
	Nested() []Provider
	Registry() *Registry
}

// Base implements Provider. Concrete providers embed *Base and call Define
// from their constructors.
type Base struct {
	name      string
	owner     string
	nested    []Provider
	registry  *Registry
	supports  NetworkPredicate
	registrar *Registrar
}

// Option customises a Base.
type Option func(*baseOptions)

type baseOptions struct {
	nested   []Provider
	registry *Registry
	supports NetworkPredicate
	sink     telemetry.Sink
}

// WithNested appends child providers whose actions follow the parent's.
func WithNested(providers ...Provider) Option {
	return func(o *baseOptions) {
		for _, p := range providers {
			if p != nil {
				o.nested = append(o.nested, p)
			}
		}
	}
}

// WithNetworks sets the network support predicate. Defaults to AnyNetwork.
func WithNetworks(pred NetworkPredicate) Option {
	return func(o *baseOptions) {
		if pred != nil {
			o.supports = pred
		}
	}
}

// WithRegistry shares an existing registry instead of a private one.
func WithRegistry(reg *Registry) Option {
	return func(o *baseOptions) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithTelemetrySink sets where usage events are sent.
func WithTelemetrySink(sink telemetry.Sink) Option {
	return func(o *baseOptions) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// NewBase creates a provider named name whose actions are registered under owner.
func NewBase(name, owner string, opts ...Option) *Base {
	o := baseOptions{supports: AnyNetwork()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	return &Base{
		name:      name,
		owner:     owner,
		nested:    o.nested,
		registry:  o.registry,
		supports:  o.supports,
		registrar: NewRegistrar(owner, name, o.registry, o.sink),
	}
}

// Define registers an action for this provider.
func (b *Base) Define(def Definition) error {
	return b.registrar.Define(def)
}

// MustDefine registers an action and panics on an invalid definition.
func (b *Base) MustDefine(def Definition) {
	b.registrar.MustDefine(def)
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// Owner returns the registry key of the provider's actions.
func (b *Base) Owner() string { return b.owner }

// Nested returns the child providers in configuration order.
func (b *Base) Nested() []Provider { return b.nested }

// Registry returns the registry the provider's actions live in.
func (b *Base) Registry() *Registry { return b.registry }

// SupportsNetwork evaluates the provider's network predicate.
func (b *Base) SupportsNetwork(n Network) bool { return b.supports(n) }

// Actions binds this provider's actions, then each nested provider's, to w.
func (b *Base) Actions(w web3.WalletProvider) []Action {
	var out []Action
	entries, ok := b.registry.Lookup(b.owner)
	if !ok {
		logger.Named("action").Warn("动作提供者没有注册任何动作",
			slog.String("provider", b.name),
			slog.String("owner", b.owner))
	}
	for _, entry := range entries {
		out = append(out, bind(entry.Descriptor, w))
	}
	for _, child := range b.nested {
		out = append(out, child.Actions(w)...)
	}
	return out
}

var _ Provider = (*Base)(nil)
