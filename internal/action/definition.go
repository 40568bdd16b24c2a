package action

import (
	"context"
	"strings"
	"unicode"

	"AgentKit-Chain/internal/telemetry"
	"AgentKit-Chain/internal/web3"
)

// WalletBoundFunc is the body of an action that needs the active wallet.
type WalletBoundFunc func(ctx context.Context, w web3.WalletProvider, args Args) (string, error)

// UnboundFunc is the body of an action that only needs its arguments.
type UnboundFunc func(ctx context.Context, args Args) (string, error)

// Signature says which of the two body shapes an action has.
type Signature struct {
	walletBound WalletBoundFunc
	unbound     UnboundFunc
}

// WalletBound declares a body that receives the wallet provider.
func WalletBound(fn WalletBoundFunc) Signature {
	return Signature{walletBound: fn}
}

// Unbound declares a body that does not touch the wallet.
func Unbound(fn UnboundFunc) Signature {
	return Signature{unbound: fn}
}

// RequiresWallet reports whether the body takes a wallet provider.
func (s Signature) RequiresWallet() bool {
	return s.walletBound != nil
}

func (s Signature) handler() Handler {
	switch {
	case s.walletBound != nil:
		fn := s.walletBound
		return func(ctx context.Context, w web3.WalletProvider, args Args) (string, error) {
			return fn(ctx, w, args)
		}
	case s.unbound != nil:
		fn := s.unbound
		return func(ctx context.Context, _ web3.WalletProvider, args Args) (string, error) {
			return fn(ctx, args)
		}
	default:
		return nil
	}
}

func (s Signature) valid() bool {
	return (s.walletBound != nil) != (s.unbound != nil)
}

// Definition is what a provider declares for each of its actions.
type Definition struct {
	Name        string
	Description string
	Schema      string
	Signature   Signature
}

// Registrar validates definitions and records them for one owner.
type Registrar struct {
	owner    string
	provider string
	registry *Registry
	sink     telemetry.Sink
}

// NewRegistrar binds a registrar to owner. A nil registry means DefaultRegistry
// and a nil sink disables usage events.
func NewRegistrar(owner, provider string, registry *Registry, sink telemetry.Sink) *Registrar {
	if registry == nil {
		registry = DefaultRegistry
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Registrar{owner: owner, provider: provider, registry: registry, sink: sink}
}

// QualifiedName returns the name an action is published under.
func QualifiedName(owner, name string) string {
	return owner + "_" + name
}

// Define validates def and registers it under "<owner>_<name>".
func (r *Registrar) Define(def Definition) error {
	name := def.Name
	switch {
	case strings.TrimSpace(name) == "":
		return definitionError(r.owner, "动作名称不能为空", nil)
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return definitionError(name, "动作名称不能包含空白字符", nil)
	case strings.TrimSpace(def.Description) == "":
		return definitionError(name, "动作描述不能为空", nil)
	case !def.Signature.valid():
		return definitionError(name, "动作必须且只能声明一种调用签名", nil)
	}

	qualified := QualifiedName(r.owner, name)
	schema, err := CompileSchema(qualified, def.Schema)
	if err != nil {
		return err
	}

	r.registry.Register(r.owner, name, Descriptor{
		Name:           qualified,
		Description:    def.Description,
		Schema:         schema,
		Handler:        r.instrument(qualified, def.Signature.handler()),
		RequiresWallet: def.Signature.RequiresWallet(),
	})
	return nil
}

// MustDefine is Define that panics on an invalid definition.
func (r *Registrar) MustDefine(def Definition) {
	if err := r.Define(def); err != nil {
		panic(err)
	}
}
