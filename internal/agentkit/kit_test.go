package agentkit

import (
	"context"
	"testing"

	"AgentKit-Chain/internal/action"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/web3test"

	"github.com/stretchr/testify/require"
)

var baseMainnet = web3.Network{ProtocolFamily: "evm", NetworkID: "base-mainnet", ChainID: "8453"}

func constant(out string) action.Signature {
	return action.Unbound(func(context.Context, action.Args) (string, error) { return out, nil })
}

func newProvider(name, owner string, pred action.NetworkPredicate, names ...string) *action.Base {
	b := action.NewBase(name, owner, action.WithNetworks(pred))
	for _, n := range names {
		b.MustDefine(action.Definition{Name: n, Description: n + " action", Signature: constant(owner + ":" + n)})
	}
	return b
}

func actionNames(actions []action.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Name)
	}
	return out
}

func TestMyProviderOnBaseMainnet(t *testing.T) {
	my := action.NewBase("my", "MyProvider", action.WithNetworks(action.ProtocolFamily("evm")))
	my.MustDefine(action.Definition{
		Name:        "transfer",
		Description: "Transfer funds",
		Signature: action.WalletBound(func(_ context.Context, w web3.WalletProvider, _ action.Args) (string, error) {
			return "from " + w.Address().Hex(), nil
		}),
	})
	my.MustDefine(action.Definition{Name: "price", Description: "Price", Signature: constant("42")})

	w := web3test.NewWallet(baseMainnet)
	kit, err := New(w, []action.Provider{my})
	require.NoError(t, err)
	require.Equal(t, []string{"MyProvider_transfer", "MyProvider_price"}, actionNames(kit.Actions()))

	out, err := kit.Invoke(context.Background(), "MyProvider_transfer", nil)
	require.NoError(t, err)
	require.Equal(t, "from "+w.Address().Hex(), out)
}

func TestUnsupportedProvidersAreExcluded(t *testing.T) {
	a := newProvider("a", "ProviderA", action.NetworkIDs("base-mainnet"), "one", "two")
	b := newProvider("b", "ProviderB", action.NetworkIDs("base-sepolia"), "three")

	kit, err := New(web3test.NewWallet(baseMainnet), []action.Provider{a, b})
	require.NoError(t, err)
	require.Equal(t, []string{"ProviderA_one", "ProviderA_two"}, actionNames(kit.Actions()))

	_, err = kit.Invoke(context.Background(), "ProviderB_three", nil)
	require.Equal(t, xerrors.CodeActionNotFound, xerrors.CodeOf(err))
}

func TestActionsFollowConfigurationOrder(t *testing.T) {
	a := newProvider("a", "ProviderA", action.AnyNetwork(), "x")
	b := newProvider("b", "ProviderB", action.AnyNetwork(), "y")

	kit, err := New(web3test.NewWallet(baseMainnet), []action.Provider{b, a})
	require.NoError(t, err)
	require.Equal(t, []string{"ProviderB_y", "ProviderA_x"}, actionNames(kit.Actions()))
}

func TestEmptyProviderFailsConstruction(t *testing.T) {
	full := newProvider("full", "FullProvider", action.AnyNetwork(), "x")
	empty := action.NewBase("empty", "EmptyProvider")

	_, err := New(web3test.NewWallet(baseMainnet), []action.Provider{full, empty})
	require.Equal(t, xerrors.CodeProviderEmpty, xerrors.CodeOf(err))

	nestedEmpty := action.NewBase("parent", "ParentProvider", action.WithNested(empty))
	nestedEmpty.MustDefine(action.Definition{Name: "p", Description: "p", Signature: constant("p")})
	_, err = New(web3test.NewWallet(baseMainnet), []action.Provider{nestedEmpty})
	require.Equal(t, xerrors.CodeProviderEmpty, xerrors.CodeOf(err))

	kit, err := New(web3test.NewWallet(baseMainnet), []action.Provider{full, empty}, WithLenientProviders())
	require.NoError(t, err)
	require.Equal(t, []string{"FullProvider_x"}, actionNames(kit.Actions()))
}

func TestDuplicateNamesAreRejected(t *testing.T) {
	reg := action.NewRegistry()
	first := action.NewBase("first", "SameOwner", action.WithRegistry(reg))
	first.MustDefine(action.Definition{Name: "x", Description: "x", Signature: constant("x")})
	second := action.NewBase("second", "SameOwner", action.WithRegistry(reg))

	_, err := New(web3test.NewWallet(baseMainnet), []action.Provider{first, second})
	require.Equal(t, xerrors.CodeDuplicateAction, xerrors.CodeOf(err))
}

func TestInvokeValidatesArguments(t *testing.T) {
	calls := 0
	p := action.NewBase("strict", "StrictProvider")
	p.MustDefine(action.Definition{
		Name:        "echo",
		Description: "Echo a message",
		Schema:      `{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`,
		Signature: action.Unbound(func(_ context.Context, args action.Args) (string, error) {
			calls++
			return args["message"].(string), nil
		}),
	})

	kit, err := New(web3test.NewWallet(baseMainnet), []action.Provider{p})
	require.NoError(t, err)

	_, err = kit.Invoke(context.Background(), "StrictProvider_echo", action.Args{"message": 5})
	require.Equal(t, xerrors.CodeActionValidationFailed, xerrors.CodeOf(err))
	require.Zero(t, calls)

	out, err := kit.Invoke(context.Background(), "StrictProvider_echo", action.Args{"message": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", out)
}

func TestDescribe(t *testing.T) {
	p := newProvider("a", "ProviderA", action.AnyNetwork(), "one")
	kit, err := New(web3test.NewWallet(baseMainnet), []action.Provider{p})
	require.NoError(t, err)

	specs := kit.Describe()
	require.Len(t, specs, 1)
	require.Equal(t, "ProviderA_one", specs[0].Name)
	require.Equal(t, "one action", specs[0].Description)
	require.JSONEq(t, `{"type":"object"}`, string(specs[0].Parameters))
}

func TestNewRequiresWallet(t *testing.T) {
	_, err := New(nil, nil)
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}
