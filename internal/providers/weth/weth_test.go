package weth

import (
	"context"
	"testing"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/web3test"

	"github.com/stretchr/testify/require"
)

func TestWrapEthSendsDeposit(t *testing.T) {
	w := web3test.NewWallet(web3.Network{ProtocolFamily: "evm", NetworkID: "base-sepolia"})
	actions := New().Actions(w)
	require.Len(t, actions, 1)
	require.Equal(t, Owner+"_wrap_eth", actions[0].Name)

	out, err := actions[0].Invoke(context.Background(), action.Args{"amount_to_wrap": "1000"})
	require.NoError(t, err)
	require.Contains(t, out, "Wrapped 1000 wei")

	sent := w.SentTransactions()
	require.Len(t, sent, 1)
	require.Equal(t, Address, *sent[0].To)
	require.Equal(t, "1000", sent[0].Value.String())
	require.Equal(t, parsedABI.Methods["deposit"].ID, sent[0].Data)
}

func TestWrapEthRejectsZero(t *testing.T) {
	w := web3test.NewWallet(web3.Network{ProtocolFamily: "evm", NetworkID: "base-mainnet"})
	out, err := New().Actions(w)[0].Invoke(context.Background(), action.Args{"amount_to_wrap": "0"})
	require.NoError(t, err)
	require.Contains(t, out, "Error "+Owner+"_wrap_eth")
	require.Empty(t, w.SentTransactions())
}

func TestSupportedNetworks(t *testing.T) {
	p := New()
	require.True(t, p.SupportsNetwork(web3.Network{ProtocolFamily: "evm", NetworkID: "base-mainnet"}))
	require.True(t, p.SupportsNetwork(web3.Network{ProtocolFamily: "evm", NetworkID: "base-sepolia"}))
	require.False(t, p.SupportsNetwork(web3.Network{ProtocolFamily: "evm", NetworkID: "ethereum-mainnet"}))
}
