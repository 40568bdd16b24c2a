package erc20

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/web3test"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var usdc = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")

func newTokenWallet(t *testing.T, balance *big.Int) *web3test.Wallet {
	t.Helper()
	w := web3test.NewWallet(web3.Network{ProtocolFamily: "evm", NetworkID: "base-sepolia"})
	w.CallHandler = func(req web3.CallRequest) ([]byte, error) {
		if req.To != usdc {
			return nil, fmt.Errorf("unexpected contract %s", req.To.Hex())
		}
		method, err := parsedABI.MethodById(req.Data[:4])
		if err != nil {
			return nil, err
		}
		switch method.Name {
		case "decimals":
			return method.Outputs.Pack(uint8(6))
		case "symbol":
			return method.Outputs.Pack("USDC")
		case "balanceOf":
			return method.Outputs.Pack(balance)
		}
		return nil, fmt.Errorf("unexpected method %s", method.Name)
	}
	return w
}

func find(t *testing.T, p *Provider, w web3.WalletProvider, name string) action.Action {
	t.Helper()
	for _, a := range p.Actions(w) {
		if a.Name == Owner+"_"+name {
			return a
		}
	}
	t.Fatalf("missing action %s", name)
	return action.Action{}
}

func TestGetBalance(t *testing.T) {
	w := newTokenWallet(t, big.NewInt(12_500_000))
	out, err := find(t, New(), w, "get_balance").Invoke(context.Background(), action.Args{
		"contract_address": usdc.Hex(),
	})
	require.NoError(t, err)
	require.Contains(t, out, "Balance of USDC")
	require.Contains(t, out, "is 12.5")
}

func TestTransferEncodesCall(t *testing.T) {
	w := newTokenWallet(t, big.NewInt(0))
	dest := common.HexToAddress("0x3333333333333333333333333333333333333333")

	out, err := find(t, New(), w, "transfer").Invoke(context.Background(), action.Args{
		"amount":           "1.25",
		"contract_address": usdc.Hex(),
		"destination":      dest.Hex(),
	})
	require.NoError(t, err)
	require.Contains(t, out, "Transferred 1.25 USDC to "+dest.Hex())

	sent := w.SentTransactions()
	require.Len(t, sent, 1)
	require.Equal(t, usdc, *sent[0].To)

	method, err := parsedABI.MethodById(sent[0].Data[:4])
	require.NoError(t, err)
	require.Equal(t, "transfer", method.Name)
	values, err := method.Inputs.Unpack(sent[0].Data[4:])
	require.NoError(t, err)
	require.Equal(t, dest, values[0].(common.Address))
	require.Equal(t, big.NewInt(1_250_000), values[1].(*big.Int))
}

func TestTransferRejectsTooManyDecimals(t *testing.T) {
	w := newTokenWallet(t, big.NewInt(0))
	out, err := find(t, New(), w, "transfer").Invoke(context.Background(), action.Args{
		"amount":           "0.0000001",
		"contract_address": usdc.Hex(),
		"destination":      "0x3333333333333333333333333333333333333333",
	})
	require.NoError(t, err)
	require.Contains(t, out, "Error "+Owner+"_transfer")
	require.Empty(t, w.SentTransactions())
}

func TestOnlyEVMNetworks(t *testing.T) {
	p := New()
	require.True(t, p.SupportsNetwork(web3.Network{ProtocolFamily: "evm", NetworkID: "base-mainnet"}))
	require.False(t, p.SupportsNetwork(web3.Network{ProtocolFamily: "svm", NetworkID: "solana-devnet"}))
}
