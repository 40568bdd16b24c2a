// Package wallet exposes the bound wallet provider itself as actions.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/providers/units"
	"AgentKit-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
)

// Owner is the registry key of the wallet actions.
const Owner = "WalletActionProvider"

const nativeTransferSchema = `{
  "type": "object",
  "properties": {
    "to": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "Destination address"},
    "value": {"type": "string", "pattern": "^[0-9]*\\.?[0-9]+$", "description": "Amount of native currency in whole units, e.g. 0.01"}
  },
  "required": ["to", "value"],
  "additionalProperties": false
}`

// Provider implements the wallet actions.
type Provider struct {
	*action.Base
}

// New creates the wallet action provider.
func New(opts ...action.Option) *Provider {
	p := &Provider{Base: action.NewBase("wallet", Owner, opts...)}
	p.MustDefine(action.Definition{
		Name: "get_wallet_details",
		Description: "This tool returns the details of the connected wallet: address, " +
			"network and native balance.",
		Signature: action.WalletBound(p.getWalletDetails),
	})
	p.MustDefine(action.Definition{
		Name: "native_transfer",
		Description: "This tool transfers native currency (e.g. ETH) from the connected wallet " +
			"to a destination address. The value is given in whole units.",
		Schema:    nativeTransferSchema,
		Signature: action.WalletBound(p.nativeTransfer),
	})
	return p
}

func (p *Provider) getWalletDetails(ctx context.Context, w web3.WalletProvider, _ action.Args) (string, error) {
	balance, err := w.Balance(ctx)
	if err != nil {
		return "", err
	}
	network := w.Network()
	chainID := network.ChainID
	if chainID == "" {
		chainID = "N/A"
	}

	var b strings.Builder
	b.WriteString("Wallet Details:\n")
	fmt.Fprintf(&b, "- Provider: %s\n", w.Name())
	fmt.Fprintf(&b, "- Address: %s\n", w.Address().Hex())
	b.WriteString("- Network:\n")
	fmt.Fprintf(&b, "  * Protocol Family: %s\n", network.ProtocolFamily)
	fmt.Fprintf(&b, "  * Network ID: %s\n", network.NetworkID)
	fmt.Fprintf(&b, "  * Chain ID: %s\n", chainID)
	fmt.Fprintf(&b, "- Native Balance: %s wei (%s)", balance.String(), units.Format(balance, units.EtherDecimals))

	if sp, ok := w.(web3.SnapshotProvider); ok {
		if snap, err := sp.Snapshot(ctx); err == nil {
			fmt.Fprintf(&b, "\n- Latest Block: %s", snap.BlockNumber)
		}
	}
	return b.String(), nil
}

func (p *Provider) nativeTransfer(ctx context.Context, w web3.WalletProvider, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		To    string `json:"to"`
		Value string `json:"value"`
	}](args)
	if err != nil {
		return "", err
	}
	amount, err := units.Parse(in.Value, units.EtherDecimals)
	if err != nil {
		return "", err
	}
	if amount.Sign() == 0 {
		return "", fmt.Errorf("转账金额必须大于 0")
	}

	to := common.HexToAddress(in.To)
	hash, err := w.NativeTransfer(ctx, to, amount)
	if err != nil {
		return "", err
	}
	receipt, err := w.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return "", err
	}
	if receipt.Status == 0 {
		return "", fmt.Errorf("交易 %s 执行失败", hash.Hex())
	}
	return fmt.Sprintf("Transferred %s to %s.\nTransaction hash: %s", in.Value, to.Hex(), hash.Hex()), nil
}
