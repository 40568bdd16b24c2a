// Package erc20 provides balance and transfer actions for ERC-20 tokens.
package erc20

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/providers/units"
	"AgentKit-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Owner is the registry key of the ERC-20 actions.
const Owner = "Erc20ActionProvider"

// ABI covers the subset of ERC-20 the actions use.
const ABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const getBalanceSchema = `{
  "type": "object",
  "properties": {
    "contract_address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "The ERC-20 token contract"}
  },
  "required": ["contract_address"],
  "additionalProperties": false
}`

const transferSchema = `{
  "type": "object",
  "properties": {
    "amount": {"type": "string", "pattern": "^[0-9]*\\.?[0-9]+$", "description": "Amount in whole token units, e.g. 10.5"},
    "contract_address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "The ERC-20 token contract"},
    "destination": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "Recipient address"}
  },
  "required": ["amount", "contract_address", "destination"],
  "additionalProperties": false
}`

var parsedABI = mustParseABI(ABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Provider implements the ERC-20 actions.
type Provider struct {
	*action.Base
}

// New creates the ERC-20 action provider. It supports every EVM network.
func New(opts ...action.Option) *Provider {
	opts = append([]action.Option{action.WithNetworks(action.ProtocolFamily(web3.ProtocolFamilyEVM))}, opts...)
	p := &Provider{Base: action.NewBase("erc20", Owner, opts...)}
	p.MustDefine(action.Definition{
		Name:        "get_balance",
		Description: "This tool returns the connected wallet's balance of an ERC-20 token in whole units.",
		Schema:      getBalanceSchema,
		Signature:   action.WalletBound(p.getBalance),
	})
	p.MustDefine(action.Definition{
		Name: "transfer",
		Description: "This tool transfers an amount of an ERC-20 token from the connected wallet " +
			"to a destination address. The amount is given in whole token units.",
		Schema:    transferSchema,
		Signature: action.WalletBound(p.transfer),
	})
	return p
}

type tokenInfo struct {
	symbol   string
	decimals int
}

func (p *Provider) getBalance(ctx context.Context, w web3.WalletProvider, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		ContractAddress string `json:"contract_address"`
	}](args)
	if err != nil {
		return "", err
	}
	token := common.HexToAddress(in.ContractAddress)
	info, err := readTokenInfo(ctx, w, token)
	if err != nil {
		return "", err
	}
	balance, err := BalanceOf(ctx, w, token, w.Address())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Balance of %s (%s) for %s is %s",
		info.symbol, token.Hex(), w.Address().Hex(), units.Format(balance, info.decimals)), nil
}

func (p *Provider) transfer(ctx context.Context, w web3.WalletProvider, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		Amount          string `json:"amount"`
		ContractAddress string `json:"contract_address"`
		Destination     string `json:"destination"`
	}](args)
	if err != nil {
		return "", err
	}
	token := common.HexToAddress(in.ContractAddress)
	info, err := readTokenInfo(ctx, w, token)
	if err != nil {
		return "", err
	}
	amount, err := units.Parse(in.Amount, info.decimals)
	if err != nil {
		return "", err
	}
	destination := common.HexToAddress(in.Destination)

	data, err := parsedABI.Pack("transfer", destination, amount)
	if err != nil {
		return "", fmt.Errorf("编码 transfer 调用失败: %w", err)
	}
	hash, err := w.SendTransaction(ctx, web3.TxRequest{To: &token, Data: data})
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
	return fmt.Sprintf("Transferred %s %s to %s.\nTransaction hash: %s",
		in.Amount, info.symbol, destination.Hex(), hash.Hex()), nil
}

// BalanceOf reads balanceOf(account) on token.
func BalanceOf(ctx context.Context, w web3.WalletProvider, token, account common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := call(ctx, w, token, "balanceOf", &balance, account); err != nil {
		return nil, err
	}
	return balance, nil
}

func readTokenInfo(ctx context.Context, w web3.WalletProvider, token common.Address) (tokenInfo, error) {
	var decimals uint8
	if err := call(ctx, w, token, "decimals", &decimals); err != nil {
		return tokenInfo{}, err
	}
	var symbol string
	if err := call(ctx, w, token, "symbol", &symbol); err != nil {
		return tokenInfo{}, err
	}
	return tokenInfo{symbol: symbol, decimals: int(decimals)}, nil
}

func call(ctx context.Context, w web3.WalletProvider, token common.Address, method string, out any, params ...any) error {
	data, err := parsedABI.Pack(method, params...)
	if err != nil {
		return fmt.Errorf("编码 %s 调用失败: %w", method, err)
	}
	raw, err := w.ReadContract(ctx, web3.CallRequest{To: token, Data: data})
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("合约 %s 未返回 %s 结果", token.Hex(), method)
	}
	if err := parsedABI.UnpackIntoInterface(out, method, raw); err != nil {
		return fmt.Errorf("解析 %s 返回值失败: %w", method, err)
	}
	return nil
}
