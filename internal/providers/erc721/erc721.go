// Package erc721 provides balance and transfer actions for ERC-721 NFTs.
package erc721

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"AgentKit-Chain/internal/action"
	"AgentKit-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Owner is the registry key of the ERC-721 actions.
const Owner = "Erc721ActionProvider"

// ABI covers the subset of ERC-721 the actions use.
const ABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const getBalanceSchema = `{
  "type": "object",
  "properties": {
    "contract_address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "The NFT collection contract"},
    "address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "Holder to query, defaults to the connected wallet"}
  },
  "required": ["contract_address"],
  "additionalProperties": false
}`

const transferSchema = `{
  "type": "object",
  "properties": {
    "contract_address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "The NFT collection contract"},
    "token_id": {"type": "string", "pattern": "^[0-9]+$", "description": "The token ID to transfer"},
    "destination": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$", "description": "Recipient address"}
  },
  "required": ["contract_address", "token_id", "destination"],
  "additionalProperties": false
}`

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Provider implements the ERC-721 actions.
type Provider struct {
	*action.Base
}

// New creates the ERC-721 action provider. It supports every EVM network.
func New(opts ...action.Option) *Provider {
	opts = append([]action.Option{action.WithNetworks(action.ProtocolFamily(web3.ProtocolFamilyEVM))}, opts...)
	p := &Provider{Base: action.NewBase("erc721", Owner, opts...)}
	p.MustDefine(action.Definition{
		Name:        "get_balance",
		Description: "This tool returns how many NFTs of a collection an address holds. The address defaults to the connected wallet.",
		Schema:      getBalanceSchema,
		Signature:   action.WalletBound(p.getBalance),
	})
	p.MustDefine(action.Definition{
		Name:        "transfer",
		Description: "This tool transfers an NFT owned by the connected wallet to a destination address.",
		Schema:      transferSchema,
		Signature:   action.WalletBound(p.transfer),
	})
	return p
}

func (p *Provider) getBalance(ctx context.Context, w web3.WalletProvider, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		ContractAddress string `json:"contract_address"`
		Address         string `json:"address"`
	}](args)
	if err != nil {
		return "", err
	}
	holder := w.Address()
	if in.Address != "" {
		holder = common.HexToAddress(in.Address)
	}
	contract := common.HexToAddress(in.ContractAddress)

	data, err := parsedABI.Pack("balanceOf", holder)
	if err != nil {
		return "", fmt.Errorf("编码 balanceOf 调用失败: %w", err)
	}
	raw, err := w.ReadContract(ctx, web3.CallRequest{To: contract, Data: data})
	if err != nil {
		return "", err
	}
	var balance *big.Int
	if err := parsedABI.UnpackIntoInterface(&balance, "balanceOf", raw); err != nil {
		return "", fmt.Errorf("解析 balanceOf 返回值失败: %w", err)
	}
	return fmt.Sprintf("Address %s holds %s NFTs from contract %s", holder.Hex(), balance.String(), contract.Hex()), nil
}

func (p *Provider) transfer(ctx context.Context, w web3.WalletProvider, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		ContractAddress string `json:"contract_address"`
		TokenID         string `json:"token_id"`
		Destination     string `json:"destination"`
	}](args)
	if err != nil {
		return "", err
	}
	tokenID, ok := new(big.Int).SetString(in.TokenID, 10)
	if !ok {
		return "", fmt.Errorf("无效的 token_id: %s", in.TokenID)
	}
	contract := common.HexToAddress(in.ContractAddress)
	destination := common.HexToAddress(in.Destination)

	data, err := parsedABI.Pack("transferFrom", w.Address(), destination, tokenID)
	if err != nil {
		return "", fmt.Errorf("编码 transferFrom 调用失败: %w", err)
	}
	hash, err := w.SendTransaction(ctx, web3.TxRequest{To: &contract, Data: data})
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
	return fmt.Sprintf("Transferred NFT %s from contract %s to %s.\nTransaction hash: %s",
		tokenID.String(), contract.Hex(), destination.Hex(), hash.Hex()), nil
}
