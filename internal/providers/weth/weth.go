// Package weth wraps native ETH into WETH on Base networks.
package weth

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

// Owner is the registry key of the WETH actions.
const Owner = "WethActionProvider"

// Address is the canonical WETH predeploy on Base.
var Address = common.HexToAddress("0x4200000000000000000000000000000000000006")

// ABI covers the deposit entry point.
const ABI = `[{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]}]`

const wrapSchema = `{
  "type": "object",
  "properties": {
    "amount_to_wrap": {"type": "string", "pattern": "^[0-9]+$", "description": "Amount of ETH to wrap, in wei"}
  },
  "required": ["amount_to_wrap"],
  "additionalProperties": false
}`

var parsedABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Provider implements the WETH actions.
type Provider struct {
	*action.Base
}

// New creates the WETH provider. It is available on base-mainnet and base-sepolia.
func New(opts ...action.Option) *Provider {
	opts = append([]action.Option{action.WithNetworks(action.NetworkIDs("base-mainnet", "base-sepolia"))}, opts...)
	p := &Provider{Base: action.NewBase("weth", Owner, opts...)}
	p.MustDefine(action.Definition{
		Name: "wrap_eth",
		Description: "This tool wraps ETH into WETH. The amount is given in wei, " +
			"e.g. 1000000000000000000 wraps one ETH.",
		Schema:    wrapSchema,
		Signature: action.WalletBound(p.wrapEth),
	})
	return p
}

func (p *Provider) wrapEth(ctx context.Context, w web3.WalletProvider, args action.Args) (string, error) {
	in, err := action.Decode[struct {
		AmountToWrap string `json:"amount_to_wrap"`
	}](args)
	if err != nil {
		return "", err
	}
	amount, ok := new(big.Int).SetString(in.AmountToWrap, 10)
	if !ok || amount.Sign() <= 0 {
		return "", fmt.Errorf("包装金额必须是正整数 wei: %s", in.AmountToWrap)
	}
	data, err := parsedABI.Pack("deposit")
	if err != nil {
		return "", fmt.Errorf("编码 deposit 调用失败: %w", err)
	}
	to := Address
	hash, err := w.SendTransaction(ctx, web3.TxRequest{To: &to, Value: amount, Data: data})
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
	return fmt.Sprintf("Wrapped %s wei of ETH with transaction hash: %s", amount.String(), hash.Hex()), nil
}
