package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/pkg/logger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	defaultPollInterval   = time.Second
	defaultReceiptTimeout = 2 * time.Minute
)

// Config describes how to construct an EVM wallet provider.
type Config struct {
	Name           string
	Network        web3.Network
	PrivateKey     string
	Notes          string
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
}

// Wallet implements web3.WalletProvider for EVM compatible chains using a
// local ECDSA key.
type Wallet struct {
	name           string
	notes          string
	network        web3.Network
	key            *ecdsa.PrivateKey
	address        common.Address
	backend        Backend
	chainID        *big.Int
	pollInterval   time.Duration
	receiptTimeout time.Duration
	closer         func()

	sendMu sync.Mutex
}

// NewWallet binds the key in cfg to an existing backend. The chain ID is read
// from the network definition when present and queried otherwise.
func NewWallet(ctx context.Context, backend Backend, cfg Config) (*Wallet, error) {
	if backend == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "钱包缺少链访问后端")
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
	if keyHex == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置钱包私钥")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析钱包私钥失败")
	}

	network := cfg.Network
	if network.ProtocolFamily == "" {
		network.ProtocolFamily = web3.ProtocolFamilyEVM
	}

	var chainID *big.Int
	if network.ChainID != "" {
		parsed, ok := new(big.Int).SetString(network.ChainID, 0)
		if !ok {
			return nil, xerrors.Newf(xerrors.CodeInvalidArgument, "无效的链 ID %q", network.ChainID)
		}
		chainID = parsed
	} else {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "获取链 ID 失败")
		}
		network.ChainID = chainID.String()
	}

	name := cfg.Name
	if name == "" {
		name = network.NetworkID
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	timeout := cfg.ReceiptTimeout
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}

	return &Wallet{
		name:           name,
		notes:          cfg.Notes,
		network:        network,
		key:            key,
		address:        crypto.PubkeyToAddress(key.PublicKey),
		backend:        backend,
		chainID:        chainID,
		pollInterval:   poll,
		receiptTimeout: timeout,
	}, nil
}

// Name returns the wallet provider name.
func (w *Wallet) Name() string { return w.name }

// Address returns the account controlled by the wallet.
func (w *Wallet) Address() common.Address { return w.address }

// Network returns the network the wallet is bound to.
func (w *Wallet) Network() web3.Network { return w.network }

// Balance returns the native balance at the latest block.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := w.backend.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "查询余额失败")
	}
	return balance, nil
}

// SendTransaction signs an EIP-1559 transaction and broadcasts it. Sends are
// serialised so consecutive calls use consecutive nonces.
func (w *Wallet) SendTransaction(ctx context.Context, req web3.TxRequest) (common.Hash, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "查询交易计数失败")
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "获取最新区块头失败")
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "获取小费建议失败")
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas := req.Gas
	if gas == 0 {
		gas, err = w.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:  w.address,
			To:    req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "估算 gas 失败")
		}
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        req.To,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("签名交易失败: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "发送交易失败")
	}
	return signed.Hash(), nil
}

// WaitForTransactionReceipt polls for the receipt at a fixed interval until
// it is available or the receipt timeout elapses. Lookup errors are treated as
// transient: nodes report "transaction indexing is in progress" and similar
// conditions while catching up.
func (w *Wallet) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) && ctx.Err() == nil {
			lastErr = err
			logger.Named("ethereum").Debug("查询交易回执失败，继续轮询",
				slog.String("tx_hash", hash.Hex()), slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				opts := []xerrors.Option{xerrors.WithMetadata("tx_hash", hash.Hex())}
				if lastErr != nil {
					opts = append(opts, xerrors.WithMetadata("last_error", lastErr.Error()))
				}
				return nil, xerrors.New(xerrors.CodeWalletReceiptTimeout,
					fmt.Sprintf("等待交易 %s 回执超时", hash.Hex()), opts...)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReadContract performs an eth_call against the latest block.
func (w *Wallet) ReadContract(ctx context.Context, req web3.CallRequest) ([]byte, error) {
	to := req.To
	out, err := w.backend.CallContract(ctx, gethcore.CallMsg{From: w.address, To: &to, Data: req.Data}, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "调用合约失败")
	}
	return out, nil
}

// NativeTransfer sends value wei to the given address.
func (w *Wallet) NativeTransfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	if value == nil || value.Sign() <= 0 {
		return common.Hash{}, xerrors.New(xerrors.CodeInvalidArgument, "转账金额必须大于 0")
	}
	return w.SendTransaction(ctx, web3.TxRequest{To: &to, Value: value})
}

// SignMessage produces an EIP-191 personal signature with V in {27, 28}.
func (w *Wallet) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(msg), w.key)
	if err != nil {
		return nil, fmt.Errorf("签名消息失败: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Snapshot gathers lightweight metadata from the chain.
func (w *Wallet) Snapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	blockNumber, err := w.backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeWalletRPCFailure, err, "获取最新区块高度失败")
	}
	return web3.ChainSnapshot{
		ChainID:     toHexBig(w.chainID),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       w.notes,
	}, nil
}

// Close releases the connection owned by the wallet, if any.
func (w *Wallet) Close() {
	if w == nil || w.closer == nil {
		return
	}
	w.closer()
	w.closer = nil
}

var (
	_ web3.WalletProvider   = (*Wallet)(nil)
	_ web3.SnapshotProvider = (*Wallet)(nil)
)
