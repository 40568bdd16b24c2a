// Package web3test provides an in-memory wallet provider for tests.
package web3test

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"AgentKit-Chain/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is a scriptable web3.WalletProvider that records what it was asked
// to do.
type Wallet struct {
	mu sync.Mutex

	WalletName string
	Addr       common.Address
	Net        web3.Network
	NativeWei  *big.Int

	// CallResults maps contract address to the bytes returned by ReadContract.
	// CallHandler takes precedence when set.
	CallResults map[common.Address][]byte
	CallHandler func(req web3.CallRequest) ([]byte, error)
	SendErr     error
	OnClose     func()

	Sent    []web3.TxRequest
	Calls   []web3.CallRequest
	nextTxn uint64
}

// NewWallet returns a wallet on the given network with a fixed address.
func NewWallet(network web3.Network) *Wallet {
	return &Wallet{
		WalletName:  "test-wallet",
		Addr:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Net:         network,
		NativeWei:   big.NewInt(0),
		CallResults: map[common.Address][]byte{},
	}
}

func (w *Wallet) Name() string            { return w.WalletName }
func (w *Wallet) Address() common.Address { return w.Addr }
func (w *Wallet) Network() web3.Network   { return w.Net }

func (w *Wallet) Balance(context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.NativeWei), nil
}

func (w *Wallet) SendTransaction(_ context.Context, req web3.TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.SendErr != nil {
		return common.Hash{}, w.SendErr
	}
	w.Sent = append(w.Sent, req)
	w.nextTxn++
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d", w.nextTxn))), nil
}

func (w *Wallet) WaitForTransactionReceipt(_ context.Context, hash common.Hash) (*coretypes.Receipt, error) {
	return &coretypes.Receipt{
		Status:      coretypes.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: big.NewInt(1),
	}, nil
}

func (w *Wallet) ReadContract(_ context.Context, req web3.CallRequest) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls = append(w.Calls, req)
	if w.CallHandler != nil {
		return w.CallHandler(req)
	}
	out, ok := w.CallResults[req.To]
	if !ok {
		return nil, fmt.Errorf("no result scripted for %s", req.To.Hex())
	}
	return out, nil
}

func (w *Wallet) NativeTransfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	return w.SendTransaction(ctx, web3.TxRequest{To: &to, Value: value})
}

func (w *Wallet) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	return crypto.Keccak256(msg), nil
}

// Close runs OnClose when set.
func (w *Wallet) Close() {
	if w.OnClose != nil {
		w.OnClose()
	}
}

// SentTransactions returns a copy of the recorded transactions.
func (w *Wallet) SentTransactions() []web3.TxRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]web3.TxRequest(nil), w.Sent...)
}

var _ web3.WalletProvider = (*Wallet)(nil)
