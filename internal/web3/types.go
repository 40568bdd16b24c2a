package web3

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ProtocolFamilyEVM identifies EVM compatible networks.
const ProtocolFamilyEVM = "evm"

// Network identifies the chain a wallet provider is connected to.
// ChainID may be empty for networks that do not expose one.
type Network struct {
	ProtocolFamily string `json:"protocol_family" yaml:"protocol_family"`
	NetworkID      string `json:"network_id" yaml:"network_id"`
	ChainID        string `json:"chain_id,omitempty" yaml:"chain_id"`
}

// String renders the network as family/id.
func (n Network) String() string {
	if n.NetworkID == "" {
		return n.ProtocolFamily
	}
	return fmt.Sprintf("%s/%s", n.ProtocolFamily, n.NetworkID)
}

// IsEVM reports whether the network belongs to the EVM protocol family.
func (n Network) IsEVM() bool {
	return strings.EqualFold(n.ProtocolFamily, ProtocolFamilyEVM)
}

// ChainSnapshot represents summarized network metadata for UI/reporting.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// TxRequest describes an outgoing transaction. Gas is estimated when zero.
type TxRequest struct {
	To    *common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
}

// CallRequest describes a read-only contract call against the latest block.
type CallRequest struct {
	To   common.Address
	Data []byte
}

// WalletProvider is the capability surface handed to wallet-bound actions.
type WalletProvider interface {
	Name() string
	Address() common.Address
	Network() Network
	Balance(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	ReadContract(ctx context.Context, req CallRequest) ([]byte, error)
	NativeTransfer(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error)
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// SnapshotProvider is implemented by wallet providers that can report chain
// metadata alongside their identity.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (ChainSnapshot, error)
}
