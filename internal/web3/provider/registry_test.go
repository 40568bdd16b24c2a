package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/ethereum"
	"AgentKit-Chain/internal/web3/web3test"
)

func writeNetworks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "networks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write networks: %v", err)
	}
	return path
}

func fakeDialer(closed *[]string) Dialer {
	return func(_ context.Context, name string, _ web3.NetworkDefinition, cfg ethereum.Config) (web3.WalletProvider, error) {
		w := web3test.NewWallet(cfg.Network)
		w.OnClose = func() { *closed = append(*closed, name) }
		return w, nil
	}
}

func TestRegistryPicksDefaultNetwork(t *testing.T) {
	path := writeNetworks(t, `networks:
  base-sepolia:
    rpc_url: http://sepolia
  base-mainnet:
    rpc_url: http://mainnet
`)
	var closed []string
	reg, err := NewRegistryWithDialer(context.Background(), config.Web3Config{
		NetworksFile: path,
		PrivateKey:   "01",
	}, fakeDialer(&closed))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if got := reg.Networks(); len(got) != 2 || got[0] != "base-mainnet" {
		t.Fatalf("unexpected networks %v", got)
	}
	wallet, err := reg.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if wallet.Network().NetworkID != "base-mainnet" {
		t.Fatalf("expected alphabetical default, got %s", wallet.Network())
	}
	if _, ok := reg.Wallet("base-sepolia"); !ok {
		t.Fatal("expected base-sepolia wallet")
	}

	reg.Close()
	if len(closed) != 2 {
		t.Fatalf("expected both wallets closed, got %v", closed)
	}
}

func TestRegistryFallsBackToSingleRPC(t *testing.T) {
	var closed []string
	reg, err := NewRegistryWithDialer(context.Background(), config.Web3Config{
		RPCURL:     "http://localhost:8545",
		PrivateKey: "01",
	}, fakeDialer(&closed))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	wallet, err := reg.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if wallet.Network().NetworkID != "default" {
		t.Fatalf("unexpected network %s", wallet.Network())
	}
}

func TestRegistryErrors(t *testing.T) {
	var closed []string
	if _, err := NewRegistryWithDialer(context.Background(), config.Web3Config{RPCURL: "http://x"}, fakeDialer(&closed)); err == nil {
		t.Fatal("expected error without private key")
	}
	if _, err := NewRegistryWithDialer(context.Background(), config.Web3Config{PrivateKey: "01"}, fakeDialer(&closed)); err == nil {
		t.Fatal("expected error without networks")
	}

	path := writeNetworks(t, "networks:\n  a:\n    rpc_url: http://a\n")
	_, err := NewRegistryWithDialer(context.Background(), config.Web3Config{
		NetworksFile:   path,
		PrivateKey:     "01",
		DefaultNetwork: "missing",
	}, fakeDialer(&closed))
	if err == nil {
		t.Fatal("expected error for unknown default network")
	}
	if len(closed) != 1 || closed[0] != "a" {
		t.Fatalf("expected dialed wallet to be closed on failure, got %v", closed)
	}
}
