package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"AgentKit-Chain/internal/config"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/ethereum"
)

// Registry manages one wallet provider per configured network.
type Registry struct {
	defaultNetwork string
	wallets        map[string]web3.WalletProvider
}

// Dialer builds a wallet provider for a single network definition.
type Dialer func(ctx context.Context, name string, def web3.NetworkDefinition, cfg ethereum.Config) (web3.WalletProvider, error)

// DialEVM is the default dialer backed by go-ethereum.
func DialEVM(ctx context.Context, _ string, def web3.NetworkDefinition, cfg ethereum.Config) (web3.WalletProvider, error) {
	return ethereum.Dial(ctx, def.RPCURL, cfg)
}

// NewRegistry loads network definitions and instantiates wallet providers
// using the EVM dialer.
func NewRegistry(ctx context.Context, cfg config.Web3Config) (*Registry, error) {
	return NewRegistryWithDialer(ctx, cfg, DialEVM)
}

// NewRegistryWithDialer is NewRegistry with a custom dialer.
func NewRegistryWithDialer(ctx context.Context, cfg config.Web3Config, dial Dialer) (*Registry, error) {
	defs, err := web3.LoadNetworkDefinitions(cfg.NetworksFile)
	if err != nil {
		return nil, err
	}

	privateKey := strings.TrimSpace(cfg.PrivateKey)
	if privateKey == "" && cfg.PrivateKeyEnv != "" {
		privateKey = strings.TrimSpace(os.Getenv(cfg.PrivateKeyEnv))
	}
	if privateKey == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "未配置钱包私钥")
	}

	if len(defs.Networks) == 0 && strings.TrimSpace(cfg.RPCURL) != "" {
		defs.Networks["default"] = web3.NetworkDefinition{RPCURL: cfg.RPCURL}
		if cfg.DefaultNetwork == "" {
			cfg.DefaultNetwork = "default"
		}
	}
	if len(defs.Networks) == 0 {
		return nil, errors.New("未配置任何网络的 RPC 端点")
	}

	wallets := make(map[string]web3.WalletProvider, len(defs.Networks))
	reg := &Registry{wallets: wallets}
	for name, def := range defs.Networks {
		network := def.Network(name)
		if !network.IsEVM() {
			reg.Close()
			return nil, fmt.Errorf("网络 %s 使用了不支持的协议族 %s", name, network.ProtocolFamily)
		}
		wallet, err := dial(ctx, name, def, ethereum.Config{
			Name:           name,
			Network:        network,
			PrivateKey:     privateKey,
			Notes:          def.Description,
			PollInterval:   cfg.PollInterval(),
			ReceiptTimeout: cfg.ReceiptTimeout(),
		})
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("初始化网络 %s 的钱包失败: %w", name, err)
		}
		wallets[name] = wallet
	}

	defaultNetwork := cfg.DefaultNetwork
	if defaultNetwork == "" {
		defaultNetwork = reg.Networks()[0]
	}
	if _, ok := wallets[defaultNetwork]; !ok {
		reg.Close()
		return nil, fmt.Errorf("默认网络 %s 未在配置中找到", defaultNetwork)
	}
	reg.defaultNetwork = defaultNetwork
	return reg, nil
}

// Default returns the wallet configured for the default network.
func (r *Registry) Default() (web3.WalletProvider, error) {
	if r == nil {
		return nil, errors.New("未初始化的钱包注册表")
	}
	wallet, ok := r.wallets[r.defaultNetwork]
	if !ok {
		return nil, fmt.Errorf("默认网络 %s 未在注册表中", r.defaultNetwork)
	}
	return wallet, nil
}

// Wallet returns the wallet bound to the named network.
func (r *Registry) Wallet(name string) (web3.WalletProvider, bool) {
	if r == nil {
		return nil, false
	}
	wallet, ok := r.wallets[name]
	return wallet, ok
}

// Close releases all wallets managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, wallet := range r.wallets {
		if closer, ok := wallet.(interface{ Close() }); ok {
			closer.Close()
		}
		delete(r.wallets, name)
	}
}

// Networks returns the sorted list of registered network names.
func (r *Registry) Networks() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.wallets))
	for name := range r.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
