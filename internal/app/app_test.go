package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/config"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/ethereum"
	"AgentKit-Chain/internal/web3/web3test"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Runtime.DataDir = t.TempDir()
	cfg.Web3.RPCURL = "http://127.0.0.1:8545"
	cfg.Web3.PrivateKey = "0x01"
	cfg.Providers.Onchain = true
	cfg.LLM.OpenAI.APIKey = "sk-test"
	cfg.Server.Address = "127.0.0.1:0"
	return cfg
}

type dialed struct {
	wallets []*web3test.Wallet
	closed  int
}

func (d *dialed) dial(_ context.Context, _ string, _ web3.NetworkDefinition, cfg ethereum.Config) (web3.WalletProvider, error) {
	w := web3test.NewWallet(cfg.Network)
	w.OnClose = func() { d.closed++ }
	d.wallets = append(d.wallets, w)
	return w, nil
}

func TestNewBuildsKitAndClosesInReverse(t *testing.T) {
	d := &dialed{}
	a, err := New(context.Background(), testConfig(t), WithDialer(d.dial))
	require.NoError(t, err)
	require.Len(t, d.wallets, 1)

	act, err := a.Kit.Lookup("WalletActionProvider_get_wallet_details")
	require.NoError(t, err)
	require.True(t, act.RequiresWallet)
	require.Empty(t, a.Plugins.IDs())
	require.NotNil(t, a.Cache())

	require.NoError(t, a.Close(context.Background()))
	require.Equal(t, 1, d.closed)
	require.NoError(t, a.Close(context.Background()), "second close is a no-op")
}

func TestNewRequiresWalletKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Web3.PrivateKey = ""
	cfg.Web3.PrivateKeyEnv = "AGENTKIT_TEST_UNSET_KEY"
	d := &dialed{}
	_, err := New(context.Background(), cfg, WithDialer(d.dial))
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
	require.Empty(t, d.wallets)
}

func TestNewRejectsUnknownPlugins(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Allowed = []string{"execution"}
	d := &dialed{}
	_, err := New(context.Background(), cfg, WithDialer(d.dial))
	require.Error(t, err)
	require.Equal(t, 1, d.closed, "wallets are released when a later step fails")
}

func TestServicesExposeKitOverHTTP(t *testing.T) {
	d := &dialed{}
	a, err := New(context.Background(), testConfig(t), WithDialer(d.dial))
	require.NoError(t, err)
	defer a.Close(context.Background())

	reply := llm.ClientFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: "done"}, nil
	})
	svc, err := a.Services(context.Background(), WithLLMClient(reply))
	require.NoError(t, err)
	require.False(t, svc.Auth.Enabled())

	h := svc.Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(map[string]any{"name": "WalletActionProvider_get_wallet_details", "args": map[string]any{}})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/actions/invoke", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "0x1111111111111111111111111111111111111111")

	res, err := svc.Agent.Execute(context.Background(), agent.TaskRequest{Goal: "hello"})
	require.NoError(t, err)
	require.Equal(t, "done", res.Reply)
}

func TestUnknownLLMProvider(t *testing.T) {
	_, err := newLLMClient(config.LLMConfig{Provider: "python_bridge"})
	require.Error(t, err)

	_, err = newLLMClient(config.LLMConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKeyEnv: "AGENTKIT_TEST_UNSET_KEY"}})
	require.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
}
