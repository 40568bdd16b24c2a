package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentkit.yaml")
	content := `server:
  address: ":9090"
web3:
  networks_file: networks.yaml
task_queue:
  driver: redis
  redis:
    address: 127.0.0.1:6379
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Server.Address)
	}
	if cfg.Web3.NetworksFile != filepath.Join(dir, "networks.yaml") {
		t.Fatalf("networks file not resolved: %q", cfg.Web3.NetworksFile)
	}
	if cfg.Runtime.DataDir != filepath.Join(dir, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Runtime.DataDir)
	}
	if cfg.TaskQueue.Driver != "redis" || cfg.TaskQueue.Redis.Address != "127.0.0.1:6379" {
		t.Fatalf("unexpected queue config %+v", cfg.TaskQueue)
	}
	if cfg.Agent.MaxSteps != 5 || cfg.Storage.TaskStore.Driver != "memory" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Agent, cfg.Storage)
	}
	if cfg.Web3.PollInterval().Seconds() != 1 || cfg.Web3.ReceiptTimeout().Minutes() != 2 {
		t.Fatalf("unexpected receipt settings %+v", cfg.Web3)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("AGENTKIT_SERVER__ADDRESS", ":7070")
	t.Setenv("AGENTKIT_STORAGE__TASK_STORE__DRIVER", "mysql")
	t.Setenv("AGENTKIT_STORAGE__TASK_STORE__DSN", "user:pass@tcp(localhost:3306)/agentkit")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Fatalf("env override ignored: %q", cfg.Server.Address)
	}
	if cfg.Storage.TaskStore.Driver != "mysql" || cfg.Storage.TaskStore.DSN == "" {
		t.Fatalf("unexpected storage %+v", cfg.Storage.TaskStore)
	}
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("AGENTKIT_TASK_QUEUE__DRIVER", "kafka")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown queue driver")
	}
}

func TestLoadRequiresMySQLDSN(t *testing.T) {
	t.Setenv("AGENTKIT_STORAGE__TASK_STORE__DRIVER", "mysql")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing dsn")
	}
}
