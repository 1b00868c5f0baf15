package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testTOML = `
[db]
host = "localhost"
port = 5432
username = "committer"
password = "secret"
database = "committer"
max_connections = 5
use_ssl = false

[eth]
rpc = "http://localhost:8545"
contract_address = "0x0000000000000000000000000000000000000001"
main_key_arn = "arn:aws:kms:us-east-1:111122223333:key/main"
blob_pool_key_arn = "arn:aws:kms:us-east-1:111122223333:key/blob-pool"
commit_interval = 100
finalization_delay = 12
errors_before_unhealthy = 10

[fuel]
graphql_endpoint = "http://localhost:4000/graphql"
block_producer_address = "0x0000000000000000000000000000000000000000000000000000000000000002"
errors_before_unhealthy = 10

[internal]
block_committer_interval = "10s"
commit_listener_interval = "5s"
state_importer_interval = "10s"
state_committer_interval = "5s"
state_listener_interval = "5s"
balance_update_interval = "30s"
metrics_addr = ":9000"
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "committer.toml")
	if err := os.WriteFile(path, []byte(testTOML), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadParsesFile(t *testing.T) {
	// given a well-formed TOML config
	path := writeTestConfig(t)

	// when loaded
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// then every section is populated
	if cfg.DB.Host != "localhost" || cfg.DB.Port != 5432 {
		t.Fatalf("unexpected db config: %+v", cfg.DB)
	}
	if cfg.Eth.CommitInterval != 100 {
		t.Fatalf("unexpected eth config: %+v", cfg.Eth)
	}
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	// given a config file and a COMMITTER__ETH__RPC override
	path := writeTestConfig(t)
	t.Setenv("COMMITTER__ETH__RPC", "http://override:8545")

	// when loaded
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// then the override wins
	if cfg.Eth.RPC != "http://override:8545" {
		t.Fatalf("expected env override to apply, got %q", cfg.Eth.RPC)
	}
}
