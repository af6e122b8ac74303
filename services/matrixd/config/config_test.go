package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

var addressFields = []string{
	"pool", "vault_a", "vault_b", "token_vault_a", "token_vault_b", "lp_mint_a", "lp_mint_b",
	"pool_lp_a", "pool_lp_b", "protocol_fee", "amm_program", "vault_program", "reward_mint",
	"native_mint", "oracle_program", "oracle_feed", "settlement_vault",
}

func testKey(index int) string {
	var key solana.PublicKey
	key[0] = byte(index + 1)
	key[31] = 0x5a
	return key.String()
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func yamlConfig(extra string) string {
	var b strings.Builder
	b.WriteString("admin:\n  bearer_token: secret\n")
	fmt.Fprintf(&b, "program:\n  program_id: %s\n  native_reserve: %s\n", testKey(100), testKey(101))
	b.WriteString("addresses:\n")
	for i, field := range addressFields {
		fmt.Fprintf(&b, "  %s: %s\n", field, testKey(i))
	}
	b.WriteString(extra)
	return b.String()
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeFile(t, "matrixd.yaml", yamlConfig("pricing:\n  max_age: 12h\n"))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7080" || cfg.State.Backend != BackendLevelDB || cfg.Reserves.Source != ReservesSimulated {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Pricing.MaxAge.Duration != 12*time.Hour {
		t.Fatalf("unexpected max age %s", cfg.Pricing.MaxAge)
	}
	addrs, err := cfg.Addresses.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if addrs.SettlementVault.String() != testKey(16) {
		t.Fatalf("unexpected settlement vault %s", addrs.SettlementVault)
	}
}

func TestLoadTOML(t *testing.T) {
	var b strings.Builder
	b.WriteString("listen = \":9000\"\n")
	b.WriteString("[state]\nbackend = \"bolt\"\npath = \"state.db\"\n")
	b.WriteString("[admin]\nbearer_token = \"secret\"\n")
	fmt.Fprintf(&b, "[program]\nprogram_id = %q\nnative_reserve = %q\n", testKey(100), testKey(101))
	b.WriteString("[pricing]\nmax_age = \"30m\"\n")
	b.WriteString("[addresses]\n")
	for i, field := range addressFields {
		fmt.Fprintf(&b, "%s = %q\n", field, testKey(i))
	}
	cfg, err := Load(writeFile(t, "matrixd.toml", b.String()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9000" || cfg.State.Backend != BackendBolt || cfg.State.Path != "state.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Pricing.MaxAge.Duration != 30*time.Minute {
		t.Fatalf("unexpected max age %s", cfg.Pricing.MaxAge)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		match string
	}{
		{"unknown backend", yamlConfig("state:\n  backend: rocks\n"), "state.backend"},
		{"rpc without endpoint", yamlConfig("reserves:\n  source: rpc\n"), "reserves.endpoint"},
		{"missing token", strings.Replace(yamlConfig(""), "bearer_token: secret", "bearer_token: \"\"", 1), "bearer_token"},
		{"missing address", strings.Replace(yamlConfig(""), "  oracle_feed: "+testKey(15)+"\n", "", 1), "addresses.oracle_feed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MATRIXD_ADMIN_TOKEN", "")
			_, err := Load(writeFile(t, "matrixd.yaml", tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.match) {
				t.Fatalf("expected error mentioning %q, got %v", tc.match, err)
			}
		})
	}
}

func TestLoadEnvOverridesToken(t *testing.T) {
	body := strings.Replace(yamlConfig(""), "bearer_token: secret", "bearer_token: \"\"", 1)
	t.Setenv("MATRIXD_ADMIN_TOKEN", "from-env")
	cfg, err := Load(writeFile(t, "matrixd.yml", body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Admin.BearerToken != "from-env" {
		t.Fatalf("env token not applied")
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("expected parse error")
	}
}
