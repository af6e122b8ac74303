package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"donutmatrix/native/registry"
)

// Duration wraps time.Duration to support YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Backend names accepted for persisted program state.
const (
	BackendMemory  = "mem"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

// Reserve sources. The simulated source prices against the in-process pool;
// rpc reads live reserve accounts from a Solana node.
const (
	ReservesSimulated = "simulated"
	ReservesRPC       = "rpc"
)

// Config captures runtime configuration for matrixd.
type Config struct {
	ListenAddress string          `yaml:"listen" toml:"listen"`
	JournalPath   string          `yaml:"journal" toml:"journal"`
	State         StateConfig     `yaml:"state" toml:"state"`
	Admin         AdminConfig     `yaml:"admin" toml:"admin"`
	Program       ProgramConfig   `yaml:"program" toml:"program"`
	Pricing       PricingConfig   `yaml:"pricing" toml:"pricing"`
	Reserves      ReservesConfig  `yaml:"reserves" toml:"reserves"`
	Simulated     SimulatedConfig `yaml:"simulated" toml:"simulated"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Addresses     AddressConfig   `yaml:"addresses" toml:"addresses"`
}

// StateConfig selects the key-value backend.
type StateConfig struct {
	Backend      string `yaml:"backend" toml:"backend"`
	Path         string `yaml:"path" toml:"path"`
	AllowMigrate bool   `yaml:"allow_migrate" toml:"allow_migrate"`
}

// AdminConfig protects the operator endpoints.
type AdminConfig struct {
	BearerToken string `yaml:"bearer_token" toml:"bearer_token"`
}

// ProgramConfig names the program identities.
type ProgramConfig struct {
	ProgramID     string `yaml:"program_id" toml:"program_id"`
	NativeReserve string `yaml:"native_reserve" toml:"native_reserve"`
}

// PricingConfig tunes the deposit floor.
type PricingConfig struct {
	MinimumUSD       uint64   `yaml:"minimum_usd" toml:"minimum_usd"`
	FallbackPrice    int64    `yaml:"fallback_price" toml:"fallback_price"`
	FallbackDecimals uint8    `yaml:"fallback_decimals" toml:"fallback_decimals"`
	MaxAge           Duration `yaml:"max_age" toml:"max_age"`
}

// ReservesConfig selects where quotes read pool reserves from.
type ReservesConfig struct {
	Source     string `yaml:"source" toml:"source"`
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	Commitment string `yaml:"commitment" toml:"commitment"`
}

// SimulatedConfig seeds the in-process collaborators.
type SimulatedConfig struct {
	RewardReserve uint64 `yaml:"reward_reserve" toml:"reward_reserve"`
	NativeReserve uint64 `yaml:"native_reserve" toml:"native_reserve"`
	VaultFunding  uint64 `yaml:"vault_funding" toml:"vault_funding"`
}

// RateLimitConfig bounds the public API request rate.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"rps" toml:"rps"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// AddressConfig lists the registered external identities as base58 strings.
type AddressConfig struct {
	Pool            string `yaml:"pool" toml:"pool"`
	VaultA          string `yaml:"vault_a" toml:"vault_a"`
	VaultB          string `yaml:"vault_b" toml:"vault_b"`
	TokenVaultA     string `yaml:"token_vault_a" toml:"token_vault_a"`
	TokenVaultB     string `yaml:"token_vault_b" toml:"token_vault_b"`
	LPMintA         string `yaml:"lp_mint_a" toml:"lp_mint_a"`
	LPMintB         string `yaml:"lp_mint_b" toml:"lp_mint_b"`
	PoolLPA         string `yaml:"pool_lp_a" toml:"pool_lp_a"`
	PoolLPB         string `yaml:"pool_lp_b" toml:"pool_lp_b"`
	ProtocolFee     string `yaml:"protocol_fee" toml:"protocol_fee"`
	AmmProgram      string `yaml:"amm_program" toml:"amm_program"`
	VaultProgram    string `yaml:"vault_program" toml:"vault_program"`
	RewardMint      string `yaml:"reward_mint" toml:"reward_mint"`
	NativeMint      string `yaml:"native_mint" toml:"native_mint"`
	OracleProgram   string `yaml:"oracle_program" toml:"oracle_program"`
	OracleFeed      string `yaml:"oracle_feed" toml:"oracle_feed"`
	SettlementVault string `yaml:"settlement_vault" toml:"settlement_vault"`
}

// Registry parses the configured identities. Every field is required.
func (a AddressConfig) Registry() (registry.Addresses, error) {
	var out registry.Addresses
	fields := []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"pool", a.Pool, &out.Pool},
		{"vault_a", a.VaultA, &out.VaultA},
		{"vault_b", a.VaultB, &out.VaultB},
		{"token_vault_a", a.TokenVaultA, &out.TokenVaultA},
		{"token_vault_b", a.TokenVaultB, &out.TokenVaultB},
		{"lp_mint_a", a.LPMintA, &out.LPMintA},
		{"lp_mint_b", a.LPMintB, &out.LPMintB},
		{"pool_lp_a", a.PoolLPA, &out.PoolLPA},
		{"pool_lp_b", a.PoolLPB, &out.PoolLPB},
		{"protocol_fee", a.ProtocolFee, &out.ProtocolFee},
		{"amm_program", a.AmmProgram, &out.AmmProgram},
		{"vault_program", a.VaultProgram, &out.VaultProgram},
		{"reward_mint", a.RewardMint, &out.RewardMint},
		{"native_mint", a.NativeMint, &out.NativeMint},
		{"oracle_program", a.OracleProgram, &out.OracleProgram},
		{"oracle_feed", a.OracleFeed, &out.OracleFeed},
		{"settlement_vault", a.SettlementVault, &out.SettlementVault},
	}
	for _, field := range fields {
		key, err := ParseKey(field.raw)
		if err != nil {
			return registry.Addresses{}, fmt.Errorf("addresses.%s: %w", field.name, err)
		}
		*field.dst = key
	}
	return out, nil
}

// ParseKey decodes a base58 public key, rejecting empty input.
func ParseKey(raw string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return solana.PublicKey{}, errors.New("must be configured")
	}
	return solana.PublicKeyFromBase58(trimmed)
}

// Load reads configuration from the supplied path. Files ending in .toml are
// decoded as TOML and everything else as YAML.
func Load(path string) (Config, error) {
	cfg := Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("MATRIXD_ADMIN_TOKEN")); token != "" {
		cfg.Admin.BearerToken = token
	}
	if endpoint := strings.TrimSpace(os.Getenv("MATRIXD_RPC_ENDPOINT")); endpoint != "" {
		cfg.Reserves.Endpoint = endpoint
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = "/var/data/matrixd-journal.sqlite"
	}
	cfg.State.Backend = strings.ToLower(strings.TrimSpace(cfg.State.Backend))
	if cfg.State.Backend == "" {
		cfg.State.Backend = BackendLevelDB
	}
	if cfg.State.Path == "" && cfg.State.Backend != BackendMemory {
		cfg.State.Path = "/var/data/matrixd-state"
	}
	cfg.Reserves.Source = strings.ToLower(strings.TrimSpace(cfg.Reserves.Source))
	if cfg.Reserves.Source == "" {
		cfg.Reserves.Source = ReservesSimulated
	}
	if cfg.Reserves.Commitment == "" {
		cfg.Reserves.Commitment = "confirmed"
	}
	if cfg.Simulated.RewardReserve == 0 {
		cfg.Simulated.RewardReserve = 1_000_000_000_000_000_000
	}
	if cfg.Simulated.NativeReserve == 0 {
		cfg.Simulated.NativeReserve = 1_000_000_000_000_000
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 40
	}
}

func validate(cfg Config) error {
	switch cfg.State.Backend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("state.backend %q not supported", cfg.State.Backend)
	}
	switch cfg.Reserves.Source {
	case ReservesSimulated:
	case ReservesRPC:
		if strings.TrimSpace(cfg.Reserves.Endpoint) == "" {
			return fmt.Errorf("reserves.endpoint must be configured for the rpc source")
		}
	default:
		return fmt.Errorf("reserves.source %q not supported", cfg.Reserves.Source)
	}
	if strings.TrimSpace(cfg.Admin.BearerToken) == "" {
		return fmt.Errorf("admin.bearer_token must be configured")
	}
	if _, err := ParseKey(cfg.Program.ProgramID); err != nil {
		return fmt.Errorf("program.program_id: %w", err)
	}
	if _, err := ParseKey(cfg.Program.NativeReserve); err != nil {
		return fmt.Errorf("program.native_reserve: %w", err)
	}
	if _, err := cfg.Addresses.Registry(); err != nil {
		return err
	}
	return nil
}
