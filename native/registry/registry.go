package registry

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/native/swap"
)

var (
	// ErrInvalidAddress is the umbrella error for a supplied identity that does
	// not match the registered value.
	ErrInvalidAddress = errors.New("registry: invalid address")
	// ErrMissingAccount indicates an identity was not supplied at all.
	ErrMissingAccount = errors.New("registry: missing account")

	ErrInvalidPool            = fmt.Errorf("%w: pool", ErrInvalidAddress)
	ErrInvalidVaultA          = fmt.Errorf("%w: vault a", ErrInvalidAddress)
	ErrInvalidVaultB          = fmt.Errorf("%w: vault b", ErrInvalidAddress)
	ErrInvalidTokenVaultA     = fmt.Errorf("%w: token vault a", ErrInvalidAddress)
	ErrInvalidTokenVaultB     = fmt.Errorf("%w: token vault b", ErrInvalidAddress)
	ErrInvalidLPMintA         = fmt.Errorf("%w: lp mint a", ErrInvalidAddress)
	ErrInvalidLPMintB         = fmt.Errorf("%w: lp mint b", ErrInvalidAddress)
	ErrInvalidPoolLPA         = fmt.Errorf("%w: pool lp a", ErrInvalidAddress)
	ErrInvalidPoolLPB         = fmt.Errorf("%w: pool lp b", ErrInvalidAddress)
	ErrInvalidProtocolFee     = fmt.Errorf("%w: protocol fee", ErrInvalidAddress)
	ErrInvalidAmmProgram      = fmt.Errorf("%w: amm program", ErrInvalidAddress)
	ErrInvalidVaultProgram    = fmt.Errorf("%w: vault program", ErrInvalidAddress)
	ErrInvalidRewardMint      = fmt.Errorf("%w: reward mint", ErrInvalidAddress)
	ErrInvalidNativeMint      = fmt.Errorf("%w: native mint", ErrInvalidAddress)
	ErrInvalidOracleProgram   = fmt.Errorf("%w: oracle program", ErrInvalidAddress)
	ErrInvalidOracleFeed      = fmt.Errorf("%w: oracle feed", ErrInvalidAddress)
	ErrInvalidSettlementVault = fmt.Errorf("%w: settlement vault", ErrInvalidAddress)
)

// Addresses lists every external identity the program accepts. Values are
// fixed at deployment.
type Addresses struct {
	Pool            solana.PublicKey `yaml:"pool" toml:"pool"`
	VaultA          solana.PublicKey `yaml:"vault_a" toml:"vault_a"`
	VaultB          solana.PublicKey `yaml:"vault_b" toml:"vault_b"`
	TokenVaultA     solana.PublicKey `yaml:"token_vault_a" toml:"token_vault_a"`
	TokenVaultB     solana.PublicKey `yaml:"token_vault_b" toml:"token_vault_b"`
	LPMintA         solana.PublicKey `yaml:"lp_mint_a" toml:"lp_mint_a"`
	LPMintB         solana.PublicKey `yaml:"lp_mint_b" toml:"lp_mint_b"`
	PoolLPA         solana.PublicKey `yaml:"pool_lp_a" toml:"pool_lp_a"`
	PoolLPB         solana.PublicKey `yaml:"pool_lp_b" toml:"pool_lp_b"`
	ProtocolFee     solana.PublicKey `yaml:"protocol_fee" toml:"protocol_fee"`
	AmmProgram      solana.PublicKey `yaml:"amm_program" toml:"amm_program"`
	VaultProgram    solana.PublicKey `yaml:"vault_program" toml:"vault_program"`
	RewardMint      solana.PublicKey `yaml:"reward_mint" toml:"reward_mint"`
	NativeMint      solana.PublicKey `yaml:"native_mint" toml:"native_mint"`
	OracleProgram   solana.PublicKey `yaml:"oracle_program" toml:"oracle_program"`
	OracleFeed      solana.PublicKey `yaml:"oracle_feed" toml:"oracle_feed"`
	SettlementVault solana.PublicKey `yaml:"settlement_vault" toml:"settlement_vault"`
}

// Registry verifies supplied identities against the deployment's Addresses.
type Registry struct {
	expected Addresses
}

// New constructs a registry over the expected identities.
func New(expected Addresses) *Registry {
	return &Registry{expected: expected}
}

// Expected returns the registered identities.
func (r *Registry) Expected() Addresses {
	if r == nil {
		return Addresses{}
	}
	return r.expected
}

type check struct {
	name     string
	got      solana.PublicKey
	expected solana.PublicKey
	err      error
}

func verify(checks []check) error {
	for _, c := range checks {
		if c.got.IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingAccount, c.name)
		}
		if !c.got.Equals(c.expected) {
			return fmt.Errorf("%w: got %s", c.err, c.got)
		}
	}
	return nil
}

// VerifyPool checks every pool-program identity used for quoting and swapping.
func (r *Registry) VerifyPool(accounts swap.PoolAccounts) error {
	if r == nil {
		return ErrInvalidAddress
	}
	e := r.expected
	return verify([]check{
		{"pool", accounts.Pool, e.Pool, ErrInvalidPool},
		{"vault a", accounts.VaultA, e.VaultA, ErrInvalidVaultA},
		{"vault b", accounts.VaultB, e.VaultB, ErrInvalidVaultB},
		{"token vault a", accounts.TokenVaultA, e.TokenVaultA, ErrInvalidTokenVaultA},
		{"token vault b", accounts.TokenVaultB, e.TokenVaultB, ErrInvalidTokenVaultB},
		{"lp mint a", accounts.LPMintA, e.LPMintA, ErrInvalidLPMintA},
		{"lp mint b", accounts.LPMintB, e.LPMintB, ErrInvalidLPMintB},
		{"pool lp a", accounts.PoolLPA, e.PoolLPA, ErrInvalidPoolLPA},
		{"pool lp b", accounts.PoolLPB, e.PoolLPB, ErrInvalidPoolLPB},
		{"protocol fee", accounts.ProtocolFee, e.ProtocolFee, ErrInvalidProtocolFee},
		{"amm program", accounts.AmmProgram, e.AmmProgram, ErrInvalidAmmProgram},
		{"vault program", accounts.VaultProgram, e.VaultProgram, ErrInvalidVaultProgram},
		{"settlement vault", accounts.SettlementVault, e.SettlementVault, ErrInvalidSettlementVault},
	})
}

// VerifyOracle checks the price oracle program and feed.
func (r *Registry) VerifyOracle(program, feed solana.PublicKey) error {
	if r == nil {
		return ErrInvalidAddress
	}
	return verify([]check{
		{"oracle program", program, r.expected.OracleProgram, ErrInvalidOracleProgram},
		{"oracle feed", feed, r.expected.OracleFeed, ErrInvalidOracleFeed},
	})
}

// VerifyMints checks the reward and wrapped-native mints.
func (r *Registry) VerifyMints(reward, native solana.PublicKey) error {
	if r == nil {
		return ErrInvalidAddress
	}
	return verify([]check{
		{"reward mint", reward, r.expected.RewardMint, ErrInvalidRewardMint},
		{"native mint", native, r.expected.NativeMint, ErrInvalidNativeMint},
	})
}

// PoolAccounts returns the registered pool identities with the caller's
// wrapped source account filled in.
func (r *Registry) PoolAccounts(wrappedSource solana.PublicKey) swap.PoolAccounts {
	e := r.Expected()
	return swap.PoolAccounts{
		Pool:            e.Pool,
		VaultA:          e.VaultA,
		VaultB:          e.VaultB,
		TokenVaultA:     e.TokenVaultA,
		TokenVaultB:     e.TokenVaultB,
		LPMintA:         e.LPMintA,
		LPMintB:         e.LPMintB,
		PoolLPA:         e.PoolLPA,
		PoolLPB:         e.PoolLPB,
		ProtocolFee:     e.ProtocolFee,
		AmmProgram:      e.AmmProgram,
		VaultProgram:    e.VaultProgram,
		WrappedSource:   wrappedSource,
		SettlementVault: e.SettlementVault,
	}
}
