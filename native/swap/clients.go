package swap

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// PoolAccounts lists the identities passed to the pool program for a swap.
// Every field is verified against the address registry before use.
type PoolAccounts struct {
	Pool            solana.PublicKey
	VaultA          solana.PublicKey
	VaultB          solana.PublicKey
	TokenVaultA     solana.PublicKey
	TokenVaultB     solana.PublicKey
	LPMintA         solana.PublicKey
	LPMintB         solana.PublicKey
	PoolLPA         solana.PublicKey
	PoolLPB         solana.PublicKey
	ProtocolFee     solana.PublicKey
	AmmProgram      solana.PublicKey
	VaultProgram    solana.PublicKey
	WrappedSource   solana.PublicKey
	SettlementVault solana.PublicKey
}

// AmmClient executes swaps against the external pool program.
type AmmClient interface {
	Swap(ctx context.Context, accounts PoolAccounts, amountIn, minimumOut uint64) error
}

// ReserveReader loads the raw account payloads owned by the pool and vault programs.
type ReserveReader interface {
	ReadReserves(ctx context.Context, accounts PoolAccounts) (RawReserveAccounts, error)
}

// TokenClient wraps the token program operations used during settlement.
type TokenClient interface {
	// WrapNative moves lamports from owner into the wrapped-native account.
	WrapNative(ctx context.Context, owner, account solana.PublicKey, lamports uint64) error
	// Balance reports the token amount held by account.
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// Burn destroys amount tokens of mint held by account, signed by authority.
	Burn(ctx context.Context, mint, account, authority solana.PublicKey, amount uint64) error
	// Transfer moves tokens between token accounts, signed by authority.
	Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error
	// TransferNative moves lamports between system accounts.
	TransferNative(ctx context.Context, from, to solana.PublicKey, lamports uint64) error
	// CloseAccount closes a token account, returning its rent to destination.
	CloseAccount(ctx context.Context, account, destination, authority solana.PublicKey) error
}
