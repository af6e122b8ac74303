package swap

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/events"
	"donutmatrix/core/types"
	"donutmatrix/native/common"
)

// AuthoritySeed is the seed of the program-derived authority that signs burns
// and payouts from the settlement vault.
const AuthoritySeed = "vault_authority"

// DeriveAuthority returns the program-derived settlement authority for programID.
func DeriveAuthority(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(AuthoritySeed)}, programID)
}

// SettlerConfig names the program-held identities used during settlement.
type SettlerConfig struct {
	// Authority signs burns and transfers out of the settlement vault.
	Authority solana.PublicKey
	// RewardMint is the mint of the token being burned and paid out.
	RewardMint solana.PublicKey
	// NativeReserve holds escrowed lamports for slot-2 payouts.
	NativeReserve solana.PublicKey
}

// Settler quotes and executes deposit conversions and pays out rewards.
type Settler struct {
	amm    AmmClient
	tokens TokenClient
	reader ReserveReader
	cfg    SettlerConfig
}

// NewSettler wires the settler to its collaborators.
func NewSettler(amm AmmClient, tokens TokenClient, reader ReserveReader, cfg SettlerConfig) *Settler {
	return &Settler{amm: amm, tokens: tokens, reader: reader, cfg: cfg}
}

func (s *Settler) ready() error {
	if s == nil || s.amm == nil || s.tokens == nil || s.reader == nil {
		return ErrNotConfigured
	}
	return nil
}

// Quote reads the live reserves and prices depositIn.
func (s *Settler) Quote(ctx context.Context, accounts PoolAccounts, depositIn uint64) (SwapQuote, error) {
	if err := s.ready(); err != nil {
		return SwapQuote{}, err
	}
	raw, err := s.reader.ReadReserves(ctx, accounts)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("%w: %w", ErrReserveRead, err)
	}
	reserves, err := DecodeReserves(raw)
	if err != nil {
		return SwapQuote{}, err
	}
	return Quote(reserves, depositIn)
}

// SettleRequest describes a deposit to convert and burn.
type SettleRequest struct {
	Participant solana.PublicKey
	Deposit     uint64
	Week        uint64
	Accounts    PoolAccounts
}

// Settlement is the outcome of SettleAndBurn.
type Settlement struct {
	Quote  SwapQuote
	Burned uint64
}

// SettleAndBurn wraps the deposit, swaps it through the pool and burns exactly
// the amount the settlement vault received. The quote only bounds the swap;
// it is never used as the burn amount.
func (s *Settler) SettleAndBurn(ctx context.Context, emitter events.Emitter, req SettleRequest) (Settlement, error) {
	if err := s.ready(); err != nil {
		return Settlement{}, err
	}
	if req.Deposit == 0 {
		return Settlement{}, ErrZeroDeposit
	}
	quote, err := s.Quote(ctx, req.Accounts, req.Deposit)
	if err != nil {
		return Settlement{}, err
	}
	if err := s.tokens.WrapNative(ctx, req.Participant, req.Accounts.WrappedSource, req.Deposit); err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrWrapFailed, err)
	}
	before, err := s.tokens.Balance(ctx, req.Accounts.SettlementVault)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrBalanceReadFailed, err)
	}
	if err := s.amm.Swap(ctx, req.Accounts, req.Deposit, quote.MinimumOut); err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrSwapFailed, err)
	}
	after, err := s.tokens.Balance(ctx, req.Accounts.SettlementVault)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrBalanceReadFailed, err)
	}
	received, err := common.CheckedSub(after, before)
	if err != nil {
		return Settlement{}, fmt.Errorf("%w: vault shrank across swap", ErrBalanceReadFailed)
	}
	if received == 0 {
		return Settlement{}, ErrNothingReceived
	}
	if err := s.tokens.Burn(ctx, s.cfg.RewardMint, req.Accounts.SettlementVault, s.cfg.Authority, received); err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrBurnFailed, err)
	}
	if err := s.tokens.CloseAccount(ctx, req.Accounts.WrappedSource, req.Participant, s.cfg.Authority); err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrCloseFailed, err)
	}
	if emitter != nil {
		emitter.Emit(events.DonutSwappedAndBurned{
			Participant: req.Participant,
			AmountIn:    req.Deposit,
			AmountOut:   received,
			WeekNumber:  req.Week,
		})
	}
	return Settlement{Quote: quote, Burned: received}, nil
}

// Escrow moves a slot-1 deposit into the native reserve and credits the
// referrer's reserved balance.
func (s *Settler) Escrow(ctx context.Context, participant solana.PublicKey, referrer *types.ParticipantRecord, deposit uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if referrer == nil {
		return fmt.Errorf("swap: escrow: referrer record required")
	}
	if deposit == 0 {
		return ErrZeroDeposit
	}
	reserved, err := common.CheckedAdd(referrer.ReservedSOL, deposit)
	if err != nil {
		return fmt.Errorf("swap: reserved balance: %w", err)
	}
	if err := s.tokens.TransferNative(ctx, participant, s.cfg.NativeReserve, deposit); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	referrer.ReservedSOL = reserved
	return nil
}

// PayoutReserved pays the referrer's reserved balance to its wallet and clears
// it. It returns the amount paid.
func (s *Settler) PayoutReserved(ctx context.Context, referrer *types.ParticipantRecord) (uint64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if referrer == nil {
		return 0, fmt.Errorf("swap: payout: referrer record required")
	}
	amount := referrer.ReservedSOL
	if amount == 0 {
		return 0, nil
	}
	if err := s.tokens.TransferNative(ctx, s.cfg.NativeReserve, referrer.Owner, amount); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	referrer.ReservedSOL = 0
	return amount, nil
}

// PayoutClaim transfers available reward tokens from the settlement vault to
// destination and records the claim.
func (s *Settler) PayoutClaim(ctx context.Context, vault, destination solana.PublicKey, record *types.ParticipantRecord, available uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("swap: payout: participant record required")
	}
	claimed, err := common.CheckedAdd(record.TotalClaimed, available)
	if err != nil {
		return fmt.Errorf("swap: total claimed: %w", err)
	}
	if claimed > record.TotalEarned {
		return ErrClaimExceedsEarned
	}
	if err := s.tokens.Transfer(ctx, vault, destination, s.cfg.Authority, available); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	record.TotalClaimed = claimed
	return nil
}
