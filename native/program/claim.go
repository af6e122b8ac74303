package program

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/events"
	"donutmatrix/core/types"
	"donutmatrix/native/epoch"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap"
)

// ClaimRequest identifies the participant and where the reward is paid.
type ClaimRequest struct {
	Participant solana.PublicKey
	// Destination is the participant's reward token account. When zero the
	// associated token account for the reward mint is derived.
	Destination solana.PublicKey
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	Amount       uint64
	Destination  solana.PublicKey
	TotalEarned  uint64
	TotalClaimed uint64
}

// Claim reconciles the participant against every closed week and pays out
// everything earned but not yet claimed.
func (p *Program) Claim(ctx context.Context, req ClaimRequest) (ClaimResult, error) {
	var result ClaimResult
	err := p.execute(ctx, "claim", func(ctx context.Context, op *operation) error {
		record, err := op.tx.Participant(req.Participant)
		if err != nil {
			return err
		}
		if record == nil || !record.IsRegistered {
			return ErrNotRegistered
		}
		destination := req.Destination
		if destination.IsZero() {
			destination, _, err = solana.FindAssociatedTokenAddress(req.Participant, p.registry.Expected().RewardMint)
			if err != nil {
				return fmt.Errorf("%w: reward token account: %w", registry.ErrMissingAccount, err)
			}
		}
		if _, err := epoch.Reconcile(record, op.ledger); err != nil {
			return err
		}
		available := epoch.Claimable(record)
		if available == 0 {
			return ErrNothingToClaim
		}
		vault := p.registry.Expected().SettlementVault
		if err := p.settler.PayoutClaim(ctx, vault, destination, record, available); err != nil {
			return err
		}
		op.buf.Emit(events.AirdropClaimed{
			Participant:  req.Participant,
			Amount:       available,
			TotalEarned:  record.TotalEarned,
			TotalClaimed: record.TotalClaimed,
		})
		if err := op.tx.PutParticipant(req.Participant, record); err != nil {
			return err
		}
		result = ClaimResult{
			Amount:       available,
			Destination:  destination,
			TotalEarned:  record.TotalEarned,
			TotalClaimed: record.TotalClaimed,
		}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	p.metrics.RecordClaim(result.Amount)
	p.logger.Info("reward claimed", "participant", req.Participant.String(), "amount", result.Amount)
	return result, nil
}

// Quote prices depositIn against the live pool reserves without mutating state.
func (p *Program) Quote(ctx context.Context, depositIn uint64) (swap.SwapQuote, error) {
	return p.settler.Quote(ctx, p.registry.PoolAccounts(solana.PublicKey{}), depositIn)
}

// Ledger returns the committed ledger.
func (p *Program) Ledger() (*types.GlobalLedger, error) {
	ledger, err := p.state.Ledger()
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, ErrNotInitialized
	}
	return ledger, nil
}

// Participant returns the committed record for owner.
func (p *Program) Participant(owner solana.PublicKey) (*types.ParticipantRecord, error) {
	record, err := p.state.Participant(owner)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotRegistered
	}
	return record, nil
}

// Claimable previews what Claim would pay right now, including weeks that
// have closed but not yet been reconciled. Nothing is written.
func (p *Program) Claimable(owner solana.PublicKey) (uint64, error) {
	ledger, err := p.Ledger()
	if err != nil {
		return 0, err
	}
	record, err := p.Participant(owner)
	if err != nil {
		return 0, err
	}
	if _, err := p.accountant.Roll(nil, ledger, p.now()); err != nil {
		return 0, err
	}
	if _, err := epoch.Reconcile(record, ledger); err != nil {
		return 0, err
	}
	return epoch.Claimable(record), nil
}
