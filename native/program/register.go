package program

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/pricing"
	"donutmatrix/core/types"
	"donutmatrix/native/common"
	"donutmatrix/native/epoch"
	"donutmatrix/native/matrix"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap"
)

// RegisterRequest describes a registration and the identities it touches.
type RegisterRequest struct {
	Participant solana.PublicKey
	// Referrer is nil for a root registration.
	Referrer      *solana.PublicKey
	Deposit       uint64
	Accounts      swap.PoolAccounts
	OracleProgram solana.PublicKey
	OracleFeed    solana.PublicKey
}

// RegisterResult reports what a registration did.
type RegisterResult struct {
	Record     *types.ParticipantRecord
	Floor      pricing.DepositFloor
	Fill       *matrix.FillResult
	Settlement *swap.Settlement
	// PaidOut is the reserved balance released to the referrer by a third-slot fill.
	PaidOut uint64
	// Counted reports whether a completed matrix counted toward the reward week.
	Counted bool
}

// Register places a new participant. Root registrations settle the deposit
// through the pool; referred registrations apply the action of the slot they
// fill in the referrer's chain.
func (p *Program) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	var result RegisterResult
	err := p.execute(ctx, "register", func(ctx context.Context, op *operation) error {
		if req.Participant.IsZero() {
			return fmt.Errorf("%w: participant", registry.ErrMissingAccount)
		}
		if err := p.registry.VerifyPool(req.Accounts); err != nil {
			return err
		}
		if err := p.registry.VerifyOracle(req.OracleProgram, req.OracleFeed); err != nil {
			return err
		}
		floor, err := p.guard.Check(ctx, req.OracleFeed, req.Deposit)
		if err != nil {
			return err
		}
		result.Floor = floor

		existing, err := op.tx.Participant(req.Participant)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsRegistered {
			return ErrAlreadyRegistered
		}

		var record *types.ParticipantRecord
		if req.Referrer == nil {
			record, err = p.registerRoot(ctx, op, req, &result)
		} else {
			record, err = p.registerReferred(ctx, op, req, *req.Referrer, &result)
		}
		if err != nil {
			return err
		}
		if err := op.tx.PutParticipant(req.Participant, record); err != nil {
			return err
		}
		result.Record = record.Clone()
		return nil
	})
	if err != nil {
		return RegisterResult{}, err
	}
	action := ""
	if result.Fill != nil {
		action = result.Fill.Action.String()
	}
	p.metrics.RecordRegistration(action)
	if result.Settlement != nil {
		p.metrics.RecordBurn(result.Settlement.Burned)
	}
	if result.Counted {
		p.metrics.RecordCompletion()
	}
	p.logger.Info("participant registered",
		"participant", req.Participant.String(),
		"root", req.Referrer == nil,
		"action", action,
		"deposit", req.Deposit,
	)
	return result, nil
}

func (p *Program) registerRoot(ctx context.Context, op *operation, req RegisterRequest, result *RegisterResult) (*types.ParticipantRecord, error) {
	record, err := p.engine.RegisterRoot(req.Participant, op.ledger)
	if err != nil {
		return nil, err
	}
	settlement, err := p.settle(ctx, op, req)
	if err != nil {
		return nil, err
	}
	result.Settlement = settlement
	return record, nil
}

func (p *Program) registerReferred(ctx context.Context, op *operation, req RegisterRequest, referrerKey solana.PublicKey, result *RegisterResult) (*types.ParticipantRecord, error) {
	referrer, err := op.tx.Participant(referrerKey)
	if err != nil {
		return nil, err
	}
	record, err := p.engine.RegisterWithReferrer(req.Participant, referrerKey, referrer, op.ledger)
	if err != nil {
		return nil, err
	}

	fill, err := p.engine.FillSlot(op.buf, referrerKey, referrer, req.Participant, op.ledger.NextChainID)
	if err != nil {
		return nil, err
	}
	result.Fill = &fill
	if fill.Completed {
		next, err := common.CheckedAdd(op.ledger.NextChainID, 1)
		if err != nil {
			return nil, fmt.Errorf("program: chain id counter: %w", err)
		}
		op.ledger.NextChainID = next
	}

	switch fill.Action {
	case matrix.ActionSwapAndBurn:
		settlement, err := p.settle(ctx, op, req)
		if err != nil {
			return nil, err
		}
		result.Settlement = settlement
	case matrix.ActionEscrow:
		if err := p.settler.Escrow(ctx, req.Participant, referrer, req.Deposit); err != nil {
			return nil, err
		}
	case matrix.ActionPayoutReserved:
		paid, err := p.settler.PayoutReserved(ctx, referrer)
		if err != nil {
			return nil, err
		}
		result.PaidOut = paid
		if fill.Completed {
			settlement, err := p.settle(ctx, op, req)
			if err != nil {
				return nil, err
			}
			result.Settlement = settlement
		}
	default:
		return nil, matrix.ErrInvalidSlot
	}

	if fill.Completed {
		counted, err := p.engine.RecordCompletion(op.buf, referrerKey, referrer, op.ledger)
		if err != nil {
			return nil, err
		}
		result.Counted = counted
	}
	if _, err := epoch.Reconcile(referrer, op.ledger); err != nil {
		return nil, err
	}
	if err := op.tx.PutParticipant(referrerKey, referrer); err != nil {
		return nil, err
	}
	return record, nil
}

func (p *Program) settle(ctx context.Context, op *operation, req RegisterRequest) (*swap.Settlement, error) {
	settlement, err := p.settler.SettleAndBurn(ctx, op.buf, swap.SettleRequest{
		Participant: req.Participant,
		Deposit:     req.Deposit,
		Week:        op.ledger.CurrentWeek,
		Accounts:    req.Accounts,
	})
	if err != nil {
		return nil, err
	}
	return &settlement, nil
}
