package matrix

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/events"
	"donutmatrix/core/types"
	"donutmatrix/native/common"
)

// Action is the economic effect a caller must apply for a filled slot.
type Action uint8

const (
	// ActionSwapAndBurn settles the deposit through the pool and burns the output.
	ActionSwapAndBurn Action = iota
	// ActionEscrow adds the deposit to the referrer's reserved balance.
	ActionEscrow
	// ActionPayoutReserved pays the referrer's reserved balance out.
	ActionPayoutReserved
)

func (a Action) String() string {
	switch a {
	case ActionSwapAndBurn:
		return "swap_and_burn"
	case ActionEscrow:
		return "escrow"
	case ActionPayoutReserved:
		return "payout_reserved"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// SlotAction maps a slot index to the action its fill triggers.
func SlotAction(index uint8) (Action, error) {
	switch index {
	case 0:
		return ActionSwapAndBurn, nil
	case 1:
		return ActionEscrow, nil
	case 2:
		return ActionPayoutReserved, nil
	default:
		return 0, ErrInvalidSlot
	}
}

// FillResult describes a completed FillSlot call.
type FillResult struct {
	Index     uint8
	Action    Action
	ChainID   uint64
	Completed bool
}

// Engine assigns participants into referrer matrices.
type Engine struct{}

// NewEngine creates a new matrix engine.
func NewEngine() *Engine {
	return &Engine{}
}

func nextID(counter *uint64) (uint64, error) {
	id := *counter
	next, err := common.CheckedAdd(id, 1)
	if err != nil {
		return 0, fmt.Errorf("matrix: id counter: %w", err)
	}
	*counter = next
	return id, nil
}

func (e *Engine) freshRecord(owner solana.PublicKey, ledger *types.GlobalLedger) (*types.ParticipantRecord, error) {
	uplineID, err := nextID(&ledger.NextUplineID)
	if err != nil {
		return nil, err
	}
	chainID, err := nextID(&ledger.NextChainID)
	if err != nil {
		return nil, err
	}
	return &types.ParticipantRecord{
		IsRegistered:      true,
		Owner:             owner,
		Upline:            types.Upline{ID: uplineID, Depth: 1, Ancestors: []solana.PublicKey{}},
		Chain:             types.Chain{ID: chainID},
		WeeklyCompletions: []types.WeekCount{},
	}, nil
}

// RegisterRoot creates a participant with no referrer.
func (e *Engine) RegisterRoot(owner solana.PublicKey, ledger *types.GlobalLedger) (*types.ParticipantRecord, error) {
	if ledger == nil {
		return nil, ErrNilLedger
	}
	return e.freshRecord(owner, ledger)
}

// RegisterWithReferrer creates a participant below referrer, inheriting the
// referrer's bounded ancestor list.
func (e *Engine) RegisterWithReferrer(owner, referrerKey solana.PublicKey, referrer *types.ParticipantRecord, ledger *types.GlobalLedger) (*types.ParticipantRecord, error) {
	if ledger == nil {
		return nil, ErrNilLedger
	}
	if referrer == nil || !referrer.IsRegistered {
		return nil, ErrReferrerNotRegistered
	}
	if owner.Equals(referrerKey) {
		return nil, ErrSelfReferral
	}
	depth, err := common.CheckedAdd(referrer.Upline.Depth, 1)
	if err != nil {
		return nil, fmt.Errorf("matrix: upline depth: %w", err)
	}
	record, err := e.freshRecord(owner, ledger)
	if err != nil {
		return nil, err
	}
	record.HasReferrer = true
	record.Referrer = referrerKey
	record.Upline.Depth = depth
	record.Upline.Ancestors = inheritAncestors(referrerKey, referrer.Upline)
	return record, nil
}

// FillSlot places participant into the referrer's next free slot. When the
// third slot is filled the chain rotates to nextChainID and Completed is set.
// Callers read referrer.Chain.FilledSlots beforehand to pick the slot action;
// the returned Index and Action reflect the slot that was filled.
func (e *Engine) FillSlot(emitter events.Emitter, referrerKey solana.PublicKey, referrer *types.ParticipantRecord, participant solana.PublicKey, nextChainID uint64) (FillResult, error) {
	if referrer == nil {
		return FillResult{}, ErrNilRecord
	}
	filled := referrer.Chain.FilledSlots
	if filled >= types.ChainSlots {
		return FillResult{}, ErrInvalidSlot
	}
	idx := uint8(filled)
	action, err := SlotAction(idx)
	if err != nil {
		return FillResult{}, err
	}
	chainID := referrer.Chain.ID
	referrer.Chain.Slots[idx] = types.Slot{Filled: true, Occupant: participant}
	if emitter != nil {
		emitter.Emit(events.SlotFilled{
			SlotIndex:   idx,
			ChainID:     chainID,
			Participant: participant,
			Referrer:    referrerKey,
		})
	}
	referrer.Chain.FilledSlots = filled + 1

	result := FillResult{Index: idx, Action: action, ChainID: chainID}
	if referrer.Chain.FilledSlots == types.ChainSlots {
		referrer.Chain = types.Chain{ID: nextChainID}
		result.Completed = true
	}
	return result, nil
}

// RecordCompletion counts a completed matrix toward the current reward week.
// It reports false without touching any counter while rewards are inactive;
// the chain itself still rotates in that case.
func (e *Engine) RecordCompletion(emitter events.Emitter, referrerKey solana.PublicKey, referrer *types.ParticipantRecord, ledger *types.GlobalLedger) (bool, error) {
	if ledger == nil {
		return false, ErrNilLedger
	}
	if referrer == nil {
		return false, ErrNilRecord
	}
	if !ledger.RewardsActive() {
		return false, nil
	}
	week := ledger.CurrentWeek
	weekTotal, err := common.CheckedAdd(ledger.TotalMatricesThisWeek, 1)
	if err != nil {
		return false, fmt.Errorf("matrix: weekly total: %w", err)
	}
	lifetime, err := common.CheckedAdd(referrer.CompletedMatricesTotal, 1)
	if err != nil {
		return false, fmt.Errorf("matrix: lifetime total: %w", err)
	}
	bucket := -1
	for i := range referrer.WeeklyCompletions {
		if referrer.WeeklyCompletions[i].Week == week {
			bucket = i
			break
		}
	}
	if bucket >= 0 {
		count, err := common.CheckedAdd(referrer.WeeklyCompletions[bucket].Count, 1)
		if err != nil {
			return false, fmt.Errorf("matrix: weekly bucket: %w", err)
		}
		referrer.WeeklyCompletions[bucket].Count = count
	} else {
		referrer.WeeklyCompletions = append(referrer.WeeklyCompletions, types.WeekCount{Week: week, Count: 1})
	}
	ledger.TotalMatricesThisWeek = weekTotal
	referrer.CompletedMatricesTotal = lifetime
	if emitter != nil {
		emitter.Emit(events.MatrixCompleted{
			Participant:   referrerKey,
			WeekNumber:    week,
			TotalMatrices: lifetime,
		})
	}
	return true, nil
}
