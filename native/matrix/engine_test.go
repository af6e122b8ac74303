package matrix

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/events"
	"donutmatrix/core/types"
)

func key(index byte) solana.PublicKey {
	var out solana.PublicKey
	out[31] = index
	return out
}

func newLedger() *types.GlobalLedger {
	return types.NewGlobalLedger(key(250), key(251))
}

func activeLedger() *types.GlobalLedger {
	ledger := newLedger()
	ledger.AirdropActive = true
	ledger.CurrentWeek = 1
	ledger.ProgramStartTime = 1
	return ledger
}

func TestRegisterRoot(t *testing.T) {
	ledger := newLedger()
	record, err := NewEngine().RegisterRoot(key(1), ledger)
	if err != nil {
		t.Fatalf("register root: %v", err)
	}
	if !record.IsRegistered || record.HasReferrer {
		t.Fatalf("unexpected root record: %+v", record)
	}
	if record.Upline.Depth != 1 || len(record.Upline.Ancestors) != 0 {
		t.Fatalf("unexpected upline: %+v", record.Upline)
	}
	if record.Upline.ID != 1 || record.Chain.ID != 1 {
		t.Fatalf("unexpected ids: upline=%d chain=%d", record.Upline.ID, record.Chain.ID)
	}
	if ledger.NextUplineID != 2 || ledger.NextChainID != 2 {
		t.Fatalf("ledger counters not advanced")
	}
}

func TestRegisterWithReferrerRequiresRegistration(t *testing.T) {
	ledger := newLedger()
	_, err := NewEngine().RegisterWithReferrer(key(2), key(1), &types.ParticipantRecord{}, ledger)
	if !errors.Is(err, ErrReferrerNotRegistered) {
		t.Fatalf("expected ErrReferrerNotRegistered, got %v", err)
	}
	if _, err := NewEngine().RegisterWithReferrer(key(2), key(1), nil, ledger); !errors.Is(err, ErrReferrerNotRegistered) {
		t.Fatalf("expected ErrReferrerNotRegistered for nil, got %v", err)
	}
	if ledger.NextUplineID != 1 {
		t.Fatalf("failed registration must not consume ids")
	}
}

func TestRegisterWithReferrerRejectsSelf(t *testing.T) {
	ledger := newLedger()
	root, _ := NewEngine().RegisterRoot(key(1), ledger)
	if _, err := NewEngine().RegisterWithReferrer(key(1), key(1), root, ledger); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected ErrSelfReferral, got %v", err)
	}
}

func TestAncestorListBoundedOldestEvicted(t *testing.T) {
	engine := NewEngine()
	ledger := newLedger()
	parentKey := key(1)
	parent, err := engine.RegisterRoot(parentKey, ledger)
	if err != nil {
		t.Fatalf("register root: %v", err)
	}
	for i := byte(2); i <= 12; i++ {
		child, err := engine.RegisterWithReferrer(key(i), parentKey, parent, ledger)
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		if len(child.Upline.Ancestors) > types.MaxUplineDepth {
			t.Fatalf("ancestor list exceeded cap at depth %d", child.Upline.Depth)
		}
		if child.Upline.Depth != uint64(i) {
			t.Fatalf("unexpected depth %d for %d", child.Upline.Depth, i)
		}
		last := child.Upline.Ancestors[len(child.Upline.Ancestors)-1]
		if !last.Equals(parentKey) {
			t.Fatalf("referrer must be the newest ancestor")
		}
		parentKey, parent = key(i), child
	}
	// the deepest participant (12) should see ancestors 6..11
	ancestors := parent.Upline.Ancestors
	if len(ancestors) != types.MaxUplineDepth {
		t.Fatalf("expected full ancestor list, got %d", len(ancestors))
	}
	for i, ancestor := range ancestors {
		if !ancestor.Equals(key(byte(6 + i))) {
			t.Fatalf("unexpected ancestor at %d: %s", i, ancestor)
		}
	}
}

func TestInheritAncestorsDoesNotAliasReferrer(t *testing.T) {
	referrer := types.Upline{Ancestors: []solana.PublicKey{key(1), key(2)}}
	out := inheritAncestors(key(3), referrer)
	out[0] = key(9)
	if !referrer.Ancestors[0].Equals(key(1)) {
		t.Fatalf("referrer ancestors mutated through derived list")
	}
}

func TestFillSlotCycle(t *testing.T) {
	engine := NewEngine()
	ledger := newLedger()
	referrer, _ := engine.RegisterRoot(key(1), ledger)
	originalChain := referrer.Chain.ID
	buf := &events.Buffer{}

	wantActions := []Action{ActionSwapAndBurn, ActionEscrow, ActionPayoutReserved}
	for i := 0; i < 3; i++ {
		result, err := engine.FillSlot(buf, key(1), referrer, key(byte(10+i)), 77)
		if err != nil {
			t.Fatalf("fill %d: %v", i, err)
		}
		if result.Index != uint8(i) {
			t.Fatalf("expected slot %d, got %d", i, result.Index)
		}
		if result.Action != wantActions[i] {
			t.Fatalf("unexpected action for slot %d: %s", i, result.Action)
		}
		if result.ChainID != originalChain {
			t.Fatalf("fill must report the chain it filled")
		}
		if i < 2 {
			if result.Completed {
				t.Fatalf("slot %d must not complete", i)
			}
			if referrer.Chain.FilledSlots != uint64(i+1) {
				t.Fatalf("unexpected filled count %d", referrer.Chain.FilledSlots)
			}
			if !referrer.Chain.Slots[i].Occupant.Equals(key(byte(10 + i))) {
				t.Fatalf("slot %d has wrong occupant", i)
			}
		} else if !result.Completed {
			t.Fatalf("third fill must complete")
		}
	}
	if referrer.Chain.ID != 77 || referrer.Chain.FilledSlots != 0 {
		t.Fatalf("chain not rotated: %+v", referrer.Chain)
	}
	for i, slot := range referrer.Chain.Slots {
		if slot.Filled {
			t.Fatalf("slot %d not reset", i)
		}
	}
	if got := len(buf.Events()); got != 3 {
		t.Fatalf("expected 3 slot events, got %d", got)
	}
}

func TestFillSlotRejectsFullChain(t *testing.T) {
	referrer := &types.ParticipantRecord{IsRegistered: true, Chain: types.Chain{FilledSlots: 3}}
	if _, err := NewEngine().FillSlot(nil, key(1), referrer, key(2), 5); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
}

func TestSlotActionOutOfRange(t *testing.T) {
	if _, err := SlotAction(3); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
}

func TestRecordCompletionCounts(t *testing.T) {
	engine := NewEngine()
	ledger := activeLedger()
	referrer := &types.ParticipantRecord{IsRegistered: true}
	buf := &events.Buffer{}

	for i := 0; i < 2; i++ {
		counted, err := engine.RecordCompletion(buf, key(1), referrer, ledger)
		if err != nil {
			t.Fatalf("record completion: %v", err)
		}
		if !counted {
			t.Fatalf("expected completion to count")
		}
	}
	if ledger.TotalMatricesThisWeek != 2 || referrer.CompletedMatricesTotal != 2 {
		t.Fatalf("unexpected counters: week=%d lifetime=%d", ledger.TotalMatricesThisWeek, referrer.CompletedMatricesTotal)
	}
	if len(referrer.WeeklyCompletions) != 1 || referrer.CompletionsForWeek(1) != 2 {
		t.Fatalf("unexpected weekly buckets: %+v", referrer.WeeklyCompletions)
	}
	ledger.CurrentWeek = 2
	if _, err := engine.RecordCompletion(buf, key(1), referrer, ledger); err != nil {
		t.Fatalf("record completion week 2: %v", err)
	}
	if len(referrer.WeeklyCompletions) != 2 || referrer.CompletionsForWeek(2) != 1 {
		t.Fatalf("expected new bucket for week 2: %+v", referrer.WeeklyCompletions)
	}
	emitted := buf.Events()
	if len(emitted) != 3 || emitted[2].EventType() != events.TypeMatrixCompleted {
		t.Fatalf("unexpected events: %v", emitted)
	}
}

func TestRecordCompletionInactiveIsNoop(t *testing.T) {
	ledger := newLedger()
	referrer := &types.ParticipantRecord{IsRegistered: true}
	buf := &events.Buffer{}
	counted, err := NewEngine().RecordCompletion(buf, key(1), referrer, ledger)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if counted || referrer.CompletedMatricesTotal != 0 || ledger.TotalMatricesThisWeek != 0 {
		t.Fatalf("inactive rewards must not count completions")
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("inactive rewards must not emit")
	}
}
