package state

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/types"
	"donutmatrix/storage"
)

func key(index byte) solana.PublicKey {
	var out solana.PublicKey
	out[31] = index
	return out
}

func TestLedgerRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	if ledger, err := mgr.Ledger(); err != nil || ledger != nil {
		t.Fatalf("expected no ledger before init, got %v %v", ledger, err)
	}
	tx := mgr.Begin()
	ledger := types.NewGlobalLedger(key(1), key(2))
	ledger.ClosedWeeks = append(ledger.ClosedWeeks, types.WeekSnapshot{WeekNumber: 1, TotalMatrices: 2, DonutPerMatrix: 5})
	tx.SetLedger(ledger)
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	loaded, err := mgr.Ledger()
	if err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if !loaded.Treasury.Equals(key(2)) || loaded.NextChainID != 1 || len(loaded.ClosedWeeks) != 1 {
		t.Fatalf("unexpected ledger: %+v", loaded)
	}
}

func TestTxCommitIsAtomicAndIsolated(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	tx := mgr.Begin()
	tx.SetLedger(types.NewGlobalLedger(key(1), key(2)))
	record := &types.ParticipantRecord{IsRegistered: true, Owner: key(3)}
	record.Chain.Slots[1] = types.Slot{Filled: true, Occupant: key(4)}
	if err := tx.PutParticipant(key(3), record); err != nil {
		t.Fatalf("put participant: %v", err)
	}
	if stored, _ := mgr.Participant(key(3)); stored != nil {
		t.Fatalf("uncommitted record visible")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	stored, err := mgr.Participant(key(3))
	if err != nil || stored == nil {
		t.Fatalf("load participant: %v", err)
	}
	if !stored.Chain.Slots[1].Occupant.Equals(key(4)) {
		t.Fatalf("slot occupant lost in round trip")
	}
	owners, err := mgr.Participants()
	if err != nil || len(owners) != 1 || !owners[0].Equals(key(3)) {
		t.Fatalf("unexpected participant index: %v %v", owners, err)
	}
}

func TestTxDiscardLeavesStateUntouched(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	seed := mgr.Begin()
	seed.SetLedger(types.NewGlobalLedger(key(1), key(2)))
	if err := seed.Commit(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, err := mgr.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	tx := mgr.Begin()
	ledger, err := tx.Ledger()
	if err != nil {
		t.Fatalf("tx ledger: %v", err)
	}
	ledger.Locked = true
	ledger.CurrentWeek = 9
	tx.TouchLedger()
	if err := tx.PutParticipant(key(5), &types.ParticipantRecord{IsRegistered: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	tx.Discard()

	after, err := mgr.Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("discarded transaction changed state")
	}
	if err := tx.Commit(); !errors.Is(err, ErrTxClosed) {
		t.Fatalf("expected ErrTxClosed, got %v", err)
	}
}

func TestParticipantIndexAppendsOnce(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	for i := 0; i < 2; i++ {
		tx := mgr.Begin()
		record, err := tx.Participant(key(7))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if record == nil {
			record = &types.ParticipantRecord{IsRegistered: true}
		}
		record.TotalEarned++
		if err := tx.PutParticipant(key(7), record); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	owners, _ := mgr.Participants()
	if len(owners) != 1 {
		t.Fatalf("owner indexed %d times", len(owners))
	}
	stored, _ := mgr.Participant(key(7))
	if stored.TotalEarned != 2 {
		t.Fatalf("unexpected earned: %d", stored.TotalEarned)
	}
}

func TestEnsureStateVersion(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	if err := EnsureStateVersion(mgr, false); err != nil {
		t.Fatalf("fresh database: %v", err)
	}
	version, ok, err := mgr.StateVersion()
	if err != nil || !ok || version != StateVersion {
		t.Fatalf("expected stamped version, got %d %v %v", version, ok, err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := EnsureStateVersion(mgr, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := EnsureStateVersion(mgr, true); err != nil {
		t.Fatalf("migration override: %v", err)
	}
}
