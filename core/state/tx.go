package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/types"
	"donutmatrix/storage"
)

// ErrTxClosed indicates a transaction was used after Commit or Discard.
var ErrTxClosed = errors.New("state: transaction closed")

// Tx is a write overlay over the manager. Reads are cached so every mutation
// happens on a private copy, and nothing reaches the database until Commit
// writes the whole overlay in one atomic batch.
type Tx struct {
	mgr *Manager

	ledger      *types.GlobalLedger
	ledgerDirty bool

	records map[solana.PublicKey]*types.ParticipantRecord
	dirty   map[solana.PublicKey]bool
	created []solana.PublicKey

	closed bool
}

// Begin opens a transaction.
func (m *Manager) Begin() *Tx {
	return &Tx{
		mgr:     m,
		records: make(map[solana.PublicKey]*types.ParticipantRecord),
		dirty:   make(map[solana.PublicKey]bool),
	}
}

// Ledger returns the transaction's working copy of the ledger, or nil when
// the program has not been initialised.
func (tx *Tx) Ledger() (*types.GlobalLedger, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	if tx.ledger != nil {
		return tx.ledger, nil
	}
	ledger, err := tx.mgr.Ledger()
	if err != nil {
		return nil, err
	}
	tx.ledger = ledger
	return ledger, nil
}

// SetLedger replaces the working ledger and marks it for writing.
func (tx *Tx) SetLedger(ledger *types.GlobalLedger) {
	tx.ledger = ledger
	tx.ledgerDirty = true
}

// TouchLedger marks the working ledger for writing.
func (tx *Tx) TouchLedger() {
	tx.ledgerDirty = true
}

// Participant returns the working copy of owner's record, or nil if the
// owner has no record.
func (tx *Tx) Participant(owner solana.PublicKey) (*types.ParticipantRecord, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	if record, ok := tx.records[owner]; ok {
		return record, nil
	}
	record, err := tx.mgr.Participant(owner)
	if err != nil {
		return nil, err
	}
	if record != nil {
		tx.records[owner] = record
	}
	return record, nil
}

// PutParticipant stores record as owner's working copy and marks it for
// writing. New owners are appended to the participant index on commit.
func (tx *Tx) PutParticipant(owner solana.PublicKey, record *types.ParticipantRecord) error {
	if tx.closed {
		return ErrTxClosed
	}
	if record == nil {
		return fmt.Errorf("state: nil participant record for %s", owner)
	}
	existing, err := tx.Participant(owner)
	if err != nil {
		return err
	}
	if existing == nil && !tx.dirty[owner] {
		tx.created = append(tx.created, owner)
	}
	tx.records[owner] = record
	tx.dirty[owner] = true
	return nil
}

// Commit writes every dirty value in one batch and closes the transaction.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	batch := new(storage.Batch)
	if tx.ledgerDirty && tx.ledger != nil {
		encoded, err := rlp.EncodeToBytes(tx.ledger)
		if err != nil {
			return fmt.Errorf("state: encode ledger: %w", err)
		}
		batch.Put(ledgerKey, encoded)
	}
	for owner := range tx.dirty {
		encoded, err := rlp.EncodeToBytes(tx.records[owner])
		if err != nil {
			return fmt.Errorf("state: encode participant %s: %w", owner, err)
		}
		batch.Put(participantKey(owner), encoded)
	}
	if len(tx.created) > 0 {
		index, err := tx.mgr.Participants()
		if err != nil {
			return err
		}
		index = append(index, tx.created...)
		encoded, err := rlp.EncodeToBytes(index)
		if err != nil {
			return fmt.Errorf("state: encode participant index: %w", err)
		}
		batch.Put(participantIndex, encoded)
	}
	if batch.Len() > 0 {
		if err := tx.mgr.db.Write(batch); err != nil {
			return fmt.Errorf("state: commit: %w", err)
		}
	}
	tx.closed = true
	return nil
}

// Discard drops every pending change. It is safe to call after Commit.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.ledger = nil
	tx.records = nil
	tx.dirty = nil
	tx.created = nil
}
