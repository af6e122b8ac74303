package state

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/types"
	"donutmatrix/storage"
)

// Manager reads and writes the program's persisted records. Values are RLP
// encoded and stored under keccak256-hashed keys.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	ledgerKey         = ethcrypto.Keccak256([]byte("matrix/ledger"))
	participantPrefix = []byte("matrix/participant:")
	participantIndex  = ethcrypto.Keccak256([]byte("matrix/participants"))
)

func participantKey(owner solana.PublicKey) []byte {
	buf := make([]byte, len(participantPrefix)+len(owner))
	copy(buf, participantPrefix)
	copy(buf[len(participantPrefix):], owner[:])
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) read(key []byte) ([]byte, error) {
	if m == nil || m.db == nil {
		return nil, fmt.Errorf("state: manager unavailable")
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// Ledger loads the global ledger. It returns nil when the program has not
// been initialised.
func (m *Manager) Ledger() (*types.GlobalLedger, error) {
	data, err := m.read(ledgerKey)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	ledger := new(types.GlobalLedger)
	if err := rlp.DecodeBytes(data, ledger); err != nil {
		return nil, fmt.Errorf("state: decode ledger: %w", err)
	}
	return ledger, nil
}

// Participant loads the record for owner, or nil if none exists.
func (m *Manager) Participant(owner solana.PublicKey) (*types.ParticipantRecord, error) {
	data, err := m.read(participantKey(owner))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	record := new(types.ParticipantRecord)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, fmt.Errorf("state: decode participant %s: %w", owner, err)
	}
	return record, nil
}

// Participants lists every registered owner in registration order.
func (m *Manager) Participants() ([]solana.PublicKey, error) {
	data, err := m.read(participantIndex)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return []solana.PublicKey{}, nil
	}
	var list []solana.PublicKey
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, fmt.Errorf("state: decode participant index: %w", err)
	}
	return list, nil
}

// KVPut stores value under key using RLP encoding. The key is hashed with
// keccak256 before it reaches the database.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.read(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Fingerprint returns the encoded ledger followed by every encoded participant
// record. Two fingerprints are equal only when the persisted program state is
// byte-identical.
func (m *Manager) Fingerprint() ([]byte, error) {
	var buf bytes.Buffer
	ledger, err := m.read(ledgerKey)
	if err != nil {
		return nil, err
	}
	buf.Write(ledger)
	owners, err := m.Participants()
	if err != nil {
		return nil, err
	}
	for _, owner := range owners {
		data, err := m.read(participantKey(owner))
		if err != nil {
			return nil, err
		}
		buf.Write(owner[:])
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
