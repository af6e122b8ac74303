package types

import "github.com/gagliardetto/solana-go"

const (
	// MaxClosedWeeks bounds the number of week snapshots retained by the ledger.
	MaxClosedWeeks = 36
)

// WeekSnapshot is the immutable record of a closed reward week. Once appended
// to the ledger it is never mutated.
type WeekSnapshot struct {
	WeekNumber       uint64 `json:"weekNumber"`
	TotalMatrices    uint64 `json:"totalMatrices"`
	DonutDistributed uint64 `json:"donutDistributed"`
	DonutPerMatrix   uint64 `json:"donutPerMatrix"`
	WeekEndTime      uint64 `json:"weekEndTime"`
}

// GlobalLedger is the singleton program state. It is created once by
// Initialize and passed explicitly into every operation.
type GlobalLedger struct {
	Owner                 solana.PublicKey `json:"owner"`
	Treasury              solana.PublicKey `json:"treasury"`
	Locked                bool             `json:"locked"`
	NextUplineID          uint64           `json:"nextUplineId"`
	NextChainID           uint64           `json:"nextChainId"`
	CurrentWeek           uint64           `json:"currentWeek"`
	TotalMatricesThisWeek uint64           `json:"totalMatricesThisWeek"`
	ProgramStartTime      uint64           `json:"programStartTime"`
	AirdropActive         bool             `json:"airdropActive"`
	ClosedWeeks           []WeekSnapshot   `json:"closedWeeks"`
}

// NewGlobalLedger returns a ledger with counters starting at one so that zero
// can be treated as "unassigned" for upline and chain identifiers.
func NewGlobalLedger(owner, treasury solana.PublicKey) *GlobalLedger {
	return &GlobalLedger{
		Owner:        owner,
		Treasury:     treasury,
		NextUplineID: 1,
		NextChainID:  1,
		ClosedWeeks:  []WeekSnapshot{},
	}
}

// RewardsActive reports whether completions currently count toward a week.
func (l *GlobalLedger) RewardsActive() bool {
	return l != nil && l.AirdropActive && l.CurrentWeek > 0
}

// Snapshot returns the closed week with the supplied number, if present.
func (l *GlobalLedger) Snapshot(week uint64) (WeekSnapshot, bool) {
	if l == nil {
		return WeekSnapshot{}, false
	}
	for _, snap := range l.ClosedWeeks {
		if snap.WeekNumber == week {
			return snap, true
		}
	}
	return WeekSnapshot{}, false
}

// Clone returns a deep copy of the ledger.
func (l *GlobalLedger) Clone() *GlobalLedger {
	if l == nil {
		return nil
	}
	clone := *l
	clone.ClosedWeeks = append([]WeekSnapshot{}, l.ClosedWeeks...)
	return &clone
}
