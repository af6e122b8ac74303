package types

import "github.com/gagliardetto/solana-go"

const (
	// MaxUplineDepth caps the number of ancestors retained per participant.
	MaxUplineDepth = 6
	// ChainSlots is the number of slots in a single matrix cycle.
	ChainSlots = 3
)

// Upline tracks a participant's position in the referral tree. Depth keeps
// counting past MaxUplineDepth while Ancestors only retains the most recent
// referrers, oldest first.
type Upline struct {
	ID        uint64             `json:"id"`
	Depth     uint64             `json:"depth"`
	Ancestors []solana.PublicKey `json:"ancestors"`
}

// Slot is a single matrix position. Filled distinguishes an empty slot from
// one occupied by the zero key.
type Slot struct {
	Filled   bool             `json:"filled"`
	Occupant solana.PublicKey `json:"occupant"`
}

// Chain is the referrer's current 3-slot matrix cycle.
type Chain struct {
	ID          uint64           `json:"id"`
	Slots       [ChainSlots]Slot `json:"slots"`
	FilledSlots uint64           `json:"filledSlots"`
}

// WeekCount stores the number of completed matrices for a single week.
type WeekCount struct {
	Week  uint64 `json:"week"`
	Count uint64 `json:"count"`
}

// ParticipantRecord is the per-user program state. Records are created once at
// registration and never removed. The referrer is a forward-only reference;
// ancestors are materialised at write time.
type ParticipantRecord struct {
	IsRegistered           bool             `json:"isRegistered"`
	HasReferrer            bool             `json:"hasReferrer"`
	Referrer               solana.PublicKey `json:"referrer"`
	Owner                  solana.PublicKey `json:"owner"`
	Upline                 Upline           `json:"upline"`
	Chain                  Chain            `json:"chain"`
	ReservedSOL            uint64           `json:"reservedSol"`
	CompletedMatricesTotal uint64           `json:"completedMatricesTotal"`
	WeeklyCompletions      []WeekCount      `json:"weeklyCompletions"`
	TotalEarned            uint64           `json:"totalEarned"`
	TotalClaimed           uint64           `json:"totalClaimed"`
	LastProcessedWeek      uint64           `json:"lastProcessedWeek"`
}

// CompletionsForWeek returns the completion count recorded for week, or zero.
func (r *ParticipantRecord) CompletionsForWeek(week uint64) uint64 {
	if r == nil {
		return 0
	}
	for _, wc := range r.WeeklyCompletions {
		if wc.Week == week {
			return wc.Count
		}
	}
	return 0
}

// Clone returns a deep copy of the record.
func (r *ParticipantRecord) Clone() *ParticipantRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Upline.Ancestors = append([]solana.PublicKey{}, r.Upline.Ancestors...)
	clone.WeeklyCompletions = append([]WeekCount{}, r.WeeklyCompletions...)
	return &clone
}
