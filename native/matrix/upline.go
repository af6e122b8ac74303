package matrix

import (
	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/types"
)

// inheritAncestors derives a new participant's ancestor list from its
// referrer: the referrer's most recent MaxUplineDepth-1 ancestors followed by
// the referrer itself. The oldest entries are evicted first.
func inheritAncestors(referrerKey solana.PublicKey, referrer types.Upline) []solana.PublicKey {
	keep := referrer.Ancestors
	if limit := types.MaxUplineDepth - 1; len(keep) > limit {
		keep = keep[len(keep)-limit:]
	}
	out := make([]solana.PublicKey, 0, len(keep)+1)
	out = append(out, keep...)
	out = append(out, referrerKey)
	return out
}
