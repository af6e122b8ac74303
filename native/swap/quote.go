package swap

import (
	"fmt"

	"github.com/holiman/uint256"

	"donutmatrix/native/common"
)

const (
	// Precision scales the pool ratio so integer division keeps nine decimals.
	Precision uint64 = 1_000_000_000
	// SlippageNumerator and SlippageDenominator apply the fixed 1% tolerance.
	SlippageNumerator   uint64 = 99
	SlippageDenominator uint64 = 100
)

// SwapQuote captures the derived pool amounts and the minimum acceptable output.
// Ratio is sideA*Precision/sideB and may exceed 64 bits for lopsided pools.
type SwapQuote struct {
	SideA      uint64
	SideB      uint64
	Ratio      *uint256.Int
	AmountIn   uint64
	Estimate   uint64
	MinimumOut uint64
}

// sideAmount computes floor(lpAmount * vaultTotal / lpSupply) with a wide
// intermediate. A zero supply yields zero.
func sideAmount(lpAmount, vaultTotal, lpSupply uint64) (uint64, error) {
	if lpSupply == 0 {
		return 0, nil
	}
	return common.MulDiv(lpAmount, vaultTotal, lpSupply)
}

// Quote prices depositIn of side B against the pool's side A.
func Quote(r Reserves, depositIn uint64) (SwapQuote, error) {
	sideA, err := sideAmount(r.LPAAmount, r.VaultATotal, r.LPASupply)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("swap: side a: %w", err)
	}
	sideB, err := sideAmount(r.LPBAmount, r.VaultBTotal, r.LPBSupply)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("swap: side b: %w", err)
	}
	if sideA == 0 || sideB == 0 {
		return SwapQuote{}, ErrPoolUnusable
	}
	ratio, err := common.MulDivWide(uint256.NewInt(sideA), uint256.NewInt(Precision), uint256.NewInt(sideB))
	if err != nil {
		return SwapQuote{}, fmt.Errorf("swap: ratio: %w", err)
	}
	estimate, err := common.MulDivWide(uint256.NewInt(depositIn), ratio, uint256.NewInt(Precision))
	if err != nil {
		return SwapQuote{}, fmt.Errorf("%w: %w", ErrEstimateOutOfRange, err)
	}
	if !estimate.IsUint64() {
		return SwapQuote{}, ErrEstimateOutOfRange
	}
	est := estimate.Uint64()
	minOut, err := common.MulDiv(est, SlippageNumerator, SlippageDenominator)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("swap: slippage: %w", err)
	}
	if minOut < 1 {
		minOut = 1
	}
	return SwapQuote{
		SideA:      sideA,
		SideB:      sideB,
		Ratio:      ratio,
		AmountIn:   depositIn,
		Estimate:   est,
		MinimumOut: minOut,
	}, nil
}
