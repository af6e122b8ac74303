package events

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"donutmatrix/core/types"
)

const (
	// TypeSlotFilled is emitted whenever a participant occupies a referrer's slot.
	TypeSlotFilled = "matrix.slot_filled"
	// TypeWeekClosed is emitted when a reward week is snapshotted.
	TypeWeekClosed = "epoch.week_closed"
	// TypeMatrixCompleted is emitted when a counted matrix completion is recorded.
	TypeMatrixCompleted = "matrix.completed"
	// TypeDonutSwappedAndBurned is emitted after a deposit was swapped and the proceeds burned.
	TypeDonutSwappedAndBurned = "swap.swapped_and_burned"
	// TypeAirdropClaimed is emitted after a participant claimed accrued rewards.
	TypeAirdropClaimed = "airdrop.claimed"
)

type SlotFilled struct {
	SlotIndex   uint8
	ChainID     uint64
	Participant solana.PublicKey
	Referrer    solana.PublicKey
}

func (SlotFilled) EventType() string { return TypeSlotFilled }

func (e SlotFilled) Event() *types.Event {
	return &types.Event{
		Type: TypeSlotFilled,
		Attributes: map[string]string{
			"slotIndex":   strconv.FormatUint(uint64(e.SlotIndex), 10),
			"chainId":     strconv.FormatUint(e.ChainID, 10),
			"participant": e.Participant.String(),
			"referrer":    e.Referrer.String(),
		},
	}
}

type WeekClosed struct {
	WeekNumber       uint64
	TotalMatrices    uint64
	DonutDistributed uint64
	DonutPerMatrix   uint64
}

func (WeekClosed) EventType() string { return TypeWeekClosed }

func (e WeekClosed) Event() *types.Event {
	return &types.Event{
		Type: TypeWeekClosed,
		Attributes: map[string]string{
			"weekNumber":       strconv.FormatUint(e.WeekNumber, 10),
			"totalMatrices":    strconv.FormatUint(e.TotalMatrices, 10),
			"donutDistributed": strconv.FormatUint(e.DonutDistributed, 10),
			"donutPerMatrix":   strconv.FormatUint(e.DonutPerMatrix, 10),
		},
	}
}

type MatrixCompleted struct {
	Participant   solana.PublicKey
	WeekNumber    uint64
	TotalMatrices uint64
}

func (MatrixCompleted) EventType() string { return TypeMatrixCompleted }

func (e MatrixCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeMatrixCompleted,
		Attributes: map[string]string{
			"participant":   e.Participant.String(),
			"weekNumber":    strconv.FormatUint(e.WeekNumber, 10),
			"totalMatrices": strconv.FormatUint(e.TotalMatrices, 10),
		},
	}
}

type DonutSwappedAndBurned struct {
	Participant solana.PublicKey
	AmountIn    uint64
	AmountOut   uint64
	WeekNumber  uint64
}

func (DonutSwappedAndBurned) EventType() string { return TypeDonutSwappedAndBurned }

func (e DonutSwappedAndBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeDonutSwappedAndBurned,
		Attributes: map[string]string{
			"participant": e.Participant.String(),
			"amountIn":    strconv.FormatUint(e.AmountIn, 10),
			"amountOut":   strconv.FormatUint(e.AmountOut, 10),
			"weekNumber":  strconv.FormatUint(e.WeekNumber, 10),
		},
	}
}

type AirdropClaimed struct {
	Participant  solana.PublicKey
	Amount       uint64
	TotalEarned  uint64
	TotalClaimed uint64
}

func (AirdropClaimed) EventType() string { return TypeAirdropClaimed }

func (e AirdropClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropClaimed,
		Attributes: map[string]string{
			"participant":  e.Participant.String(),
			"amount":       strconv.FormatUint(e.Amount, 10),
			"totalEarned":  strconv.FormatUint(e.TotalEarned, 10),
			"totalClaimed": strconv.FormatUint(e.TotalClaimed, 10),
		},
	}
}
