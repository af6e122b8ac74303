package epoch

import (
	"errors"
	"fmt"

	"donutmatrix/core/events"
	"donutmatrix/core/types"
	"donutmatrix/native/common"
)

var (
	// ErrNoMatricesInWeek indicates a week close was attempted with a zero
	// completion total. Roll guards against this, so seeing it means the ledger
	// counters are inconsistent.
	ErrNoMatricesInWeek = errors.New("epoch: no matrices completed in closing week")
	// ErrNilLedger indicates the ledger was not supplied.
	ErrNilLedger = errors.New("epoch: ledger required")
	// ErrNilRecord indicates the participant record was not supplied.
	ErrNilRecord = errors.New("epoch: participant record required")
)

// CurrentWeek returns the 1-based reward week for now, or zero when now
// precedes start or the program has run past its final week.
func CurrentWeek(start, now uint64) uint64 {
	if now < start {
		return 0
	}
	week := (now-start)/WeekDuration + 1
	if week > ProgramWeeks {
		return 0
	}
	return week
}

// Accountant advances reward weeks and reconciles participant earnings
// against closed week snapshots.
type Accountant struct {
	schedule func(uint64) uint64
}

// NewAccountant constructs an accountant over the fixed weekly schedule.
func NewAccountant() *Accountant {
	return &Accountant{schedule: ScheduleFor}
}

// SetSchedule overrides the weekly schedule, primarily for deterministic testing.
func (a *Accountant) SetSchedule(schedule func(uint64) uint64) {
	if a == nil || schedule == nil {
		return
	}
	a.schedule = schedule
}

func (a *Accountant) scheduleFor(week uint64) uint64 {
	if a == nil || a.schedule == nil {
		return ScheduleFor(week)
	}
	return a.schedule(week)
}

// Roll brings the ledger's current week in line with now. It is idempotent
// and must run before any other mutation in an operation. When a week with at
// least one completion closes, its snapshot is appended and returned.
func (a *Accountant) Roll(emitter events.Emitter, ledger *types.GlobalLedger, now uint64) (*types.WeekSnapshot, error) {
	if ledger == nil {
		return nil, ErrNilLedger
	}
	if !ledger.AirdropActive {
		return nil, nil
	}
	week := CurrentWeek(ledger.ProgramStartTime, now)
	if week == 0 {
		if ledger.CurrentWeek > 0 {
			ledger.AirdropActive = false
			ledger.CurrentWeek = 0
		}
		return nil, nil
	}
	if week == ledger.CurrentWeek {
		return nil, nil
	}

	finished := ledger.CurrentWeek
	var closed *types.WeekSnapshot
	if finished > 0 && ledger.TotalMatricesThisWeek > 0 {
		snap, err := a.closeWeek(ledger, finished)
		if err != nil {
			return nil, err
		}
		if len(ledger.ClosedWeeks) < types.MaxClosedWeeks {
			ledger.ClosedWeeks = append(ledger.ClosedWeeks, snap)
			closed = &snap
			if emitter != nil {
				emitter.Emit(events.WeekClosed{
					WeekNumber:       snap.WeekNumber,
					TotalMatrices:    snap.TotalMatrices,
					DonutDistributed: snap.DonutDistributed,
					DonutPerMatrix:   snap.DonutPerMatrix,
				})
			}
		}
	}
	ledger.TotalMatricesThisWeek = 0
	ledger.CurrentWeek = week
	return closed, nil
}

func (a *Accountant) closeWeek(ledger *types.GlobalLedger, finished uint64) (types.WeekSnapshot, error) {
	distributed := a.scheduleFor(finished)
	perMatrix, err := common.CheckedDiv(distributed, ledger.TotalMatricesThisWeek)
	if err != nil {
		if errors.Is(err, common.ErrDivisionByZero) {
			return types.WeekSnapshot{}, ErrNoMatricesInWeek
		}
		return types.WeekSnapshot{}, err
	}
	offset, err := common.CheckedMul(finished, WeekDuration)
	if err != nil {
		return types.WeekSnapshot{}, fmt.Errorf("epoch: week end: %w", err)
	}
	end, err := common.CheckedAdd(ledger.ProgramStartTime, offset)
	if err != nil {
		return types.WeekSnapshot{}, fmt.Errorf("epoch: week end: %w", err)
	}
	return types.WeekSnapshot{
		WeekNumber:       finished,
		TotalMatrices:    ledger.TotalMatricesThisWeek,
		DonutDistributed: distributed,
		DonutPerMatrix:   perMatrix,
		WeekEndTime:      end,
	}, nil
}

// Reconcile credits the record with its share of every closed week it has not
// yet processed and advances the record's watermark. It returns the amount
// newly credited.
//
// The watermark only ever moves to the highest closed week that was visited.
// The week that is still open has no snapshot yet, so pinning the watermark to
// it would skip that week once it closes: a referrer whose matrix completes and
// is reconciled during week 1 would then claim nothing after week 1 rolls.
func Reconcile(record *types.ParticipantRecord, ledger *types.GlobalLedger) (uint64, error) {
	if record == nil {
		return 0, ErrNilRecord
	}
	if ledger == nil {
		return 0, ErrNilLedger
	}
	watermark := record.LastProcessedWeek
	var earned uint64
	for _, snap := range ledger.ClosedWeeks {
		if snap.WeekNumber <= record.LastProcessedWeek {
			continue
		}
		if snap.WeekNumber > watermark {
			watermark = snap.WeekNumber
		}
		count := record.CompletionsForWeek(snap.WeekNumber)
		if count == 0 {
			continue
		}
		reward, err := common.CheckedMul(count, snap.DonutPerMatrix)
		if err != nil {
			return 0, fmt.Errorf("epoch: week %d reward: %w", snap.WeekNumber, err)
		}
		earned, err = common.CheckedAdd(earned, reward)
		if err != nil {
			return 0, fmt.Errorf("epoch: accumulate reward: %w", err)
		}
	}
	total, err := common.CheckedAdd(record.TotalEarned, earned)
	if err != nil {
		return 0, fmt.Errorf("epoch: total earned: %w", err)
	}
	record.TotalEarned = total
	record.LastProcessedWeek = watermark
	return earned, nil
}

// Claimable returns the earned balance not yet claimed.
func Claimable(record *types.ParticipantRecord) uint64 {
	if record == nil || record.TotalClaimed >= record.TotalEarned {
		return 0
	}
	return record.TotalEarned - record.TotalClaimed
}
