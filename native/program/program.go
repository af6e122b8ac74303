package program

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"donutmatrix/core/events"
	"donutmatrix/core/pricing"
	"donutmatrix/core/state"
	"donutmatrix/core/types"
	"donutmatrix/native/common"
	"donutmatrix/native/epoch"
	"donutmatrix/native/matrix"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap"
	"donutmatrix/observability/metrics"
)

// Deps bundles the collaborators the program runs against.
type Deps struct {
	State    *state.Manager
	Registry *registry.Registry
	Guard    *pricing.Guard
	Settler  *swap.Settler
	Clock    clockwork.Clock
	// Emitter receives signals after an operation commits. Optional.
	Emitter events.Emitter
	Logger  *slog.Logger
	Metrics *metrics.MatrixMetrics
}

// Program executes the airdrop operations. Each mutating operation runs
// inside a single state transaction guarded by the ledger's lock flag; its
// signals are released only after the transaction commits.
//
// Program is not safe for concurrent use. Callers serialise operations.
type Program struct {
	state      *state.Manager
	registry   *registry.Registry
	guard      *pricing.Guard
	settler    *swap.Settler
	engine     *matrix.Engine
	accountant *epoch.Accountant
	clock      clockwork.Clock
	emitter    events.Emitter
	logger     *slog.Logger
	metrics    *metrics.MatrixMetrics

	// active is the transaction of the operation in flight. A call that
	// arrives while it is set sees the locked ledger and is rejected.
	active *state.Tx
}

// New constructs a program from its dependencies.
func New(deps Deps) (*Program, error) {
	switch {
	case deps.State == nil:
		return nil, fmt.Errorf("%w: state", ErrMissingCollaborator)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: registry", ErrMissingCollaborator)
	case deps.Guard == nil:
		return nil, fmt.Errorf("%w: price guard", ErrMissingCollaborator)
	case deps.Settler == nil:
		return nil, fmt.Errorf("%w: settler", ErrMissingCollaborator)
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Program{
		state:      deps.State,
		registry:   deps.Registry,
		guard:      deps.Guard,
		settler:    deps.Settler,
		engine:     matrix.NewEngine(),
		accountant: epoch.NewAccountant(),
		clock:      clock,
		emitter:    emitter,
		logger:     logger.With("component", "program"),
		metrics:    deps.Metrics,
	}, nil
}

// Accountant exposes the epoch accountant so tests can pin the schedule.
func (p *Program) Accountant() *epoch.Accountant {
	return p.accountant
}

// operation carries the working state of one mutating call.
type operation struct {
	tx     *state.Tx
	ledger *types.GlobalLedger
	buf    *events.Buffer
	now    uint64
}

func (p *Program) now() uint64 {
	now := p.clock.Now().Unix()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

// execute runs fn under the reentrancy guard after rolling the epoch. State
// and signals are committed only when fn succeeds.
func (p *Program) execute(ctx context.Context, name string, fn func(context.Context, *operation) error) (err error) {
	started := p.clock.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(Kind(err))
			p.logger.Warn("operation failed", "operation", name, "kind", outcome, "error", err)
		}
		p.metrics.ObserveOperation(name, outcome, p.clock.Since(started))
	}()

	tx := p.active
	if tx == nil {
		tx = p.state.Begin()
		defer tx.Discard()
	}
	ledger, err := tx.Ledger()
	if err != nil {
		return err
	}
	if ledger == nil {
		return ErrNotInitialized
	}
	release, err := common.Acquire(&ledger.Locked)
	if err != nil {
		return err
	}
	defer release()
	p.active = tx
	defer func() { p.active = nil }()

	op := &operation{tx: tx, ledger: ledger, buf: &events.Buffer{}, now: p.now()}
	closed, err := p.accountant.Roll(op.buf, ledger, op.now)
	if err != nil {
		return err
	}
	if err := fn(ctx, op); err != nil {
		return err
	}

	release()
	tx.TouchLedger()
	if err := tx.Commit(); err != nil {
		return err
	}
	if closed != nil {
		p.metrics.RecordWeekClosed()
		p.logger.Info("week closed", "week", closed.WeekNumber, "matrices", closed.TotalMatrices, "per_matrix", closed.DonutPerMatrix)
	}
	p.metrics.SetCurrentWeek(ledger.CurrentWeek)
	op.buf.Flush(p.emitter)
	return nil
}

// Initialize creates the global ledger. caller becomes the owner and treasury
// is the only identity allowed to start the airdrop.
func (p *Program) Initialize(ctx context.Context, caller, treasury solana.PublicKey) error {
	if caller.IsZero() || treasury.IsZero() {
		return fmt.Errorf("%w: owner and treasury required", registry.ErrMissingAccount)
	}
	if p.active != nil {
		return common.ErrReentrancy
	}
	tx := p.state.Begin()
	defer tx.Discard()
	existing, err := tx.Ledger()
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyInitialized
	}
	tx.SetLedger(types.NewGlobalLedger(caller, treasury))
	if err := tx.Commit(); err != nil {
		return err
	}
	p.logger.Info("program initialised", "owner", caller.String(), "treasury", treasury.String())
	return nil
}

// StartAirdrop opens week one at the current time.
func (p *Program) StartAirdrop(ctx context.Context, caller solana.PublicKey) error {
	return p.execute(ctx, "start_airdrop", func(_ context.Context, op *operation) error {
		ledger := op.ledger
		if !caller.Equals(ledger.Treasury) {
			return ErrUnauthorized
		}
		if ledger.AirdropActive {
			return ErrAirdropAlreadyStarted
		}
		if ledger.ProgramStartTime != 0 {
			return ErrAirdropEnded
		}
		ledger.ProgramStartTime = op.now
		ledger.CurrentWeek = 1
		ledger.TotalMatricesThisWeek = 0
		ledger.AirdropActive = true
		p.logger.Info("airdrop started", "start", op.now)
		return nil
	})
}

// RollEpoch advances the reward week without any other effect.
func (p *Program) RollEpoch(ctx context.Context) (*types.GlobalLedger, error) {
	var out *types.GlobalLedger
	err := p.execute(ctx, "roll_epoch", func(_ context.Context, op *operation) error {
		out = op.ledger.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Locked = false
	return out, nil
}
