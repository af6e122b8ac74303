package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"donutmatrix/native/common"
)

// PriceStatus captures the health classification assigned to an oracle round.
type PriceStatus string

const (
	// PriceStatusOK indicates the round was fresh enough to use directly.
	PriceStatusOK PriceStatus = "ok"
	// PriceStatusStale signals the round exceeded the freshness window and the
	// default price was substituted.
	PriceStatusStale PriceStatus = "stale"
)

const (
	// USDDecimals is the fixed-point scale of MinimumUSD.
	USDDecimals = 8
	// LamportsPerSOL converts whole settlement-currency units to base units.
	LamportsPerSOL = 1_000_000_000
	// DefaultMinimumUSD is the $10 deposit floor in 1e-8 USD units.
	DefaultMinimumUSD uint64 = 10 * 100_000_000
	// DefaultFallbackPrice is $150 expressed with DefaultFallbackDecimals.
	DefaultFallbackPrice int64 = 150 * 100_000_000
	// DefaultFallbackDecimals is the scale of DefaultFallbackPrice.
	DefaultFallbackDecimals uint8 = 8
	// DefaultMaxAge is the oldest observation trusted before falling back.
	DefaultMaxAge = 24 * time.Hour
)

var (
	// ErrOracleUnavailable wraps every failure reported by the oracle collaborator.
	ErrOracleUnavailable = errors.New("pricing: oracle unavailable")
	// ErrInvalidPrice indicates the oracle returned a non-positive answer.
	ErrInvalidPrice = errors.New("pricing: invalid oracle price")
	// ErrInsufficientDeposit indicates a deposit below the USD-denominated floor.
	ErrInsufficientDeposit = errors.New("pricing: deposit below minimum")
)

// Round is a single oracle observation.
type Round struct {
	Answer     int64
	ObservedAt time.Time
}

// OracleClient reads price rounds from the external oracle program.
type OracleClient interface {
	LatestRound(ctx context.Context, feed solana.PublicKey) (Round, error)
	Decimals(ctx context.Context, feed solana.PublicKey) (uint8, error)
}

// Config tunes the guard. Zero values take the package defaults.
type Config struct {
	MinimumUSD       uint64
	FallbackPrice    int64
	FallbackDecimals uint8
	MaxAge           time.Duration
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	if c.MinimumUSD == 0 {
		c.MinimumUSD = DefaultMinimumUSD
	}
	if c.FallbackPrice <= 0 {
		c.FallbackPrice = DefaultFallbackPrice
		c.FallbackDecimals = DefaultFallbackDecimals
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
}

// DepositFloor is the resolved minimum deposit and the price it was derived from.
type DepositFloor struct {
	MinimumLamports uint64
	Price           *big.Rat
	AgeSeconds      uint32
	Status          PriceStatus
}

// Guard validates deposits against a USD floor priced by the oracle.
type Guard struct {
	oracle OracleClient
	cfg    Config
	clock  clockwork.Clock
}

// NewGuard constructs a guard. A nil clock uses the wall clock.
func NewGuard(oracle OracleClient, cfg Config, clock clockwork.Clock) (*Guard, error) {
	if oracle == nil {
		return nil, fmt.Errorf("pricing: oracle required")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg.Normalize()
	return &Guard{oracle: oracle, cfg: cfg, clock: clock}, nil
}

// MinimumDeposit resolves the current floor in lamports. Observations older
// than the configured age are replaced by the fallback price rather than
// rejected.
func (g *Guard) MinimumDeposit(ctx context.Context, feed solana.PublicKey) (DepositFloor, error) {
	if g == nil {
		return DepositFloor{}, fmt.Errorf("pricing: guard not initialised")
	}
	round, err := g.oracle.LatestRound(ctx, feed)
	if err != nil {
		return DepositFloor{}, fmt.Errorf("%w: latest round: %w", ErrOracleUnavailable, err)
	}
	decimals, err := g.oracle.Decimals(ctx, feed)
	if err != nil {
		return DepositFloor{}, fmt.Errorf("%w: decimals: %w", ErrOracleUnavailable, err)
	}

	age := computeAgeSeconds(round.ObservedAt, g.clock.Now())
	status := PriceStatusOK
	answer := round.Answer
	if time.Duration(age)*time.Second > g.cfg.MaxAge {
		status = PriceStatusStale
		answer = g.cfg.FallbackPrice
		decimals = g.cfg.FallbackDecimals
	}
	if answer <= 0 {
		return DepositFloor{}, fmt.Errorf("%w: %w: %d", ErrOracleUnavailable, ErrInvalidPrice, answer)
	}

	price := scaledRat(big.NewInt(answer), decimals)
	minimum, err := floorLamports(g.cfg.MinimumUSD, price)
	if err != nil {
		return DepositFloor{}, err
	}
	return DepositFloor{MinimumLamports: minimum, Price: price, AgeSeconds: age, Status: status}, nil
}

// Check fails with ErrInsufficientDeposit when deposit is below the floor.
func (g *Guard) Check(ctx context.Context, feed solana.PublicKey, deposit uint64) (DepositFloor, error) {
	floor, err := g.MinimumDeposit(ctx, feed)
	if err != nil {
		return DepositFloor{}, err
	}
	if deposit < floor.MinimumLamports {
		return floor, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientDeposit, deposit, floor.MinimumLamports)
	}
	return floor, nil
}

// floorLamports computes floor((minUSD / 1e8) / price * 1e9).
func floorLamports(minUSD uint64, price *big.Rat) (uint64, error) {
	usd := scaledRat(new(big.Int).SetUint64(minUSD), USDDecimals)
	sol := new(big.Rat).Quo(usd, price)
	sol.Mul(sol, new(big.Rat).SetInt64(LamportsPerSOL))
	lamports := new(big.Int).Quo(sol.Num(), sol.Denom())
	if !lamports.IsUint64() {
		return 0, fmt.Errorf("pricing: minimum deposit: %w", common.ErrArithmeticOverflow)
	}
	return lamports.Uint64(), nil
}

func scaledRat(value *big.Int, decimals uint8) *big.Rat {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(value, scale)
}

func computeAgeSeconds(observed, now time.Time) uint32 {
	if observed.IsZero() || now.IsZero() {
		return math.MaxUint32
	}
	if observed.After(now) {
		return 0
	}
	seconds := now.Sub(observed) / time.Second
	if seconds > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(seconds)
}
