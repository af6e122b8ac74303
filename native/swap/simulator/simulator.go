// Package simulator provides in-memory pool, token and oracle collaborators
// for development runs and tests.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"donutmatrix/core/pricing"
	"donutmatrix/native/common"
	"donutmatrix/native/swap"
)

var (
	// ErrInsufficientFunds is returned when a simulated account cannot cover a debit.
	ErrInsufficientFunds = errors.New("simulator: insufficient funds")
	// ErrSlippage is returned when a simulated swap would pay less than the minimum.
	ErrSlippage = errors.New("simulator: output below minimum")
	// ErrWrongAuthority is returned when a signer does not match the configured authority.
	ErrWrongAuthority = errors.New("simulator: wrong authority")
)

// Config seeds a simulated Ledger.
type Config struct {
	// Authority, when set, is the only signer accepted for burns, token
	// transfers and account closes.
	Authority solana.PublicKey
	// RewardReserve and NativeReserve are the pool's side A and side B
	// liquidity in base units.
	RewardReserve uint64
	NativeReserve uint64
	// Price is the oracle answer with PriceDecimals decimals.
	Price         int64
	PriceDecimals uint8
	Clock         clockwork.Clock
}

// Ledger is an in-memory stand-in for the pool, token and oracle
// programs. Pool pricing is constant product over the two vault totals with
// LP amounts equal to LP supplies.
type Ledger struct {
	mu sync.Mutex

	authority solana.PublicKey
	clock     clockwork.Clock

	lamports map[solana.PublicKey]uint64
	tokens   map[solana.PublicKey]uint64

	enabled      bool
	reserveA     uint64
	reserveB     uint64
	burned       uint64
	price        int64
	decimals     uint8
	observedAt   time.Time
	failures     map[string]error
	beforeSwapFn func()
}

// New builds a simulated ledger with an enabled pool.
func New(cfg Config) *Ledger {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.PriceDecimals == 0 && cfg.Price == 0 {
		cfg.Price, cfg.PriceDecimals = pricing.DefaultFallbackPrice, pricing.DefaultFallbackDecimals
	}
	return &Ledger{
		authority:  cfg.Authority,
		clock:      clock,
		lamports:   make(map[solana.PublicKey]uint64),
		tokens:     make(map[solana.PublicKey]uint64),
		enabled:    true,
		reserveA:   cfg.RewardReserve,
		reserveB:   cfg.NativeReserve,
		price:      cfg.Price,
		decimals:   cfg.PriceDecimals,
		observedAt: clock.Now(),
		failures:   make(map[string]error),
	}
}

// FailNext makes the next call to the named operation return err. Names are
// "swap", "wrap", "burn", "transfer", "transfer_native", "close", "balance",
// "reserves", "round" and "decimals".
func (s *Ledger) FailNext(operation string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation] = err
}

// BeforeSwap installs a hook run at the start of every swap, outside the
// simulator's lock.
func (s *Ledger) BeforeSwap(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSwapFn = fn
}

func (s *Ledger) takeFailure(operation string) error {
	err, ok := s.failures[operation]
	if !ok {
		return nil
	}
	delete(s.failures, operation)
	return err
}

// SetPoolEnabled toggles the pool's enabled flag.
func (s *Ledger) SetPoolEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetPrice publishes a new oracle round observed at observedAt.
func (s *Ledger) SetPrice(answer int64, decimals uint8, observedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price, s.decimals, s.observedAt = answer, decimals, observedAt
}

// Fund credits lamports to a system account.
func (s *Ledger) Fund(owner solana.PublicKey, lamports uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lamports[owner] += lamports
}

// FundTokens credits tokens to a token account.
func (s *Ledger) FundTokens(account solana.PublicKey, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[account] += amount
}

// Lamports reports a system account balance.
func (s *Ledger) Lamports(owner solana.PublicKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lamports[owner]
}

// Tokens reports a token account balance.
func (s *Ledger) Tokens(account solana.PublicKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[account]
}

// Burned reports the total reward tokens destroyed.
func (s *Ledger) Burned() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.burned
}

func (s *Ledger) checkAuthority(signer solana.PublicKey) error {
	if !s.authority.IsZero() && !signer.Equals(s.authority) {
		return fmt.Errorf("%w: %s", ErrWrongAuthority, signer)
	}
	return nil
}

func debit(balances map[solana.PublicKey]uint64, account solana.PublicKey, amount uint64) error {
	remaining, err := common.CheckedSub(balances[account], amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, account, balances[account], amount)
	}
	balances[account] = remaining
	return nil
}

func credit(balances map[solana.PublicKey]uint64, account solana.PublicKey, amount uint64) error {
	total, err := common.CheckedAdd(balances[account], amount)
	if err != nil {
		return err
	}
	balances[account] = total
	return nil
}

// ReadReserves implements swap.ReserveReader using the v1 layout.
func (s *Ledger) ReadReserves(context.Context, swap.PoolAccounts) (swap.RawReserveAccounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("reserves"); err != nil {
		return swap.RawReserveAccounts{}, err
	}
	const lpSupply = 1_000_000_000
	return swap.EncodeReserves(s.enabled, swap.Reserves{
		VaultATotal: s.reserveA,
		VaultBTotal: s.reserveB,
		LPAAmount:   lpSupply,
		LPASupply:   lpSupply,
		LPBAmount:   lpSupply,
		LPBSupply:   lpSupply,
	}), nil
}

// Swap implements swap.AmmClient. The wrapped source is debited and the
// settlement vault credited with the constant-product output.
func (s *Ledger) Swap(_ context.Context, accounts swap.PoolAccounts, amountIn, minimumOut uint64) error {
	s.mu.Lock()
	hook := s.beforeSwapFn
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("swap"); err != nil {
		return err
	}
	if !s.enabled {
		return fmt.Errorf("simulator: pool disabled")
	}
	denominator, err := common.CheckedAdd(s.reserveB, amountIn)
	if err != nil {
		return err
	}
	out, err := common.MulDiv(s.reserveA, amountIn, denominator)
	if err != nil {
		return err
	}
	if out < minimumOut {
		return fmt.Errorf("%w: out %d, minimum %d", ErrSlippage, out, minimumOut)
	}
	if err := debit(s.tokens, accounts.WrappedSource, amountIn); err != nil {
		return err
	}
	s.reserveA -= out
	s.reserveB = denominator
	return credit(s.tokens, accounts.SettlementVault, out)
}

// WrapNative implements swap.TokenClient.
func (s *Ledger) WrapNative(_ context.Context, owner, account solana.PublicKey, lamports uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("wrap"); err != nil {
		return err
	}
	if err := debit(s.lamports, owner, lamports); err != nil {
		return err
	}
	return credit(s.tokens, account, lamports)
}

// Balance implements swap.TokenClient.
func (s *Ledger) Balance(_ context.Context, account solana.PublicKey) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("balance"); err != nil {
		return 0, err
	}
	return s.tokens[account], nil
}

// Burn implements swap.TokenClient.
func (s *Ledger) Burn(_ context.Context, _ solana.PublicKey, account, authority solana.PublicKey, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("burn"); err != nil {
		return err
	}
	if err := s.checkAuthority(authority); err != nil {
		return err
	}
	if err := debit(s.tokens, account, amount); err != nil {
		return err
	}
	s.burned += amount
	return nil
}

// Transfer implements swap.TokenClient.
func (s *Ledger) Transfer(_ context.Context, from, to, authority solana.PublicKey, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("transfer"); err != nil {
		return err
	}
	if err := s.checkAuthority(authority); err != nil {
		return err
	}
	if err := debit(s.tokens, from, amount); err != nil {
		return err
	}
	return credit(s.tokens, to, amount)
}

// TransferNative implements swap.TokenClient.
func (s *Ledger) TransferNative(_ context.Context, from, to solana.PublicKey, lamports uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("transfer_native"); err != nil {
		return err
	}
	if err := debit(s.lamports, from, lamports); err != nil {
		return err
	}
	return credit(s.lamports, to, lamports)
}

// CloseAccount implements swap.TokenClient. Any wrapped balance left in the
// account is returned to destination as lamports.
func (s *Ledger) CloseAccount(_ context.Context, account, destination, authority solana.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("close"); err != nil {
		return err
	}
	if err := s.checkAuthority(authority); err != nil {
		return err
	}
	remaining := s.tokens[account]
	delete(s.tokens, account)
	return credit(s.lamports, destination, remaining)
}

// LatestRound implements pricing.OracleClient.
func (s *Ledger) LatestRound(context.Context, solana.PublicKey) (pricing.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("round"); err != nil {
		return pricing.Round{}, err
	}
	return pricing.Round{Answer: s.price, ObservedAt: s.observedAt}, nil
}

// Decimals implements pricing.OracleClient.
func (s *Ledger) Decimals(context.Context, solana.PublicKey) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("decimals"); err != nil {
		return 0, err
	}
	return s.decimals, nil
}

var (
	_ swap.AmmClient       = (*Ledger)(nil)
	_ swap.ReserveReader   = (*Ledger)(nil)
	_ swap.TokenClient     = (*Ledger)(nil)
	_ pricing.OracleClient = (*Ledger)(nil)
)
