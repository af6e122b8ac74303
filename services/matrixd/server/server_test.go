package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"donutmatrix/core/events"
	"donutmatrix/core/pricing"
	"donutmatrix/core/state"
	"donutmatrix/native/program"
	"donutmatrix/native/registry"
	"donutmatrix/native/swap"
	"donutmatrix/native/swap/simulator"
	"donutmatrix/services/matrixd/storage"
	dbstorage "donutmatrix/storage"
)

const adminToken = "operator-token"

func key(index byte) solana.PublicKey {
	var out solana.PublicKey
	out[0] = 0xab
	out[31] = index
	return out
}

type testEnv struct {
	handler http.Handler
	clock   *clockwork.FakeClock
	sim     *simulator.Ledger
	journal *storage.Journal
}

func newTestEnv(t *testing.T, rps float64, burst int) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	authority := key(200)
	sim := simulator.New(simulator.Config{
		Authority:     authority,
		RewardReserve: 1_000_000_000_000_000_000,
		NativeReserve: 1_000_000_000_000_000,
		Clock:         clock,
	})
	addrs := registry.Addresses{
		Pool: key(101), VaultA: key(102), VaultB: key(103), TokenVaultA: key(104), TokenVaultB: key(105),
		LPMintA: key(106), LPMintB: key(107), PoolLPA: key(108), PoolLPB: key(109), ProtocolFee: key(110),
		AmmProgram: key(111), VaultProgram: key(112), RewardMint: key(113), NativeMint: key(114),
		OracleProgram: key(115), OracleFeed: key(116), SettlementVault: key(117),
	}
	reg := registry.New(addrs)
	guard, err := pricing.NewGuard(sim, pricing.Config{}, clock)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	settler := swap.NewSettler(sim, sim, sim, swap.SettlerConfig{
		Authority:     authority,
		RewardMint:    addrs.RewardMint,
		NativeReserve: key(201),
	})
	dsn, err := storage.FileDSN(filepath.Join(t.TempDir(), "journal.sqlite"))
	if err != nil {
		t.Fatalf("dsn: %v", err)
	}
	journal, err := storage.Open(dsn, clock, nil)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	prog, err := program.New(program.Deps{
		State:    state.NewManager(dbstorage.NewMemDB()),
		Registry: reg,
		Guard:    guard,
		Settler:  settler,
		Clock:    clock,
		Emitter:  events.Multi{journal},
	})
	if err != nil {
		t.Fatalf("program: %v", err)
	}
	auth, err := NewAuthenticator(adminToken)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	srv, err := New(Config{RequestsPerSecond: rps, Burst: burst}, Runtime{
		Program:   prog,
		Registry:  reg,
		Journal:   journal,
		Auth:      auth,
		Simulated: sim,
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	return &testEnv{handler: srv.Handler(), clock: clock, sim: sim, journal: journal}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status: got %d want %d body=%s", rec.Code, want, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func TestHealthAndRequestID(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	rec := env.do(t, http.MethodGet, "/healthz", nil, false)
	assertStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestAdminRequiresBearer(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	body := initializeBody{Owner: key(1).String(), Treasury: key(2).String()}
	assertStatus(t, env.do(t, http.MethodPost, "/admin/initialize", body, false), http.StatusUnauthorized)
	assertStatus(t, env.do(t, http.MethodPost, "/admin/initialize", body, true), http.StatusOK)
	assertStatus(t, env.do(t, http.MethodPost, "/admin/initialize", body, true), http.StatusConflict)
}

func TestRegisterFlowAndJournal(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	owner, treasury := key(1), key(2)
	assertStatus(t, env.do(t, http.MethodGet, "/v1/ledger", nil, false), http.StatusNotFound)
	assertStatus(t, env.do(t, http.MethodPost, "/admin/initialize", initializeBody{Owner: owner.String(), Treasury: treasury.String()}, true), http.StatusOK)

	rec := env.do(t, http.MethodPost, "/admin/airdrop/start", callerBody{Caller: owner.String()}, true)
	assertStatus(t, rec, http.StatusForbidden)
	var failure errorResponse
	decode(t, rec, &failure)
	if failure.Kind != string(program.KindAuthorization) {
		t.Fatalf("unexpected error kind %q", failure.Kind)
	}
	assertStatus(t, env.do(t, http.MethodPost, "/admin/airdrop/start", callerBody{Caller: treasury.String()}, true), http.StatusOK)

	root, child := key(10), key(11)
	for _, participant := range []solana.PublicKey{root, child} {
		assertStatus(t, env.do(t, http.MethodPost, "/admin/simulated/fund", fundBody{Account: participant.String(), Lamports: 100_000_000}, true), http.StatusOK)
	}
	assertStatus(t, env.do(t, http.MethodPost, "/v1/register", registerBody{Participant: root.String(), Deposit: 100_000_000}, false), http.StatusOK)

	rec = env.do(t, http.MethodPost, "/v1/register", registerBody{Participant: child.String(), Referrer: root.String(), Deposit: 100_000_000}, false)
	assertStatus(t, rec, http.StatusOK)
	var registered registerResponse
	decode(t, rec, &registered)
	if registered.SlotIndex == nil || *registered.SlotIndex != 0 || registered.Action == "" || registered.Burned == 0 {
		t.Fatalf("unexpected registration response: %+v", registered)
	}
	if registered.PriceStatus != string(pricing.PriceStatusOK) {
		t.Fatalf("unexpected price status %q", registered.PriceStatus)
	}

	assertStatus(t, env.do(t, http.MethodPost, "/v1/register", registerBody{Participant: child.String(), Referrer: root.String(), Deposit: 100_000_000}, false), http.StatusConflict)
	assertStatus(t, env.do(t, http.MethodPost, "/v1/register", registerBody{Participant: key(12).String(), Referrer: root.String(), Deposit: 10}, false), http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/v1/participants/"+root.String(), nil, false)
	assertStatus(t, rec, http.StatusOK)
	var record struct {
		Chain struct {
			FilledSlots uint64 `json:"filledSlots"`
		} `json:"chain"`
	}
	decode(t, rec, &record)
	if record.Chain.FilledSlots != 1 {
		t.Fatalf("expected one filled slot, got %d", record.Chain.FilledSlots)
	}
	assertStatus(t, env.do(t, http.MethodGet, "/v1/participants/"+key(99).String(), nil, false), http.StatusNotFound)
	assertStatus(t, env.do(t, http.MethodGet, "/v1/participants/not-a-key", nil, false), http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/v1/signals?type="+events.TypeSlotFilled, nil, false)
	assertStatus(t, rec, http.StatusOK)
	var signals struct {
		Signals []storage.Entry `json:"signals"`
	}
	decode(t, rec, &signals)
	if len(signals.Signals) != 1 || signals.Signals[0].Attributes["referrer"] != root.String() {
		t.Fatalf("unexpected journal contents: %+v", signals.Signals)
	}

	rec = env.do(t, http.MethodGet, "/v1/participants/"+root.String()+"/claimable", nil, false)
	assertStatus(t, rec, http.StatusOK)

	rec = env.do(t, http.MethodPost, "/v1/claim", claimBody{Participant: root.String()}, false)
	assertStatus(t, rec, http.StatusConflict)
}

func TestClosedWeekSnapshot(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	owner, treasury := key(1), key(2)
	assertStatus(t, env.do(t, http.MethodPost, "/admin/initialize", initializeBody{Owner: owner.String(), Treasury: treasury.String()}, true), http.StatusOK)
	assertStatus(t, env.do(t, http.MethodPost, "/admin/airdrop/start", callerBody{Caller: treasury.String()}, true), http.StatusOK)

	root := key(20)
	participants := []solana.PublicKey{root, key(21), key(22), key(23)}
	for _, participant := range participants {
		assertStatus(t, env.do(t, http.MethodPost, "/admin/simulated/fund", fundBody{Account: participant.String(), Lamports: 100_000_000}, true), http.StatusOK)
	}
	assertStatus(t, env.do(t, http.MethodPost, "/v1/register", registerBody{Participant: root.String(), Deposit: 100_000_000}, false), http.StatusOK)
	for _, participant := range participants[1:] {
		assertStatus(t, env.do(t, http.MethodPost, "/v1/register", registerBody{Participant: participant.String(), Referrer: root.String(), Deposit: 100_000_000}, false), http.StatusOK)
	}
	assertStatus(t, env.do(t, http.MethodGet, "/v1/weeks/1", nil, false), http.StatusNotFound)

	env.clock.Advance(7 * 24 * time.Hour)
	assertStatus(t, env.do(t, http.MethodPost, "/admin/epoch/roll", nil, true), http.StatusOK)

	rec := env.do(t, http.MethodGet, "/v1/weeks/1", nil, false)
	assertStatus(t, rec, http.StatusOK)
	var snap struct {
		WeekNumber    uint64 `json:"weekNumber"`
		TotalMatrices uint64 `json:"totalMatrices"`
	}
	decode(t, rec, &snap)
	if snap.WeekNumber != 1 || snap.TotalMatrices != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	assertStatus(t, env.do(t, http.MethodGet, "/v1/weeks/2", nil, false), http.StatusNotFound)
	assertStatus(t, env.do(t, http.MethodGet, "/v1/weeks/first", nil, false), http.StatusBadRequest)
}

func TestQuote(t *testing.T) {
	env := newTestEnv(t, 100, 100)
	rec := env.do(t, http.MethodGet, "/v1/quote?deposit=1000", nil, false)
	assertStatus(t, rec, http.StatusOK)
	var quote quoteResponse
	decode(t, rec, &quote)
	if quote.Estimate != 1_000_000 || quote.MinimumOut != 990_000 || quote.Ratio != "1000000000000" {
		t.Fatalf("unexpected quote %+v", quote)
	}
	assertStatus(t, env.do(t, http.MethodGet, "/v1/quote?deposit=abc", nil, false), http.StatusBadRequest)

	env.sim.SetPoolEnabled(false)
	assertStatus(t, env.do(t, http.MethodGet, "/v1/quote?deposit=1000", nil, false), http.StatusBadRequest)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 1, 2)
	for i := 0; i < 2; i++ {
		assertStatus(t, env.do(t, http.MethodGet, "/v1/quote?deposit=1", nil, false), http.StatusOK)
	}
	assertStatus(t, env.do(t, http.MethodGet, "/v1/quote?deposit=1", nil, false), http.StatusTooManyRequests)
	assertStatus(t, env.do(t, http.MethodGet, "/healthz", nil, false), http.StatusOK)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{program.ErrUnauthorized, http.StatusForbidden},
		{registry.ErrInvalidPool, http.StatusBadRequest},
		{swap.ErrEstimateOutOfRange, http.StatusUnprocessableEntity},
		{swap.ErrSwapFailed, http.StatusBadGateway},
		{program.ErrAlreadyRegistered, http.StatusConflict},
		{program.ErrNotRegistered, http.StatusNotFound},
		{http.ErrAbortHandler, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v): got %d want %d", tc.err, got, tc.want)
		}
	}
}
