package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"donutmatrix/core/types"
	"donutmatrix/native/program"
	"donutmatrix/services/matrixd/storage"
)

const maxBodyBytes = 64 << 10

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, string(program.KindValidation), fmt.Sprintf("decode request: %v", err))
		return false
	}
	return true
}

func parseKey(w http.ResponseWriter, field, raw string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(program.KindValidation), fmt.Sprintf("%s: %v", field, err))
		return solana.PublicKey{}, false
	}
	return key, true
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.program.Ledger()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	week, err := strconv.ParseUint(chi.URLParam(r, "week"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(program.KindValidation), "week must be an unsigned integer")
		return
	}
	ledger, err := s.program.Ledger()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	snap, ok := ledger.Snapshot(week)
	if !ok {
		writeError(w, http.StatusNotFound, string(program.KindState), fmt.Sprintf("week %d has not been closed", week))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type quoteResponse struct {
	AmountIn   uint64 `json:"amountIn"`
	Estimate   uint64 `json:"estimate"`
	MinimumOut uint64 `json:"minimumOut"`
	Ratio      string `json:"ratio"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	deposit, err := strconv.ParseUint(r.URL.Query().Get("deposit"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(program.KindValidation), "deposit must be an unsigned integer")
		return
	}
	quote, err := s.program.Quote(r.Context(), deposit)
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		AmountIn:   quote.AmountIn,
		Estimate:   quote.Estimate,
		MinimumOut: quote.MinimumOut,
		Ratio:      quote.Ratio.Dec(),
	})
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseKey(w, "owner", chi.URLParam(r, "owner"))
	if !ok {
		return
	}
	record, err := s.program.Participant(owner)
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseKey(w, "owner", chi.URLParam(r, "owner"))
	if !ok {
		return
	}
	amount, err := s.program.Claimable(owner)
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"claimable": amount})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	query := storage.Query{Type: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(program.KindValidation), "after must be an integer")
			return
		}
		query.After = after
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, string(program.KindValidation), "limit must be an integer")
			return
		}
		query.Limit = limit
	}
	entries, err := s.journal.List(r.Context(), query)
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": entries})
}

type registerBody struct {
	Participant string `json:"participant"`
	Referrer    string `json:"referrer,omitempty"`
	Deposit     uint64 `json:"deposit"`
	// WrappedSource defaults to the participant's wrapped-native token account.
	WrappedSource string `json:"wrappedSource,omitempty"`
}

type registerResponse struct {
	Record         *types.ParticipantRecord `json:"record"`
	MinimumDeposit uint64                   `json:"minimumDeposit"`
	PriceStatus    string                   `json:"priceStatus"`
	SlotIndex      *uint8                   `json:"slotIndex,omitempty"`
	Action         string                   `json:"action,omitempty"`
	Completed      bool                     `json:"completed"`
	Burned         uint64                   `json:"burned"`
	PaidOut        uint64                   `json:"paidOut"`
	CountedInWeek  bool                     `json:"countedInWeek"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decodeBody(w, r, &body) {
		return
	}
	participant, ok := parseKey(w, "participant", body.Participant)
	if !ok {
		return
	}
	var referrer *solana.PublicKey
	if body.Referrer != "" {
		key, ok := parseKey(w, "referrer", body.Referrer)
		if !ok {
			return
		}
		referrer = &key
	}
	addrs := s.registry.Expected()
	var wrapped solana.PublicKey
	if body.WrappedSource != "" {
		if wrapped, ok = parseKey(w, "wrappedSource", body.WrappedSource); !ok {
			return
		}
	} else {
		derived, _, err := solana.FindAssociatedTokenAddress(participant, addrs.NativeMint)
		if err != nil {
			s.writeProgramError(w, r, err)
			return
		}
		wrapped = derived
	}

	s.opMu.Lock()
	result, err := s.program.Register(r.Context(), program.RegisterRequest{
		Participant:   participant,
		Referrer:      referrer,
		Deposit:       body.Deposit,
		Accounts:      s.registry.PoolAccounts(wrapped),
		OracleProgram: addrs.OracleProgram,
		OracleFeed:    addrs.OracleFeed,
	})
	s.opMu.Unlock()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	resp := registerResponse{
		Record:         result.Record,
		MinimumDeposit: result.Floor.MinimumLamports,
		PriceStatus:    string(result.Floor.Status),
		PaidOut:        result.PaidOut,
		CountedInWeek:  result.Counted,
	}
	if result.Fill != nil {
		index := result.Fill.Index
		resp.SlotIndex = &index
		resp.Action = result.Fill.Action.String()
		resp.Completed = result.Fill.Completed
	}
	if result.Settlement != nil {
		resp.Burned = result.Settlement.Burned
	}
	writeJSON(w, http.StatusOK, resp)
}

type claimResponse struct {
	Amount       uint64           `json:"amount"`
	Destination  solana.PublicKey `json:"destination"`
	TotalEarned  uint64           `json:"totalEarned"`
	TotalClaimed uint64           `json:"totalClaimed"`
}

type claimBody struct {
	Participant string `json:"participant"`
	Destination string `json:"destination,omitempty"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var body claimBody
	if !decodeBody(w, r, &body) {
		return
	}
	participant, ok := parseKey(w, "participant", body.Participant)
	if !ok {
		return
	}
	req := program.ClaimRequest{Participant: participant}
	if body.Destination != "" {
		if req.Destination, ok = parseKey(w, "destination", body.Destination); !ok {
			return
		}
	}
	s.opMu.Lock()
	result, err := s.program.Claim(r.Context(), req)
	s.opMu.Unlock()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		Amount:       result.Amount,
		Destination:  result.Destination,
		TotalEarned:  result.TotalEarned,
		TotalClaimed: result.TotalClaimed,
	})
}

type initializeBody struct {
	Owner    string `json:"owner"`
	Treasury string `json:"treasury"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var body initializeBody
	if !decodeBody(w, r, &body) {
		return
	}
	owner, ok := parseKey(w, "owner", body.Owner)
	if !ok {
		return
	}
	treasury, ok := parseKey(w, "treasury", body.Treasury)
	if !ok {
		return
	}
	s.opMu.Lock()
	err := s.program.Initialize(r.Context(), owner, treasury)
	s.opMu.Unlock()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	s.handleLedger(w, r)
}

type callerBody struct {
	Caller string `json:"caller"`
}

func (s *Server) handleStartAirdrop(w http.ResponseWriter, r *http.Request) {
	var body callerBody
	if !decodeBody(w, r, &body) {
		return
	}
	caller, ok := parseKey(w, "caller", body.Caller)
	if !ok {
		return
	}
	s.opMu.Lock()
	err := s.program.StartAirdrop(r.Context(), caller)
	s.opMu.Unlock()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	s.handleLedger(w, r)
}

func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	s.opMu.Lock()
	ledger, err := s.program.RollEpoch(r.Context())
	s.opMu.Unlock()
	if err != nil {
		s.writeProgramError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

type fundBody struct {
	Account  string `json:"account"`
	Lamports uint64 `json:"lamports"`
	Tokens   uint64 `json:"tokens"`
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var body fundBody
	if !decodeBody(w, r, &body) {
		return
	}
	account, ok := parseKey(w, "account", body.Account)
	if !ok {
		return
	}
	if body.Lamports > 0 {
		s.sim.Fund(account, body.Lamports)
	}
	if body.Tokens > 0 {
		s.sim.FundTokens(account, body.Tokens)
	}
	writeJSON(w, http.StatusOK, map[string]uint64{
		"lamports": s.sim.Lamports(account),
		"tokens":   s.sim.Tokens(account),
	})
}
