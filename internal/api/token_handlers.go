package api

import (
	"net/http"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/token"
)

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.TokenInfo(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(info))
}

func (s *Server) getSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.engine.TotalSupply(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_supply": supply})
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	balance, err := s.engine.BalanceOf(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "balance": balance})
}

func (s *Server) getAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := pathAddress(r, "owner")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	spender, err := pathAddress(r, "spender")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	allowance, err := s.engine.Allowance(r.Context(), owner, spender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "spender": spender, "allowance": allowance})
}

func (s *Server) getDistribution(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.Distribution(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, distributionResponse{
		Treasury:          d.Treasury,
		Ecosystem:         d.Ecosystem,
		ICO:               d.ICO,
		TeamVestingTarget: d.TeamVestingTarget,
		DistributedAt:     d.DistributedAt,
	})
}

func (s *Server) getVesting(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.VestingSchedule(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	releasable, err := s.engine.ReleasableAmount(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vestingResponse{
		Beneficiary: v.Beneficiary,
		Start:       v.Start,
		Duration:    v.Duration,
		Total:       v.Total,
		Released:    v.Released,
		Locked:      v.Locked(),
		Releasable:  releasable,
	})
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Transfer(r.Context(), caller(r), req.To, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"from": caller(r), "to": req.To, "amount": req.Amount})
}

func (s *Server) transferFrom(w http.ResponseWriter, r *http.Request) {
	var req transferFromRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.TransferFrom(r.Context(), caller(r), req.Owner, req.To, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spender": caller(r), "from": req.Owner, "to": req.To, "amount": req.Amount})
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Approve(r.Context(), caller(r), req.Spender, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": caller(r), "spender": req.Spender, "allowance": req.Amount})
}

func (s *Server) burn(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Burn(r.Context(), caller(r), req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSupply(w, r)
}

func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.VestingDuration == 0 {
		req.VestingDuration = domain.DefaultVestingDuration
	}
	amounts, err := s.engine.DistributeAllocation(r.Context(), caller(r), token.Allocation{
		Treasury:          req.Treasury,
		Ecosystem:         req.Ecosystem,
		ICO:               req.ICO,
		TeamVestingTarget: req.TeamVestingTarget,
		VestingDuration:   req.VestingDuration,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allocationResponse{
		Treasury:  amounts.Treasury,
		Ecosystem: amounts.Ecosystem,
		ICO:       amounts.ICO,
		Team:      amounts.Team,
	})
}

func (s *Server) release(w http.ResponseWriter, r *http.Request) {
	released, err := s.engine.Release(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"released": released})
}
