package api

import (
	"errors"
	"net/http"
	"strconv"

	errorsmod "cosmossdk.io/errors"
	"github.com/go-chi/chi/v5"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/events"
	"pat-settlement/internal/settlement"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func pathUint(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errorsmod.Wrapf(ErrBadRequest, "%s must be an unsigned integer", name)
	}
	return v, nil
}

func pathAddress(r *http.Request, name string) (domain.Address, error) {
	a, err := domain.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return a, errorsmod.Wrapf(ErrBadRequest, "%s: %v", name, err)
	}
	return a, nil
}

func queryUint(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errorsmod.Wrapf(ErrBadRequest, "%s must be an unsigned integer", name)
	}
	return v, nil
}

func pageSize(r *http.Request) (int, error) {
	limit, err := queryUint(r, "limit", defaultPageSize)
	if err != nil {
		return 0, err
	}
	if limit == 0 || limit > maxPageSize {
		return 0, errorsmod.Wrapf(ErrBadRequest, "limit must be in [1, %d]", maxPageSize)
	}
	return int(limit), nil
}

// caller is set by authenticate on every signed route.
func caller(r *http.Request) domain.Address {
	a, _ := CallerFrom(r.Context())
	return a
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Status(r.Context())
	if errors.Is(err, domain.ErrNotInitialized) {
		writeJSON(w, http.StatusOK, statusResponse{Versions: s.engine.Registry().Versions()})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(st))
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newConfigResponse(cfg))
}

func (s *Server) getSplit(w http.ResponseWriter, r *http.Request) {
	ask, err := domain.ParseAmount(r.URL.Query().Get("ask"))
	if err != nil {
		s.writeError(w, r, errorsmod.Wrap(ErrBadRequest, err.Error()))
		return
	}
	split, err := s.engine.CalculateSplit(r.Context(), ask)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSplitResponse(split))
}

func (s *Server) genesis(w http.ResponseWriter, r *http.Request) {
	if caller(r) != s.opts.GenesisOperator {
		s.writeError(w, r, errorsmod.Wrap(domain.ErrNotAuthorized, "caller is not the configured genesis operator"))
		return
	}
	var req genesisRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	supply, err := domain.ParseTokens(req.TotalSupply, req.Decimals)
	if err != nil {
		s.writeError(w, r, errorsmod.Wrap(domain.ErrInvalidAmount, err.Error()))
		return
	}
	cfg, err := s.engine.Genesis(r.Context(), caller(r), settlement.GenesisParams{
		TokenName:    req.TokenName,
		TokenSymbol:  req.TokenSymbol,
		Decimals:     req.Decimals,
		TotalSupply:  supply,
		SpreadBps:    req.SpreadBps,
		BrokerWallet: req.BrokerWallet,
		BrokerPool:   req.BrokerPool,
		ProgramID:    req.ProgramID,
		Version:      req.Version,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newConfigResponse(cfg))
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	after, err := queryUint(r, "after", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := pageSize(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.engine.Events(r.Context(), after, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msgs := make([]events.Message, 0, len(records))
	next := after
	for _, rec := range records {
		msgs = append(msgs, events.NewMessage(rec))
		next = rec.Seq
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": msgs, "next_after": next})
}
