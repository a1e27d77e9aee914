package api

import (
	"net/http"

	errorsmod "cosmossdk.io/errors"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/settlement"
)

func (s *Server) listSegments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.SegmentFilter

	if raw := q.Get("provider"); raw != "" {
		provider, err := domain.ParseAddress(raw)
		if err != nil {
			s.writeError(w, r, errorsmod.Wrap(ErrBadRequest, err.Error()))
			return
		}
		filter.Provider = &provider
	}
	if raw := q.Get("type"); raw != "" {
		typ, ok := domain.ParseSegmentType(raw)
		if !ok {
			s.writeError(w, r, errorsmod.Wrapf(domain.ErrInvalidSegmentType, "%q", raw))
			return
		}
		filter.Type = &typ
	}
	filter.ActiveOnly = q.Get("active") == "true"

	var err error
	if filter.AfterID, err = queryUint(r, "after", 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	if filter.Limit, err = pageSize(r); err != nil {
		s.writeError(w, r, err)
		return
	}

	segs, err := s.engine.ListSegments(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]segmentResponse, 0, len(segs))
	for _, seg := range segs {
		out = append(out, newSegmentResponse(seg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": out})
}

func (s *Server) getSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seg, err := s.engine.GetSegment(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSegmentResponse(seg))
}

func (s *Server) getAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	consumer, err := pathAddress(r, "consumer")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok, err := s.engine.HasAccess(r.Context(), consumer, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segment_id": id, "consumer": consumer, "has_access": ok})
}

func (s *Server) createSegment(w http.ResponseWriter, r *http.Request) {
	var req createSegmentRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.engine.CreateSegment(r.Context(), caller(r), settlement.SegmentParams{
		Type:          req.Type,
		WindowDays:    req.WindowDays,
		ConfidenceBps: req.ConfidenceBps,
		AskPrice:      req.AskPrice,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seg, err := s.engine.GetSegment(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSegmentResponse(seg))
}

func (s *Server) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req priceRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.UpdateSegmentPrice(r.Context(), caller(r), id, req.AskPrice); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSegment(w, r)
}

func (s *Server) deactivateSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.DeactivateSegment(r.Context(), caller(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getSegment(w, r)
}

func (s *Server) buySegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.engine.BuySegment(r.Context(), caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementResponse(st))
}

func (s *Server) buySegments(w http.ResponseWriter, r *http.Request) {
	var req buySegmentsRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	settled, err := s.engine.BuySegments(r.Context(), caller(r), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]settlementResponse, 0, len(settled))
	for _, st := range settled {
		out = append(out, newSettlementResponse(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": out})
}

func (s *Server) getEarnings(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	earnings, err := s.engine.GetEarnings(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "earnings": earnings})
}

// withdraw takes an explicit amount, or everything when amount is omitted.
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount := req.Amount
	if amount.IsNil() {
		var err error
		if amount, err = s.engine.WithdrawAllEarnings(r.Context(), caller(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else if err := s.engine.WithdrawEarnings(r.Context(), caller(r), amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"owner": caller(r), "withdrawn": amount})
}
