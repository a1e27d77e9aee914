package api

import (
	"net/http"
)

// Every admin route answers with the resulting configuration.

func (s *Server) respondConfig(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.getConfig(w, r)
}

func (s *Server) setSpread(w http.ResponseWriter, r *http.Request) {
	var req spreadRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.SetSpreadBps(r.Context(), caller(r), req.SpreadBps))
}

func (s *Server) setBrokerWallet(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.SetBrokerWallet(r.Context(), caller(r), req.Address))
}

func (s *Server) setBrokerPool(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.SetBrokerPool(r.Context(), caller(r), req.Address))
}

func (s *Server) setOperator(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.SetOperator(r.Context(), caller(r), req.Address))
}

func (s *Server) advancePhase(w http.ResponseWriter, r *http.Request) {
	_, err := s.engine.AdvancePhase(r.Context(), caller(r))
	s.respondConfig(w, r, err)
}

func (s *Server) setPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.SetPaused(r.Context(), caller(r), req.Paused))
}

func (s *Server) swapImplementation(w http.ResponseWriter, r *http.Request) {
	var req versionRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.SwapImplementation(r.Context(), caller(r), req.Version))
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdateRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondConfig(w, r, s.engine.UpdateConfig(r.Context(), caller(r), req.Key, req.Value))
}
