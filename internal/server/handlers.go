package server

import (
	"container/list"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ever-flow/ETF/internal/analysis"
	"github.com/ever-flow/ETF/internal/portfolio"
	"github.com/ever-flow/ETF/internal/profile"
	"github.com/ever-flow/ETF/internal/recommend"
)

// maxRetainedRuns bounds the in-memory run store; the oldest run is evicted
// first.
const maxRetainedRuns = 64

// runStore retains recent recommendation runs so follow-up analysis endpoints
// can reference them by ID.
type runStore struct {
	mu    sync.RWMutex
	max   int
	byID  map[string]*recommend.Result
	order *list.List // front = oldest
}

func newRunStore(max int) *runStore {
	return &runStore{
		max:   max,
		byID:  make(map[string]*recommend.Result),
		order: list.New(),
	}
}

func (rs *runStore) Put(res *recommend.Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.byID[res.RunID] = res
	rs.order.PushBack(res.RunID)
	for rs.order.Len() > rs.max {
		oldest := rs.order.Remove(rs.order.Front()).(string)
		delete(rs.byID, oldest)
	}
}

func (rs *runStore) Get(id string) (*recommend.Result, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	res, ok := rs.byID[id]
	return res, ok
}

// recommendationRequest is the POST /api/recommendations body.
type recommendationRequest struct {
	Profile profile.Profile `json:"profile"`
	TopN    int             `json:"top_n,omitempty"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Profile.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.pipeline.Run(r.Context(), req.Profile, req.TopN)
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrNoCandidates):
			writeError(w, http.StatusUnprocessableEntity, "no matching instruments, relax constraints")
		default:
			s.log.Error().Err(err).Msg("Recommendation run failed")
			writeError(w, http.StatusInternalServerError, "recommendation run failed")
		}
		return
	}
	s.runs.Put(res)

	if s.peers != nil && len(res.Recommendations) > 0 {
		pref := recommend.PeerPreference{
			Profile:       req.Profile,
			PreferredETFs: res.Tickers(),
		}
		if err := s.peers.Save(pref); err != nil {
			s.log.Warn().Err(err).Msg("Failed to persist peer preference")
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found or expired")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found or expired")
		return
	}

	cm, err := analysis.Correlations(res.Tickers(), res.Prices())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cm)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found or expired")
		return
	}
	ticker := chi.URLParam(r, "ticker")

	params := analysis.IndicatorParams{
		SMAPeriod: queryInt(r, "sma"),
		EMAPeriod: queryInt(r, "ema"),
		RSIPeriod: queryInt(r, "rsi"),
	}
	ind, err := analysis.Indicators(ticker, res.Prices(), params)
	if err != nil {
		if errors.Is(err, analysis.ErrNotEnoughHistory) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ind)
}

func (s *Server) handleComplements(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runs.Get(chi.URLParam(r, "runID"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found or expired")
		return
	}
	ticker := chi.URLParam(r, "ticker")

	topN := queryInt(r, "top_n")
	if topN <= 0 {
		topN = 5
	}
	comps, err := portfolio.Complements(ticker, res.Metrics(), res.Prices(), s.cfg.ComplementCorrTiers, topN)
	if err != nil {
		switch {
		case errors.Is(err, portfolio.ErrUnknownTicker):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, portfolio.ErrNoComplements):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	type complementsResponse struct {
		Ticker      string                 `json:"ticker"`
		Complements []portfolio.Complement `json:"complements"`
		Blended     []portfolio.BlendedPoint `json:"blended_path,omitempty"`
	}
	resp := complementsResponse{Ticker: ticker, Complements: comps}
	if len(comps) > 0 {
		if path, err := portfolio.BlendedPath(ticker, comps[0].Ticker, res.Prices()); err == nil {
			resp.Blended = path
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
