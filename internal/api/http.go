package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
	"github.com/nanjiek/readmostly/internal/router"
	"github.com/nanjiek/readmostly/internal/rules"
)

// Server is the admin HTTP surface: rule CRUD, route resolution and table
// inspection. It owns its http.Server; callers run it with ListenAndServe
// and stop it with Shutdown.
type Server struct {
	ruleCache *rules.Cache
	srv       *http.Server
}

func NewServer(cfg config.ServerCfg, ruleCache *rules.Cache) *Server {
	s := &Server{ruleCache: ruleCache}
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	s.srv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/resolve", s.resolveHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/rules", s.createRuleHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/rules", s.listRulesHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/rules/{id}", s.getRuleHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/rules/{id}", s.updateRuleHandler).Methods(http.MethodPut)
	r.HandleFunc("/v1/rules/{id}", s.deleteRuleHandler).Methods(http.MethodDelete)
	r.HandleFunc("/v1/table", s.tableHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// ---------------- Handlers ----------------

func (s *Server) resolveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		errResp(w, http.StatusBadRequest, "path is required")
		return
	}

	snap := s.ruleCache.Snapshot()
	defer snap.Release()
	tbl := snap.Get()

	matches := tbl.Resolve(router.Request{Path: req.Path, Method: req.Method})
	_ = json.NewEncoder(w).Encode(ResolveResponse{
		Generation: tbl.Generation,
		Matches:    matches,
	})
}

func (s *Server) createRuleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.ruleCache.Upsert(r.Context(), ruleFromRequest(req)); err != nil {
		errResp(w, http.StatusInternalServerError, "failed to create rule: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "ruleId": req.RuleID})
}

func (s *Server) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap := s.ruleCache.Snapshot()
	defer snap.Release()
	tbl := snap.Get()

	out := make([]config.Rule, 0, len(tbl.Rules))
	for _, rule := range tbl.Rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) getRuleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ruleID := mux.Vars(r)["id"]
	rule, ok := s.ruleCache.Get(ruleID)
	if !ok {
		errResp(w, http.StatusNotFound, "rule not found: "+ruleID)
		return
	}
	_ = json.NewEncoder(w).Encode(rule)
}

func (s *Server) updateRuleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ruleID := mux.Vars(r)["id"]
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.RuleID = ruleID
	if err := s.ruleCache.Upsert(r.Context(), ruleFromRequest(req)); err != nil {
		errResp(w, http.StatusInternalServerError, "failed to update rule: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "ruleId": ruleID})
}

func (s *Server) deleteRuleHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ruleID := mux.Vars(r)["id"]
	if err := s.ruleCache.Delete(r.Context(), ruleID); err != nil {
		errResp(w, http.StatusInternalServerError, "failed to delete rule: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "ruleId": ruleID})
}

func (s *Server) tableHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap := s.ruleCache.Snapshot()
	defer snap.Release()
	tbl := snap.Get()

	out := make([]config.Rule, 0, len(tbl.Rules))
	for _, rule := range tbl.Rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	_ = json.NewEncoder(w).Encode(TableResponse{
		Generation: tbl.Generation,
		BuiltAtMs:  tbl.BuiltAtMs,
		Count:      len(out),
		Rules:      out,
	})
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func ruleFromRequest(req RuleRequest) config.Rule {
	return config.Rule{
		RuleID:   req.RuleID,
		Match:    req.Match,
		Methods:  req.Methods,
		Priority: req.Priority,
		Upstream: req.Upstream,
		Payload:  req.Payload,
		Enabled:  req.Enabled,
	}
}

func errResp(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
