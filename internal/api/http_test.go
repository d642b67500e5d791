package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

import (
	"github.com/gorilla/mux"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
	"github.com/nanjiek/readmostly/internal/rules"
)

func newTestServer(t *testing.T) (*Server, *mux.Router) {
	t.Helper()
	cache := rules.NewCache(&config.Config{}, nil)
	t.Cleanup(cache.Close)
	cache.ReplaceAll(map[string]config.Rule{
		"users": {RuleID: "users", Match: "/api/users/*", Upstream: "users-svc", Enabled: true},
	})

	s := NewServer(config.ServerCfg{}, cache)
	r := mux.NewRouter()
	s.RegisterRoutes(r)
	return s, r
}

func TestResolveEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	body, _ := json.Marshal(ResolveRequest{Path: "/api/users/42", Method: "GET"})
	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp ResolveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Upstream != "users-svc" {
		t.Fatalf("unexpected matches: %#v", resp.Matches)
	}
}

func TestResolveRequiresPath(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/resolve", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetRuleEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/rules/users", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var rule config.Rule
	if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rule.RuleID != "users" {
		t.Fatalf("unexpected rule: %#v", rule)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/rules/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing rule status = %d", rec.Code)
	}
}

func TestTableEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/table", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp TableResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Count != 1 || resp.Generation == 0 {
		t.Fatalf("unexpected table: %+v", resp)
	}
}

func TestServerLifecycle(t *testing.T) {
	cache := rules.NewCache(&config.Config{}, nil)
	t.Cleanup(cache.Close)

	s := NewServer(config.ServerCfg{HTTPAddr: "127.0.0.1:0"}, cache)

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			t.Fatalf("ListenAndServe returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}

func TestHealthz(t *testing.T) {
	_, r := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
