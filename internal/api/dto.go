package api

import (
	"github.com/nanjiek/readmostly/internal/config"
)

type ResolveRequest struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

type ResolveResponse struct {
	Generation int64         `json:"generation"`
	Matches    []config.Rule `json:"matches"`
}

type RuleRequest struct {
	RuleID   string            `json:"ruleId"`
	Match    string            `json:"match"`
	Methods  []string          `json:"methods"`
	Priority int               `json:"priority"`
	Upstream string            `json:"upstream"`
	Payload  map[string]string `json:"payload"`
	Enabled  bool              `json:"enabled"`
}

type TableResponse struct {
	Generation int64         `json:"generation"`
	BuiltAtMs  int64         `json:"builtAtMs"`
	Count      int           `json:"count"`
	Rules      []config.Rule `json:"rules"`
}
