package router

import (
	"sort"
	"strings"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
)

// Request is the input used for rule matching.
type Request struct {
	Path   string
	Method string
}

// Resolve returns all rules on the table matching req, ordered by priority
// (desc), ties broken by RuleID for stable output.
func (t *Table) Resolve(req Request) []config.Rule {
	if t == nil {
		return nil
	}
	var res []config.Rule

	if req.Path != "" {
		if rules, ok := t.Exact[req.Path]; ok {
			res = append(res, filterRules(rules, req)...)
		}
		res = append(res, filterRules(t.Prefix.match(req.Path), req)...)
	}
	res = append(res, filterRules(t.Wildcard, req)...)

	sort.SliceStable(res, func(i, j int) bool {
		if res[i].Priority == res[j].Priority {
			return res[i].RuleID < res[j].RuleID
		}
		return res[i].Priority > res[j].Priority
	})

	return res
}

func filterRules(rules []config.Rule, req Request) []config.Rule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]config.Rule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !matchMethod(r.Methods, req.Method) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchMethod(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m == "*" || m == method {
			return true
		}
	}
	return false
}
