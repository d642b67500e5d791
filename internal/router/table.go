package router

import (
	"strings"
	"time"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
)

// Table is an immutable route index built from a rule set. Once published it
// is never mutated; updates build a fresh Table and hot-swap it.
type Table struct {
	Rules    map[string]config.Rule // by RuleID, source of truth for rebuilds
	Exact    map[string][]config.Rule
	Prefix   *trieNode
	Wildcard []config.Rule

	Generation int64 // monotonically increasing per publish
	BuiltAtMs  int64
}

type trieNode struct {
	children map[rune]*trieNode
	rules    []config.Rule
}

func newTrie() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

func (t *trieNode) insert(prefix string, rule config.Rule) {
	node := t
	for _, ch := range prefix {
		if node.children == nil {
			node.children = make(map[rune]*trieNode)
		}
		next := node.children[ch]
		if next == nil {
			next = &trieNode{children: make(map[rune]*trieNode)}
			node.children[ch] = next
		}
		node = next
	}
	node.rules = append(node.rules, rule)
}

func (t *trieNode) match(path string) []config.Rule {
	if t == nil {
		return nil
	}
	node := t
	var out []config.Rule
	for _, ch := range path {
		if node == nil {
			break
		}
		if len(node.rules) > 0 {
			out = append(out, node.rules...)
		}
		node = node.children[ch]
	}
	if node != nil && len(node.rules) > 0 {
		out = append(out, node.rules...)
	}
	return out
}

// BuildTable builds a route index from a rule map.
func BuildTable(rules map[string]config.Rule, generation int64) *Table {
	tbl := &Table{
		Rules:      rules,
		Exact:      make(map[string][]config.Rule),
		Prefix:     newTrie(),
		Wildcard:   make([]config.Rule, 0),
		Generation: generation,
		BuiltAtMs:  time.Now().UnixMilli(),
	}
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		match := strings.TrimSpace(rule.Match)
		if match == "" || match == "*" {
			tbl.Wildcard = append(tbl.Wildcard, rule)
			continue
		}
		if strings.HasSuffix(match, "*") && len(match) > 1 {
			prefix := strings.TrimSuffix(match, "*")
			tbl.Prefix.insert(prefix, rule)
			continue
		}
		tbl.Exact[match] = append(tbl.Exact[match], rule)
	}
	return tbl
}
