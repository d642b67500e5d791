package rules

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

import (
	"github.com/nanjiek/readmostly"
	"github.com/nanjiek/readmostly/internal/config"
	"github.com/nanjiek/readmostly/internal/repo"
	"github.com/nanjiek/readmostly/internal/router"
)

// Cache holds the current route table in a readmostly pointer: every lookup
// reads a consistent immutable table, and publishing a new one synchronously
// invalidates whatever older table readers had cached.
//
// Replace calls on the pointer demand a single writer; wmu serializes the
// cache's three writer paths (reload, upsert, delete).
type Cache struct {
	cfg   *config.Config
	rdb   repo.Repo
	log   *slog.Logger
	table *readmostly.Ptr[router.Table]

	wmu sync.Mutex
	gen atomic.Int64
}

func NewCache(cfg *config.Config, rdb repo.Repo) *Cache {
	c := &Cache{
		cfg: cfg,
		rdb: rdb,
		log: slog.Default(),
	}
	c.table = readmostly.New(readmostly.WithTeardown(func(t *router.Table) {
		c.log.Debug("retired route table", "generation", t.Generation, "rules", len(t.Rules))
	}))
	// Publish an empty table so lookups never see a nil pointer.
	c.table.Replace(router.BuildTable(map[string]config.Rule{}, c.gen.Add(1)))
	return c
}

// Bootstrap seeds the store with the configured bootstrap rules (first start
// only, never overwriting existing IDs) and loads everything into the local
// table.
func (c *Cache) Bootstrap(ctx context.Context) error {
	for _, r := range c.cfg.BootstrapRules {
		_, exists, err := c.rdb.GetRule(ctx, r.RuleID)
		if err != nil {
			return err
		}
		if !exists {
			if err := c.rdb.SaveRule(ctx, r); err != nil {
				return err
			}
		}
	}
	return c.ReloadAll(ctx)
}

// ReloadAll pulls the full rule set from the store and publishes a fresh
// table.
func (c *Cache) ReloadAll(ctx context.Context) error {
	rules, err := c.rdb.LoadAllRules(ctx)
	if err != nil {
		c.log.Error("failed to load rules", "error", err)
		return err
	}
	c.ReplaceAll(rules)
	return nil
}

// ReplaceAll builds a table from rules and hot-swaps it in. The swap retires
// the previous table before returning.
func (c *Cache) ReplaceAll(rules map[string]config.Rule) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.replaceLocked(rules)
}

func (c *Cache) replaceLocked(rules map[string]config.Rule) {
	tbl := router.BuildTable(rules, c.gen.Add(1))
	c.table.Replace(tbl)
	c.log.Info("published route table", "generation", tbl.Generation, "count", len(rules))
}

// Resolve matches req against the current table.
func (c *Cache) Resolve(req router.Request) []config.Rule {
	h := c.table.ReadShared()
	defer h.Release()
	return h.Get().Resolve(req)
}

// Get returns a rule by ID from the current table.
func (c *Cache) Get(id string) (config.Rule, bool) {
	h := c.table.ReadShared()
	defer h.Release()
	tbl := h.Get()
	if tbl == nil {
		return config.Rule{}, false
	}
	r, ok := tbl.Rules[id]
	return r, ok
}

// Snapshot returns a handle pinning the current table. The caller must
// Release it.
func (c *Cache) Snapshot() readmostly.Handle[router.Table] {
	return c.table.ReadShared()
}

// Reader returns a cached reader over the table for long-lived consumer
// loops; the caller owns closing it.
func (c *Cache) Reader() *readmostly.Reader[router.Table] {
	return c.table.Reader()
}

// Upsert persists a rule and publishes a table including it.
func (c *Cache) Upsert(ctx context.Context, r config.Rule) error {
	if r.RuleID == "" {
		return errors.New("ruleId required")
	}
	r.UpdatedAtMs = time.Now().UnixMilli()
	if err := c.rdb.SaveRule(ctx, r); err != nil {
		return err
	}

	c.wmu.Lock()
	h := c.table.ReadShared()
	old := h.Get().Rules
	next := make(map[string]config.Rule, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[r.RuleID] = r
	h.Release()
	c.replaceLocked(next)
	c.wmu.Unlock()

	return c.rdb.PublishUpdate(ctx, r.RuleID)
}

// Delete removes a rule from the store and publishes a table without it.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("ruleId required")
	}
	if err := c.rdb.DeleteRule(ctx, id); err != nil {
		return err
	}

	c.wmu.Lock()
	h := c.table.ReadShared()
	old := h.Get().Rules
	next := make(map[string]config.Rule, len(old))
	for k, v := range old {
		if k != id {
			next[k] = v
		}
	}
	h.Release()
	c.replaceLocked(next)
	c.wmu.Unlock()

	return c.rdb.PublishUpdate(ctx, id)
}

// StartWatcher reloads on pub/sub updates, with a periodic full reload as a
// safety net.
func (c *Cache) StartWatcher(ctx context.Context) {
	ch := c.rdb.SubscribeUpdates(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			_ = c.ReloadAll(ctx)
		case <-time.After(60 * time.Second):
			_ = c.ReloadAll(ctx)
		}
	}
}

// Close retires the current table and drops all reader caches.
func (c *Cache) Close() {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.table.Close()
}

// BuildRuleMap normalizes a rule slice into a map keyed by RuleID.
func BuildRuleMap(rules []config.Rule) map[string]config.Rule {
	res := make(map[string]config.Rule, len(rules))
	for _, r := range rules {
		if r.RuleID == "" {
			continue
		}
		res[r.RuleID] = r
	}
	return res
}
