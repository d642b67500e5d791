package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

import (
	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/circuitbreaker"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
	"github.com/nanjiek/readmostly/internal/rules/source"
)

// breakerResource names the guarded fetch in sentinel's rule table.
const breakerResource = "rules_source_fetch"

// PollerConfig controls the pull loop behavior.
type PollerConfig struct {
	Interval   time.Duration
	FailPolicy string // fail-open | fail-closed
	Breaker    config.BreakerCfg
}

// Poller periodically pulls rules from an external source (e.g. a config
// center) and applies them to the cache. A sentinel circuit breaker around
// the fetch stops hammering a source that keeps failing.
type Poller struct {
	source     source.RuleSource
	cache      *Cache
	interval   time.Duration
	failPolicy string
	breakerOn  bool
	lastVer    string
	log        *slog.Logger
	mu         sync.Mutex
}

func NewPoller(src source.RuleSource, cache *Cache, cfg PollerConfig) (*Poller, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	p := &Poller{
		source:     src,
		cache:      cache,
		interval:   interval,
		failPolicy: strings.ToLower(strings.TrimSpace(cfg.FailPolicy)),
		log:        slog.Default(),
	}
	if cfg.Breaker.Enabled {
		if err := initBreaker(cfg.Breaker); err != nil {
			return nil, fmt.Errorf("init fetch breaker failed: %w", err)
		}
		p.breakerOn = true
	}
	return p, nil
}

func initBreaker(cfg config.BreakerCfg) error {
	if err := sentinel.InitDefault(); err != nil {
		return err
	}
	threshold := cfg.ErrorCount
	if threshold <= 0 {
		threshold = 5
	}
	_, err := circuitbreaker.LoadRules([]*circuitbreaker.Rule{
		{
			Resource:         breakerResource,
			Strategy:         circuitbreaker.ErrorCount,
			Threshold:        threshold,
			RetryTimeoutMs:   uint32OrDefault(cfg.RetryTimeoutMs, 10000),
			MinRequestAmount: uint64(maxInt(cfg.MinRequestAmount, 3)),
			StatIntervalMs:   uint32OrDefault(cfg.StatIntervalMs, 30000),
		},
	})
	return err
}

// SyncOnce pulls rules once and applies them.
func (p *Poller) SyncOnce(ctx context.Context) error {
	_, err := p.pull(ctx)
	return err
}

// Start runs the polling loop until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	if _, err := p.pull(ctx); err != nil {
		p.log.Warn("source pull failed on startup", "error", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.pull(ctx); err != nil {
				p.log.Warn("source pull failed", "error", err)
			}
		}
	}
}

func (p *Poller) pull(ctx context.Context) (bool, error) {
	payload, err := p.fetch(ctx)
	if err != nil {
		p.handleFailure()
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if payload.Version != "" && payload.Version == p.lastVer {
		return false, nil
	}

	ruleMap := BuildRuleMap(payload.Rules)
	if len(ruleMap) == 0 {
		p.log.Warn("source payload contains no valid rules")
	}

	p.cache.ReplaceAll(ruleMap)
	p.lastVer = payload.Version
	return true, nil
}

// fetch runs the source fetch through the circuit breaker when enabled.
func (p *Poller) fetch(ctx context.Context) (source.RulesPayload, error) {
	if !p.breakerOn {
		return p.source.Fetch(ctx)
	}

	e, blockErr := sentinel.Entry(breakerResource, sentinel.WithTrafficType(base.Outbound))
	if blockErr != nil {
		return source.RulesPayload{}, fmt.Errorf("source fetch blocked by circuit breaker: %s", blockErr.Error())
	}
	defer e.Exit()

	payload, err := p.source.Fetch(ctx)
	if err != nil {
		sentinel.TraceError(e, err)
	}
	return payload, err
}

// handleFailure applies the fail policy: fail-closed drops to an empty table,
// fail-open keeps serving the last good one.
func (p *Poller) handleFailure() {
	if p.failPolicy == "fail-closed" {
		p.cache.ReplaceAll(map[string]config.Rule{})
	}
}

func uint32OrDefault(v, def int) uint32 {
	if v <= 0 {
		v = def
	}
	return uint32(v)
}

func maxInt(v, def int) int {
	if v > def {
		return v
	}
	return def
}
