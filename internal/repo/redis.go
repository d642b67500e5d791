package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

import (
	"github.com/redis/go-redis/v9"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
)

// Key templates for better readability and maintainability
const (
	keyRuleTmpl = "%s:rule:{%s}"
)

// Repo abstracts the rule store so callers (cache, poller, API) can be
// tested against a fake.
type Repo interface {
	KeyRule(id string) string
	LoadAllRules(ctx context.Context) (map[string]config.Rule, error)
	GetRule(ctx context.Context, id string) (config.Rule, bool, error)
	SaveRule(ctx context.Context, r config.Rule) error
	DeleteRule(ctx context.Context, id string) error
	PublishUpdate(ctx context.Context, ruleID string) error
	SubscribeUpdates(ctx context.Context) <-chan string
	Close() error
}

type RedisRepo struct {
	Prefix         string
	UpdateChannel  string
	Cli            *redis.ClusterClient
	logger         *slog.Logger
	defaultTimeout time.Duration // Unified timeout config
}

// NewRedis with functional options for flexibility
func NewRedis(cfg *config.Config, logger *slog.Logger, opts ...Option) (Repo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &RedisRepo{
		Prefix:         cfg.Redis.Prefix,
		UpdateChannel:  cfg.Redis.UpdatesChannel,
		logger:         logger,
		defaultTimeout: 100 * time.Millisecond, // Default, can be overridden
	}

	// Apply options
	for _, opt := range opts {
		opt(r)
	}

	addrs := normalizeAddrs(cfg.Redis)
	if len(addrs) == 0 {
		return nil, errors.New("no redis addresses configured")
	}

	clusterOpts := buildClusterOptions(cfg.Redis)
	r.Cli = redis.NewClusterClient(clusterOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Cli.Ping(ctx).Err(); err != nil {
		logger.Error("redis cluster ping failed", "err", err)
		return nil, fmt.Errorf("redis cluster connect failed: %w", err)
	}

	return r, nil
}

// Option pattern for custom configurations
type Option func(*RedisRepo)

func WithDefaultTimeout(d time.Duration) Option {
	return func(r *RedisRepo) { r.defaultTimeout = d }
}

// withTimeout helper to reduce repetition
func (r *RedisRepo) withTimeout(ctx context.Context, opTimeout time.Duration) (context.Context, context.CancelFunc) {
	if opTimeout == 0 {
		opTimeout = r.defaultTimeout
	}
	return context.WithTimeout(ctx, opTimeout)
}

func (r *RedisRepo) KeyRule(id string) string {
	return fmt.Sprintf(keyRuleTmpl, r.Prefix, id)
}

// LoadAllRules scans the rule keyspace with SCAN (never KEYS) and decodes
// every rule it can; undecodable entries are logged and skipped.
func (r *RedisRepo) LoadAllRules(parentCtx context.Context) (map[string]config.Rule, error) {
	ctx, cancel := r.withTimeout(parentCtx, 5*time.Second)
	defer cancel()

	out := make(map[string]config.Rule)
	cursor := uint64(0)
	pattern := r.KeyRule("*")

	for {
		keys, newCursor, err := r.Cli.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rules failed: %w", err)
		}

		for _, key := range keys {
			val, err := r.Cli.Get(ctx, key).Bytes()
			if err != nil {
				r.logger.Warn("failed to get rule", "key", key, "error", err)
				continue
			}
			var rule config.Rule
			if err := json.Unmarshal(val, &rule); err != nil {
				r.logger.Warn("failed to unmarshal rule", "key", key, "error", err)
				continue
			}
			out[rule.RuleID] = rule
		}

		cursor = newCursor
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (r *RedisRepo) GetRule(parentCtx context.Context, id string) (config.Rule, bool, error) {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()

	val, err := r.Cli.Get(ctx, r.KeyRule(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return config.Rule{}, false, nil
	}
	if err != nil {
		return config.Rule{}, false, err
	}
	var rule config.Rule
	if err := json.Unmarshal(val, &rule); err != nil {
		return config.Rule{}, false, fmt.Errorf("unmarshal rule %s failed: %w", id, err)
	}
	return rule, true, nil
}

func (r *RedisRepo) SaveRule(parentCtx context.Context, rule config.Rule) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()

	b, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule %s failed: %w", rule.RuleID, err)
	}
	return r.Cli.Set(ctx, r.KeyRule(rule.RuleID), b, 0).Err()
}

func (r *RedisRepo) DeleteRule(parentCtx context.Context, id string) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	return r.Cli.Del(ctx, r.KeyRule(id)).Err()
}

func (r *RedisRepo) PublishUpdate(parentCtx context.Context, ruleID string) error {
	ctx, cancel := r.withTimeout(parentCtx, 0)
	defer cancel()
	if err := r.Cli.Publish(ctx, r.UpdateChannel, ruleID).Err(); err != nil {
		return fmt.Errorf("publish update for rule %s failed: %w", ruleID, err)
	}
	return nil
}

// SubscribeUpdates returns a channel of rule IDs published on the update
// channel. The subscription lives until ctx is done.
func (r *RedisRepo) SubscribeUpdates(ctx context.Context) <-chan string {
	sub := r.Cli.Subscribe(ctx, r.UpdateChannel)
	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *RedisRepo) Close() error {
	return r.Cli.Close()
}

// Helper functions
func normalizeAddrs(cfg config.RedisCfg) []string {
	if len(cfg.Addrs) > 0 {
		return cfg.Addrs
	}
	if cfg.Addr == "" {
		return nil
	}
	parts := strings.Split(cfg.Addr, ",")
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func buildClusterOptions(cfg config.RedisCfg) *redis.ClusterOptions {
	return &redis.ClusterOptions{
		Addrs:          normalizeAddrs(cfg),
		Password:       cfg.Password,
		ReadOnly:       false,
		RouteByLatency: true,
		PoolSize:       maxInt(cfg.PoolSize, 100),
		MinIdleConns:   maxInt(cfg.MinIdleConns, 10),
		DialTimeout:    durationOrDefault(cfg.DialTimeoutMs, 800),
		ReadTimeout:    durationOrDefault(cfg.ReadTimeoutMs, 800),
		WriteTimeout:   durationOrDefault(cfg.WriteTimeoutMs, 800),
		MaxRetries:     maxInt(cfg.MaxRetries, 2),
	}
}

func maxInt(val, def int) int {
	if val > def {
		return val
	}
	return def
}

func durationOrDefault(ms int, defMs int) time.Duration {
	if ms <= 0 {
		ms = defMs
	}
	return time.Duration(ms) * time.Millisecond
}
