package repo

import (
	"testing"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
)

func TestNormalizeAddrs(t *testing.T) {
	cfg := config.RedisCfg{Addr: "127.0.0.1:6379, 127.0.0.2:6379"}
	addrs := normalizeAddrs(cfg)
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addrs, got %d", len(addrs))
	}
	if addrs[0] != "127.0.0.1:6379" || addrs[1] != "127.0.0.2:6379" {
		t.Fatalf("unexpected addrs: %#v", addrs)
	}

	cfg = config.RedisCfg{Addrs: []string{"10.0.0.1:6379"}}
	if addrs := normalizeAddrs(cfg); len(addrs) != 1 || addrs[0] != "10.0.0.1:6379" {
		t.Fatalf("explicit addrs not honored: %#v", addrs)
	}

	if addrs := normalizeAddrs(config.RedisCfg{}); addrs != nil {
		t.Fatalf("empty config produced addrs: %#v", addrs)
	}
}

func TestKeyRule(t *testing.T) {
	r := &RedisRepo{Prefix: "routed"}
	if got := r.KeyRule("r1"); got != "routed:rule:{r1}" {
		t.Fatalf("KeyRule = %s", got)
	}
}

func TestBuildClusterOptionsDefaults(t *testing.T) {
	opts := buildClusterOptions(config.RedisCfg{Addr: "127.0.0.1:6379"})
	if opts.PoolSize != 100 || opts.MinIdleConns != 10 || opts.MaxRetries != 2 {
		t.Fatalf("defaults not applied: %+v", opts)
	}
	if opts.DialTimeout.Milliseconds() != 800 {
		t.Fatalf("dial timeout = %v", opts.DialTimeout)
	}
}
