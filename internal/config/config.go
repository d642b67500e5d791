package config

import (
	"os"
)

import (
	"gopkg.in/yaml.v3"
)

// ServerCfg holds the HTTP admin listener settings.
type ServerCfg struct {
	HTTPAddr string `yaml:"httpAddr"` // listen address, e.g. ":8080" or "0.0.0.0:8080"
}

// RedisCfg holds connection and namespacing settings for the rule store.
type RedisCfg struct {
	Addr               string   `yaml:"addr"`               // Redis address, e.g. "127.0.0.1:6379"
	Addrs              []string `yaml:"addrs"`              // Optional shard addresses
	Password           string   `yaml:"password"`           // Redis password
	DB                 int      `yaml:"db"`                 // Redis DB index
	Prefix             string   `yaml:"prefix"`             // Key prefix
	UpdatesChannel     string   `yaml:"updatesChannel"`     // Pub/Sub channel for rule updates
	PoolSize           int      `yaml:"poolSize"`           // Connection pool size
	MinIdleConns       int      `yaml:"minIdleConns"`       // Minimum idle connections
	MaxRetries         int      `yaml:"maxRetries"`         // Command retry count
	ReadTimeoutMs      int      `yaml:"readTimeoutMs"`      // Read timeout (ms)
	WriteTimeoutMs     int      `yaml:"writeTimeoutMs"`     // Write timeout (ms)
	DialTimeoutMs      int      `yaml:"dialTimeoutMs"`      // Dial timeout (ms)
	ConnMaxLifetimeSec int      `yaml:"connMaxLifetimeSec"` // Max connection lifetime (sec)
	ConnMaxIdleTimeSec int      `yaml:"connMaxIdleTimeSec"` // Max idle time (sec)
}

// BreakerCfg tunes the sentinel circuit breaker guarding source fetches.
type BreakerCfg struct {
	Enabled          bool    `yaml:"enabled"`          // guard the pull loop with a breaker
	ErrorCount       float64 `yaml:"errorCount"`       // consecutive-window error count to open, default 5
	RetryTimeoutMs   int     `yaml:"retryTimeoutMs"`   // open -> half-open after this, default 10000
	MinRequestAmount int     `yaml:"minRequestAmount"` // minimum samples per window, default 3
	StatIntervalMs   int     `yaml:"statIntervalMs"`   // stat window, default 30000
}

// SourceCfg - external config center (pull mode)
type SourceCfg struct {
	Addr           string     `yaml:"addr"`           // center address, e.g. "http://127.0.0.1:8848"
	Namespace      string     `yaml:"namespace"`      // tenant/namespace
	Group          string     `yaml:"group"`          // rule group, default DEFAULT_GROUP
	DataID         string     `yaml:"dataId"`         // config dataId
	Username       string     `yaml:"username"`       // optional
	Password       string     `yaml:"password"`       // optional
	PollIntervalMs int        `yaml:"pollIntervalMs"` // default 5000
	TimeoutMs      int        `yaml:"timeoutMs"`      // default 2000
	FailPolicy     string     `yaml:"failPolicy"`     // fail-open | fail-closed
	Format         string     `yaml:"format"`         // json | yaml (auto-detect if empty)
	Breaker        BreakerCfg `yaml:"breaker"`        // fetch circuit breaker
}

func (s SourceCfg) Enabled() bool {
	return s.Addr != "" && s.DataID != ""
}

// Rule is one routing rule distributed by this sidecar.
type Rule struct {
	RuleID      string            `yaml:"ruleId"      json:"ruleId"`      // unique rule ID
	Match       string            `yaml:"match"       json:"match"`       // path match: exact, "/prefix/*" or "*"
	Methods     []string          `yaml:"methods"     json:"methods"`     // HTTP methods, empty = all
	Priority    int               `yaml:"priority"    json:"priority"`    // higher wins
	Upstream    string            `yaml:"upstream"    json:"upstream"`    // target backend for matched traffic
	Payload     map[string]string `yaml:"payload"     json:"payload"`     // opaque settings delivered to the consumer
	Enabled     bool              `yaml:"enabled"     json:"enabled"`     // whether the rule participates in matching
	UpdatedAtMs int64             `yaml:"updatedAtMs" json:"updatedAtMs"` // last modification, unix ms
}

// Config is the full sidecar configuration.
type Config struct {
	Server         ServerCfg `yaml:"server"`         // HTTP admin listener
	Redis          RedisCfg  `yaml:"redis"`          // rule store
	Source         SourceCfg `yaml:"source"`         // external config center (optional)
	BootstrapRules []Rule    `yaml:"bootstrapRules"` // rules injected on first start (optional)
}

// Load reads a YAML config file, expanding ${ENV} references.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	expanded := os.ExpandEnv(string(b))
	var c Config
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
