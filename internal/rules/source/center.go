package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

import (
	"gopkg.in/yaml.v3"
)

import (
	"github.com/nanjiek/readmostly/internal/config"
	"github.com/nanjiek/readmostly/internal/util"
)

const (
	defaultGroup     = "DEFAULT_GROUP"
	centerConfigPath = "/nacos/v1/cs/configs"

	// maxPayloadBytes caps a single config document; anything larger is a
	// misconfigured dataId, not a rule set.
	maxPayloadBytes = 4 << 20
)

// rulesDocument is the on-the-wire shape: a bare rule list, or a wrapper
// that may carry its own version stamp.
type rulesDocument struct {
	Version string        `json:"version" yaml:"version"`
	Rules   []config.Rule `json:"rules"   yaml:"rules"`
}

type decodeFunc func([]byte) (rulesDocument, error)

// CenterSource pulls rule documents from a Nacos-compatible config center.
// The endpoint and decoder are fixed at construction; Fetch is a plain GET.
type CenterSource struct {
	endpoint string
	client   *http.Client
	decode   decodeFunc
}

func NewCenterSource(cfg config.SourceCfg) (*CenterSource, error) {
	if !cfg.Enabled() {
		return nil, errors.New("source: addr and dataId are required")
	}
	endpoint, err := centerEndpoint(cfg)
	if err != nil {
		return nil, fmt.Errorf("source: bad addr %q: %w", cfg.Addr, err)
	}
	decode, err := decoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &CenterSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		decode:   decode,
	}, nil
}

// Fetch pulls the current rule document. The reported version is, in order
// of preference: the document's own version stamp, the center's Content-MD5
// header, or a fingerprint of the raw payload.
func (s *CenterSource) Fetch(ctx context.Context) (RulesPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return RulesPayload{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return RulesPayload{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return RulesPayload{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return RulesPayload{}, fmt.Errorf("source: fetch failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if len(body) > maxPayloadBytes {
		return RulesPayload{}, fmt.Errorf("source: payload exceeds %d bytes", maxPayloadBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// An empty document and an explicit empty rule list are different
		// things; only the latter may wipe the table.
		return RulesPayload{}, errors.New("source: empty payload")
	}

	doc, err := s.decode(body)
	if err != nil {
		return RulesPayload{}, err
	}

	version := doc.Version
	if version == "" {
		version = resp.Header.Get("Content-MD5")
	}
	if version == "" {
		version = util.FNV64(string(body))
	}

	return RulesPayload{
		Rules:   doc.Rules,
		Version: version,
	}, nil
}

func centerEndpoint(cfg config.SourceCfg) (string, error) {
	base, err := url.Parse(cfg.Addr)
	if err != nil {
		return "", err
	}
	base.Path = strings.TrimRight(base.Path, "/") + centerConfigPath

	group := cfg.Group
	if group == "" {
		group = defaultGroup
	}

	q := base.Query()
	q.Set("dataId", cfg.DataID)
	q.Set("group", group)
	if cfg.Namespace != "" {
		q.Set("tenant", cfg.Namespace)
	}
	if cfg.Username != "" {
		q.Set("username", cfg.Username)
		q.Set("password", cfg.Password)
	}
	base.RawQuery = q.Encode()

	return base.String(), nil
}

func decoderFor(format string) (decodeFunc, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return decodeJSON, nil
	case "yaml":
		return decodeYAML, nil
	case "":
		return decodeAuto, nil
	default:
		return nil, fmt.Errorf("source: unknown format %q", format)
	}
}

func decodeJSON(raw []byte) (rulesDocument, error) {
	var doc rulesDocument
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Rules != nil {
		return doc, nil
	}
	var list []config.Rule
	if err := json.Unmarshal(raw, &list); err != nil {
		return rulesDocument{}, fmt.Errorf("source: invalid json payload: %w", err)
	}
	return rulesDocument{Rules: list}, nil
}

func decodeYAML(raw []byte) (rulesDocument, error) {
	var doc rulesDocument
	if err := yaml.Unmarshal(raw, &doc); err == nil && doc.Rules != nil {
		return doc, nil
	}
	var list []config.Rule
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return rulesDocument{}, fmt.Errorf("source: invalid yaml payload: %w", err)
	}
	return rulesDocument{Rules: list}, nil
}

func decodeAuto(raw []byte) (rulesDocument, error) {
	if doc, err := decodeJSON(raw); err == nil {
		return doc, nil
	}
	return decodeYAML(raw)
}
