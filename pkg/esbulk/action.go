package esbulk

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rsyslog/esbulk/pkg/ratelimit"
)

// DynamicField is a configuration slot that is either a static string or a
// template reference (spec.md §3): "if a dynamic flag is set, the
// corresponding static slot must also carry the template name".
type DynamicField struct {
	Static  string
	Dynamic bool
}

// Validate enforces the dynamic/template-name invariant.
func (d DynamicField) Validate(name string) error {
	if d.Dynamic && d.Static == "" {
		return fmt.Errorf("esbulk: dyn%s is set but %s carries no template name", name, name)
	}
	return nil
}

// TLSConfig carries the client TLS material for an action (spec.md §3).
// Adapted from internal/sinks/common.go's TLSConfig/createTLSConfig.
type TLSConfig struct {
	CACert             string
	ClientCert         string
	ClientKey          string
	AllowUnsignedCerts bool
	SkipVerifyHost     bool
}

func (t TLSConfig) buildTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: t.AllowUnsignedCerts, //nolint:gosec // operator opt-in, mirrors allowunsignedcerts
	}
	if t.SkipVerifyHost {
		cfg.InsecureSkipVerify = true
	}

	if t.ClientCert != "" && t.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(t.ClientCert, t.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("esbulk: failed to load client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if t.CACert != "" {
		pem, err := os.ReadFile(t.CACert)
		if err != nil {
			return nil, fmt.Errorf("esbulk: failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("esbulk: failed to parse CA certificate %s", t.CACert)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// ErrorMode selects the Error Sink's render format (spec.md §4.6).
type ErrorMode struct {
	ErrorOnly   bool
	Interleaved bool
}

// ActionConfig is the Action Instance of spec.md §3: one configured output
// sink, process-wide, created during config load.
type ActionConfig struct {
	Servers     []string
	DefaultPort int
	UseHTTPS    bool

	Username string
	Password string

	Index    DynamicField
	Type     DynamicField
	Pipeline DynamicField
	Parent   DynamicField
	BulkID   DynamicField

	SkipPipelineIfEmpty bool

	WriteOperation WriteOperation

	BulkMode bool
	MaxBytes int // default 100 MiB

	HealthCheckTimeout time.Duration
	IndexTimeout       time.Duration
	RebindInterval     int // -1 disables

	TLS TLSConfig

	ErrorFile        string
	ErrorMode        ErrorMode
	RetryFailures    bool
	RetryRulesetName string
	Retry            RetryRuleset // resolved at config-check time, may be nil

	RateLimitInterval time.Duration
	RateLimitBurst    int
	Limiter           RateLimiter // constructed only if RetryFailures

	ESVersionMajor int // >= 8 skips legacy defaults

	Logger *logrus.Logger
	Stats  *Stats

	errMu   sync.Mutex
	errFile *os.File // nil when closed
}

const defaultMaxBytes = 100 * 1024 * 1024

// DefaultPortValue is the fallback default port used when none is supplied.
const DefaultPortValue = 9200

// NewAction validates and prepares an ActionConfig (spec.md's
// createInstance / newActInst). The action is inserted by the caller into
// whatever process-wide registry the host keeps (spec.md §3's
// module-level linked list; out of scope here per REDESIGN FLAGS in
// spec.md §9 — the Go rewrite owns its collection at the call site
// instead of a hand-rolled linked list).
func NewAction(cfg *ActionConfig) (*ActionConfig, error) {
	if len(cfg.Servers) == 0 {
		cfg.Servers = []string{"localhost"}
	}
	if cfg.DefaultPort == 0 {
		cfg.DefaultPort = DefaultPortValue
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	// "rebindinterval: 0" and an absent key decode identically to the Go
	// zero value, so both default to -1 (disabled) here: matches the C
	// module's behavior of requiring an operator to opt into
	// rebind-every-op by setting a positive interval.
	if cfg.RebindInterval == 0 {
		cfg.RebindInterval = -1
	}
	if cfg.HealthCheckTimeout == 0 {
		cfg.HealthCheckTimeout = 3500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}

	// omelasticsearch.c:247 defaults esVersion to 0 and checks it
	// unconditionally at omelasticsearch.c:2048 ("esVersion < 8"), so an
	// unconfigured ESVersionMajor (the Go zero value) must still apply
	// the legacy defaults rather than being treated as ES8+.
	if cfg.ESVersionMajor < 8 {
		if cfg.Index.Static == "" && !cfg.Index.Dynamic {
			cfg.Index.Static = "system"
		}
		if cfg.Type.Static == "" && !cfg.Type.Dynamic {
			cfg.Type.Static = "events"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.RetryFailures && cfg.Limiter == nil {
		interval := cfg.RateLimitInterval
		if interval <= 0 {
			interval = time.Second
		}
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1000
		}
		cfg.Limiter = ratelimit.NewTokenBucket(interval, burst)
	}

	return cfg, nil
}

// Validate checks the cross-field invariants of spec.md §3 plus the
// writeoperation/bulkid requirement carried over from
// original_source/plugins/omelasticsearch/omelasticsearch.c:2052-2054
// (supplemented — see SPEC_FULL.md).
func (c *ActionConfig) Validate() error {
	for name, f := range map[string]DynamicField{
		"searchindex": c.Index,
		"searchtype":  c.Type,
		"pipelinename": c.Pipeline,
		"parent":      c.Parent,
		"bulkid":      c.BulkID,
	} {
		if err := f.Validate(name); err != nil {
			return err
		}
	}

	if c.WriteOperation != WriteIndex && c.BulkID.Static == "" && !c.BulkID.Dynamic {
		return fmt.Errorf("esbulk: writeoperation 'create' requires bulkid to be set")
	}

	if c.Password != "" && c.Username == "" {
		return fmt.Errorf("esbulk: pwd is set without uid")
	}

	if c.TLS.ClientCert != "" && c.TLS.ClientKey == "" {
		return fmt.Errorf("esbulk: tls.mycert is set without tls.myprivkey")
	}

	return nil
}

// buildHTTPClient builds one HTTP session (health or post) for the action,
// applying TLS material. Mirrors the Connection Pool Wrapper of spec.md §4.2.
func (c *ActionConfig) buildHTTPClient() (*http.Client, error) {
	transport := &http.Transport{}
	if c.UseHTTPS || c.TLS.CACert != "" || c.TLS.ClientCert != "" {
		tlsCfg, err := c.TLS.buildTLSConfig()
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsCfg
	}
	return &http.Client{Transport: transport}, nil
}

// HUP closes the error-file descriptor; the next write reopens it
// (spec.md §4.6).
func (c *ActionConfig) HUP() {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.errFile != nil {
		c.errFile.Close()
		c.errFile = nil
	}
}

// Close releases the action's resources (spec.md's freeInstance).
func (c *ActionConfig) Close() error {
	c.HUP()
	return nil
}
