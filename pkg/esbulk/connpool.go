package esbulk

import (
	"encoding/base64"
	"net/http"
)

// connPool is the Connection Pool Wrapper of spec.md §4.2: one HTTP
// session for health checks, one for posting, carrying headers, TLS
// material, credentials, and a rebind counter. Adapted from the
// *http.Transport wiring in internal/sinks.ElasticsearchSink.createClient.
type connPool struct {
	cfg *ActionConfig

	healthClient *http.Client
	postClient   *http.Client

	authHeader string // pre-built "Basic <base64>" credential blob, or ""

	rebinds int
}

func newConnPool(cfg *ActionConfig) (*connPool, error) {
	health, err := cfg.buildHTTPClient()
	if err != nil {
		return nil, err
	}
	post, err := cfg.buildHTTPClient()
	if err != nil {
		return nil, err
	}

	p := &connPool{cfg: cfg, healthClient: health, postClient: post}
	if cfg.Username != "" {
		p.authHeader = "Basic " + base64.StdEncoding.EncodeToString(
			[]byte(cfg.Username+":"+cfg.Password))
	}
	return p, nil
}

func (p *connPool) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if p.authHeader != "" {
		req.Header.Set("Authorization", p.authHeader)
	}
}

// rebind forces the post session to close idle connections and open a
// fresh one on the next request, incrementing the rebind counter
// (spec.md §4.4).
func (p *connPool) rebind() {
	p.postClient.CloseIdleConnections()
	p.rebinds++
	p.cfg.Stats.Rebinds.Inc()
}

// forbidReuse marks the in-flight request's connection to be closed
// afterward instead of returned to the pool (spec.md §4.4's "equal to
// the interval" case).
func forbidReuse(req *http.Request) {
	req.Close = true
}
