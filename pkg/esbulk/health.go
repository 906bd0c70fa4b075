package esbulk

import (
	"context"
	"fmt"
	"net/http"
)

// ErrSuspended is returned when every configured server fails a health
// probe (spec.md §4.3); the host is expected to back off and retry later
// via Worker.Resume.
var ErrSuspended = fmt.Errorf("esbulk: all servers failed health check, suspending")

// probeHealth issues a GET to <base>_cat/health on each configured
// server, starting at the worker's current index and wrapping modulo
// numServers. On success the current index is kept; on failure it is
// advanced and checkConnFail is incremented. Returns ErrSuspended if
// every server fails.
func probeHealth(ctx context.Context, w *Worker) error {
	cfg := w.action
	n := len(cfg.Servers)

	for i := 0; i < n; i++ {
		base := composeServerURL(cfg.Servers[w.serverIndex], cfg.UseHTTPS, cfg.DefaultPort)
		url := base + "_cat/health"

		reqCtx, cancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
		if err == nil {
			w.pool.applyHeaders(req)
			resp, err := w.pool.healthClient.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode < 400 {
					cancel()
					return nil
				}
			}
		}
		cancel()

		cfg.Stats.FailedCheckConn.Inc()
		w.advanceServerIndex()
	}

	return ErrSuspended
}
