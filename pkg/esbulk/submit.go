package esbulk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Milliseconds())
}

type requestBody interface {
	bytes() []byte
	buildURL(cfg *ActionConfig, base string) string
}

// post is the Submitter of spec.md §4.4: sends one HTTP POST and
// classifies the result.
func (w *Worker) post(ctx context.Context, body requestBody, nmsgs int) error {
	cfg := w.action

	// Rebind discipline (spec.md §4.4).
	forceRebind := false
	forbid := false
	if cfg.RebindInterval > -1 {
		if w.opCount > cfg.RebindInterval {
			forceRebind = true
			w.opCount = 0
		} else if w.opCount == cfg.RebindInterval {
			forbid = true
		}
	}
	if forceRebind {
		w.pool.rebind()
	}

	base := composeServerURL(cfg.Servers[w.serverIndex], cfg.UseHTTPS, cfg.DefaultPort)
	url := body.buildURL(cfg, base)
	w.lastURL = url

	var timeout time.Duration
	if cfg.IndexTimeout > 0 {
		timeout = cfg.IndexTimeout
	}
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body.bytes()))
	if err != nil {
		cfg.Stats.FailedHTTPRequests.Inc()
		cfg.Stats.FailedHTTP.Add(float64(nmsgs))
		return fmt.Errorf("esbulk: failed to build request: %w", err)
	}
	w.pool.applyHeaders(req)
	if forbid {
		forbidReuse(req)
	}

	resp, err := w.pool.postClient.Do(req)
	defer w.advanceServerIndex() // always advance, regardless of outcome

	if err != nil {
		// Transport error: anything except "HTTP completed" (spec.md §4.4).
		cfg.Stats.FailedHTTPRequests.Inc()
		cfg.Stats.FailedHTTP.Add(float64(nmsgs))
		return fmt.Errorf("esbulk: %w", &suspendError{cause: err})
	}
	defer resp.Body.Close()

	if cfg.RebindInterval > -1 {
		w.opCount++
	}
	cfg.Stats.Submitted.Add(float64(nmsgs))

	replyBody, err := io.ReadAll(resp.Body)
	if err != nil {
		cfg.Stats.FailedES.Inc()
		return fmt.Errorf("esbulk: failed to read reply body: %w", err)
	}
	w.reply.Reset()
	w.reply.Write(replyBody)

	return analyzeResponse(w, body, replyBody, resp.StatusCode, nmsgs)
}

// suspendError wraps a transport failure that should suspend the worker
// (spec.md §4.4, §7); the host's resume path re-runs health probing.
type suspendError struct{ cause error }

func (e *suspendError) Error() string { return fmt.Sprintf("transport failure: %v", e.cause) }
func (e *suspendError) Unwrap() error { return e.cause }
