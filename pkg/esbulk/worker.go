package esbulk

import (
	"bytes"
	"context"
	"fmt"
)

// Worker is the Worker Instance of spec.md §3: one per concurrent worker,
// owning its own HTTP sessions, batch scratch, reply buffer, and server
// index. No state here is shared across workers.
type Worker struct {
	action *ActionConfig
	pool   *connPool

	serverIndex int
	opCount     int // rebind counter

	lastURL string
	reply   bytes.Buffer // grown, never shrunk (spec.md §9)

	batch Batch
}

// NewWorker attaches a new worker to the action (spec.md's
// createWorkerInstance). Sessions are acquired lazily at creation.
func NewWorker(action *ActionConfig) (*Worker, error) {
	pool, err := newConnPool(action)
	if err != nil {
		return nil, fmt.Errorf("esbulk: failed to create worker sessions: %w", err)
	}
	return &Worker{action: action, pool: pool}, nil
}

// Close releases the worker's resources (spec.md's freeWorkerInstance).
func (w *Worker) Close() error {
	w.pool.healthClient.CloseIdleConnections()
	w.pool.postClient.CloseIdleConnections()
	return nil
}

func (w *Worker) advanceServerIndex() {
	w.serverIndex = (w.serverIndex + 1) % len(w.action.Servers)
}

// Resume re-runs health probing for the host's tryResume path. With a
// single configured server no probe is made and nil is returned.
func (w *Worker) Resume(ctx context.Context) error {
	if len(w.action.Servers) <= 1 {
		return nil
	}
	return probeHealth(ctx, w)
}

// BeginTransaction resets the batch buffer and count if in bulk mode
// (spec.md §4.8).
func (w *Worker) BeginTransaction() {
	if w.action.BulkMode {
		w.batch.Reset()
	}
}

// DoAction appends one message to the batch (bulk mode) or posts it
// immediately (non-bulk mode), per spec.md §4.8.
func (w *Worker) DoAction(ctx context.Context, tpl TemplateSet) (TransactionResult, error) {
	if !w.action.BulkMode {
		return DeferCommit, w.post(ctx, &singleMessageBody{cfg: w.action, tpl: tpl}, 1)
	}

	prospective := w.batch.Len() + computeMessageSize(w.action, tpl)
	flushedFirst := false
	if w.action.MaxBytes > 0 && w.batch.Count() > 0 && prospective > w.action.MaxBytes {
		if err := w.flush(ctx); err != nil {
			return DeferCommit, err
		}
		flushedFirst = true
	}

	w.batch.build(w.action, tpl)

	if flushedFirst && w.batch.Count() == 1 {
		return PreviousCommitted, nil
	}
	return DeferCommit, nil
}

// EndTransaction flushes the batch if non-empty (spec.md §4.8).
func (w *Worker) EndTransaction(ctx context.Context) error {
	if w.action.BulkMode && w.batch.Count() > 0 {
		return w.flush(ctx)
	}
	return nil
}

// flush posts the current batch and resets it regardless of outcome,
// matching the "batch buffer ... reset ... after every forced flush"
// invariant of spec.md §3.
func (w *Worker) flush(ctx context.Context) error {
	n := w.batch.Count()
	if n == 0 {
		return nil
	}
	body := bulkBody(w.batch.Bytes())
	err := w.post(ctx, &body, n)
	w.batch.Reset()
	return err
}

// bulkBody is a requestBody for an already-assembled NDJSON buffer.
type bulkBody []byte

func (b *bulkBody) bytes() []byte { return *b }

func (b *bulkBody) buildURL(cfg *ActionConfig, base string) string {
	return buildBulkURL(base, requestURLParams{timeout: timeoutMillis(cfg.IndexTimeout)})
}

// singleMessageBody is a requestBody for a non-bulk single-document post.
type singleMessageBody struct {
	cfg *ActionConfig
	tpl TemplateSet
}

func (s *singleMessageBody) bytes() []byte { return []byte(s.tpl.Payload) }

func (s *singleMessageBody) buildURL(cfg *ActionConfig, base string) string {
	keys := resolveKeys(cfg, s.tpl)
	return buildDocumentURL(base, keys.index, keys.docType, requestURLParams{
		pipeline: keys.pipeline,
		parent:   keys.parent,
		timeout:  timeoutMillis(cfg.IndexTimeout),
	})
}
