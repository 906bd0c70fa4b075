// Package esbulk implements the bulk indexing engine that forwards templated
// log events to an Elasticsearch-compatible `_bulk` endpoint: batch assembly,
// multi-endpoint failover, response classification, and retry reinjection.
package esbulk

import "context"

// WriteOperation selects the bulk action-meta verb used for a message.
type WriteOperation int

const (
	// WriteIndex issues an "index" bulk action (upsert-by-id semantics).
	WriteIndex WriteOperation = iota
	// WriteCreate issues a "create" bulk action (fails if the id exists).
	WriteCreate
)

func (w WriteOperation) String() string {
	if w == WriteCreate {
		return "create"
	}
	return "index"
}

// TemplateSet is the explicit, struct-based replacement for the original
// positional template array (see REDESIGN FLAGS in spec.md and §3 of
// SPEC_FULL.md). Slot 0 of the legacy array is Payload; the remaining
// fields replace slots 1..N, each populated only when its paired Dyn* flag
// is set on the owning ActionConfig.
type TemplateSet struct {
	Payload string

	Index    string
	Type     string
	Parent   string
	BulkID   string
	Pipeline string
}

// HostMessage is the minimal shape the core needs from the host's message
// object (out of scope per spec.md §1 — this is the narrow interface the
// core actually consumes).
type HostMessage interface {
	// Render resolves the action's configured templates against the
	// message and returns them in TemplateSet form.
	Render(cfg *ActionConfig) (TemplateSet, error)
}

// TemplateResolverFunc adapts a plain function to HostMessage for callers
// that don't want to define a type, mirroring the host's templating engine
// collaborator named in spec.md §1.
type TemplateResolverFunc func(cfg *ActionConfig) (TemplateSet, error)

// Render implements HostMessage.
func (f TemplateResolverFunc) Render(cfg *ActionConfig) (TemplateSet, error) { return f(cfg) }

// RetryMessage is the synthetic message constructed by the Retry
// Reinjector (spec.md §4.7) and handed to a RetryRuleset.
type RetryMessage struct {
	// InputName is fixed to "omelasticsearch" per spec.md §4.7.
	InputName string
	// Tag is fixed to "omes".
	Tag string
	// RawText is the message's `message` field if present, else the
	// entire source line.
	RawText string
	// Source is the parsed source document (root JSON variable `!`).
	Source map[string]interface{}
	// Meta is the flattened bulk-op response metadata (local variable
	// `.omes`), enriched with writeoperation/status/error fields.
	Meta map[string]interface{}
	// Ruleset is the name of the configured retry ruleset to tag the
	// message for.
	Ruleset string
}

// RetryRuleset is the external collaborator that accepts reinjected
// messages — the host's named ruleset registry (spec.md §1, §4.7).
type RetryRuleset interface {
	Inject(ctx context.Context, msg RetryMessage) error
}

// RateLimiter is the external collaborator spec.md calls the "rate-limiter
// primitive" (§1); pkg/ratelimit.TokenBucket is the concrete implementation
// shipped with this repo.
type RateLimiter interface {
	Allow() bool
}

// TransactionResult is returned by Worker.DoAction (spec.md §4.8).
type TransactionResult int

const (
	// DeferCommit means the item was appended to the in-flight batch and
	// not yet durable; the host must be prepared to replay it.
	DeferCommit TransactionResult = iota
	// PreviousCommitted means a forced flush occurred and this item is
	// now the sole member of a freshly reset batch: everything flushed
	// before it is durable and must not be replayed.
	PreviousCommitted
)
