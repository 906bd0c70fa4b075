package esbulk

import (
	"context"
	"encoding/json"
)

// reinjectFailures is the Retry Reinjector of spec.md §4.7: for every
// non-success item it reconstructs a host-facing message from the
// request pair that produced it and hands it to the configured retry
// ruleset, rate-limited by cfg.Limiter. Items with no paired request
// are skipped without consulting the limiter. A message is still constructed
// (and the rate limiter still consulted) even when cfg.Retry is nil,
// since RetryRuleset is an external collaborator spec.md leaves
// optional; dropping the item silently in that case would make the
// rate limiter's state diverge from what actually got injected.
func reinjectFailures(ctx context.Context, cfg *ActionConfig, outcomes []itemOutcome) error {
	var firstErr error
	for _, o := range outcomes {
		if o.class == "success" || o.reqPair == "" {
			continue
		}

		if cfg.Limiter != nil && !cfg.Limiter.Allow() {
			continue
		}

		msg := buildRetryMessage(cfg, o)
		if cfg.Retry == nil {
			continue
		}
		if err := cfg.Retry.Inject(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildRetryMessage reconstructs the synthetic message for one failed
// item from its request pair (spec.md §4.7).
func buildRetryMessage(cfg *ActionConfig, o itemOutcome) RetryMessage {
	metaLine, sourceLine := splitPair(o.reqPair)

	var source map[string]interface{}
	_ = json.Unmarshal([]byte(sourceLine), &source)

	rawText := sourceLine
	if source != nil {
		if msg, ok := source["message"].(string); ok {
			rawText = msg
		}
	}

	return RetryMessage{
		InputName: "omelasticsearch",
		Tag:       "omes",
		RawText:   rawText,
		Source:    source,
		Meta:      flattenBulkOp(metaLine, o.opName, o.result),
		Ruleset:   cfg.RetryRulesetName,
	}
}

// flattenBulkOp is the bulk-op flattener: it lifts the fields of the
// action-meta's inner object (e.g. `{"index":{"_index":"foo",...}}`) to
// the top level of the returned map, then adds writeoperation/status/
// error, never overwriting a field the inner object already defined.
func flattenBulkOp(metaLine, opName string, result itemResult) map[string]interface{} {
	flat := map[string]interface{}{}

	var generic map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(metaLine), &generic); err == nil {
		if inner, ok := generic[opName]; ok {
			for k, v := range inner {
				flat[k] = v
			}
		}
	}

	setIfAbsent(flat, "writeoperation", opName)
	setIfAbsent(flat, "status", result.Status)
	if result.Error != nil {
		setIfAbsent(flat, "error", map[string]string{
			"type":   result.Error.Type,
			"reason": result.Error.Reason,
		})
	}
	return flat
}

func setIfAbsent(m map[string]interface{}, key string, value interface{}) {
	if _, exists := m[key]; !exists {
		m[key] = value
	}
}
