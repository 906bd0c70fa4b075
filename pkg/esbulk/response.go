package esbulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// itemError is the `error` object of one bulk response item.
type itemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// itemResult is the inner object of one bulk response item (keyed by
// "index" or "create").
type itemResult struct {
	Status int        `json:"status"`
	ID     string     `json:"_id"`
	Error  *itemError `json:"error"`
}

type bulkReply struct {
	Errors bool              `json:"errors"`
	Items  []json.RawMessage `json:"items"`
}

// requestPairs splits the submitted NDJSON body into its request pairs
// (meta line + source line), one per item, in order (spec.md §4.5's
// "Item pairing"). A body with fewer lines than expected yields fewer
// pairs than items; callers must treat a missing pair as absent.
func requestPairs(body []byte) []string {
	lines := bytes.Split(body, []byte("\n"))
	var pairs []string
	for i := 0; i+1 < len(lines); i += 2 {
		if len(lines[i]) == 0 && len(lines[i+1]) == 0 {
			break
		}
		pairs = append(pairs, string(lines[i])+"\n"+string(lines[i+1])+"\n")
	}
	return pairs
}

func splitPair(pair string) (metaLine, sourceLine string) {
	idx := indexByte(pair, '\n')
	if idx < 0 {
		return pair, ""
	}
	metaLine = pair[:idx]
	rest := pair[idx+1:]
	if j := indexByte(rest, '\n'); j >= 0 {
		return metaLine, rest[:j]
	}
	return metaLine, rest
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// itemOutcome is one classified bulk response item (spec.md §4.5 table).
type itemOutcome struct {
	index      int
	class      string // success, duplicate, badargument, bulkrejection, other, bad
	opName     string
	result     itemResult
	reqPair    string // "" if absent
	rawReply   string
}

func extractItem(raw json.RawMessage) (opName string, result itemResult, ok bool) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", itemResult{}, false
	}
	for _, name := range []string{"create", "index"} {
		if body, exists := generic[name]; exists {
			var r itemResult
			if err := json.Unmarshal(body, &r); err != nil {
				return name, itemResult{}, false
			}
			return name, r, true
		}
	}
	return "", itemResult{}, false
}

func isEffectivelyCreate(opName string, writeOp WriteOperation) bool {
	return opName == "create" || (opName == "index" && writeOp == WriteIndex)
}

// classify implements the exhaustive table of spec.md §4.5.
func classify(opName string, result itemResult, metaParseOK bool, writeOp WriteOperation) string {
	if !metaParseOK {
		return "bad"
	}
	if opName == "" {
		return "bad"
	}
	switch {
	case result.Status == 200 || result.Status == 201:
		return "success"
	case result.Status == 409 && isEffectivelyCreate(opName, writeOp):
		return "duplicate"
	case result.Status == 400 || result.Status < 200:
		return "badargument"
	case result.Status == 429 && result.Error != nil && result.Error.Type != "":
		return "bulkrejection"
	case result.Error != nil && result.Error.Type != "":
		return "other"
	default:
		return "bad"
	}
}

// analyzeResponse is the Response Analyzer of spec.md §4.5.
func analyzeResponse(w *Worker, body requestBody, reply []byte, status int, nmsgs int) error {
	cfg := w.action

	bulk, isBulk := body.(*bulkBody)
	if !isBulk {
		return analyzeNonBulk(cfg, reply)
	}

	var parsed bulkReply
	if err := json.Unmarshal(reply, &parsed); err != nil {
		cfg.Stats.FailedES.Inc()
		return fmt.Errorf("esbulk: failed to parse bulk reply: %w", err)
	}

	if !parsed.Errors && !cfg.RetryFailures {
		cfg.Stats.ResponseSuccess.Add(float64(nmsgs))
		return nil
	}

	pairs := requestPairs(*bulk)
	outcomes := make([]itemOutcome, len(parsed.Items))
	for i, raw := range parsed.Items {
		opName, result, parseOK := extractItem(raw)

		var reqPair string
		metaParseOK := parseOK
		if i < len(pairs) {
			reqPair = pairs[i]
			metaLine, _ := splitPair(reqPair)
			var meta map[string]json.RawMessage
			if err := json.Unmarshal([]byte(metaLine), &meta); err != nil {
				metaParseOK = false
			}
		} else {
			metaParseOK = false
		}

		outcomes[i] = itemOutcome{
			index:    i,
			class:    classify(opName, result, metaParseOK, cfg.WriteOperation),
			opName:   opName,
			result:   result,
			reqPair:  reqPair,
			rawReply: string(raw),
		}
	}

	// Per-item classification counters are reserved for the retry path
	// (spec.md §4.5's table header, "when retryFailures is on"); the
	// original only wires them through getDataRetryFailures, which is
	// only installed as the per-item callback when retryFailures is set.
	if cfg.RetryFailures {
		bumpCounters(cfg, outcomes)
	}

	var anyFailed bool
	for _, o := range outcomes {
		if o.class != "success" {
			anyFailed = true
			break
		}
	}
	if !anyFailed {
		return nil
	}

	if cfg.RetryFailures {
		reinjectFailures(context.Background(), cfg, outcomes)
		return nil
	}

	return writeErrorRecord(cfg, w.lastURL, *bulk, reply, outcomes)
}

func bumpCounters(cfg *ActionConfig, outcomes []itemOutcome) {
	for _, o := range outcomes {
		switch o.class {
		case "success":
			cfg.Stats.ResponseSuccess.Inc()
		case "duplicate":
			cfg.Stats.ResponseDuplicate.Inc()
		case "badargument":
			cfg.Stats.ResponseBadArgument.Inc()
		case "bulkrejection":
			cfg.Stats.ResponseBulkRejection.Inc()
		case "other":
			cfg.Stats.ResponseOther.Inc()
		default:
			cfg.Stats.ResponseBad.Inc()
		}
	}
}

// analyzeNonBulk implements the non-bulk path of spec.md §4.5.
func analyzeNonBulk(cfg *ActionConfig, reply []byte) error {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(reply, &generic); err != nil {
		cfg.Stats.FailedES.Inc()
		return fmt.Errorf("esbulk: failed to parse reply: %w", err)
	}
	if _, hasStatus := generic["status"]; hasStatus {
		cfg.Stats.FailedES.Inc()
		return fmt.Errorf("esbulk: indexing failed: %s", string(reply))
	}
	return nil
}
