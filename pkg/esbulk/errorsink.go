package esbulk

import (
	"encoding/json"
	"fmt"
	"os"
)

// interleavedEntry is one {request, reply} pair in interleaved mode.
type interleavedEntry struct {
	Request string `json:"request"`
	Reply   string `json:"reply"`
}

// writeErrorRecord renders one error-file record in the mode selected by
// (ErrorOnly, Interleaved) (spec.md §4.6). Adapted from the lazy-open,
// mutex-guarded append pattern of pkg/dlq.DeadLetterQueue.writeEntry,
// stripped of rotation/alerting since spec.md's error file has neither.
func writeErrorRecord(cfg *ActionConfig, url string, postdata []byte, reply []byte, outcomes []itemOutcome) error {
	if cfg.ErrorFile == "" {
		return nil
	}

	record, err := renderErrorRecord(cfg, url, postdata, reply, outcomes)
	if err != nil {
		return fmt.Errorf("esbulk: failed to render error record: %w", err)
	}

	return appendErrorLine(cfg, record)
}

func renderErrorRecord(cfg *ActionConfig, url string, postdata, reply []byte, outcomes []itemOutcome) ([]byte, error) {
	switch {
	case cfg.ErrorMode.ErrorOnly && cfg.ErrorMode.Interleaved:
		return json.Marshal(struct {
			URL      string             `json:"url"`
			Response []interleavedEntry `json:"response"`
		}{url, failedInterleaved(outcomes)})

	case cfg.ErrorMode.Interleaved:
		return json.Marshal(struct {
			URL      string             `json:"url"`
			Response []interleavedEntry `json:"response"`
		}{url, allInterleaved(outcomes)})

	case cfg.ErrorMode.ErrorOnly:
		reqs, replies := failedParallelArrays(outcomes)
		return json.Marshal(struct {
			URL     string   `json:"url"`
			Request []string `json:"request"`
			Reply   []string `json:"reply"`
		}{url, reqs, replies})

	default:
		return json.Marshal(struct {
			URL      string          `json:"url"`
			PostData json.RawMessage `json:"postdata"`
			Reply    json.RawMessage `json:"reply"`
		}{url, rawOrString(postdata), rawOrString(reply)})
	}
}

// rawOrString embeds postdata/reply verbatim when they're valid JSON
// values, else as a quoted string, so the default-mode record never
// fails to marshal over a malformed reply.
func rawOrString(b []byte) json.RawMessage {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	quoted, _ := json.Marshal(string(b))
	return json.RawMessage(quoted)
}

func allInterleaved(outcomes []itemOutcome) []interleavedEntry {
	entries := make([]interleavedEntry, len(outcomes))
	for i, o := range outcomes {
		entries[i] = interleavedEntry{Request: o.reqPair, Reply: o.rawReply}
	}
	return entries
}

func failedInterleaved(outcomes []itemOutcome) []interleavedEntry {
	var entries []interleavedEntry
	for _, o := range outcomes {
		if o.class != "success" {
			entries = append(entries, interleavedEntry{Request: o.reqPair, Reply: o.rawReply})
		}
	}
	return entries
}

func failedParallelArrays(outcomes []itemOutcome) (reqs, replies []string) {
	for _, o := range outcomes {
		if o.class != "success" {
			reqs = append(reqs, o.reqPair)
			replies = append(replies, o.rawReply)
		}
	}
	return reqs, replies
}

// appendErrorLine writes one JSON-object-per-line record, serialized by
// the action's mutex (spec.md §4.6, §5). The fd is opened lazily and
// reopened on the first write after a HUP.
func appendErrorLine(cfg *ActionConfig, record []byte) error {
	cfg.errMu.Lock()
	defer cfg.errMu.Unlock()

	if cfg.errFile == nil {
		f, err := os.OpenFile(cfg.ErrorFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0660)
		if err != nil {
			return fmt.Errorf("esbulk: failed to open error file %s: %w", cfg.ErrorFile, err)
		}
		cfg.errFile = f
	}

	if _, err := cfg.errFile.Write(record); err != nil {
		return fmt.Errorf("esbulk: failed to write error record: %w", err)
	}
	if _, err := cfg.errFile.Write([]byte("\n")); err != nil {
		return fmt.Errorf("esbulk: failed to write error record terminator: %w", err)
	}
	return nil
}
