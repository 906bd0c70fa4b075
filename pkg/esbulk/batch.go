package esbulk

import (
	"bytes"
	"sync"
)

// NDJSON action-meta fragments, byte-for-byte as omelasticsearch.c's
// META_* macros (spec.md §4.2, §9 REDESIGN FLAGS: "a small typed emitter
// that tracks whether any field was written and chooses the terminator
// deterministically" — metaEmitter below is that emitter).
const (
	metaStart       = `{"index":{"_index": "`
	metaStartCreate = `{"create":{`
	metaIndexKey    = `"_index": "`
	metaType        = `","_type":"`
	metaPipeline    = `","pipeline":"`
	metaParent      = `","_parent":"`
	metaID          = `", "_id":"`
	metaEnd         = "\"}}\n"
	metaEndNoQuote  = " }}\n"
)

// metaEmitter builds one action-meta line, tracking whether the last
// field written left a trailing open quote (endQuote) so the terminator
// can be chosen deterministically.
type metaEmitter struct {
	buf      *bytes.Buffer
	endQuote bool
}

func newMetaEmitter(buf *bytes.Buffer, op WriteOperation) *metaEmitter {
	e := &metaEmitter{buf: buf, endQuote: true}
	if op == WriteCreate {
		buf.WriteString(metaStartCreate)
		e.endQuote = false
	} else {
		buf.WriteString(metaStart)
	}
	return e
}

func (e *metaEmitter) indexAndType(op WriteOperation, index, docType string) {
	if index == "" {
		return
	}
	e.endQuote = true
	if op == WriteCreate {
		e.buf.WriteString(metaIndexKey)
	}
	e.buf.WriteString(index)
	if docType != "" {
		e.buf.WriteString(metaType)
		e.buf.WriteString(docType)
	}
}

func (e *metaEmitter) field(prefix, value string) {
	if value == "" {
		return
	}
	e.endQuote = true
	e.buf.WriteString(prefix)
	e.buf.WriteString(value)
}

// forceField writes prefix+value even when value is empty, for the
// skippipelineifempty=false case where a configured-but-empty pipeline
// name still produces a `"pipeline":""` field.
func (e *metaEmitter) forceField(prefix, value string) {
	e.endQuote = true
	e.buf.WriteString(prefix)
	e.buf.WriteString(value)
}

func (e *metaEmitter) close() {
	if e.endQuote {
		e.buf.WriteString(metaEnd)
	} else {
		e.buf.WriteString(metaEndNoQuote)
	}
}

// Batch is the in-flight append-only NDJSON buffer of spec.md §3. One
// Batch lives per Worker, reset at transaction start and after every
// forced flush.
type Batch struct {
	mu    sync.Mutex
	data  bytes.Buffer
	count int
}

// Len returns the current byte size of the batch.
func (b *Batch) Len() int { return b.data.Len() }

// Count returns the number of messages appended to the batch.
func (b *Batch) Count() int { return b.count }

// Reset clears the batch for reuse (the underlying buffer's capacity is
// retained, matching the "reply buffer is grown, never shrunk" note in
// spec.md §9 applied here to the write-side buffer as well).
func (b *Batch) Reset() {
	b.data.Reset()
	b.count = 0
}

// Bytes returns the accumulated NDJSON body.
func (b *Batch) Bytes() []byte { return b.data.Bytes() }

// resolvedKeys is the per-message set of keys after dynamic resolution
// (spec.md §4.2's "Dynamic key resolution").
type resolvedKeys struct {
	index, docType, parent, bulkID, pipeline string
	pipelineSet                              bool
}

func resolveKeys(cfg *ActionConfig, tpl TemplateSet) resolvedKeys {
	r := resolvedKeys{
		index:   cfg.Index.Static,
		docType: cfg.Type.Static,
		parent:  cfg.Parent.Static,
		bulkID:  cfg.BulkID.Static,
	}
	if cfg.Index.Dynamic {
		r.index = tpl.Index
	}
	if cfg.Type.Dynamic {
		r.docType = tpl.Type
	}
	if cfg.Parent.Dynamic {
		r.parent = tpl.Parent
	}
	if cfg.BulkID.Dynamic {
		r.bulkID = tpl.BulkID
	}

	// Pipeline is configured when a static name or a dyn flag is set at
	// all (original_source/plugins/omelasticsearch/omelasticsearch.c's
	// pipelineName != NULL). An unconfigured pipeline is never emitted.
	// A configured-but-empty pipeline is emitted as "pipeline":"" unless
	// skippipelineifempty asks for it to be dropped (omelasticsearch.c:626,696,739).
	configured := cfg.Pipeline.Static != "" || cfg.Pipeline.Dynamic
	if configured {
		r.pipeline = cfg.Pipeline.Static
		if cfg.Pipeline.Dynamic {
			r.pipeline = tpl.Pipeline
		}
		r.pipelineSet = !(cfg.SkipPipelineIfEmpty && r.pipeline == "")
	}
	return r
}

// build appends one request pair (action-meta line, source line) to the
// batch and increments the count (spec.md §4.2's build(msg, templates)).
func (b *Batch) build(cfg *ActionConfig, tpl TemplateSet) {
	keys := resolveKeys(cfg, tpl)

	b.mu.Lock()
	defer b.mu.Unlock()

	e := newMetaEmitter(&b.data, cfg.WriteOperation)
	e.indexAndType(cfg.WriteOperation, keys.index, keys.docType)
	if keys.pipelineSet {
		e.forceField(metaPipeline, keys.pipeline)
	}
	e.field(metaParent, keys.parent)
	e.field(metaID, keys.bulkID)
	e.close()

	b.data.WriteString(tpl.Payload)
	b.data.WriteByte('\n')

	b.count++
}

// computeMessageSize returns a conservative upper bound on the bytes that
// build() would append for this message, used by the Submitter to decide
// whether appending would cross maxbytes (spec.md §4.2).
func computeMessageSize(cfg *ActionConfig, tpl TemplateSet) int {
	keys := resolveKeys(cfg, tpl)

	size := len(metaEnd) + len("\n")
	if cfg.WriteOperation == WriteCreate {
		size += len(metaStartCreate)
	} else {
		size += len(metaStart)
	}

	size += len(tpl.Payload)
	if keys.index != "" {
		size += len(keys.index)
		if cfg.WriteOperation == WriteCreate {
			size += len(metaIndexKey)
		}
	}
	if keys.docType != "" {
		size += len(metaType) + len(keys.docType)
	} else {
		size += len("_doc")
	}
	if keys.parent != "" {
		size += len(metaParent) + len(keys.parent)
	}
	if keys.bulkID != "" {
		size += len(metaID) + len(keys.bulkID)
	}
	if keys.pipelineSet {
		size += len(metaPipeline) + len(keys.pipeline)
	}

	return size
}
