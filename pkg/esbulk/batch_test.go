package esbulk

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_BuildIndexMode(t *testing.T) {
	cfg := &ActionConfig{
		Index: DynamicField{Static: "logs"},
	}
	var b Batch
	b.build(cfg, TemplateSet{Payload: `{"m":1}`})

	body := b.Bytes()
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 2)

	var meta map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &meta))
	assert.Contains(t, meta, "index")
	assert.NotContains(t, meta, "create")

	assert.JSONEq(t, `{"m":1}`, lines[1])
	assert.Equal(t, 1, b.Count())
}

func TestBatch_BuildCreateModeWithBulkID(t *testing.T) {
	cfg := &ActionConfig{
		Index:          DynamicField{Static: "logs"},
		WriteOperation: WriteCreate,
		BulkID:         DynamicField{Static: "abc"},
	}
	var b Batch
	b.build(cfg, TemplateSet{Payload: `{"m":1}`})

	lines := strings.Split(strings.TrimRight(string(b.Bytes()), "\n"), "\n")
	require.Len(t, lines, 2)

	var meta map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &meta))
	require.Contains(t, meta, "create")
	assert.Equal(t, "logs", meta["create"]["_index"])
	assert.Equal(t, "abc", meta["create"]["_id"])
}

func TestBatch_NDJSONShape_TwoLinesPerMessage(t *testing.T) {
	cfg := &ActionConfig{Index: DynamicField{Static: "logs"}}
	var b Batch
	for i := 0; i < 3; i++ {
		b.build(cfg, TemplateSet{Payload: `{"m":1}`})
	}

	body := b.Bytes()
	assert.Equal(t, 6, bytes.Count(body, []byte("\n")))
	assert.Equal(t, 3, b.Count())
}

func TestBatch_DynamicKeysResolveFromTemplateSet(t *testing.T) {
	cfg := &ActionConfig{
		Index:    DynamicField{Static: "idx_tpl", Dynamic: true},
		Pipeline: DynamicField{Static: "pipe_tpl", Dynamic: true},
	}
	var b Batch
	b.build(cfg, TemplateSet{Payload: `{}`, Index: "dynamic-index", Pipeline: "dynamic-pipeline"})

	line := strings.SplitN(string(b.Bytes()), "\n", 2)[0]
	var meta map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &meta))
	assert.Equal(t, "dynamic-index", meta["index"]["_index"])
	assert.Equal(t, "dynamic-pipeline", meta["index"]["pipeline"])
}

func TestBatch_ConfiguredEmptyPipelineEmittedUnlessSkipped(t *testing.T) {
	cfg := &ActionConfig{
		Index:    DynamicField{Static: "logs"},
		Pipeline: DynamicField{Static: "pipe_tpl", Dynamic: true},
	}
	var b Batch
	b.build(cfg, TemplateSet{Payload: `{}`, Pipeline: ""})

	line := strings.SplitN(string(b.Bytes()), "\n", 2)[0]
	var meta map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &meta))
	assert.Equal(t, "", meta["index"]["pipeline"])

	cfg.SkipPipelineIfEmpty = true
	var b2 Batch
	b2.build(cfg, TemplateSet{Payload: `{}`, Pipeline: ""})
	line2 := strings.SplitN(string(b2.Bytes()), "\n", 2)[0]
	var meta2 map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line2), &meta2))
	assert.NotContains(t, meta2["index"], "pipeline")
}

func TestBatch_UnconfiguredPipelineNeverEmitted(t *testing.T) {
	cfg := &ActionConfig{Index: DynamicField{Static: "logs"}}
	var b Batch
	b.build(cfg, TemplateSet{Payload: `{}`})

	line := strings.SplitN(string(b.Bytes()), "\n", 2)[0]
	var meta map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &meta))
	assert.NotContains(t, meta["index"], "pipeline")
}

func TestBatch_Reset(t *testing.T) {
	cfg := &ActionConfig{Index: DynamicField{Static: "logs"}}
	var b Batch
	b.build(cfg, TemplateSet{Payload: `{}`})
	require.Equal(t, 1, b.Count())

	b.Reset()
	assert.Zero(t, b.Count())
	assert.Zero(t, b.Len())
}

func TestComputeMessageSize_MatchesActualBuildSize(t *testing.T) {
	cfg := &ActionConfig{
		Index:  DynamicField{Static: "logs"},
		Parent: DynamicField{Static: "p1"},
	}
	tpl := TemplateSet{Payload: `{"m":1}`}

	estimate := computeMessageSize(cfg, tpl)

	var b Batch
	b.build(cfg, tpl)
	assert.GreaterOrEqual(t, estimate, b.Len(), "estimate must be a conservative upper bound")
}
