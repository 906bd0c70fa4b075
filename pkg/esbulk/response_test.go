package esbulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Success(t *testing.T) {
	assert.Equal(t, "success", classify("index", itemResult{Status: 200}, true, WriteIndex))
	assert.Equal(t, "success", classify("create", itemResult{Status: 201}, true, WriteCreate))
}

func TestClassify_DuplicateOnlyWhenEffectivelyCreate(t *testing.T) {
	assert.Equal(t, "duplicate", classify("create", itemResult{Status: 409}, true, WriteCreate))
	assert.Equal(t, "duplicate", classify("index", itemResult{Status: 409}, true, WriteIndex))
	assert.NotEqual(t, "duplicate", classify("index", itemResult{Status: 409}, true, WriteCreate))
}

func TestClassify_BadArgument(t *testing.T) {
	assert.Equal(t, "badargument", classify("index", itemResult{Status: 400}, true, WriteIndex))
}

func TestClassify_BulkRejection(t *testing.T) {
	r := itemResult{Status: 429, Error: &itemError{Type: "es_rejected_execution_exception"}}
	assert.Equal(t, "bulkrejection", classify("index", r, true, WriteIndex))
}

func TestClassify_Other(t *testing.T) {
	r := itemResult{Status: 500, Error: &itemError{Type: "some_other_exception"}}
	assert.Equal(t, "other", classify("index", r, true, WriteIndex))
}

func TestClassify_BadWhenMetaUnparseable(t *testing.T) {
	assert.Equal(t, "bad", classify("index", itemResult{Status: 200}, false, WriteIndex))
}

func TestClassify_BadWhenOpNameMissing(t *testing.T) {
	assert.Equal(t, "bad", classify("", itemResult{Status: 200}, true, WriteIndex))
}

func TestClassify_ExhaustiveOverStatusFamilies(t *testing.T) {
	statuses := []int{100, 199, 200, 201, 204, 400, 409, 429, 500, 503}
	for _, s := range statuses {
		for _, op := range []string{"index", "create"} {
			for _, hasErr := range []bool{false, true} {
				r := itemResult{Status: s}
				if hasErr {
					r.Error = &itemError{Type: "x"}
				}
				class := classify(op, r, true, WriteIndex)
				assert.Contains(t, []string{"success", "duplicate", "badargument", "bulkrejection", "other", "bad"}, class)
			}
		}
	}
}

func TestRequestPairs_SplitsNDJSONIntoPairs(t *testing.T) {
	body := []byte("{\"index\":{}}\n{\"m\":1}\n{\"index\":{}}\n{\"m\":2}\n")
	pairs := requestPairs(body)
	assert.Len(t, pairs, 2)
	assert.Equal(t, "{\"index\":{}}\n{\"m\":1}\n", pairs[0])
	assert.Equal(t, "{\"index\":{}}\n{\"m\":2}\n", pairs[1])
}

func TestSplitPair(t *testing.T) {
	meta, source := splitPair("{\"index\":{}}\n{\"m\":1}\n")
	assert.Equal(t, `{"index":{}}`, meta)
	assert.Equal(t, `{"m":1}`, source)
}

func TestExtractItem_PrefersCreateThenIndex(t *testing.T) {
	opName, result, ok := extractItem([]byte(`{"create":{"status":201,"_id":"a"}}`))
	assert.True(t, ok)
	assert.Equal(t, "create", opName)
	assert.Equal(t, 201, result.Status)

	opName, _, ok = extractItem([]byte(`{"index":{"status":200}}`))
	assert.True(t, ok)
	assert.Equal(t, "index", opName)
}

func TestExtractItem_UnknownShapeIsNotOK(t *testing.T) {
	_, _, ok := extractItem([]byte(`{"delete":{"status":200}}`))
	assert.False(t, ok)
}
