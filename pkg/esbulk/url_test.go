package esbulk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeServerURL_Idempotence(t *testing.T) {
	cases := []string{"http://h", "http://h:9200", "h", "h:9200"}
	for _, c := range cases {
		assert.Equal(t, "http://h:9200/", composeServerURL(c, false, 9200), "input %q", c)
	}
}

func TestComposeServerURL_HTTPS(t *testing.T) {
	assert.Equal(t, "https://h:9243/", composeServerURL("h", true, 9243))
}

func TestComposeServerURL_ExplicitSchemeWinsOverUseHTTPS(t *testing.T) {
	assert.Equal(t, "http://h:9200/", composeServerURL("http://h", true, 9200))
}

func TestBuildBulkURL(t *testing.T) {
	assert.Equal(t, "http://h:9200/_bulk", buildBulkURL("http://h:9200/", requestURLParams{}))
	assert.Equal(t, "http://h:9200/_bulk?timeout=500ms", buildBulkURL("http://h:9200/", requestURLParams{timeout: 500}))
}

func TestBuildDocumentURL_DefaultsType(t *testing.T) {
	url := buildDocumentURL("http://h:9200/", "logs", "", requestURLParams{})
	assert.Equal(t, "http://h:9200/logs/_doc", url)
}

func TestBuildDocumentURL_QuerySeparatorLaw(t *testing.T) {
	url := buildDocumentURL("http://h:9200/", "logs", "_doc", requestURLParams{
		pipeline: "p1",
		parent:   "parent1",
		timeout:  1000,
	})

	assert.Equal(t, 1, countByte(url, '?'))
	qIdx := indexByte(url, '?')
	assert.Zero(t, countByte(url[:qIdx], '&'))
	assert.Equal(t, "http://h:9200/logs/_doc?pipeline=p1&timeout=1000ms&parent=parent1", url)
}

func countByte(s string, c byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			n++
		}
	}
	return n
}
