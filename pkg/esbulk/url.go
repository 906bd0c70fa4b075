package esbulk

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// composeServerURL canonicalizes one configured server string into a full
// base URL: scheme, host, port, trailing slash. Mirrors the scheme/port
// inference rsyslog's omelasticsearch.c performs at config-check time.
func composeServerURL(server string, useHTTPS bool, defaultPort int) string {
	server = strings.TrimSuffix(server, "/")

	if !strings.Contains(server, "://") {
		scheme := "http"
		if useHTTPS {
			scheme = "https"
		}
		server = scheme + "://" + server
	}

	u, err := url.Parse(server)
	if err != nil {
		// Server strings are not validated elsewhere; an unparseable one
		// is returned as given, with a trailing slash added.
		if !strings.HasSuffix(server, "/") {
			server += "/"
		}
		return server
	}

	if u.Port() == "" {
		u.Host = u.Host + ":" + strconv.Itoa(defaultPort)
	}

	base := u.String()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// requestURLParams carries the optional query parameters for a per-request
// URL (spec.md §4.1); zero values are omitted.
type requestURLParams struct {
	pipeline string
	parent   string
	timeout  int // ms, 0 = omit
}

// buildDocumentURL constructs the per-document URL for non-bulk mode:
// <base>/<index>/<type-or-"_doc">[?pipeline=…][&timeout=…][&parent=…].
func buildDocumentURL(base, index, docType string, p requestURLParams) string {
	if docType == "" {
		docType = "_doc"
	}
	u := fmt.Sprintf("%s%s/%s", base, index, docType)
	return appendQuery(u, p)
}

// buildBulkURL constructs the URL for bulk mode: <base>_bulk[?timeout=…].
func buildBulkURL(base string, p requestURLParams) string {
	u := base + "_bulk"
	return appendQuery(u, requestURLParams{timeout: p.timeout})
}

// appendQuery preserves the query-separator law of spec.md §8: exactly one
// "?" and only "&" thereafter.
func appendQuery(u string, p requestURLParams) string {
	sep := "?"
	add := func(key, val string) {
		u += sep + key + "=" + url.QueryEscape(val)
		sep = "&"
	}
	if p.pipeline != "" {
		add("pipeline", p.pipeline)
	}
	if p.timeout > 0 {
		add("timeout", strconv.Itoa(p.timeout)+"ms")
	}
	if p.parent != "" {
		add("parent", p.parent)
	}
	return u
}
