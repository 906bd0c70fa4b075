package esbulk

import "github.com/prometheus/client_golang/prometheus"

// Stats holds the statistics counters of spec.md §6 as Prometheus
// counters in the "esbulk" namespace. Grounded on the prometheus.Counter
// fields of internal/sinks.ElasticsearchSink, generalized to cover every
// counter the spec names rather than a handful of ad hoc ones.
type Stats struct {
	Submitted prometheus.Counter

	FailedHTTP         prometheus.Counter
	FailedHTTPRequests prometheus.Counter
	FailedCheckConn    prometheus.Counter
	FailedES           prometheus.Counter

	ResponseSuccess       prometheus.Counter
	ResponseBad           prometheus.Counter
	ResponseDuplicate     prometheus.Counter
	ResponseBadArgument   prometheus.Counter
	ResponseBulkRejection prometheus.Counter
	ResponseOther         prometheus.Counter

	Rebinds prometheus.Counter
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "esbulk",
		Name:      name,
		Help:      help,
	})
}

// NewStats constructs an unregistered Stats. Callers that want the
// counters exposed via a /metrics endpoint register them with
// prometheus.MustRegister (or a dedicated Registerer) themselves — esbulk
// does not assume a global registry.
func NewStats() *Stats {
	return &Stats{
		Submitted:             counter("submitted_total", "messages submitted for indexing"),
		FailedHTTP:             counter("failed_http_total", "messages failed due to HTTP transport errors"),
		FailedHTTPRequests:     counter("failed_httprequests_total", "HTTP requests that failed at the transport level"),
		FailedCheckConn:        counter("failed_checkconn_total", "health-check probes that failed"),
		FailedES:               counter("failed_es_total", "replies that failed to parse or indicated a gross failure"),
		ResponseSuccess:        counter("response_success_total", "bulk items that indexed successfully"),
		ResponseBad:            counter("response_bad_total", "bulk items with an unclassifiable response"),
		ResponseDuplicate:      counter("response_duplicate_total", "bulk items rejected as duplicates (409)"),
		ResponseBadArgument:    counter("response_badargument_total", "bulk items rejected as bad arguments (400)"),
		ResponseBulkRejection:  counter("response_bulkrejection_total", "bulk items rejected due to bulk queue pressure (429)"),
		ResponseOther:          counter("response_other_total", "bulk items rejected for any other reason"),
		Rebinds:                counter("rebinds_total", "forced connection rebinds"),
	}
}

// Collectors returns every counter for bulk registration.
func (s *Stats) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.Submitted, s.FailedHTTP, s.FailedHTTPRequests, s.FailedCheckConn, s.FailedES,
		s.ResponseSuccess, s.ResponseBad, s.ResponseDuplicate, s.ResponseBadArgument,
		s.ResponseBulkRejection, s.ResponseOther, s.Rebinds,
	}
}
