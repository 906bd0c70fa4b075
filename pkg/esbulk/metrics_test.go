package esbulk

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func testCounterValue(c prometheus.Counter) float64 {
	return testutil.ToFloat64(c)
}

func TestNewStats_AllCountersStartAtZero(t *testing.T) {
	s := NewStats()
	for _, c := range s.Collectors() {
		assert.Zero(t, testutil.ToFloat64(c.(prometheus.Counter)))
	}
}

func TestNewStats_CollectorsCoverEveryField(t *testing.T) {
	s := NewStats()
	assert.Len(t, s.Collectors(), 12)
}
