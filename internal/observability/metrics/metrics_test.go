package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecording(t *testing.T) {
	Init()
	Init()

	IncExport("xlsx", Result(nil))
	IncExport("xlsx", Result(errors.New("boom")))
	ObserveMaterialize("monthly", ResultSuccess, 11)
	AddSkipped("delete", "already_settled", 2)
	AddSkipped("delete", "already_settled", 0)
	IncTransition("", "cancel", ResultSuccess)
	ObserveSeriesOperation("update", "all", ResultSuccess, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(exportTotal.WithLabelValues("xlsx", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(exportTotal.WithLabelValues("xlsx", ResultError)))
	assert.Equal(t, 11.0, testutil.ToFloat64(occurrencesGenerated.WithLabelValues("monthly")))
	assert.Equal(t, 2.0, testutil.ToFloat64(seriesMembersSkipped.WithLabelValues("delete", "already_settled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(accountTransitions.WithLabelValues("unknown", "cancel", ResultSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(seriesOperationLatency))
}
