package metrics_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubtracker/ackscan/pkg/metrics"
)

func TestRecordResult(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.RecordResult("xml", metrics.VerdictAcknowledged)
	reg.RecordResult("xml", metrics.VerdictAcknowledged)
	reg.RecordResult("pdf", metrics.VerdictNotAcknowledged)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.RecordsTotal.WithLabelValues("xml", metrics.VerdictAcknowledged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RecordsTotal.WithLabelValues("pdf", metrics.VerdictNotAcknowledged)))
}

func TestRecordExtraction(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.RecordExtraction("pdf", 20*time.Millisecond, nil)
	reg.RecordExtraction("pdf", 30*time.Millisecond, errors.New("broken"))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ExtractionErrorsTotal.WithLabelValues("pdf")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.ExtractionSeconds))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := metrics.NewRegistry()
	b := metrics.NewRegistry()
	a.RecordPublishError()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PublishErrorsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PublishErrorsTotal))
	assert.Same(t, metrics.Default(), metrics.Default())
}

func TestWriteTextfile(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.RecordResult("none", metrics.VerdictNoFulltext)
	reg.RecordPublishError()

	path := filepath.Join(t.TempDir(), "ackscan.prom")
	require.NoError(t, reg.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ackscan_records_total{format="none",verdict="no_fulltext"} 1`)
	assert.Contains(t, string(data), "ackscan_publish_errors_total 1")
}
