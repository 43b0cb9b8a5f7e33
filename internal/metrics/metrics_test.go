package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/annobatch/internal/models"
)

func TestStatusesPreinitialized(t *testing.T) {
	m := New("gff")
	assert.Equal(t, len(models.AllStatuses()), testutil.CollectAndCount(m.items))
	assert.Zero(t, testutil.ToFloat64(m.items.WithLabelValues("gff", "timeout")))
}

func TestObserverCounts(t *testing.T) {
	m := New("gff")

	m.ItemStarted()
	m.ItemStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inFlight))

	m.ItemFinished(models.TaskResult{Status: models.StatusSuccess, Duration: 2 * time.Second})
	m.ItemFinished(models.TaskResult{Status: models.StatusTimeout, Duration: 300 * time.Second})

	assert.Zero(t, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("gff", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("gff", "timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.itemDuration))
}

func TestObserveSummary(t *testing.T) {
	m := New("gff")
	results := []models.TaskResult{
		{Item: models.WorkItem{Organism: "a"}, Status: models.StatusFailed},
		{Item: models.WorkItem{Organism: "b"}, Status: models.StatusSuccess},
		{Item: models.WorkItem{Organism: "c"}, Status: models.StatusError},
	}
	end := time.Unix(1714564800, 0)
	s := models.NewTaskSummary(3, 5, end.Add(-time.Minute), end, results)
	m.ObserveSummary(s, 0.5)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.partitionItems.WithLabelValues("gff", "3")))
	assert.InDelta(t, 0.667, testutil.ToFloat64(m.failureRate.WithLabelValues("gff", "3")), 0.001)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breached.WithLabelValues("gff", "3")))
	assert.Equal(t, 1714564800.0, testutil.ToFloat64(m.lastCompletion.WithLabelValues("gff", "3")))
}

func TestTextfilePath(t *testing.T) {
	assert.Equal(t, "/m/gff_7.prom", TextfilePath("/m/{stage}_{task_id}.prom", "gff", 7))
	assert.Equal(t, "/m/default_0.prom", TextfilePath("/m/{stage}_{task_id}.prom", "", 0))
	assert.Equal(t, "/m/fixed.prom", TextfilePath("/m/fixed.prom", "gff", 1))
}

func TestWriteTextfile(t *testing.T) {
	m := New("gff")
	m.ItemStarted()
	m.ItemFinished(models.TaskResult{Status: models.StatusNotFound, Duration: time.Second})

	path := filepath.Join(t.TempDir(), "nested", "annobatch.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `annobatch_items_total{stage="gff",status="not_found"} 1`)
	assert.Contains(t, out, "# TYPE annobatch_item_duration_seconds histogram")
	assert.True(t, strings.Contains(out, "annobatch_items_in_flight 0"))

	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP annobatch_items_in_flight Work items currently running.
# TYPE annobatch_items_in_flight gauge
annobatch_items_in_flight 0
`), "annobatch_items_in_flight"))
}
