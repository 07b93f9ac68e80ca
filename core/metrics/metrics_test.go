package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"moodle-sync/core/reconcile"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func finishedReport(kind reconcile.Kind, created, errs int) *reconcile.Report {
	r := reconcile.NewReport(kind, false)
	r.Summary.Created = created
	for i := 0; i < errs; i++ {
		r.Fail(zap.NewNop(), "key", reconcile.ActionCreate, errors.New("boom"))
	}
	return r.Finish()
}

func TestMetrics_Publish(t *testing.T) {
	m := New(Config{Namespace: "moodle_sync"})
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, finishedReport(reconcile.KindUsers, 3, 0)))
	require.NoError(t, m.Publish(ctx, finishedReport(reconcile.KindUsers, 2, 1)))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("users", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("users", StatusRecordErrors)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.records.WithLabelValues("users", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("users", "errors")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastErrors.WithLabelValues("users")))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("users")), 0.0)

	require.NoError(t, m.Failed(reconcile.KindCourses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("courses", StatusFailed)))
}

func TestMetrics_Textfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moodle_sync.prom")
	m := New(Config{Namespace: "moodle_sync", TextfilePath: path})

	require.NoError(t, m.Publish(context.Background(), finishedReport(reconcile.KindCourses, 1, 0)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `moodle_sync_runs_total{kind="courses",status="ok"} 1`)
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Publish(context.Background(), finishedReport(reconcile.KindUsers, 1, 0)))
	assert.NoError(t, m.Failed(reconcile.KindUsers))
	assert.NotNil(t, m.Handler())
}
