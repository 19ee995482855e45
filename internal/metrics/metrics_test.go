package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(ItemsTotal.WithLabelValues("insert"))

	ObserveRun("success", 2, 1, 0, 0)

	assert.Equal(t, before+2, testutil.ToFloat64(ItemsTotal.WithLabelValues("insert")))
	assert.Greater(t, testutil.ToFloat64(RunsTotal.WithLabelValues("success")), 0.0)
	assert.Greater(t, testutil.ToFloat64(LastRun), 0.0)
}

func TestError(t *testing.T) {
	before := testutil.ToFloat64(Errors.WithLabelValues("fetch"))
	Error("fetch")
	assert.Equal(t, before+1, testutil.ToFloat64(Errors.WithLabelValues("fetch")))
}

func TestRegistryGathers(t *testing.T) {
	Error("gather_check")

	families, err := Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "newsarticle_import_errors")
}

func TestPushMetrics_DisabledIsNoop(t *testing.T) {
	InitPusher("", "job")
	assert.NotPanics(t, PushMetrics)
}
