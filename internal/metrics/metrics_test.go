package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolportal/internal/remote"
	"schoolportal/internal/remote/memory"
)

func TestInstrumentCountsCalls(t *testing.T) {
	m := New(prometheus.NewRegistry())
	mem := memory.New(nil)
	b := Instrument(mem, m)
	ctx := context.Background()

	_, err := b.Insert(ctx, "exams", remote.Row{"name": "Unit 1"})
	require.NoError(t, err)
	mem.FailOn("select", "exams", errors.New("down"))
	_, err = b.Select(ctx, "exams", remote.Query{})
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, m.BackendCalls.WithLabelValues("insert", "exams", "ok")))
	assert.Equal(t, 1.0, counterValue(t, m.BackendCalls.WithLabelValues("select", "exams", "error")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Compensated("create_identity", nil)
	m.Login("ok")
	m.Dispatched("LOGIN")

	mem := memory.New(nil)
	assert.Same(t, remote.Backend(mem), Instrument(mem, nil))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}
