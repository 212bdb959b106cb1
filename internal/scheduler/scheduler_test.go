package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/elecview/internal/aggregate"
	"github.com/tejusbharadwaj/elecview/internal/chart"
	"github.com/tejusbharadwaj/elecview/internal/navigator"
)

type stubCharter struct {
	mu       sync.Mutex
	requests []chart.Request
	results  map[string]*chart.Result
}

func (s *stubCharter) Chart(ctx context.Context, req chart.Request) (*chart.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	result, ok := s.results[req.Country]
	if !ok {
		return nil, errors.New("upstream down")
	}
	return result, nil
}

func dayResult(prices ...float64) *chart.Result {
	var buckets []aggregate.Bucket
	for _, p := range prices {
		buckets = append(buckets, aggregate.Bucket{Price: p, Usage: 100, Samples: 1})
	}
	// A trailing hour without data must not drag the mean down.
	buckets = append(buckets, aggregate.Bucket{})
	return &chart.Result{View: navigator.Day, Buckets: buckets}
}

func TestScheduler_Refresh(t *testing.T) {
	charts := &stubCharter{results: map[string]*chart.Result{
		"Finland": dayResult(10, 20, 30),
	}}
	logger, hook := test.NewNullLogger()
	gauges := NewGauges()
	require.NoError(t, gauges.Register(prometheus.NewRegistry()))

	s := NewScheduler(context.Background(), charts, []string{"Finland", "Sweden"}, gauges, logger)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	assert.Equal(t, 1, s.Refresh(context.Background()))

	assert.Equal(t, 20.0, testutil.ToFloat64(gauges.MeanPrice.WithLabelValues("Finland")))
	assert.Equal(t, 300.0, testutil.ToFloat64(gauges.TotalUsage.WithLabelValues("Finland")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(gauges.LastSuccess.WithLabelValues("Finland")))

	require.Len(t, charts.requests, 2)
	assert.Equal(t, navigator.Day, charts.requests[0].View)
	assert.True(t, charts.requests[0].Anchor.IsZero(), "refresh charts today")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Sweden", entry.Data["country"])
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewScheduler(context.Background(), &stubCharter{}, nil, nil, logger)
	assert.Error(t, s.Start("every now and then"))

	require.NoError(t, s.Start("@hourly"))
	s.Stop()
}
