package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Replays a real Open-Meteo archive call. Skips when the cassette is absent
// and RECORD_CASSETTES != 1.
func TestWeatherClient_DailyMeans_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "open_meteo_archive")
	if _, err := os.Stat(cassette + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	r, err := recorder.New(cassette)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	transport := NewTransport(WithHTTPClient(&http.Client{Transport: r}))
	client := NewWeatherClient("", "", transport).
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })

	means, err := client.DailyMeans(context.Background(), helsinki, Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, means, "2024-01-01")
	assert.Contains(t, means, "2024-01-07")
	for date, mean := range means {
		assert.Greater(t, mean, -60.0, date)
		assert.Less(t, mean, 40.0, date)
	}
}
