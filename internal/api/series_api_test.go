package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

type seriesCall struct {
	kind DocumentKind
	zone string
	w    Window
}

// stubMarket serves canned series keyed by document code and zone key.
type stubMarket struct {
	mu     sync.Mutex
	series map[string][]models.TimePoint
	errs   map[string]error
	calls  []seriesCall
}

func newStubMarket() *stubMarket {
	return &stubMarket{series: map[string][]models.TimePoint{}, errs: map[string]error{}}
}

func (s *stubMarket) set(kind DocumentKind, zone string, points []models.TimePoint) {
	s.series[kind.Code+"/"+zone] = points
}

func (s *stubMarket) FetchSeries(_ context.Context, kind DocumentKind, zone models.Zone, w Window) ([]models.TimePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, seriesCall{kind: kind, zone: zone.Key, w: w})
	key := kind.Code + "/" + zone.Key
	if err := s.errs[key]; err != nil {
		return nil, err
	}
	return s.series[key], nil
}

type stubWeather map[string]float64

func (s stubWeather) DailyMeans(context.Context, models.Country, Window) (map[string]float64, error) {
	return s, nil
}

// hourly builds n points starting at start, setting the price or usage field
// depending on kind.
func hourly(kind DocumentKind, start time.Time, values ...float64) []models.TimePoint {
	points := make([]models.TimePoint, len(values))
	for i, v := range values {
		points[i] = models.TimePoint{Timestamp: start.Add(time.Duration(i) * time.Hour), IntervalMinutes: 60}
		if kind == PriceDocument {
			points[i].Price = models.Float(v)
		} else {
			points[i].Usage = models.Float(v)
		}
	}
	return points
}

func dayWindow(t *testing.T, day string) Window {
	t.Helper()
	w, err := ParseWindow(day+"0000", day+"2300")
	require.NoError(t, err)
	return w
}

func quietLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func TestSeriesFetcher_SingleZone(t *testing.T) {
	w := dayWindow(t, "20240103")
	market := newStubMarket()
	market.set(PriceDocument, "FI", hourly(PriceDocument, w.Start, 1, 2, 3))
	market.set(UsageDocument, "FI", hourly(UsageDocument, w.Start, 100, 200, 300))

	logger, _ := quietLogger()
	fetcher := NewSeriesFetcher(DefaultCatalog(), market,
		WithWeather(stubWeather{"2024-01-03": -7.5}),
		WithFetcherLogger(logger))

	points, err := fetcher.Fetch(context.Background(), "Finland", w)
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i, p := range points {
		assert.Equal(t, float64(i+1), *p.Price)
		assert.Equal(t, float64(100*(i+1)), *p.Usage)
		require.NotNil(t, p.TemperatureMean)
		assert.Equal(t, -7.5, *p.TemperatureMean)
	}
	require.Len(t, market.calls, 2)
	assert.Equal(t, PriceDocument, market.calls[0].kind)
	assert.Equal(t, UsageDocument, market.calls[1].kind)
}

func TestSeriesFetcher_MultiZoneConcatenatesInZoneOrder(t *testing.T) {
	w := dayWindow(t, "20240103")
	market := newStubMarket()
	zones := []string{"SWE_1", "SWE_2", "SWE_3", "SWE_4"}
	for i, zone := range zones {
		base := float64(10 * (i + 1))
		market.set(PriceDocument, zone, hourly(PriceDocument, w.Start, base, base+1))
		market.set(UsageDocument, zone, hourly(UsageDocument, w.Start, base*100, base*100+1))
	}

	fetcher := NewSeriesFetcher(DefaultCatalog(), market)
	points, err := fetcher.Fetch(context.Background(), "Sweden", w)
	require.NoError(t, err)
	require.Len(t, points, 8)

	for i := range zones {
		assert.Equal(t, float64(10*(i+1)), *points[2*i].Price)
		assert.Equal(t, float64(1000*(i+1)), *points[2*i].Usage)
	}
	var order []string
	for _, c := range market.calls {
		order = append(order, c.kind.Code+"/"+c.zone)
	}
	assert.Equal(t, []string{
		"A44/SWE_1", "A65/SWE_1", "A44/SWE_2", "A65/SWE_2",
		"A44/SWE_3", "A65/SWE_3", "A44/SWE_4", "A65/SWE_4",
	}, order)
}

func TestSeriesFetcher_IndexPairingTruncatesAndWarns(t *testing.T) {
	w := dayWindow(t, "20240103")
	market := newStubMarket()
	market.set(PriceDocument, "FR", hourly(PriceDocument, w.Start, 1, 2, 3, 4))
	market.set(UsageDocument, "FR", hourly(UsageDocument, w.Start, 10, 20))

	logger, hook := quietLogger()
	fetcher := NewSeriesFetcher(DefaultCatalog(), market, WithFetcherLogger(logger))
	points, err := fetcher.Fetch(context.Background(), "France", w)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
			assert.Equal(t, "FR", entry.Data["zone"])
		}
	}
	assert.True(t, warned, "expected a warning about mismatched series")
}

func TestSeriesFetcher_TimestampPairing(t *testing.T) {
	w := dayWindow(t, "20240103")
	market := newStubMarket()
	market.set(PriceDocument, "FR", hourly(PriceDocument, w.Start, 1, 2, 3, 4))
	// usage starts an hour later and is missing the last hour
	market.set(UsageDocument, "FR", hourly(UsageDocument, w.Start.Add(time.Hour), 20, 30))

	fetcher := NewSeriesFetcher(DefaultCatalog(), market, WithPairing(PairByTimestamp))
	points, err := fetcher.Fetch(context.Background(), "France", w)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, w.Start.Add(time.Hour), points[0].Timestamp)
	assert.Equal(t, 2.0, *points[0].Price)
	assert.Equal(t, 20.0, *points[0].Usage)
	assert.Equal(t, 3.0, *points[1].Price)
	assert.Equal(t, 30.0, *points[1].Usage)
}

func TestSeriesFetcher_DropsPointsOutsideWindow(t *testing.T) {
	w := dayWindow(t, "20240103")
	market := newStubMarket()
	start := w.Start.Add(-2 * time.Hour)
	values := make([]float64, 28)
	market.set(PriceDocument, "FI", hourly(PriceDocument, start, values...))
	market.set(UsageDocument, "FI", hourly(UsageDocument, start, values...))

	fetcher := NewSeriesFetcher(DefaultCatalog(), market)
	points, err := fetcher.Fetch(context.Background(), "Finland", w)
	require.NoError(t, err)
	require.Len(t, points, 24)
	assert.Equal(t, w.Start, points[0].Timestamp)
	assert.Equal(t, w.End, points[23].Timestamp)
}

func TestSeriesFetcher_ValidationBeforeNetwork(t *testing.T) {
	market := newStubMarket()
	fetcher := NewSeriesFetcher(DefaultCatalog(), market)

	_, err := fetcher.Fetch(context.Background(), "Atlantis", dayWindow(t, "20240103"))
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "country", validationErr.Field)

	_, err = fetcher.FetchPeriods(context.Background(), "Finland", "202401030000", "2024")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = fetcher.FetchPeriods(context.Background(), "Finland", "202401040000", "202401030000")
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.Empty(t, market.calls)
}

func TestSeriesFetcher_FailedZoneFailsCall(t *testing.T) {
	w := dayWindow(t, "20240103")
	market := newStubMarket()
	for _, zone := range []string{"SWE_1", "SWE_2", "SWE_3", "SWE_4"} {
		market.set(PriceDocument, zone, hourly(PriceDocument, w.Start, 1))
		market.set(UsageDocument, zone, hourly(UsageDocument, w.Start, 1))
	}
	market.errs["A65/SWE_3"] = &FetchError{Purpose: PurposeUsage, Zone: "SWE_3", StatusCode: 503, Err: ErrUpstreamStatus}

	fetcher := NewSeriesFetcher(DefaultCatalog(), market)
	points, err := fetcher.Fetch(context.Background(), "Sweden", w)
	assert.Nil(t, points)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "SWE_3", fetchErr.Zone)
	assert.Equal(t, 503, fetchErr.StatusCode)
}

func TestSeriesFetcher_FetchRangeChunks(t *testing.T) {
	market := newStubMarket()
	fetcher := NewSeriesFetcher(DefaultCatalog(), market)

	w, err := ParseWindow("202401010000", "202412312300")
	require.NoError(t, err)
	_, err = fetcher.FetchRange(context.Background(), "Germany", w)
	require.NoError(t, err)

	// price + usage per chunk
	require.Len(t, market.calls, 8)
	assert.Equal(t, "202401010000", FormatPeriod(market.calls[0].w.Start))
	assert.Equal(t, "202403312359", FormatPeriod(market.calls[0].w.End))
	assert.Equal(t, "202410010000", FormatPeriod(market.calls[7].w.Start))
	assert.Equal(t, "202412312300", FormatPeriod(market.calls[7].w.End))
}

func TestParsePairing(t *testing.T) {
	p, err := ParsePairing("")
	require.NoError(t, err)
	assert.Equal(t, PairByIndex, p)

	p, err = ParsePairing("timestamp")
	require.NoError(t, err)
	assert.Equal(t, PairByTimestamp, p)

	_, err = ParsePairing("nearest")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

// TestSeriesFetcher_EndToEnd drives the real market and weather clients
// against fake upstream servers.
func TestSeriesFetcher_EndToEnd(t *testing.T) {
	w := dayWindow(t, "20240103")
	hours := make([]float64, 24)
	for i := range hours {
		hours[i] = float64(i)
	}

	market := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		kind := PriceDocument
		if r.URL.Query().Get("documentType") == UsageDocument.Code {
			kind = UsageDocument
		}
		// the upstream starts one hour early
		fmt.Fprint(rw, marketXML(kind, w.Start.Add(-time.Hour), "PT60M", append([]float64{-1}, hours...)))
	}))
	defer market.Close()

	weather := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"daily":{"time":["2024-01-03"],"temperature_2m_min":[-10],"temperature_2m_max":[-4]}}`)
	}))
	defer weather.Close()

	transport := NewTransport()
	weatherClient := NewWeatherClient(weather.URL, weather.URL, transport).
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	fetcher := NewSeriesFetcher(DefaultCatalog(),
		NewMarketClient(market.URL, "key", transport),
		WithWeather(weatherClient))

	points, err := fetcher.Fetch(context.Background(), "Finland", w)
	require.NoError(t, err)
	require.Len(t, points, 24)

	for i, p := range points {
		assert.Equal(t, w.Start.Add(time.Duration(i)*time.Hour), p.Timestamp)
		assert.Equal(t, float64(i), *p.Price)
		assert.Equal(t, float64(i), *p.Usage)
		if p.Timestamp.In(mustLoad(t, "Europe/Helsinki")).Day() == 3 {
			require.NotNil(t, p.TemperatureMean, "hour %d", i)
			assert.Equal(t, -7.0, *p.TemperatureMean)
		} else {
			assert.Nil(t, p.TemperatureMean, "hour %d", i)
		}
	}
}

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}
