package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

// SeriesSource returns one document kind for one market zone.
type SeriesSource interface {
	FetchSeries(ctx context.Context, kind DocumentKind, zone models.Zone, w Window) ([]models.TimePoint, error)
}

// TemperatureSource returns date -> mean temperature for a country.
type TemperatureSource interface {
	DailyMeans(ctx context.Context, country models.Country, w Window) (map[string]float64, error)
}

// Pairing selects how price and usage points of a zone are merged.
type Pairing string

const (
	// PairByIndex zips the two series position by position. It assumes both
	// documents share start and resolution.
	PairByIndex Pairing = "index"
	// PairByTimestamp only merges points with equal timestamps.
	PairByTimestamp Pairing = "timestamp"
)

// ParsePairing accepts "index", "timestamp" or "" (index).
func ParsePairing(s string) (Pairing, error) {
	switch Pairing(s) {
	case "", PairByIndex:
		return PairByIndex, nil
	case PairByTimestamp:
		return PairByTimestamp, nil
	default:
		return "", fmt.Errorf("%w: pairing %q", ErrInvalidRequest, s)
	}
}

// SeriesFetcher produces merged price/usage/temperature points for a
// country and window. It holds no state between calls: no cache, no retry.
type SeriesFetcher struct {
	catalog *Catalog
	market  SeriesSource
	weather TemperatureSource
	pairing Pairing
	logger  *logrus.Logger
}

// FetcherOption configures a SeriesFetcher.
type FetcherOption func(*SeriesFetcher)

// WithWeather joins daily mean temperatures onto fetched points.
func WithWeather(src TemperatureSource) FetcherOption {
	return func(f *SeriesFetcher) {
		f.weather = src
	}
}

// WithPairing overrides the default index pairing.
func WithPairing(p Pairing) FetcherOption {
	return func(f *SeriesFetcher) {
		if p != "" {
			f.pairing = p
		}
	}
}

// WithFetcherLogger injects a logger.
func WithFetcherLogger(l *logrus.Logger) FetcherOption {
	return func(f *SeriesFetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func NewSeriesFetcher(catalog *Catalog, market SeriesSource, opts ...FetcherOption) *SeriesFetcher {
	f := &SeriesFetcher{
		catalog: catalog,
		market:  market,
		pairing: PairByIndex,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Catalog returns the country table the fetcher resolves against.
func (f *SeriesFetcher) Catalog() *Catalog {
	return f.catalog
}

// FetchPeriods is Fetch with yyyyMMddHHmm bounds.
func (f *SeriesFetcher) FetchPeriods(ctx context.Context, country, periodStart, periodEnd string) ([]models.TimePoint, error) {
	w, err := ParseWindow(periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, country, w)
}

// Fetch retrieves price and usage for every zone of the country, in zone
// order, pairs them per zone and concatenates the zones. Temperatures are
// joined by calendar date when a weather source is configured. Points outside
// the window are dropped. Any failed request fails the whole call.
func (f *SeriesFetcher) Fetch(ctx context.Context, countryName string, w Window) ([]models.TimePoint, error) {
	country, err := f.catalog.Lookup(countryName)
	if err != nil {
		return nil, err
	}
	if w, err = NewWindow(w.Start, w.End); err != nil {
		return nil, err
	}

	var merged []models.TimePoint
	for _, zone := range country.Zones {
		price, err := f.market.FetchSeries(ctx, PriceDocument, zone, w)
		if err != nil {
			return nil, err
		}
		usage, err := f.market.FetchSeries(ctx, UsageDocument, zone, w)
		if err != nil {
			return nil, err
		}
		merged = append(merged, f.pair(zone, price, usage)...)
	}

	if f.weather != nil && country.HasWeather() {
		means, err := f.weather.DailyMeans(ctx, country, w)
		if err != nil {
			return nil, err
		}
		loc, err := time.LoadLocation(country.Timezone)
		if err != nil {
			return nil, &ValidationError{Field: "timezone", Reason: err.Error()}
		}
		joinTemperatures(merged, means, loc)
	}

	result := FilterWindow(merged, w)

	f.logger.WithFields(logrus.Fields{
		"country": country.Name,
		"zones":   len(country.Zones),
		"window":  w.String(),
		"points":  len(result),
		"dropped": len(merged) - len(result),
	}).Debug("Fetched series")

	return result, nil
}

// FetchRange fetches long windows in chunks of at most three months and
// concatenates the results.
func (f *SeriesFetcher) FetchRange(ctx context.Context, country string, w Window) ([]models.TimePoint, error) {
	if _, err := NewWindow(w.Start, w.End); err != nil {
		return nil, err
	}
	var all []models.TimePoint
	for _, chunk := range SplitYearlyRange(w) {
		points, err := f.Fetch(ctx, country, chunk)
		if err != nil {
			return nil, err
		}
		all = append(all, points...)
	}
	return all, nil
}

func (f *SeriesFetcher) pair(zone models.Zone, price, usage []models.TimePoint) []models.TimePoint {
	if f.pairing == PairByTimestamp {
		return pairByTimestamp(price, usage)
	}

	n := len(price)
	if len(usage) < n {
		n = len(usage)
	}
	out := make([]models.TimePoint, n)
	misaligned := 0
	for i := 0; i < n; i++ {
		out[i] = price[i]
		out[i].Usage = usage[i].Usage
		if !price[i].Timestamp.Equal(usage[i].Timestamp) {
			misaligned++
		}
	}
	if misaligned > 0 || len(price) != len(usage) {
		f.logger.WithFields(logrus.Fields{
			"zone":       zone.Key,
			"prices":     len(price),
			"usages":     len(usage),
			"misaligned": misaligned,
		}).Warn("Price and usage series do not line up")
	}
	return out
}

func pairByTimestamp(price, usage []models.TimePoint) []models.TimePoint {
	byTime := make(map[int64]*float64, len(usage))
	for _, u := range usage {
		byTime[u.Timestamp.Unix()] = u.Usage
	}
	out := make([]models.TimePoint, 0, len(price))
	for _, p := range price {
		u, ok := byTime[p.Timestamp.Unix()]
		if !ok {
			continue
		}
		p.Usage = u
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func joinTemperatures(points []models.TimePoint, means map[string]float64, loc *time.Location) {
	for i := range points {
		if mean, ok := means[points[i].Timestamp.In(loc).Format(DateLayout)]; ok {
			points[i].TemperatureMean = models.Float(mean)
		}
	}
}

// FilterWindow keeps the points whose timestamp lies within the closed
// window. The market API has been seen returning a few hours outside the
// requested bounds.
func FilterWindow(points []models.TimePoint, w Window) []models.TimePoint {
	out := make([]models.TimePoint, 0, len(points))
	for _, p := range points {
		if w.Contains(p.Timestamp) {
			out = append(out, p)
		}
	}
	return out
}
