package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

const (
	DefaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	DateLayout = "2006-01-02"
)

// WeatherClient reads daily temperatures from Open-Meteo. The archive does
// not serve the current day, so today comes from the forecast endpoint.
type WeatherClient struct {
	archiveURL  string
	forecastURL string
	transport   *Transport
	now         func() time.Time
}

// NewWeatherClient returns a client for the given endpoints; empty URLs fall
// back to the public Open-Meteo ones.
func NewWeatherClient(archiveURL, forecastURL string, transport *Transport) *WeatherClient {
	if archiveURL == "" {
		archiveURL = DefaultArchiveURL
	}
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}
	if transport == nil {
		transport = NewTransport()
	}
	return &WeatherClient{
		archiveURL:  archiveURL,
		forecastURL: forecastURL,
		transport:   transport,
		now:         time.Now,
	}
}

// WithClock replaces the clock used to decide what "today" is.
func (c *WeatherClient) WithClock(now func() time.Time) *WeatherClient {
	c.now = now
	return c
}

// DailyMeans returns calendar date (in the country's timezone) to mean
// temperature for every day of the window the endpoints could serve. Days up
// to yesterday come from the archive, today from the forecast.
func (c *WeatherClient) DailyMeans(ctx context.Context, country models.Country, w Window) (map[string]float64, error) {
	loc, err := time.LoadLocation(country.Timezone)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: err.Error()}
	}

	first := midnight(w.Start.In(loc))
	last := midnight(w.End.In(loc))
	today := midnight(c.now().In(loc))
	yesterday := today.AddDate(0, 0, -1)

	means := make(map[string]float64)

	archiveEnd := last
	if archiveEnd.After(yesterday) {
		archiveEnd = yesterday
	}
	if !first.After(archiveEnd) {
		query := c.baseQuery(country)
		query.Set("start_date", first.Format(DateLayout))
		query.Set("end_date", archiveEnd.Format(DateLayout))
		if err := c.fetchInto(ctx, c.archiveURL, query, means); err != nil {
			return nil, err
		}
	}

	if !today.Before(first) && !today.After(last) {
		query := c.baseQuery(country)
		query.Set("forecast_days", "1")
		if err := c.fetchInto(ctx, c.forecastURL, query, means); err != nil {
			return nil, err
		}
	}

	return means, nil
}

func (c *WeatherClient) baseQuery(country models.Country) url.Values {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(country.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(country.Longitude, 'f', -1, 64))
	query.Set("timezone", country.Timezone)
	query["daily"] = []string{"temperature_2m_min", "temperature_2m_max"}
	return query
}

func (c *WeatherClient) fetchInto(ctx context.Context, endpoint string, query url.Values, dest map[string]float64) error {
	body, err := c.transport.Get(ctx, PurposeTemperature, "", endpoint+"?"+query.Encode(), "application/json")
	if err != nil {
		return err
	}
	means, err := ParseDailyTemperatures(body)
	if err != nil {
		return err
	}
	for date, mean := range means {
		dest[date] = mean
	}
	return nil
}

type dailyResponse struct {
	Daily *struct {
		Time []string   `json:"time"`
		Min  []*float64 `json:"temperature_2m_min"`
		Max  []*float64 `json:"temperature_2m_max"`
	} `json:"daily"`
}

// ParseDailyTemperatures reads the parallel daily arrays of an Open-Meteo
// response into date -> (min+max)/2. Days with a null reading are left out.
func ParseDailyTemperatures(body []byte) (map[string]float64, error) {
	var resp dailyResponse
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&resp); err != nil {
		return nil, parseErrorf(PurposeTemperature, err, "decode weather response")
	}
	if resp.Daily == nil {
		return nil, parseErrorf(PurposeTemperature, nil, "response has no daily section")
	}
	daily := resp.Daily
	if len(daily.Min) != len(daily.Time) || len(daily.Max) != len(daily.Time) {
		return nil, parseErrorf(PurposeTemperature, nil, "daily arrays differ in length (time=%d min=%d max=%d)",
			len(daily.Time), len(daily.Min), len(daily.Max))
	}

	means := make(map[string]float64, len(daily.Time))
	for i, date := range daily.Time {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, parseErrorf(PurposeTemperature, err, "daily time %q", date)
		}
		if daily.Min[i] == nil || daily.Max[i] == nil {
			continue
		}
		means[date] = (*daily.Min[i] + *daily.Max[i]) / 2
	}
	return means, nil
}
