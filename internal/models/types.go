package models

import "time"

// TimePoint is one observation of the price and usage series. Fetched points
// carry the start of their interval; aggregated points carry the start of the
// bucket they summarise.
type TimePoint struct {
	Timestamp       time.Time `json:"timestamp"`
	IntervalMinutes int       `json:"interval_minutes"`
	Price           *float64  `json:"price,omitempty"`
	Usage           *float64  `json:"usage,omitempty"`
	TemperatureMean *float64  `json:"temperature_mean,omitempty"`
}

// PriceOrZero returns the price, or 0 when the point has none.
func (p TimePoint) PriceOrZero() float64 {
	if p.Price == nil {
		return 0
	}
	return *p.Price
}

// UsageOrZero returns the usage, or 0 when the point has none.
func (p TimePoint) UsageOrZero() float64 {
	if p.Usage == nil {
		return 0
	}
	return *p.Usage
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Zone is one market area of a country.
type Zone struct {
	Key  string `json:"key" mapstructure:"key"`
	Code string `json:"code" mapstructure:"code"`
}

// Country describes how a country is queried: its market zones in query
// order, and where its weather comes from.
type Country struct {
	Name      string  `json:"name" mapstructure:"name"`
	Zones     []Zone  `json:"zones" mapstructure:"zones"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
	Timezone  string  `json:"timezone" mapstructure:"timezone"`
}

// HasWeather reports whether the country has a location for weather lookups.
func (c Country) HasWeather() bool {
	return c.Timezone != "" && (c.Latitude != 0 || c.Longitude != 0)
}
