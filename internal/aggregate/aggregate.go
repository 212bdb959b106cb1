// Package aggregate turns flat fetched points into dense, zero-filled bucket
// series for charting.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/tejusbharadwaj/elecview/internal/models"
)

const minutesPerDay = 24 * 60

// Granularity names the bucket size of a series.
type Granularity string

const (
	Hour       Granularity = "hour"
	Day        Granularity = "day"
	DayOfMonth Granularity = "dayOfMonth"
	Month      Granularity = "month"
)

// Bucket is one chart point. Price is the mean and Usage the sum of the
// source points falling into it; both are zero for an empty bucket.
type Bucket struct {
	Start           time.Time `json:"start"`
	IntervalMinutes int       `json:"interval_minutes"`
	Label           string    `json:"label"`
	Price           float64   `json:"price"`
	Usage           float64   `json:"usage"`
	TemperatureMean *float64  `json:"temperature_mean,omitempty"`
	Samples         int       `json:"samples"`
}

// Func buckets points around an anchor date. Calendar arithmetic uses the
// anchor's location.
type Func func(points []models.TimePoint, anchor time.Time) []Bucket

// Hourly passes points through one bucket each, sorted by timestamp.
func Hourly(points []models.TimePoint, anchor time.Time) []Bucket {
	loc := anchor.Location()
	sorted := make([]models.TimePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	buckets := make([]Bucket, len(sorted))
	for i, p := range sorted {
		start := p.Timestamp.In(loc)
		buckets[i] = Bucket{
			Start:           start,
			IntervalMinutes: p.IntervalMinutes,
			Label:           Label(Hour, start),
			Price:           p.PriceOrZero(),
			Usage:           p.UsageOrZero(),
			TemperatureMean: p.TemperatureMean,
			Samples:         1,
		}
	}
	return buckets
}

// Week returns exactly seven daily buckets, Monday through Sunday of the
// week containing anchor.
func Week(points []models.TimePoint, anchor time.Time) []Bucket {
	monday := WeekStart(anchor)
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = monday.AddDate(0, 0, i)
	}
	return byDay(points, days, Day, anchor.Location())
}

// MonthDays returns one bucket per day of the anchor's month.
func MonthDays(points []models.TimePoint, anchor time.Time) []Bucket {
	first := startOfMonth(anchor)
	days := make([]time.Time, daysIn(first))
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return byDay(points, days, DayOfMonth, anchor.Location())
}

// Year returns twelve monthly buckets for the anchor's year.
func Year(points []models.TimePoint, anchor time.Time) []Bucket {
	return byMonth(points, anchor, 12)
}

// YearToDate returns monthly buckets from January through the anchor's month.
func YearToDate(points []models.TimePoint, anchor time.Time) []Bucket {
	return byMonth(points, anchor, int(anchor.Month()))
}

// For returns the bucketing function of a granularity.
func For(g Granularity) (Func, error) {
	switch g {
	case Hour:
		return Hourly, nil
	case Day:
		return Week, nil
	case DayOfMonth:
		return MonthDays, nil
	case Month:
		return Year, nil
	default:
		return nil, fmt.Errorf("unknown granularity %q", g)
	}
}

// WeekStart returns midnight of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

// Label renders the chart axis label of a bucket starting at t.
func Label(g Granularity, t time.Time) string {
	switch g {
	case Hour:
		return t.Format("15:04")
	case Day:
		return t.Format("Mon")
	case DayOfMonth:
		return fmt.Sprint(t.Day())
	case Month:
		return t.Format("Jan")
	default:
		return t.Format(time.RFC3339)
	}
}

func byDay(points []models.TimePoint, days []time.Time, g Granularity, loc *time.Location) []Bucket {
	groups := make(map[string]*accumulator, len(days))
	for _, p := range points {
		key := p.Timestamp.In(loc).Format(time.DateOnly)
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.add(p)
	}

	buckets := make([]Bucket, len(days))
	for i, day := range days {
		buckets[i] = groups[day.Format(time.DateOnly)].bucket(day, minutesPerDay, Label(g, day))
	}
	return buckets
}

func byMonth(points []models.TimePoint, anchor time.Time, months int) []Bucket {
	loc := anchor.Location()
	year := anchor.Year()

	var groups [12]accumulator
	for _, p := range points {
		t := p.Timestamp.In(loc)
		if t.Year() != year {
			continue
		}
		groups[t.Month()-1].add(p)
	}

	buckets := make([]Bucket, months)
	for i := range buckets {
		start := time.Date(year, time.January+time.Month(i), 1, 0, 0, 0, 0, loc)
		buckets[i] = groups[i].bucket(start, daysIn(start)*minutesPerDay, Label(Month, start))
	}
	return buckets
}

type accumulator struct {
	priceSum float64
	prices   int
	usageSum float64
	tempSum  float64
	temps    int
	samples  int
}

func (a *accumulator) add(p models.TimePoint) {
	a.samples++
	if p.Price != nil {
		a.priceSum += *p.Price
		a.prices++
	}
	if p.Usage != nil {
		a.usageSum += *p.Usage
	}
	if p.TemperatureMean != nil {
		a.tempSum += *p.TemperatureMean
		a.temps++
	}
}

// bucket is nil-safe: an absent accumulator yields a zero-filled bucket.
func (a *accumulator) bucket(start time.Time, minutes int, label string) Bucket {
	b := Bucket{Start: start, IntervalMinutes: minutes, Label: label}
	if a == nil {
		return b
	}
	b.Samples = a.samples
	b.Usage = a.usageSum
	if a.prices > 0 {
		b.Price = a.priceSum / float64(a.prices)
	}
	if a.temps > 0 {
		b.TemperatureMean = models.Float(a.tempSum / float64(a.temps))
	}
	return b
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
