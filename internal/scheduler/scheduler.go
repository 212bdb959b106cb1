// Package scheduler refreshes today's chart for a set of countries on a cron
// schedule and publishes the headline figures as Prometheus gauges.
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/elecview/internal/chart"
	"github.com/tejusbharadwaj/elecview/internal/navigator"
)

const collectTimeout = 2 * time.Minute

// Charter builds charts. *chart.Service implements it.
type Charter interface {
	Chart(ctx context.Context, req chart.Request) (*chart.Result, error)
}

// Gauges hold the latest DAY chart figures per country.
type Gauges struct {
	MeanPrice   *prometheus.GaugeVec
	TotalUsage  *prometheus.GaugeVec
	LastSuccess *prometheus.GaugeVec
}

func NewGauges() *Gauges {
	return &Gauges{
		MeanPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elecview_day_mean_price",
			Help: "Mean day-ahead price of today's hours with data.",
		}, []string{"country"}),
		TotalUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elecview_day_total_usage",
			Help: "Total load of today's hours with data.",
		}, []string{"country"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "elecview_day_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		}, []string{"country"}),
	}
}

// Register adds the gauges to reg.
func (g *Gauges) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{g.MeanPrice, g.TotalUsage, g.LastSuccess} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

type Scheduler struct {
	ctx       context.Context
	charts    Charter
	countries []string
	gauges    *Gauges
	logger    *logrus.Logger
	cron      *cron.Cron
	now       func() time.Time
}

func NewScheduler(ctx context.Context, charts Charter, countries []string, gauges *Gauges, logger *logrus.Logger) *Scheduler {
	if gauges == nil {
		gauges = NewGauges()
	}
	return &Scheduler{
		ctx:       ctx,
		charts:    charts,
		countries: countries,
		gauges:    gauges,
		logger:    logger,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start runs the refresh on spec, a standard five-field cron expression or a
// descriptor such as "@hourly".
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.collectData)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop the scheduler and wait for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) collectData() {
	ctx, cancel := context.WithTimeout(s.ctx, collectTimeout)
	defer cancel()
	s.Refresh(ctx)
}

// Refresh rebuilds today's DAY chart for every country and updates the
// gauges. A failing country is logged and keeps its previous values. It
// returns the number of countries refreshed.
func (s *Scheduler) Refresh(ctx context.Context) int {
	refreshed := 0
	for _, country := range s.countries {
		result, err := s.charts.Chart(ctx, chart.Request{Country: country, View: navigator.Day})
		if err != nil {
			s.logger.WithError(err).WithField("country", country).Error("Failed to refresh day chart")
			continue
		}

		var priceSum, usage float64
		hours := 0
		for _, b := range result.Buckets {
			if b.Samples == 0 {
				continue
			}
			priceSum += b.Price
			usage += b.Usage
			hours++
		}
		if hours > 0 {
			s.gauges.MeanPrice.WithLabelValues(country).Set(priceSum / float64(hours))
		}
		s.gauges.TotalUsage.WithLabelValues(country).Set(usage)
		s.gauges.LastSuccess.WithLabelValues(country).Set(float64(s.now().Unix()))

		s.logger.WithFields(logrus.Fields{
			"country": country,
			"hours":   hours,
		}).Debug("Day chart refreshed")
		refreshed++
	}
	return refreshed
}
