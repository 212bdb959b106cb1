package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/elecview/internal/api"
	"github.com/tejusbharadwaj/elecview/internal/chart"
	"github.com/tejusbharadwaj/elecview/internal/config"
	server "github.com/tejusbharadwaj/elecview/internal/grpc"
	"github.com/tejusbharadwaj/elecview/internal/navigator"
	"github.com/tejusbharadwaj/elecview/internal/queries"
	"github.com/tejusbharadwaj/elecview/internal/scheduler"
)

// Command elecview serves electricity price and load charts.
//
// The charts combine ENTSO-E day-ahead prices and actual load per bidding
// zone with Open-Meteo daily mean temperatures, bucketed by day, week,
// month, year or year to date.
//
// Usage:
//
//	elecview [flags] serve
//	elecview [flags] chart -country Finland -view WEEK -date 2024-01-03
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-env string
//	      dotenv file loaded before the config (default ".env")
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "elecview:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("elecview", flag.ContinueOnError)
	configPath := flags.String("config", "config.yaml", "path to config file")
	envFile := flags.String("env", ".env", "dotenv file loaded before the config")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	path := *configPath
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path = ""
	}
	appConfig, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := appConfig.Validate(); err != nil {
		return err
	}

	logger, err := appConfig.Logging.NewLogger()
	if err != nil {
		return err
	}

	rest := flags.Args()
	if len(rest) == 0 {
		rest = []string{"serve"}
	}
	switch rest[0] {
	case "serve":
		return serve(appConfig, logger)
	case "chart":
		return printChart(appConfig, logger, rest[1:], stdout)
	default:
		return fmt.Errorf("unknown command %q (want serve or chart)", rest[0])
	}
}

// buildChartService wires the upstream clients into a chart service.
func buildChartService(cfg *config.Config, logger *logrus.Logger, reg prometheus.Registerer) (*chart.Service, error) {
	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return nil, err
	}
	pairing, err := api.ParsePairing(cfg.Market.Pairing)
	if err != nil {
		return nil, err
	}

	metrics := api.NewMetrics()
	if reg != nil {
		if err := metrics.Register(reg); err != nil {
			return nil, err
		}
	}
	httpClient := &http.Client{Timeout: cfg.Market.Timeout}

	marketTransport := api.NewTransport(
		api.WithHTTPClient(httpClient),
		api.WithRateLimit(cfg.Market.RateLimit, cfg.Market.RateBurst),
		api.WithLogger(logger),
		api.WithMetrics(metrics),
	)
	openTransport := api.NewTransport(
		api.WithHTTPClient(httpClient),
		api.WithLogger(logger),
		api.WithMetrics(metrics),
	)

	catalog := api.NewCatalog(cfg.Countries)
	fetcherOpts := []api.FetcherOption{
		api.WithPairing(pairing),
		api.WithFetcherLogger(logger),
	}
	if cfg.Weather.Enabled {
		weather := api.NewWeatherClient(cfg.Weather.ArchiveURL, cfg.Weather.ForecastURL, openTransport)
		fetcherOpts = append(fetcherOpts, api.WithWeather(weather))
	}
	market := api.NewMarketClient(cfg.Market.URL, cfg.Market.APIKey, marketTransport)
	fetcher := api.NewSeriesFetcher(catalog, market, fetcherOpts...)

	serviceOpts := []chart.Option{
		chart.WithLogger(logger),
		chart.WithLocation(loc),
	}
	if cfg.Zones.Enabled {
		serviceOpts = append(serviceOpts, chart.WithDirectory(api.NewZoneDirectory(cfg.Zones.URL, openTransport)))
	}
	return chart.NewService(fetcher, serviceOpts...), nil
}

func serve(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := buildChartService(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	store, err := queries.Open(cfg.Queries.Driver, cfg.QueriesDSN())
	if err != nil {
		return fmt.Errorf("failed to open saved queries: %w", err)
	}
	defer store.Close()

	loc, _ := time.LoadLocation(cfg.Server.Timezone)
	health := server.NewHealthChecker()
	srv, err := server.SetupServer(service, store, server.ServerConfig{
		CacheSize:      cfg.Cache.Size,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateBurst,
		Location:       loc,
		Logger:         logger,
		Registerer:     prometheus.DefaultRegisterer,
		Health:         health,
	})
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}

	if cfg.Scheduler.Enabled {
		gauges := scheduler.NewGauges()
		if err := gauges.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		sched := scheduler.NewScheduler(ctx, service, cfg.Scheduler.Countries, gauges, logger)
		if err := sched.Start(cfg.Scheduler.Spec); err != nil {
			return fmt.Errorf("scheduler error: %w", err)
		}
		defer sched.Stop()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 2)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	go func() {
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":         cfg.Server.Port,
		"metrics_port": cfg.Server.MetricsPort,
		"countries":    len(cfg.Countries),
		"queries":      cfg.Queries.Driver,
	}).Info("Starting gRPC server")

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		logger.WithError(err).Error("Service error")
		stop()
	}

	health.Shutdown()
	logger.Info("Gracefully stopping server...")
	srv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Metrics server did not stop cleanly")
	}
	logger.Info("Server stopped")
	return nil
}

// printChart builds one chart locally and prints it as a table or JSON.
func printChart(cfg *config.Config, logger *logrus.Logger, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("chart", flag.ContinueOnError)
	country := flags.String("country", "Finland", "country to chart")
	view := flags.String("view", string(navigator.Day), "DAY, WEEK, MONTH, YEAR or YTD")
	date := flags.String("date", "", "anchor date (yyyy-MM-dd), default today")
	asJSON := flags.Bool("json", false, "print the chart as JSON")
	timeout := flags.Duration("timeout", 2*time.Minute, "give up after this long")
	if err := flags.Parse(args); err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return err
	}
	state, err := navigator.ParseState(*view)
	if err != nil {
		return err
	}
	var anchor time.Time
	if *date != "" {
		if anchor, err = time.ParseInLocation(api.DateLayout, *date, loc); err != nil {
			return fmt.Errorf("invalid date %q: %w", *date, err)
		}
	}

	service, err := buildChartService(cfg, logger, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	result, err := service.Start(ctx, chart.Request{Country: *country, View: state, Anchor: anchor}).Wait()
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeTable(stdout, result)
}

func writeTable(w io.Writer, result *chart.Result) error {
	fmt.Fprintf(w, "%s  %s  %s\n\n", result.Country, result.View, result.Title)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tPrice\tUsage\tTemperature\t")
	for _, b := range result.Buckets {
		temp := "-"
		if b.TemperatureMean != nil {
			temp = fmt.Sprintf("%.1f", *b.TemperatureMean)
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.0f\t%s\t\n", b.Label, b.Price, b.Usage, temp)
	}
	return tw.Flush()
}
