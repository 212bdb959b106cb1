// Package elecview implements an electricity price and load charting
// service.
//
// # Architecture
//
// The service is structured into several key packages:
//   - api: ENTSO-E, Open-Meteo and zone registry clients, windows and pairing
//   - aggregate: day, week, month, year and year-to-date bucketing
//   - navigator: the view state machine (DAY, WEEK, MONTH, YEAR, YTD)
//   - chart: resolves a view to a window, fetches and buckets it
//   - queries: saved queries in a CSV file, SQLite or PostgreSQL
//   - grpc: gRPC service implementation
//   - scheduler: periodic refresh of today's chart into Prometheus gauges
//   - config: YAML and environment configuration
//   - models: Shared data structures
//
// Key Features
//
//   - Joined series:
//     Hourly (or finer) day-ahead prices and actual load per bidding zone,
//     joined with the country's daily mean temperature.
//
//   - Long ranges:
//     Requests longer than three months are split into chunks the market
//     API accepts and concatenated.
//
//   - Performance:
//     Charts of windows that have ended are cached in memory; upstream
//     calls are rate limited.
//
// Example Usage
//
//	client := grpc.NewChartServiceClient(conn)
//	result, err := client.GetChart(ctx, &grpc.ChartRequest{
//	    Country: "Finland",
//	    View:    "WEEK",
//	    Date:    "2024-01-03",
//	})
//
// For more information about specific packages, see their respective
// documentation.
package elecview
