//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/chart_source.go -package=mocks . ChartSource

package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/elecview/internal/api"
	"github.com/tejusbharadwaj/elecview/internal/chart"
	middleware "github.com/tejusbharadwaj/elecview/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/elecview/internal/queries"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	CacheSize      int     // Size of the LRU cache
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting

	// Location is the calendar request dates are read in. Nil means UTC.
	Location *time.Location
	Logger   *logrus.Logger
	// Registerer receives the request metrics. Nil keeps them unregistered.
	Registerer prometheus.Registerer
	// Health is registered as the health service. Nil creates one.
	Health *HealthChecker
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:      1000,
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
	}
}

// ChartSource builds charts. *chart.Service implements it.
type ChartSource interface {
	Chart(ctx context.Context, req chart.Request) (*chart.Result, error)
	Countries(ctx context.Context) (chart.Countries, error)
}

// ChartServer implements ChartServiceServer on top of a chart source and a
// saved-query store.
type ChartServer struct {
	charts    ChartSource
	store     queries.Store
	validator *RequestValidator
	logger    *logrus.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewChartServer creates a new service instance
func NewChartServer(charts ChartSource, store queries.Store, loc *time.Location, logger *logrus.Logger) *ChartServer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ChartServer{
		charts:    charts,
		store:     store,
		validator: NewRequestValidator(loc),
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

func (s *ChartServer) GetChart(ctx context.Context, req *ChartRequest) (*chart.Result, error) {
	view, date, err := s.validator.ValidateChart(req)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := s.charts.Chart(ctx, chart.Request{
		Country: strings.TrimSpace(req.Country),
		View:    view,
		Anchor:  date,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return result, nil
}

func (s *ChartServer) ListCountries(ctx context.Context, _ *Empty) (*chart.Countries, error) {
	countries, err := s.charts.Countries(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &countries, nil
}

// SaveQuery stores the selection under its name, replacing any query with
// the same name, and stamps it with today's date.
func (s *ChartServer) SaveQuery(ctx context.Context, req *SaveQueryRequest) (*SavedQuery, error) {
	req, err := s.validator.ValidateSave(req)
	if err != nil {
		return nil, toStatus(err)
	}

	params := queries.Params{Country: strings.TrimSpace(req.Country), View: req.View}
	if req.Date != "" {
		// ValidateSave has already checked the layout.
		params.Date, _ = time.Parse(api.DateLayout, req.Date)
	}
	record := queries.Record{
		Name:     strings.TrimSpace(req.Name),
		Modified: s.now().In(s.loc),
		Params:   params.Encode(),
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, toStatus(err)
	}
	return s.savedQuery(record), nil
}

func (s *ChartServer) LoadQuery(ctx context.Context, req *QueryName) (*SavedQuery, error) {
	if err := s.validator.ValidateName(req.Name); err != nil {
		return nil, toStatus(err)
	}
	record, err := s.store.Load(ctx, strings.TrimSpace(req.Name))
	if err != nil {
		return nil, toStatus(err)
	}
	return s.savedQuery(record), nil
}

func (s *ChartServer) DeleteQuery(ctx context.Context, req *QueryName) (*Empty, error) {
	if err := s.validator.ValidateName(req.Name); err != nil {
		return nil, toStatus(err)
	}
	if err := s.store.Delete(ctx, strings.TrimSpace(req.Name)); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *ChartServer) ListQueries(ctx context.Context, _ *Empty) (*QueryList, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	list := &QueryList{Queries: make([]*SavedQuery, 0, len(records))}
	for _, record := range records {
		list.Queries = append(list.Queries, s.savedQuery(record))
	}
	return list, nil
}

// savedQuery decodes the stored parameters. Undecodable parameters are
// returned raw so the client can still show and delete the query.
func (s *ChartServer) savedQuery(record queries.Record) *SavedQuery {
	out := &SavedQuery{
		Name:     record.Name,
		Modified: record.Modified.Format(queries.DateLayout),
		Params:   record.Params,
	}
	params, err := queries.DecodeParams(record.Params)
	if err != nil {
		s.logger.WithError(err).WithField("name", record.Name).Warn("Saved query has unreadable parameters")
		return out
	}
	out.Country = params.Country
	out.View = params.View
	if !params.Date.IsZero() {
		out.Date = params.Date.Format(api.DateLayout)
	}
	return out
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	var fetchErr *api.FetchError
	var parseErr *api.ParseError
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, api.ErrInvalidRequest), errors.Is(err, queries.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, queries.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &fetchErr):
		return status.Errorf(codes.Unavailable, "upstream unavailable: %v", err)
	case errors.As(err, &parseErr):
		return status.Errorf(codes.Internal, "upstream data unreadable: %v", err)
	default:
		return status.Errorf(codes.Internal, "request failed: %v", err)
	}
}

// SetupServer initializes and configures the gRPC server with all middleware
func SetupServer(charts ChartSource, store queries.Store, config ServerConfig) (*grpc.Server, error) {
	cache, err := middleware.NewCache(config.CacheSize)
	if err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	metrics := middleware.NewMetrics()
	if config.Registerer != nil {
		if err := metrics.Register(config.Registerer); err != nil {
			return nil, err
		}
	}

	// Create server with chained interceptors
	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst),
				middleware.NewLoggingInterceptor(logger),
				metrics.Interceptor(),
				cache.Interceptor(), // Cache last to avoid caching errors
			),
		),
	)

	RegisterChartServiceServer(server, NewChartServer(charts, store, config.Location, logger))

	health := config.Health
	if health == nil {
		health = NewHealthChecker()
	}
	grpc_health_v1.RegisterHealthServer(server, health)

	return server, nil
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}
