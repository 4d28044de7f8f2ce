package trader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	"github.com/nastyazhadan/perp-trader/shared/interceptors/logger"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/shared/interceptors/recovery"
	"github.com/nastyazhadan/perp-trader/shared/interceptors/xrequestid"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const (
	maxBodyBytes      = 1 << 20
	readHeaderTimeout = 5 * time.Second
	meterName         = "github.com/nastyazhadan/perp-trader/traderService/internal/http/trader"
)

type Trader interface {
	ExecuteTrade(ctx context.Context, request models.TradeRequest) (models.TradeResult, error)
	ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.Order, error)
	CancelOrder(ctx context.Context, hash string) (models.Order, error)
}

// Settings holds the risk parameters that can change at runtime.
type Settings interface {
	RiskParams() models.RiskParams
	Update(ctx context.Context, update models.RiskParamsUpdate) (models.RiskParams, error)
}

type Account interface {
	GetAccountInfo(ctx context.Context) (models.Account, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
}

type History interface {
	GetUserTradesHistory(ctx context.Context, filter models.TradeFilter) ([]models.Trade, error)
}

type Orders interface {
	Get(ctx context.Context, hash string) (models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
}

type Loop interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
}

type Alerts interface {
	Submit(ctx context.Context, body []byte) (models.Alert, error)
}

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Readiness interface {
	Failing(ctx context.Context) map[string]string
}

// Dependencies of the control surface. History, the limiters, Readiness and
// Metrics are optional.
type Dependencies struct {
	Trader         Trader
	Account        Account
	History        History
	Orders         Orders
	Settings       Settings
	Loop           Loop
	Alerts         Alerts
	LoginLimiter   Limiter
	WebhookLimiter Limiter
	Readiness      Readiness
	Metrics        http.Handler
}

type Options struct {
	Address         string
	Flow            string
	MockTrading     bool
	TradeTimeout    time.Duration
	ShutdownTimeout time.Duration
	Auth            config.AuthConfig
}

type Server struct {
	deps     Dependencies
	options  Options
	auth     *authenticator
	requests metric.Int64Counter
	handler  http.Handler
}

func NewServer(deps Dependencies, options Options) (*Server, error) {
	requests, err := otel.Meter(meterName).Int64Counter("http.server.request.count",
		metric.WithDescription("Finished HTTP requests by route and status."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("http.NewServer: request counter: %w", err)
	}

	server := &Server{
		deps:     deps,
		options:  options,
		auth:     newAuthenticator(options.Auth),
		requests: requests,
	}
	server.handler = server.routes()

	return server, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /health", s.health)
	s.handle(mux, "GET /status", s.status)
	s.handle(mux, "GET /positions", s.positions)
	s.handle(mux, "GET /trades", s.trades)
	s.handle(mux, "GET /orders", s.orders)
	s.handle(mux, "GET /orders/{hash}", s.order)
	s.handle(mux, "POST /login", s.limited(s.deps.LoginLimiter, "login", s.login))
	s.handle(mux, "POST /webhook", s.limited(s.deps.WebhookLimiter, "webhook", s.webhook))
	s.handle(mux, "POST /open_trade", s.auth.require(s.openTrade))
	s.handle(mux, "POST /close_trade", s.auth.require(s.closeTrade))
	s.handle(mux, "POST /cancel_order", s.auth.require(s.cancelOrder))
	s.handle(mux, "GET /configuration", s.auth.require(s.configuration))
	s.handle(mux, "POST /configure", s.auth.require(s.configure))
	s.handle(mux, "POST /start", s.auth.require(s.start))
	s.handle(mux, "POST /stop", s.auth.require(s.stop))

	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	return xrequestid.HTTP(recovery.HTTP(logger.HTTP(mux)))
}

func (s *Server) handle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)

		s.requests.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("http.route", pattern),
			attribute.Int("http.response.status_code", recorder.status),
		))
	})
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.options.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info(ctx, "HTTP server listening", zap.String("address", s.options.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http.Server.Run: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.options.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http.Server.Shutdown: %w", err)
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
