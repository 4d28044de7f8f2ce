package trader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/alert"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Readiness != nil {
		if failing := s.deps.Readiness.Failing(r.Context()); len(failing) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "degraded", Failing: failing})
			return
		}
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := statusResponse{
		Status:      "ok",
		LoopRunning: s.deps.Loop.Running(),
		Flow:        s.options.Flow,
		MockTrading: s.options.MockTrading,
	}

	if account, err := s.deps.Account.GetAccountInfo(ctx); err != nil {
		zapLogger.Warn(ctx, "status: account unavailable", zap.Error(err))
		response.Status = "degraded"
	} else {
		response.Account = &accountResponse{
			Address:           account.Address,
			Balance:           account.Balance,
			FreeCollateral:    account.FreeCollateral,
			RealizedPnLToday:  account.RealizedPnLToday,
			StartOfDayBalance: account.StartOfDayBalance,
		}
	}

	if positions, err := s.deps.Account.GetPositions(ctx); err != nil {
		zapLogger.Warn(ctx, "status: positions unavailable", zap.Error(err))
		response.Status = "degraded"
	} else {
		response.Positions = len(positions)
	}

	if s.deps.Readiness != nil {
		response.Failing = s.deps.Readiness.Failing(ctx)
		if len(response.Failing) > 0 {
			response.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) positions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.deps.Account.GetPositions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionResponses(positions))
}

func (s *Server) trades(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, r, exchangeErrors.ErrUnsupportedClient)
		return
	}

	query := r.URL.Query()
	filter := models.TradeFilter{Symbol: query.Get("symbol")}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, r, fmt.Errorf("page %q: %w", raw, serviceErrors.ErrInvalidTradeRequest))
			return
		}
		filter.Page = page
	}
	if raw := query.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			writeError(w, r, fmt.Errorf("page_size %q: %w", raw, serviceErrors.ErrInvalidTradeRequest))
			return
		}
		filter.PageSize = size
	}

	trades, err := s.deps.History.GetUserTradesHistory(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeHistoryResponses(trades))
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, newOrderResponse(order))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) order(w http.ResponseWriter, r *http.Request) {
	order, err := s.deps.Orders.Get(r.Context(), r.PathValue("hash"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var request loginRequest
	if err := decode(w, r, &request); err != nil {
		writeError(w, r, err)
		return
	}

	if !s.auth.validCredentials(request.Username, request.Password) {
		zapLogger.Warn(r.Context(), "failed login", zap.String("username", request.Username))
		writeError(w, r, serviceErrors.ErrInvalidCredentials)
		return
	}

	token, expires, err := s.auth.issue(request.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, TokenType: "bearer", ExpiresAt: expires})
}

func (s *Server) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("read body: %w", serviceErrors.ErrInvalidAlert))
		return
	}

	received, err := s.deps.Alerts.Submit(r.Context(), body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, alertResponse{
		Status: "queued",
		Symbol: received.Symbol,
		Side:   string(received.Side),
		Source: received.Source,
	})
}

func (s *Server) openTrade(w http.ResponseWriter, r *http.Request) {
	var body openTradeRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	request, err := body.toDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.tradeContext(r.Context())
	defer cancel()

	result, err := s.deps.Trader.ExecuteTrade(ctx, request)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTradeResponse(result))
}

func (s *Server) closeTrade(w http.ResponseWriter, r *http.Request) {
	var body closeTradeRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Symbol == "" {
		writeError(w, r, fmt.Errorf("symbol is required: %w", serviceErrors.ErrInvalidTradeRequest))
		return
	}
	if body.Quantity != nil && !body.Quantity.IsPositive() {
		writeError(w, r, fmt.Errorf("quantity must be positive: %w", serviceErrors.ErrInvalidTradeRequest))
		return
	}

	ctx, cancel := s.tradeContext(r.Context())
	defer cancel()

	order, err := s.deps.Trader.ClosePosition(ctx, alert.NormalizeSymbol(body.Symbol), body.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var body cancelOrderRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.OrderHash == "" {
		writeError(w, r, fmt.Errorf("order_hash is required: %w", serviceErrors.ErrInvalidTradeRequest))
		return
	}

	ctx, cancel := s.tradeContext(r.Context())
	defer cancel()

	order, err := s.deps.Trader.CancelOrder(ctx, body.OrderHash)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) configuration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newRiskParamsResponse(s.deps.Settings.RiskParams()))
}

// configure changes the fields present in the body. The new values apply
// from the next trade on.
func (s *Server) configure(w http.ResponseWriter, r *http.Request) {
	var body configureRequest
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	params, err := s.deps.Settings.Update(r.Context(), body.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newRiskParamsResponse(params))
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Loop.Start(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	zapLogger.Info(r.Context(), "trading loop started over HTTP")
	writeJSON(w, http.StatusOK, messageResponse{Message: "trading loop started"})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Loop.Stop(); err != nil {
		writeError(w, r, err)
		return
	}
	zapLogger.Info(r.Context(), "trading loop stopped over HTTP")
	writeJSON(w, http.StatusOK, messageResponse{Message: "trading loop stopped"})
}

// limited applies limiter per client address. Limiter failures let the
// request through.
func (s *Server) limited(limiter Limiter, scope string, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		allowed, err := limiter.Allow(r.Context(), clientAddress(r))
		if err != nil {
			zapLogger.Warn(r.Context(), "rate limiter unavailable",
				zap.String("scope", scope),
				zap.Error(err),
			)
			next(w, r)
			return
		}
		if !allowed {
			writeError(w, r, serviceErrors.ErrRateLimitExceeded)
			return
		}
		next(w, r)
	}
}

func (s *Server) tradeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.options.TradeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.options.TradeTimeout)
}

func (t openTradeRequest) toDomain() (models.TradeRequest, error) {
	if t.Symbol == "" {
		return models.TradeRequest{}, fmt.Errorf("symbol is required: %w", serviceErrors.ErrInvalidTradeRequest)
	}

	side, err := models.ParseSide(t.Side)
	if err != nil {
		return models.TradeRequest{}, fmt.Errorf("%w: %w", serviceErrors.ErrInvalidTradeRequest, err)
	}

	orderType, err := models.ParseOrderType(t.OrderType)
	if err != nil {
		return models.TradeRequest{}, fmt.Errorf("%w: %w", serviceErrors.ErrInvalidTradeRequest, err)
	}

	return models.TradeRequest{
		Symbol:               alert.NormalizeSymbol(t.Symbol),
		Side:                 side,
		PositionSize:         t.PositionSize,
		RiskPercentage:       t.RiskPercentage,
		StopLossPercentage:   t.StopLossPercentage,
		TakeProfitPercentage: t.TakeProfitPercentage,
		Leverage:             t.Leverage,
		OrderType:            orderType,
		Price:                t.Price,
	}, nil
}

func decode(w http.ResponseWriter, r *http.Request, target any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target); err != nil {
		return fmt.Errorf("decode body: %w: %w", serviceErrors.ErrInvalidTradeRequest, err)
	}
	return nil
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, serviceErrors.ErrInvalidTradeRequest),
		errors.Is(err, serviceErrors.ErrInvalidAlert),
		errors.Is(err, serviceErrors.ErrInvalidRiskParams),
		errors.Is(err, exchangeErrors.ErrUnknownSymbol):
		return http.StatusBadRequest
	case errors.Is(err, serviceErrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, serviceErrors.ErrPositionNotFound),
		errors.Is(err, serviceErrors.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, serviceErrors.ErrLoopAlreadyRunning),
		errors.Is(err, serviceErrors.ErrLoopNotRunning),
		errors.Is(err, serviceErrors.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, serviceErrors.ErrRiskLimitExceeded),
		errors.Is(err, serviceErrors.ErrZeroQuantity),
		errors.Is(err, serviceErrors.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, serviceErrors.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, exchangeErrors.ErrUnsupportedClient):
		return http.StatusNotImplemented
	case errors.Is(err, serviceErrors.ErrLeverageNotEnsured),
		errors.Is(err, serviceErrors.ErrSubmissionFailed),
		errors.Is(err, serviceErrors.ErrCancelFailed),
		errors.Is(err, exchangeErrors.ErrEmptyOrderbook):
		return http.StatusBadGateway
	case errors.Is(err, serviceErrors.ErrAlertQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zapLogger.Error(r.Context(), "request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
