package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nastyazhadan/perp-trader/shared/config"
	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
)

// RequestSigner adds authentication to an outgoing request.
type RequestSigner func(request *resty.Request, method, path string, body []byte)

type Options struct {
	Name              string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	CircuitBreaker    config.CircuitBreakerConfig
	Signer            RequestSigner
}

// Client is the HTTP transport shared by the live exchange adapters: one
// resty client behind a rate limiter and a circuit breaker.
type Client struct {
	http           *resty.Client
	limiter        *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker[*resty.Response]
	signer         RequestSigner
}

func New(options Options) *Client {
	httpClient := resty.New().
		SetBaseURL(options.BaseURL).
		SetTimeout(options.Timeout).
		SetHeader("Content-Type", "application/json")

	circuitBreaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        options.Name,
		MaxRequests: options.CircuitBreaker.MaxRequests,
		Interval:    options.CircuitBreaker.Interval,
		Timeout:     options.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= options.CircuitBreaker.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zapLogger.Warn(context.Background(), "exchange circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	limit := rate.Inf
	if options.RequestsPerSecond > 0 {
		limit = rate.Limit(options.RequestsPerSecond)
	}

	return &Client{
		http:           httpClient,
		limiter:        rate.NewLimiter(limit, 1),
		circuitBreaker: circuitBreaker,
		signer:         options.Signer,
	}
}

// Get decodes the JSON response of a GET into out.
func (c *Client) Get(ctx context.Context, path string, query map[string]string, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post encodes body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Do sends one request. Network failures, 429 and 5xx responses wrap
// ErrTransient and count against the breaker; other 4xx wrap ErrRejected.
func (c *Client) Do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
	}

	response, err := c.circuitBreaker.Execute(func() (*resty.Response, error) {
		request := c.http.R().SetContext(ctx)
		if len(query) > 0 {
			request.SetQueryParams(query)
		}
		if payload != nil {
			request.SetBody(payload)
		}
		if c.signer != nil {
			c.signer(request, method, path, payload)
		}

		response, err := request.Execute(method, path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w: %w", method, path, exchangeErrors.ErrTransient, err)
		}
		if response.StatusCode() == http.StatusTooManyRequests || response.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%s %s: %w: status %d: %s",
				method, path, exchangeErrors.ErrTransient, response.StatusCode(), response.String())
		}

		return response, nil
	})
	if err != nil {
		return errors.Wrap(err, "circuit breaker")
	}

	if response.IsError() {
		return errors.Wrap(
			fmt.Errorf("%w: status %d: %s", exchangeErrors.ErrRejected, response.StatusCode(), response.String()),
			fmt.Sprintf("%s %s", method, path),
		)
	}

	if out == nil || len(response.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Body(), out); err != nil {
		return errors.Wrap(err, "decode response")
	}

	return nil
}
