package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/perp-trader/shared/config"
	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
)

func newClient(url string, signer RequestSigner) *Client {
	return New(Options{
		Name:    "test",
		BaseURL: url,
		Timeout: time.Second,
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			MaxFailures: 2,
		},
		Signer: signer,
	})
}

func TestDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "BTC-PERP", r.URL.Query().Get("symbol"))
			assert.Equal(t, "signed", r.Header.Get("X-Test-Sign"))
			_ = json.NewEncoder(w).Encode(map[string]string{"markPrice": "50000"})
		case "/echo":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_ = json.NewEncoder(w).Encode(body)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad quantity"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	client := newClient(server.URL, func(request *resty.Request, method, path string, body []byte) {
		request.SetHeader("X-Test-Sign", "signed")
	})
	ctx := context.Background()

	var price struct {
		MarkPrice string `json:"markPrice"`
	}
	require.NoError(t, client.Get(ctx, "/ok", map[string]string{"symbol": "BTC-PERP"}, &price))
	assert.Equal(t, "50000", price.MarkPrice)

	var echoed map[string]any
	require.NoError(t, client.Post(ctx, "/echo", map[string]any{"side": "BUY"}, &echoed))
	assert.Equal(t, "BUY", echoed["side"])

	err := client.Get(ctx, "/bad", nil, nil)
	assert.ErrorIs(t, err, exchangeErrors.ErrRejected)
	assert.ErrorContains(t, err, "bad quantity")

	err = client.Get(ctx, "/down", nil, nil)
	assert.ErrorIs(t, err, exchangeErrors.ErrTransient)
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newClient(server.URL, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, client.Get(ctx, "/", nil, nil), exchangeErrors.ErrTransient)
	}

	err := client.Get(ctx, "/", nil, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
}
