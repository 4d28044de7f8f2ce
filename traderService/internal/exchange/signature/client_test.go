package signature

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/perp-trader/shared/config"
	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/rest"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/transport"
)

var testSeed = strings.Repeat("01", ed25519.SeedSize)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	key, err := ParseKey("0x" + testSeed)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpTransport := transport.New(transport.Options{
		Name:    "signature-test",
		BaseURL: server.URL,
		Timeout: time.Second,
		CircuitBreaker: config.CircuitBreakerConfig{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			MaxFailures: 5,
		},
		Signer: key.SignRequest,
	})

	return New(rest.NewAPI(httpTransport, nil), key)
}

func TestParseKey(t *testing.T) {
	_, err := ParseKey("not-hex")
	assert.ErrorIs(t, err, exchangeErrors.ErrNoCredentials)

	_, err = ParseKey("abcd")
	assert.ErrorIs(t, err, exchangeErrors.ErrNoCredentials)

	key, err := ParseKey(testSeed)
	require.NoError(t, err)
	assert.Len(t, key.PublicKey(), 2*ed25519.PublicKeySize)
}

func TestSignatureFlow(t *testing.T) {
	var posted rest.OrderRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-SIGNATURE"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		_ = json.NewEncoder(w).Encode(rest.OrderResponse{Hash: "0xfeed", Symbol: posted.Symbol, Side: posted.Side})
	})

	capabilities := exchange.Resolve(client)
	require.Equal(t, exchange.FlowSignature, capabilities.Flow)
	assert.Nil(t, capabilities.Direct)

	params := models.OrderParams{
		Symbol:   "SUI-PERP",
		Side:     models.SideBuy,
		Type:     models.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
		Leverage: 3,
	}

	ack, err := capabilities.Submit(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", ack.Hash)

	request := exchange.SignatureRequest{Params: params, Salt: posted.Salt, Expiration: posted.Expiration}
	signature, err := hex.DecodeString(posted.Signature)
	require.NoError(t, err)

	publicKey, err := hex.DecodeString(client.key.PublicKey())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(publicKey, Digest(request), signature))
	assert.Greater(t, posted.Expiration, time.Now().Add(6*24*time.Hour).UnixMilli())
}

func TestCreateOrderSignatureRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.CreateOrderSignatureRequest(context.Background(), models.OrderParams{Symbol: "SUI-PERP", Side: models.SideBuy})
	assert.ErrorIs(t, err, exchangeErrors.ErrRejected)

	params := models.OrderParams{Symbol: "SUI-PERP", Side: models.SideSell, Quantity: decimal.NewFromInt(1)}
	first, err := client.CreateOrderSignatureRequest(context.Background(), params)
	require.NoError(t, err)
	second, err := client.CreateOrderSignatureRequest(context.Background(), params)
	require.NoError(t, err)

	assert.NotEqual(t, first.Salt, second.Salt)
	assert.NotEqual(t, first.Digest, second.Digest)
}

func TestMarketPriceUsesBestAsk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "SUI-PERP":
			if r.URL.Path == "/orderbook" {
				_, _ = w.Write([]byte(`{"bids":[["1.49","10"]],"asks":[["1.51","10"]]}`))
				return
			}
		case "ETH-PERP":
			if r.URL.Path == "/orderbook" {
				_, _ = w.Write([]byte(`{"bids":[],"asks":[]}`))
				return
			}
			_, _ = w.Write([]byte(`{"markPrice":"3001"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	price, err := client.GetMarketPrice(context.Background(), "SUI-PERP")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.51").Equal(price))

	price, err = client.GetMarketPrice(context.Background(), "ETH-PERP")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3001).Equal(price))
}
