package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/rest"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/signature"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/simulation"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/stream"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/transport"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
)

// New picks the exchange variant from configuration: simulation when mock
// trading is on, the wallet flow when a private key is set, the API-key
// flow when a key pair is set.
func New(ctx context.Context, exchangeCfg config.ExchangeConfig, breakerCfg config.CircuitBreakerConfig) (exchange.Client, error) {
	const op = "factory.New"

	switch {
	case exchangeCfg.MockTrading:
		balance := decimal.NewFromFloat(exchangeCfg.SimulatedBalance)
		zapLogger.Info(ctx, "using simulated exchange", zap.String("balance", balance.String()))
		return simulation.New(balance), nil

	case exchangeCfg.PrivateKey != "":
		key, err := signature.ParseKey(exchangeCfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		api := rest.NewAPI(
			newTransport("bluefin-signature", exchangeCfg, breakerCfg, key.SignRequest),
			newStream(exchangeCfg, key.PublicKey(), ""),
		)
		zapLogger.Info(ctx, "using signature exchange client",
			zap.String("network", exchangeCfg.Network),
			zap.String("public_key", key.PublicKey()))
		return signature.New(api, key), nil

	case exchangeCfg.APIKey != "" && exchangeCfg.APISecret != "":
		signer := rest.NewSigner(exchangeCfg.APIKey, exchangeCfg.APISecret)
		api := rest.NewAPI(
			newTransport("bluefin-rest", exchangeCfg, breakerCfg, signer.Sign),
			newStream(exchangeCfg, "", exchangeCfg.APIKey),
		)
		zapLogger.Info(ctx, "using api key exchange client", zap.String("network", exchangeCfg.Network))
		return rest.New(api, signer), nil

	default:
		return nil, fmt.Errorf("%s: %w", op, exchangeErrors.ErrNoCredentials)
	}
}

func newTransport(
	name string,
	exchangeCfg config.ExchangeConfig,
	breakerCfg config.CircuitBreakerConfig,
	signer transport.RequestSigner,
) *transport.Client {
	return transport.New(transport.Options{
		Name:              name,
		BaseURL:           exchangeCfg.BaseURL(),
		Timeout:           exchangeCfg.RequestTimeout,
		RequestsPerSecond: exchangeCfg.RequestsPerSecond,
		CircuitBreaker:    breakerCfg,
		Signer:            signer,
	})
}

func newStream(exchangeCfg config.ExchangeConfig, publicKey, token string) *stream.Subscriber {
	return stream.New(stream.Options{
		URL:       exchangeCfg.StreamURL(),
		PublicKey: publicKey,
		Token:     token,
		Reconnect: retry.Policy{BaseDelay: retry.DefaultPolicy().BaseDelay, MaxDelay: time.Minute},
	})
}
