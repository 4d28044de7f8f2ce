package recommendation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const recommendationPath = "/recommendation"

type body struct {
	Symbol     string              `json:"symbol"`
	Action     string              `json:"action"`
	EntryPrice decimal.NullDecimal `json:"entry_price"`
	StopLoss   decimal.NullDecimal `json:"stop_loss"`
	TakeProfit decimal.NullDecimal `json:"take_profit"`
	Confidence float64             `json:"confidence"`
	Reason     string              `json:"reason"`
	Timestamp  time.Time           `json:"timestamp"`
}

// response accepts both the flat body and the body nested under
// "recommendation".
type response struct {
	body
	Nested *body `json:"recommendation"`
}

func (r response) toDomain(symbol string) models.Recommendation {
	source := r.body
	if r.Nested != nil {
		source = *r.Nested
		if source.Symbol == "" {
			source.Symbol = r.Symbol
		}
		if source.Timestamp.IsZero() {
			source.Timestamp = r.Timestamp
		}
	}
	if source.Symbol == "" {
		source.Symbol = symbol
	}

	return models.Recommendation{
		Action:     parseAction(source.Action),
		Symbol:     source.Symbol,
		EntryPrice: source.EntryPrice.Decimal,
		StopLoss:   source.StopLoss.Decimal,
		TakeProfit: source.TakeProfit.Decimal,
		Confidence: source.Confidence,
		Reason:     source.Reason,
		Timestamp:  source.Timestamp,
	}
}

func parseAction(action string) models.Action {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "BUY", "LONG":
		return models.ActionBuy
	case "SELL", "SHORT":
		return models.ActionSell
	default:
		return models.ActionNone
	}
}

// Client fetches trading recommendations from an analysis service over HTTP.
type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) GetRecommendation(ctx context.Context, symbol, timeframe string) (models.Recommendation, error) {
	const op = "Client.GetRecommendation"

	var result response
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": symbol, "timeframe": timeframe}).
		SetResult(&result).
		Get(recommendationPath)
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("%s: %w", op, errors.Wrap(exchangeErrors.ErrTransient, err.Error()))
	}

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return models.Recommendation{}, fmt.Errorf("%s: status %d: %w", op, resp.StatusCode(), exchangeErrors.ErrTransient)
	case resp.IsError():
		return models.Recommendation{}, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return result.toDomain(symbol), nil
}
