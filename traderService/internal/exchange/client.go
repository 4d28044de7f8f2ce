package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

// Client is the capability every exchange variant provides.
type Client interface {
	GetAccountInfo(ctx context.Context) (models.Account, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetMarginBankBalance(ctx context.Context) (decimal.Decimal, error)
	GetOrderbook(ctx context.Context, symbol string) (models.Orderbook, error)
	GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetUserLeverage(ctx context.Context, symbol string) (int, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) (LeverageResult, error)
}

// LeverageResult must carry an explicit success flag; a zero value is a failure.
type LeverageResult struct {
	Success  bool
	Leverage int
}

// SignatureRequest is an unsigned order ready for local signing.
type SignatureRequest struct {
	Params     models.OrderParams
	Salt       string
	Expiration int64
	Digest     []byte
}

type SignedOrder struct {
	Request   SignatureRequest
	Signature string
}

type SignatureSubmitter interface {
	CreateOrderSignatureRequest(ctx context.Context, params models.OrderParams) (SignatureRequest, error)
	CreateSignedOrder(ctx context.Context, request SignatureRequest) (SignedOrder, error)
	PostSignedOrder(ctx context.Context, signed SignedOrder) (models.OrderAck, error)
}

type DirectSubmitter interface {
	PlaceOrder(ctx context.Context, params models.OrderParams) (models.OrderAck, error)
}

type OrderCanceller interface {
	CancelOrder(ctx context.Context, symbol, orderHash string) error
}

type PositionCloser interface {
	ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.OrderAck, error)
}

type TradeHistory interface {
	GetUserTradesHistory(ctx context.Context, filter models.TradeFilter) ([]models.Trade, error)
}

// EventSource delivers order lifecycle events in exchange order.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan models.OrderEvent, error)
}
