package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

func TestStaticPrice(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		expected    string
		expectedErr error
	}{
		{name: "известный символ", symbol: "BTC-PERP", expected: "50000"},
		{name: "регистр не важен", symbol: "sui-perp", expected: "1.5"},
		{name: "неизвестный символ", symbol: "DOGE-PERP", expectedErr: exchangeErrors.ErrUnknownSymbol},
		{name: "пустой символ", symbol: "", expectedErr: exchangeErrors.ErrUnknownSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := StaticPrice(tt.symbol)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.True(t, price.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(price), "got %s", price)
		})
	}
}

func TestMidPrice(t *testing.T) {
	level := func(price string) []models.OrderbookLevel {
		return []models.OrderbookLevel{{Price: decimal.RequireFromString(price), Quantity: decimal.NewFromInt(1)}}
	}

	tests := []struct {
		name        string
		book        models.Orderbook
		expected    string
		expectedErr error
	}{
		{name: "обе стороны", book: models.Orderbook{Symbol: "ETH-PERP", Bids: level("2999"), Asks: level("3001")}, expected: "3000"},
		{name: "пустой стакан", book: models.Orderbook{Symbol: "ETH-PERP"}, expectedErr: exchangeErrors.ErrEmptyOrderbook},
		{name: "нет предложений", book: models.Orderbook{Symbol: "ETH-PERP", Bids: level("2999")}, expectedErr: exchangeErrors.ErrEmptyOrderbook},
		{name: "нет спроса", book: models.Orderbook{Symbol: "ETH-PERP", Asks: level("3001")}, expectedErr: exchangeErrors.ErrEmptyOrderbook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mid, err := MidPrice(tt.book)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(mid), "got %s", mid)
		})
	}
}
