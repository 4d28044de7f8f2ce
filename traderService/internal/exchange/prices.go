package exchange

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

var staticPrices = []struct {
	prefix string
	price  decimal.Decimal
}{
	{prefix: "BTC", price: decimal.NewFromInt(50000)},
	{prefix: "ETH", price: decimal.NewFromInt(3000)},
	{prefix: "SUI", price: decimal.RequireFromString("1.5")},
	{prefix: "SOL", price: decimal.NewFromInt(100)},
	{prefix: "BNB", price: decimal.NewFromInt(400)},
}

// FallbackPrice is used when a symbol matches no static entry.
var FallbackPrice = decimal.NewFromInt(100)

// StaticPrice looks a symbol up in the fallback table by its prefix.
func StaticPrice(symbol string) (decimal.Decimal, error) {
	upper := strings.ToUpper(symbol)
	for _, entry := range staticPrices {
		if strings.HasPrefix(upper, entry.prefix) {
			return entry.price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("static price %s: %w", symbol, exchangeErrors.ErrUnknownSymbol)
}

// MidPrice is the mid of the best bid and ask.
func MidPrice(book models.Orderbook) (decimal.Decimal, error) {
	mid, ok := book.Mid()
	if !ok {
		return decimal.Zero, fmt.Errorf("order book %s: %w", book.Symbol, exchangeErrors.ErrEmptyOrderbook)
	}
	return mid, nil
}
