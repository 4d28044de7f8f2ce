package alert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const (
	FormatDirect    = "direct"
	FormatIndicator = "indicator"
	FormatUnknown   = "unknown"

	indicatorName    = "vmanchu_cipher_b"
	defaultSymbol    = "SUI/USD"
	defaultTimeframe = "5m"
	perpSuffix       = "-PERP"
)

// Payload covers both accepted alert bodies. The direct form carries symbol
// and type, the indicator form carries indicator, action and signal_type.
type Payload struct {
	Symbol       string           `json:"symbol"`
	Type         string           `json:"type"`
	PositionSize *decimal.Decimal `json:"position_size"`
	Leverage     *int             `json:"leverage"`
	StopLoss     *decimal.Decimal `json:"stop_loss"`
	TakeProfit   *decimal.Decimal `json:"take_profit"`

	Indicator  string `json:"indicator"`
	Action     string `json:"action"`
	SignalType string `json:"signal_type"`
	Timeframe  string `json:"timeframe"`
}

// Format names the body shape, or FormatUnknown.
func (p Payload) Format() string {
	switch {
	case p.Symbol != "" && p.Type != "":
		return FormatDirect
	case p.Indicator == indicatorName:
		return FormatIndicator
	default:
		return FormatUnknown
	}
}

// Parse decodes and validates one alert body.
func Parse(body []byte) (models.Alert, string, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.Alert{}, FormatUnknown, fmt.Errorf("%w: %w", serviceErrors.ErrInvalidAlert, err)
	}

	alert, err := payload.ToDomain()
	return alert, payload.Format(), err
}

func (p Payload) ToDomain() (models.Alert, error) {
	switch p.Format() {
	case FormatDirect:
		return p.direct()
	case FormatIndicator:
		return p.indicator()
	default:
		return models.Alert{}, fmt.Errorf("%w: unsupported alert format", serviceErrors.ErrInvalidAlert)
	}
}

func (p Payload) direct() (models.Alert, error) {
	side, err := models.ParseSide(p.Type)
	if err != nil {
		return models.Alert{}, fmt.Errorf("%w: %w", serviceErrors.ErrInvalidAlert, err)
	}

	for name, value := range map[string]*decimal.Decimal{
		"position_size": p.PositionSize,
		"stop_loss":     p.StopLoss,
		"take_profit":   p.TakeProfit,
	} {
		if value != nil && value.IsNegative() {
			return models.Alert{}, fmt.Errorf("%w: negative %s", serviceErrors.ErrInvalidAlert, name)
		}
	}
	if p.Leverage != nil && *p.Leverage <= 0 {
		return models.Alert{}, fmt.Errorf("%w: leverage %d", serviceErrors.ErrInvalidAlert, *p.Leverage)
	}

	return models.Alert{
		Symbol:       NormalizeSymbol(p.Symbol),
		Side:         side,
		PositionSize: p.PositionSize,
		Leverage:     p.Leverage,
		StopLoss:     p.StopLoss,
		TakeProfit:   p.TakeProfit,
		Source:       FormatDirect,
		Timeframe:    p.Timeframe,
	}, nil
}

func (p Payload) indicator() (models.Alert, error) {
	var side models.Side
	switch p.Action {
	case string(models.SideBuy):
		side = models.SideBuy
	case string(models.SideSell):
		side = models.SideSell
	default:
		return models.Alert{}, fmt.Errorf("%w: action %q", serviceErrors.ErrInvalidAlert, p.Action)
	}

	signal := models.SignalType(p.SignalType)
	if !signal.Valid() {
		return models.Alert{}, fmt.Errorf("%w: signal type %q", serviceErrors.ErrInvalidAlert, p.SignalType)
	}

	symbol := p.Symbol
	if symbol == "" {
		symbol = defaultSymbol
	}
	timeframe := p.Timeframe
	if timeframe == "" {
		timeframe = defaultTimeframe
	}

	return models.Alert{
		Symbol:     NormalizeSymbol(symbol),
		Side:       side,
		Source:     indicatorName,
		SignalType: signal,
		Timeframe:  timeframe,
	}, nil
}

// NormalizeSymbol maps "SUI/USD" and "SUI" to "SUI-PERP".
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if base, _, found := strings.Cut(symbol, "/"); found {
		return base + perpSuffix
	}
	if strings.HasSuffix(symbol, perpSuffix) {
		return symbol
	}
	return symbol + perpSuffix
}
