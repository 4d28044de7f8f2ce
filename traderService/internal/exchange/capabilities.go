package exchange

import (
	"context"
	"fmt"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
)

type Flow int

const (
	FlowUnsupported Flow = iota
	FlowSignature
	FlowDirect
)

func (f Flow) String() string {
	switch f {
	case FlowSignature:
		return "signature"
	case FlowDirect:
		return "direct"
	default:
		return "unsupported"
	}
}

// Capabilities is resolved once per client. Optional capabilities are nil
// when the client does not provide them.
type Capabilities struct {
	Flow      Flow
	Signature SignatureSubmitter
	Direct    DirectSubmitter
	Canceller OrderCanceller
	Closer    PositionCloser
	History   TradeHistory
	Events    EventSource
}

// Resolve inspects client once. The signature flow wins when both
// submission flows are available.
func Resolve(client Client) Capabilities {
	var capabilities Capabilities

	if signature, ok := client.(SignatureSubmitter); ok {
		capabilities.Signature = signature
		capabilities.Flow = FlowSignature
	}
	if direct, ok := client.(DirectSubmitter); ok {
		capabilities.Direct = direct
		if capabilities.Flow == FlowUnsupported {
			capabilities.Flow = FlowDirect
		}
	}
	if canceller, ok := client.(OrderCanceller); ok {
		capabilities.Canceller = canceller
	}
	if closer, ok := client.(PositionCloser); ok {
		capabilities.Closer = closer
	}
	if history, ok := client.(TradeHistory); ok {
		capabilities.History = history
	}
	if events, ok := client.(EventSource); ok {
		capabilities.Events = events
	}

	return capabilities
}

// Submit sends one order through the resolved flow.
func (c Capabilities) Submit(ctx context.Context, params models.OrderParams) (models.OrderAck, error) {
	const op = "Capabilities.Submit"

	switch c.Flow {
	case FlowSignature:
		request, err := c.Signature.CreateOrderSignatureRequest(ctx, params)
		if err != nil {
			return models.OrderAck{}, fmt.Errorf("%s: signature request: %w", op, err)
		}

		signed, err := c.Signature.CreateSignedOrder(ctx, request)
		if err != nil {
			return models.OrderAck{}, fmt.Errorf("%s: sign: %w", op, err)
		}

		ack, err := c.Signature.PostSignedOrder(ctx, signed)
		if err != nil {
			return models.OrderAck{}, fmt.Errorf("%s: post: %w", op, err)
		}
		return ack, nil

	case FlowDirect:
		ack, err := c.Direct.PlaceOrder(ctx, params)
		if err != nil {
			return models.OrderAck{}, fmt.Errorf("%s: place: %w", op, err)
		}
		return ack, nil

	default:
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, exchangeErrors.ErrUnsupportedClient)
	}
}
