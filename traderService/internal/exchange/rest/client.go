package rest

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

// Client is the API-key variant: orders go out in one signed request.
type Client struct {
	*API
	signer *Signer
}

func New(api *API, signer *Signer) *Client {
	return &Client{API: api, signer: signer}
}

func (c *Client) PlaceOrder(ctx context.Context, params models.OrderParams) (models.OrderAck, error) {
	const op = "rest.Client.PlaceOrder"

	ack, err := c.PostOrder(ctx, NewOrderRequest(params))
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}

	return ack, nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.OrderAck, error) {
	const op = "rest.Client.ClosePosition"

	params, err := ClosingOrder(ctx, c, symbol, quantity)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}

	return c.PlaceOrder(ctx, params)
}

// Close wipes the credentials.
func (c *Client) Close() error {
	c.signer.Wipe()
	return nil
}
