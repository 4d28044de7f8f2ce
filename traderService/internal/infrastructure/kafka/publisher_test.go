package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

func createdOrder(t *testing.T) models.Order {
	t.Helper()

	order := models.NewOrder(models.OrderParams{
		Symbol:   "SUI-PERP",
		Side:     models.SideSell,
		Type:     models.OrderTypeMarket,
		Quantity: decimal.RequireFromString("12.5"),
		Price:    decimal.RequireFromString("1.42"),
		Leverage: 3,
	})
	require.NoError(t, order.MarkCreated("0xfeed", time.Now()))
	return order
}

func TestPublishOrder(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(message *sarama.ProducerMessage) error {
		key, err := message.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "0xfeed" {
			return fmt.Errorf("unexpected key %q", key)
		}
		if message.Topic != "trader.orders" {
			return fmt.Errorf("unexpected topic %q", message.Topic)
		}

		value, err := message.Value.Encode()
		if err != nil {
			return err
		}
		var body orderMessage
		if err := json.Unmarshal(value, &body); err != nil {
			return err
		}
		if body.Transition != "OrderCreated" || body.State != string(models.StateCreated) || body.Quantity != "12.5" {
			return fmt.Errorf("unexpected body %+v", body)
		}
		return nil
	})

	publisher := NewPublisher(producer, "trader.orders")
	require.NoError(t, publisher.PublishOrder(context.Background(), "OrderCreated", createdOrder(t)))
	require.NoError(t, publisher.Close())
}

func TestPublishOrderFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewPublisher(producer, "trader.orders")
	err := publisher.PublishOrder(context.Background(), "OrderCreated", createdOrder(t))
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	require.NoError(t, publisher.Close())
}

func TestPublishOrderCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPublisher(producer, "trader.orders").PublishOrder(ctx, "OrderCreated", createdOrder(t))
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, producer.Close())
}
