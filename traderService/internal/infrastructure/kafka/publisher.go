package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

type orderMessage struct {
	Transition      string    `json:"transition"`
	Hash            string    `json:"order_hash"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Type            string    `json:"order_type"`
	State           string    `json:"state"`
	Quantity        string    `json:"quantity"`
	Price           string    `json:"price"`
	FillPrice       string    `json:"fill_price"`
	MatchedQuantity string    `json:"matched_quantity"`
	RequeueCount    int       `json:"requeue_count"`
	Cancelled       bool      `json:"cancelled"`
	ReduceOnly      bool      `json:"reduce_only"`
	PublishedAt     time.Time `json:"published_at"`
}

func newOrderMessage(transition string, order models.Order, at time.Time) orderMessage {
	return orderMessage{
		Transition:      transition,
		Hash:            order.Hash,
		Symbol:          order.Symbol,
		Side:            string(order.Side),
		Type:            string(order.Type),
		State:           string(order.State()),
		Quantity:        order.Quantity.String(),
		Price:           order.Price.String(),
		FillPrice:       order.Settlement.FillPrice.String(),
		MatchedQuantity: order.Settlement.MatchedQuantity.String(),
		RequeueCount:    order.Settlement.RequeueCount,
		Cancelled:       order.Settlement.Cancelled,
		ReduceOnly:      order.ReduceOnly,
		PublishedAt:     at,
	}
}

// Publisher emits one message per ledger transition, keyed by order hash
// so a partition sees an order's transitions in order.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "perp-trader"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("sarama.NewSyncProducer: %w", err)
	}

	return producer, nil
}

func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

func (p *Publisher) PublishOrder(ctx context.Context, transition string, order models.Order) error {
	const op = "Publisher.PublishOrder"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	payload, err := json.Marshal(newOrderMessage(transition, order, p.now().UTC()))
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(order.Hash),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("transition"), Value: []byte(transition)},
		},
	})
	if err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
