// Package messaging feeds back-office events from RabbitMQ into the same
// event pipeline the devices replay into.
package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/core/service"
)

const (
	ExchangeName = "pos.events"
	ExchangeType = "topic"

	HeaderStoreID  = "store_id"
	HeaderDeviceID = "device_id"
)

var RoutingKeys = []string{
	domain.EventPurchaseReceived,
	domain.EventStockAdjusted,
	domain.EventSaleCompleted,
}

// EventProcessor is the slice of the event service the consumer needs.
type EventProcessor interface {
	Process(ctx context.Context, ev domain.InboundEvent) (service.Outcome, error)
}

type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	events    EventProcessor
	logger    *zap.Logger
}

func NewConsumer(url, queueName string, events EventProcessor, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Consumer{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		events:    events,
		logger:    logger,
	}, nil
}

// Run consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	queue, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range RoutingKeys {
		if err := c.channel.QueueBind(queue.Name, key, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", key, err)
		}
	}

	msgs, err := c.channel.Consume(queue.Name, c.queueName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	c.logger.Info("consuming events", zap.String("queue", queue.Name), zap.Strings("routing_keys", RoutingKeys))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			handleDelivery(ctx, c.events, msg, c.logger)
		}
	}
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

// handleDelivery acks applied and duplicate events, drops rejected or
// malformed ones, and requeues on infrastructure failure.
func handleDelivery(ctx context.Context, events EventProcessor, msg amqp.Delivery, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ev := domain.InboundEvent{
		EventID:   msg.MessageId,
		EventType: msg.RoutingKey,
		StoreID:   headerString(msg.Headers, HeaderStoreID),
		DeviceID:  headerString(msg.Headers, HeaderDeviceID),
		Payload:   msg.Body,
	}
	if ev.DeviceID == "" {
		ev.DeviceID = msg.AppId
	}
	log := logger.With(zap.String("event_id", ev.EventID), zap.String("event_type", ev.EventType))

	if ev.EventID == "" {
		log.Warn("dropping message without message id")
		msg.Nack(false, false)
		return
	}

	outcome, err := events.Process(ctx, ev)
	switch {
	case err == nil:
		log.Debug("event consumed", zap.String("outcome", string(outcome)))
		msg.Ack(false)
	case domain.IsRejection(err):
		log.Warn("event rejected", zap.Error(err))
		msg.Nack(false, false)
	default:
		log.Error("event processing failed, requeueing", zap.Error(err))
		msg.Nack(false, true)
	}
}

func headerString(h amqp.Table, key string) string {
	if h == nil {
		return ""
	}
	if s, ok := h[key].(string); ok {
		return s
	}
	return ""
}
