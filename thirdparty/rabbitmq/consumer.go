package rabbitmq

import (
	"context"
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/ecofinds/marketplace/utils/logger"
)

// Handler processes one order event. A non-nil error requeues the delivery.
type Handler func(ctx context.Context, event OrderEvent) error

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewConsumer(host string, port int, user, password string) (*Consumer, error) {
	conn, err := amqp091.Dial(dsn(host, port, user, password))
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := declareExchange(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	_, err = channel.QueueDeclare(
		NotificationQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	err = channel.QueueBind(
		NotificationQueue,
		notificationBindingKey,
		OrderExchange,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, channel: channel}, nil
}

// Start consumes until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context, handle Handler) error {
	// process one message at a time
	if err := c.channel.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		NotificationQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			Dispatch(ctx, msg.Body, handle, delivery{msg})
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type delivery struct {
	d amqp091.Delivery
}

func (d delivery) Ack(multiple bool) error { return d.d.Ack(multiple) }

func (d delivery) Nack(multiple, requeue bool) error { return d.d.Nack(multiple, requeue) }

// Dispatch decodes body and runs handle, acking or requeueing through ack.
// Malformed messages are acked and dropped.
func Dispatch(ctx context.Context, body []byte, handle Handler, ack acknowledger) {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Error("[Consumer] unmarshal order event", zap.String("error", err.Error()))
		_ = ack.Ack(false)
		return
	}

	if err := handle(ctx, event); err != nil {
		logger.Error("[Consumer] handle order event", zap.String("event_id", event.EventID), zap.Uint64("order_id", event.OrderID), zap.String("error", err.Error()))
		_ = ack.Nack(false, true)
		return
	}

	_ = ack.Ack(false)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
