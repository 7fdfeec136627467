package queue

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one decoded attendance event.
type HandlerFunc func(ctx context.Context, ev AttendanceEvent) error

// Consumer reads attendance events from a durable queue with manual acks.
// Invalid events are dropped.  Any other handler failure (the store being
// down, say) is requeued after RetryDelay so no scan is lost.
type Consumer struct {
	URL        string
	Queue      string
	Prefetch   int
	RetryDelay time.Duration
	Handle     HandlerFunc
	Logger     echo.Logger
}

// NewConsumer returns a consumer with a prefetch of 50 and a 5s retry
// delay.
func NewConsumer(url, queue string, h HandlerFunc, logger echo.Logger) *Consumer {
	return &Consumer{URL: url, Queue: queue, Prefetch: 50, RetryDelay: 5 * time.Second, Handle: h, Logger: logger}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff (capped at 30s) whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warnf("attendance-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warnf("attendance-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.Logger.Warnf("attendance-consumer: set QoS failed: %v", err)
	}
	if _, err := declare(ch, c.Queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}
	c.Logger.Infof("attendance-consumer: consuming %s", c.Queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.settle(ctx, d)
		}
	}
}

// settle handles one delivery and then acks, drops or requeues it.  The
// retry delay holds back the rest of the prefetch window as well.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	err := c.deliver(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrInvalidEvent):
		c.Logger.Errorf("attendance-consumer: dropping message: %v", err)
		_ = d.Nack(false, false)
	default:
		c.Logger.Warnf("attendance-consumer: handle message failed: %v; requeueing in %s", err, c.RetryDelay)
		sleep(ctx, c.RetryDelay)
		_ = d.Nack(false, true)
	}
}

// deliver decodes body and hands it to the handler.
func (c *Consumer) deliver(ctx context.Context, body []byte) error {
	ev, err := Decode(body)
	if err != nil {
		return err
	}
	return c.Handle(ctx, ev)
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
