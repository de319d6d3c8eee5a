// Package queue consumes raw weather observations from RabbitMQ and hands
// them to a Sink without classification.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/service"
)

// DefaultQueue is the durable queue upstream collectors publish raw readings to.
const DefaultQueue = "weather.raw"

// ErrPermanent marks a sink failure that redelivery cannot fix.
var ErrPermanent = errors.New("permanent sink failure")

// Sink stores one raw observation.
type Sink interface {
	CreateRaw(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error)
}

// Delivery outcomes, also used as metric labels.
const (
	outcomeAck     = "ack"
	outcomeRequeue = "requeue"
	outcomeDrop    = "drop"
)

// Consumer reads the raw queue with manual acknowledgement.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	sink     Sink
	logger   *zap.Logger
}

// NewConsumer returns a consumer for queue (DefaultQueue when empty) at url.
func NewConsumer(url, queue string, prefetch int, sink Sink, logger *zap.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, prefetch: prefetch, sink: sink, logger: logger}
}

// Run consumes until ctx is done or the broker closes the channel. It returns
// nil on ctx cancellation and an error when the connection is lost.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming raw observations", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle stores one delivery and settles it: Ack on success, Nack without
// requeue for undecodable or invalid bodies, Nack with requeue otherwise.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) string {
	logger := c.logger.With(zap.Uint64("deliveryTag", d.DeliveryTag))

	var obs models.WeatherObservation
	if err := json.Unmarshal(d.Body, &obs); err != nil {
		logger.Warn("malformed raw observation, dropping", zap.Error(err))
		return c.settle(logger, d, outcomeDrop)
	}

	rec, err := c.sink.CreateRaw(ctx, obs)
	switch {
	case err == nil:
		logger.Debug("raw observation stored", zap.String("id", rec.ID), zap.String("city", rec.City))
		return c.settle(logger, d, outcomeAck)
	case errors.Is(err, service.ErrInvalidObservation), errors.Is(err, ErrPermanent):
		logger.Warn("raw observation rejected, dropping", zap.Error(err))
		return c.settle(logger, d, outcomeDrop)
	default:
		logger.Warn("raw observation not stored, requeueing", zap.Error(err))
		return c.settle(logger, d, outcomeRequeue)
	}
}

func (c *Consumer) settle(logger *zap.Logger, d amqp.Delivery, outcome string) string {
	var err error
	switch outcome {
	case outcomeAck:
		err = d.Ack(false)
	case outcomeRequeue:
		err = d.Nack(false, true)
	default:
		err = d.Nack(false, false)
	}
	if err != nil {
		logger.Error("settle delivery failed", zap.String("outcome", outcome), zap.Error(err))
	}
	observability.RawMessagesTotal.WithLabelValues(outcome).Inc()
	return outcome
}
