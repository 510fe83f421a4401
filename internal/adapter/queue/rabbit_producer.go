package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/aq2208/payflow/internal/usecase"
)

const (
	exchangeName = "payment.events"

	settlementRequestedKey = "settlement.requested"
	settlementRecordedKey  = "settlement.recorded"

	// Consumed by this service: the retried settlement pipeline.
	SettlementRequestedQueue = "settlement.requested.q"
)

// RabbitProducer publishes the settlement pipeline messages. The requested
// queue is declared and bound here because this service is also its consumer;
// the recorded event is fire-and-forget for the ledger/payout collaborator,
// which declares its own binding.
type RabbitProducer struct {
	ch *amqp.Channel
}

// NewRabbitProducer sets up the exchange, queue, and binding once at startup.
func NewRabbitProducer(ch *amqp.Channel) (*RabbitProducer, error) {
	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		SettlementRequestedQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, settlementRequestedKey, exchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	// Publisher confirms: a settlement request must not be lost in flight.
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch}, nil
}

func (p *RabbitProducer) PublishSettlementRequested(ctx context.Context, msg usecase.SettlementRequestedMsg) error {
	return p.publish(ctx, settlementRequestedKey, msg)
}

func (p *RabbitProducer) PublishSettlementRecorded(ctx context.Context, msg usecase.SettlementRecordedMsg) error {
	return p.publish(ctx, settlementRecordedKey, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, key string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	// The broker must ack the delivery before the caller may treat the
	// message as sent; without the wait, confirm mode guarantees nothing.
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, exchangeName, key, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: broker rejected the delivery", key)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
