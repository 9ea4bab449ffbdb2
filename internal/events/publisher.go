/**
 * @description
 * This file defines the event publishing layer that sits between the action
 * handlers and the RabbitMQ producer. Every successful transition produces one
 * AnchorEvent carrying a post-commit snapshot of the transaction; events are
 * routed by protocol so business servers can bind only the SEPs they serve.
 * Publishing is strictly best-effort: a broker outage must never fail a
 * transition that has already been committed, so failures are logged and
 * swallowed here.
 *
 * @dependencies
 * - github.com/google/uuid: Event identifiers.
 * - pkg/rabbitmq: The underlying producer.
 * - internal/domain: Event and transaction models.
 */

package events

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/lumenbridge/platform-service/internal/domain"
	"github.com/lumenbridge/platform-service/pkg/rabbitmq"
)

// Publisher emits anchor events for committed transaction transitions.
type Publisher interface {
	PublishTransactionEvent(ctx context.Context, eventType string, txn *domain.Transaction)
}

// AMQPPublisher publishes anchor events through a RabbitMQ producer.
type AMQPPublisher struct {
	producer rabbitmq.Publisher
}

// NewAMQPPublisher creates a publisher backed by the given producer.
func NewAMQPPublisher(producer rabbitmq.Publisher) *AMQPPublisher {
	return &AMQPPublisher{producer: producer}
}

// PublishTransactionEvent builds an AnchorEvent with a fresh id and the
// transaction's current snapshot and publishes it to the anchor events
// exchange. Failures are logged and swallowed: the transition is already
// committed and delivery is at-least-once via downstream retries, not ours.
func (p *AMQPPublisher) PublishTransactionEvent(ctx context.Context, eventType string, txn *domain.Transaction) {
	event := domain.AnchorEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Sep:         txn.Protocol,
		Transaction: txn.Snapshot(),
	}

	routingKey := "transactions.sep" + string(txn.Protocol)
	if err := p.producer.Publish(ctx, rabbitmq.AnchorEventsExchange, routingKey, event); err != nil {
		log.Printf("level=error component=event_publisher msg=\"failed to publish anchor event\" event_id=%s type=%s transaction_id=%s err=%v",
			event.ID, eventType, txn.ID, err)
	}
}
