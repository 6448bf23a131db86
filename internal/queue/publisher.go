package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, item WorkItem) error {
	return p.publish(ctx, "", WorkQueueName, item, 0)
}

// PublishWithDelay routes the item through the delayed-message exchange
// with an x-delay header (milliseconds); the RabbitMQ delayed-message-
// exchange plugin holds the message for that duration before delivering it
// to the work queue.
func (p *RabbitMQPublisher) PublishWithDelay(ctx context.Context, item WorkItem, delay time.Duration) error {
	if delay <= 0 {
		return p.Publish(ctx, item)
	}
	return p.publish(ctx, delayExchangeName, WorkQueueName, item, delay)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, exchange, routingKey string, item WorkItem, delay time.Duration) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid work item: %w", err)
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	var headers amqp.Table
	if delay > 0 {
		headers = amqp.Table{"x-delay": delay.Milliseconds()}
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    item.NotificationID,
		Headers:      headers,
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", routingKey, err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
