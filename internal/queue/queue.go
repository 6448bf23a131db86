package queue

import (
	"context"
	"time"
)

// Publisher publishes work items to the notification work queue.
type Publisher interface {
	Publish(ctx context.Context, item WorkItem) error
	PublishWithDelay(ctx context.Context, item WorkItem, delay time.Duration) error
	Close() error
}

// MessageHandler handles a consumed work item.
type MessageHandler func(ctx context.Context, item WorkItem) error

// Consumer consumes work items from the notification work queue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

const (
	// WorkQueueName is the single durable work queue every notification
	// flows through, regardless of vendor.
	WorkQueueName = "notifications.work"

	// DeadLetterQueueName receives messages RabbitMQ exhausts on the
	// work queue's dead-letter routing.
	DeadLetterQueueName = "notifications.dlq"
)
