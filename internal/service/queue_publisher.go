// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures without
// interrupting the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    q "github.com/iliyamo/smart-seat-booking/internal/queue"
)

// Publisher sends chart events to the seats.allocated queue.  Each call
// opens its own connection; allocation traffic is one message per user
// click.
type Publisher struct {
    URL string
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PublishSeatsAllocated publishes event to the "seats.allocated" queue.  The
// function never panics; any error is logged and returned so the caller can
// choose to ignore it.  Messages are marked as persistent.
func (p *Publisher) PublishSeatsAllocated(ctx context.Context, event q.SeatsAllocatedEvent) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        q.AllocationQueueName, // name
        true,                  // durable
        false,                 // autoDelete
        false,                 // exclusive
        false,                 // noWait
        nil,                   // args
    ); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    pub, err := newPublishing(event)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    if err := ch.PublishWithContext(ctx,
        "",                    // default exchange
        q.AllocationQueueName, // routing key = queue name
        false,                 // mandatory
        false,                 // immediate
        pub,
    ); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

// newPublishing wraps event in a persistent JSON message.
func newPublishing(event q.SeatsAllocatedEvent) (amqp.Publishing, error) {
    body, err := json.Marshal(event)
    if err != nil {
        return amqp.Publishing{}, err
    }
    return amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }, nil
}
