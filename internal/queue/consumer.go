// Package queue contains the background consumer that listens to the
// seats.allocated queue and writes one line per event to logs/allocation.log.
package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// LogDir is where StartAllocationConsumer appends allocation.log.
var LogDir = "logs"

// StartAllocationConsumer connects to RabbitMQ at url, declares the
// seats.allocated queue (durable) and consumes messages until ctx is
// cancelled.  Each message is appended to logs/allocation.log.  Broker
// failures trigger a reconnect with exponential backoff; malformed messages
// are logged and rejected so the consumer keeps running.
func StartAllocationConsumer(ctx context.Context, url string) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("allocation-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("allocation-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

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

func consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("allocation-consumer: set QoS failed: %v", err)
    }

    if _, err := ch.QueueDeclare(AllocationQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(AllocationQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(d.Body); err != nil {
                log.Printf("allocation-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(body []byte) error {
    var ev SeatsAllocatedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.SessionID == "" {
        return errors.New("event without session_id")
    }
    if err := os.MkdirAll(LogDir, 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join(LogDir, "allocation.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    return writeLine(f, ev)
}

// writeLine formats ev as a single human-friendly line.
func writeLine(w io.Writer, ev SeatsAllocatedEvent) error {
    seats := "[]"
    if len(ev.SeatLabels) > 0 {
        seats = fmt.Sprintf("[%s]", strings.Join(ev.SeatLabels, ","))
    }
    var line string
    switch ev.Kind {
    case "RESET":
        line = fmt.Sprintf("[%s] Chart reset | session_id=%s | available=%d\n",
            ev.OccurredAt, ev.SessionID, ev.Available)
    default:
        line = fmt.Sprintf("[%s] Seats allocated | session_id=%s | party_size=%d | seats=%s | available=%d\n",
            ev.OccurredAt, ev.SessionID, ev.PartySize, seats, ev.Available)
    }
    if _, err := io.WriteString(w, line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
