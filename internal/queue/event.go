// Package queue defines message payloads exchanged over the message broker.
package queue

// AllocationQueueName is the durable queue carrying chart changes.
const AllocationQueueName = "seats.allocated"

// SeatsAllocatedEvent is published after a session's chart changes: when a
// party is seated (Kind ALLOCATE) and when the chart is cleared (Kind
// RESET).  It carries enough for consumers to log or notify without calling
// back into the service.
type SeatsAllocatedEvent struct {
    SessionID  string   `json:"session_id"`
    Kind       string   `json:"kind"`
    PartySize  int      `json:"party_size"`
    SeatLabels []string `json:"seats"`
    Available  int      `json:"available"`
    OccurredAt string   `json:"occurred_at"`
}
