package model

import "time"

// Allocation records one allocation request made in a booking session.
// Every request is logged, including the ones that found no seats, so the
// trail shows what users asked for as well as what they got.  This struct
// corresponds to a row in the `allocation_log` table.
//
// Fields:
//  ID         – primary key identifier.
//  SessionID  – booking session the request belonged to.
//  Kind       – ALLOCATE or RESET.
//  PartySize  – passengers requested (0 for resets).
//  Allocated  – whether seats were assigned.
//  Seats      – seats taken as "row-seat" labels, empty on failure.
//  Available  – free seats left in the chart after the request.
//  CreatedAt  – timestamp of the request.
type Allocation struct {
    ID        uint64    // allocation_log.id
    SessionID string    // allocation_log.session_id
    Kind      string    // allocation_log.kind
    PartySize int       // allocation_log.party_size
    Allocated bool      // allocation_log.allocated
    Seats     []string  // allocation_log.seats (comma separated)
    Available int       // allocation_log.available
    CreatedAt time.Time // allocation_log.created_at
}

// Allocation kinds.
const (
    KindAllocate = "ALLOCATE"
    KindReset    = "RESET"
)
