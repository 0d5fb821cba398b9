package seating

import "errors"

// Party sizes accepted at the boundary.
const (
	MinPartySize = 1
	MaxPartySize = 7
)

// ErrInvalidPartySize is returned by ValidatePartySize for sizes outside
// MinPartySize..MaxPartySize.
var ErrInvalidPartySize = errors.New("party size must be between 1 and 7")

// ErrNoSuitableSeats reports that no rule found seats for the party.
var ErrNoSuitableSeats = errors.New("no suitable seats available for this group size")

// NoSuitableSeatsNotice is the message shown to the user when Allocate fails.
const NoSuitableSeatsNotice = "No suitable seats available for this group size."

// ValidatePartySize rejects party sizes the seating form never offers.
func ValidatePartySize(n int) error {
	if n < MinPartySize || n > MaxPartySize {
		return ErrInvalidPartySize
	}
	return nil
}

// Allocate seats a party of count passengers and returns the resulting chart.
// The rules are applied in order:
//
//  1. A party of three takes the first three free seats of PriorityRow when
//     that row has at least three free, contiguous or not.
//  2. Otherwise the first run of count adjacent free seats is taken, scanning
//     rows in order and seats left to right.
//  3. A single passenger falls back to the first free seat anywhere.
//
// When no rule applies the returned chart equals the input and the bool is
// false.  The input chart is never modified.
func Allocate(chart Chart, count int) (Chart, bool) {
	if count < 1 {
		return chart, false
	}
	next := chart.Clone()

	if count == 3 {
		if row := next.RowByNumber(PriorityRow); row != nil && freeSeats(row.Seats) >= 3 {
			booked := 0
			for i := 0; i < len(row.Seats) && booked < 3; i++ {
				if !row.Seats[i] {
					row.Seats[i] = true
					booked++
				}
			}
			return next, true
		}
	}

	for r := range next.Rows {
		seats := next.Rows[r].Seats
		if start := firstRun(seats, count); start >= 0 {
			for j := start; j < start+count; j++ {
				seats[j] = true
			}
			return next, true
		}
	}

	// Rule 2 already takes any lone free seat, so this only runs on a full
	// chart and finds nothing.
	if count == 1 {
		for r := range next.Rows {
			seats := next.Rows[r].Seats
			for i, taken := range seats {
				if !taken {
					seats[i] = true
					return next, true
				}
			}
		}
	}

	return chart, false
}

// Seat is Allocate for callers that want the seats taken and an error.  It
// returns ErrNoSuitableSeats, with the input chart, when no rule applies.
func Seat(chart Chart, count int) (Chart, []Position, error) {
	next, ok := Allocate(chart, count)
	if !ok {
		return chart, nil, ErrNoSuitableSeats
	}
	return next, Diff(chart, next), nil
}

// Reset returns a chart with the same rows and seat counts as chart and
// every seat available.
func Reset(chart Chart) Chart {
	rows := make([]Row, len(chart.Rows))
	for i, r := range chart.Rows {
		rows[i] = Row{Number: r.Number, Seats: make([]bool, len(r.Seats))}
	}
	return Chart{Rows: rows}
}

// Diff lists the seats that are occupied in after but free in before, in
// row then seat order.  Rows are matched by row number.
func Diff(before, after Chart) []Position {
	var out []Position
	for _, ar := range after.Rows {
		br := before.RowByNumber(ar.Number)
		for i, taken := range ar.Seats {
			if !taken {
				continue
			}
			if br != nil && i < len(br.Seats) && br.Seats[i] {
				continue
			}
			out = append(out, Position{Row: ar.Number, Seat: i + 1})
		}
	}
	return out
}

// firstRun returns the index where the first run of n free seats starts, or
// -1 when the row has none.
func firstRun(seats []bool, n int) int {
	run, start := 0, -1
	for i, taken := range seats {
		if taken {
			run, start = 0, -1
			continue
		}
		if start == -1 {
			start = i
		}
		run++
		if run == n {
			return start
		}
	}
	return -1
}

func freeSeats(seats []bool) int {
	n := 0
	for _, taken := range seats {
		if !taken {
			n++
		}
	}
	return n
}
