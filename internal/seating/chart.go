// Package seating models the fixed seating chart and the allocation rules
// that fill it.  Every operation is a pure function: it receives a chart and
// returns a new one, leaving the input untouched so callers can compare the
// old and new snapshots before publishing the update.
package seating

import (
	"fmt"
	"strings"
)

// Layout lists the seat count of each row in display order.  Rows 1–6 hold
// seven seats and row 7 holds three.
var Layout = []int{7, 7, 7, 7, 7, 7, 3}

// PriorityRow is the short row that parties of exactly three fill first.
const PriorityRow = 7

// Row is one row of the chart.  A true seat is occupied; false is available.
type Row struct {
	Number int    `json:"row_number"`
	Seats  []bool `json:"seats"`
}

// Chart is the whole seating state: rows ordered by row number.
type Chart struct {
	Rows []Row `json:"rows"`
}

// Position identifies a seat by its 1-based row number and seat number.
type Position struct {
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

// String renders the position as "row-seat", e.g. "7-2".
func (p Position) String() string { return fmt.Sprintf("%d-%d", p.Row, p.Seat) }

// New returns a chart built from Layout with every seat available.
func New() Chart {
	rows := make([]Row, len(Layout))
	for i, n := range Layout {
		rows[i] = Row{Number: i + 1, Seats: make([]bool, n)}
	}
	return Chart{Rows: rows}
}

// Clone returns a deep copy that shares no seat slices with c.
func (c Chart) Clone() Chart {
	rows := make([]Row, len(c.Rows))
	for i, r := range c.Rows {
		seats := make([]bool, len(r.Seats))
		copy(seats, r.Seats)
		rows[i] = Row{Number: r.Number, Seats: seats}
	}
	return Chart{Rows: rows}
}

// RowByNumber returns a pointer to the row with the given number, or nil.
func (c Chart) RowByNumber(number int) *Row {
	for i := range c.Rows {
		if c.Rows[i].Number == number {
			return &c.Rows[i]
		}
	}
	return nil
}

// Capacity is the total number of seats.
func (c Chart) Capacity() int {
	n := 0
	for _, r := range c.Rows {
		n += len(r.Seats)
	}
	return n
}

// Occupied counts occupied seats across all rows.
func (c Chart) Occupied() int {
	n := 0
	for _, r := range c.Rows {
		for _, taken := range r.Seats {
			if taken {
				n++
			}
		}
	}
	return n
}

// Available counts free seats across all rows.
func (c Chart) Available() int { return c.Capacity() - c.Occupied() }

// Equal reports whether both charts have the same rows, seat counts and
// occupancy.
func (c Chart) Equal(o Chart) bool {
	if len(c.Rows) != len(o.Rows) {
		return false
	}
	for i := range c.Rows {
		a, b := c.Rows[i], o.Rows[i]
		if a.Number != b.Number || len(a.Seats) != len(b.Seats) {
			return false
		}
		for j := range a.Seats {
			if a.Seats[j] != b.Seats[j] {
				return false
			}
		}
	}
	return true
}

// String renders the chart one row per line.  Free seats show their number,
// occupied seats show X:
//
//	Row 7: [X] [X] [3]
func (c Chart) String() string {
	var b strings.Builder
	for _, r := range c.Rows {
		fmt.Fprintf(&b, "Row %d:", r.Number)
		for i, taken := range r.Seats {
			if taken {
				b.WriteString(" [X]")
			} else {
				fmt.Fprintf(&b, " [%d]", i+1)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
