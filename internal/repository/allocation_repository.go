package repository // repository defines data access for the allocation audit trail

import (
    "context"      // context allows query cancellation and timeouts
    "database/sql" // sql provides DB primitives
    "strings"      // strings joins and splits seat labels

    "github.com/iliyamo/smart-seat-booking/internal/model"
)

// AllocationRepo writes and reads rows of the allocation_log table.
type AllocationRepo struct {
    db *sql.DB
}

// NewAllocationRepo constructs an AllocationRepo with the given DB handle.
func NewAllocationRepo(db *sql.DB) *AllocationRepo {
    return &AllocationRepo{db: db}
}

// EnsureSchema creates the allocation_log table when it does not exist.
func (r *AllocationRepo) EnsureSchema(ctx context.Context) error {
    if r == nil || r.db == nil {
        return ErrNotConfigured
    }
    const q = `CREATE TABLE IF NOT EXISTS allocation_log (
                   id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
                   session_id CHAR(36) NOT NULL,
                   kind VARCHAR(16) NOT NULL,
                   party_size TINYINT NOT NULL,
                   allocated BOOLEAN NOT NULL,
                   seats VARCHAR(255) NOT NULL DEFAULT '',
                   available SMALLINT NOT NULL,
                   created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                   KEY idx_allocation_log_session (session_id, id)
               ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
    _, err := r.db.ExecContext(ctx, q)
    return err
}

// Record inserts a. On success a.ID is populated.
func (r *AllocationRepo) Record(ctx context.Context, a *model.Allocation) error {
    if r == nil || r.db == nil {
        return ErrNotConfigured
    }
    const q = `INSERT INTO allocation_log (session_id, kind, party_size, allocated, seats, available)
               VALUES (?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, a.SessionID, a.Kind, a.PartySize, a.Allocated, strings.Join(a.Seats, ","), a.Available)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    a.ID = uint64(id)
    return nil
}

// ListBySession returns the requests of a session, oldest first.  limit <= 0
// returns every row.
func (r *AllocationRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.Allocation, error) {
    if r == nil || r.db == nil {
        return nil, ErrNotConfigured
    }
    q := `SELECT id, session_id, kind, party_size, allocated, seats, available, created_at
          FROM allocation_log
          WHERE session_id = ?
          ORDER BY id`
    args := []interface{}{sessionID}
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var result []model.Allocation
    for rows.Next() {
        var a model.Allocation
        var seats string
        if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &a.PartySize, &a.Allocated, &seats, &a.Available, &a.CreatedAt); err != nil {
            return nil, err
        }
        a.Seats = splitSeats(seats)
        result = append(result, a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return result, nil
}

// splitSeats turns the stored comma separated labels back into a slice.
func splitSeats(s string) []string {
    if s == "" {
        return []string{}
    }
    return strings.Split(s, ",")
}
