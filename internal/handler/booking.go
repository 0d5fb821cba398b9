package handler

import (
    "context"  // background context for event publishing
    "errors"   // errors.Is comparisons against sentinel errors
    "net/http" // HTTP status codes
    "time"     // timestamps for events and publish timeouts

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/smart-seat-booking/internal/middleware" // session ID lookup
    "github.com/iliyamo/smart-seat-booking/internal/model"      // audit trail rows
    "github.com/iliyamo/smart-seat-booking/internal/queue"      // event payloads
    "github.com/iliyamo/smart-seat-booking/internal/repository" // ErrNotConfigured
    "github.com/iliyamo/smart-seat-booking/internal/seating"    // allocation rules
    "github.com/iliyamo/smart-seat-booking/internal/session"    // in-memory charts
    "github.com/iliyamo/smart-seat-booking/internal/utils"      // session tokens
)

// AllocationLog is the audit trail the handler writes to.  It is satisfied
// by *repository.AllocationRepo.
type AllocationLog interface {
    Record(ctx context.Context, a *model.Allocation) error
    ListBySession(ctx context.Context, sessionID string, limit int) ([]model.Allocation, error)
}

// EventPublisher delivers chart events to the broker.  It is satisfied by
// *queue_publisher.Publisher.
type EventPublisher interface {
    PublishSeatsAllocated(ctx context.Context, event queue.SeatsAllocatedEvent) error
}

// BookingHandler serves the seating chart of a booking session.  Log and
// Events are optional; when nil the audit trail and broker events are
// skipped.
type BookingHandler struct {
    Sessions    *session.Store
    Log         AllocationLog
    Events      EventPublisher
    JWTSecret   string
    TokenTTLMin int

    publishTimeout time.Duration
}

// NewBookingHandler constructs a BookingHandler.  sessions must be non-nil.
func NewBookingHandler(sessions *session.Store, log AllocationLog, events EventPublisher, jwtSecret string, tokenTTLMin int) *BookingHandler {
    if sessions == nil {
        panic("nil session store passed to NewBookingHandler")
    }
    return &BookingHandler{
        Sessions:       sessions,
        Log:            log,
        Events:         events,
        JWTSecret:      jwtSecret,
        TokenTTLMin:    tokenTTLMin,
        publishTimeout: 5 * time.Second,
    }
}

// ChartView is the chart as returned to clients.
type ChartView struct {
    SessionID string        `json:"session_id"`
    Chart     seating.Chart `json:"chart"`
    Available int           `json:"available"`
    Occupied  int           `json:"occupied"`
    UpdatedAt time.Time     `json:"updated_at"`
}

func viewOf(s *session.Session) ChartView {
    return ChartView{
        SessionID: s.ID,
        Chart:     s.Chart,
        Available: s.Chart.Available(),
        Occupied:  s.Chart.Occupied(),
        UpdatedAt: s.UpdatedAt,
    }
}

// AllocateRequest is the body of POST /v1/chart/allocate.
type AllocateRequest struct {
    Passengers int `json:"passengers"`
}

// AllocateResponse reports the outcome of an allocation.  On failure Seats
// is empty, Error carries the user notice and ChartView is unchanged.
type AllocateResponse struct {
    Allocated bool               `json:"allocated"`
    Seats     []seating.Position `json:"seats"`
    Error     string             `json:"error,omitempty"`
    ChartView
}

// CreateSession handles POST /v1/sessions.  It starts a booking session
// with every seat available and returns the bearer token for it.
func (h *BookingHandler) CreateSession(c echo.Context) error {
    sess := h.Sessions.Create()
    tok, err := utils.NewSessionToken(h.JWTSecret, sess.ID, h.TokenTTLMin)
    if err != nil {
        _ = h.Sessions.Delete(sess.ID)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue session token"})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "session_id": sess.ID,
        "token":      tok.Token,
        "expires_at": tok.Exp,
        "chart":      viewOf(sess),
    })
}

// GetChart handles GET /v1/chart.  With ?format=text the chart is rendered
// as plain text, one row per line.
func (h *BookingHandler) GetChart(c echo.Context) error {
    sess, err := h.Sessions.Get(middleware.SessionID(c))
    if err != nil {
        return sessionError(c, err)
    }
    if c.QueryParam("format") == "text" {
        return c.String(http.StatusOK, sess.Chart.String())
    }
    return c.JSON(http.StatusOK, viewOf(sess))
}

// Allocate handles POST /v1/chart/allocate.  The party size must be between
// 1 and 7.  It answers 200 with the seats taken, or 409 with the unchanged
// chart when no suitable seats exist.
func (h *BookingHandler) Allocate(c echo.Context) error {
    var body AllocateRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := seating.ValidatePartySize(body.Passengers); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    sessionID := middleware.SessionID(c)
    sess, taken, ok, err := h.Sessions.Allocate(sessionID, body.Passengers)
    if err != nil {
        return sessionError(c, err)
    }

    labels := make([]string, len(taken))
    for i, p := range taken {
        labels[i] = p.String()
    }
    h.record(c, &model.Allocation{
        SessionID: sessionID,
        Kind:      model.KindAllocate,
        PartySize: body.Passengers,
        Allocated: ok,
        Seats:     labels,
        Available: sess.Chart.Available(),
    })

    resp := AllocateResponse{Allocated: ok, Seats: taken, ChartView: viewOf(sess)}
    if !ok {
        resp.Seats = []seating.Position{}
        resp.Error = seating.NoSuitableSeatsNotice
        return c.JSON(http.StatusConflict, resp)
    }
    h.publish(queue.SeatsAllocatedEvent{
        SessionID:  sessionID,
        Kind:       model.KindAllocate,
        PartySize:  body.Passengers,
        SeatLabels: labels,
        Available:  sess.Chart.Available(),
    })
    return c.JSON(http.StatusOK, resp)
}

// Reset handles POST /v1/chart/reset and frees every seat of the session.
func (h *BookingHandler) Reset(c echo.Context) error {
    sessionID := middleware.SessionID(c)
    sess, err := h.Sessions.Reset(sessionID)
    if err != nil {
        return sessionError(c, err)
    }
    h.record(c, &model.Allocation{
        SessionID: sessionID,
        Kind:      model.KindReset,
        Allocated: false,
        Seats:     []string{},
        Available: sess.Chart.Available(),
    })
    h.publish(queue.SeatsAllocatedEvent{
        SessionID:  sessionID,
        Kind:       model.KindReset,
        SeatLabels: []string{},
        Available:  sess.Chart.Available(),
    })
    return c.JSON(http.StatusOK, viewOf(sess))
}

// History handles GET /v1/chart/history and lists the session's requests
// from the audit trail.  It answers 503 when no database is configured.
func (h *BookingHandler) History(c echo.Context) error {
    sessionID := middleware.SessionID(c)
    if _, err := h.Sessions.Get(sessionID); err != nil {
        return sessionError(c, err)
    }
    if h.Log == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "allocation history is not available"})
    }
    items, err := h.Log.ListBySession(c.Request().Context(), sessionID, 100)
    if err != nil {
        if errors.Is(err, repository.ErrNotConfigured) {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "allocation history is not available"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]echo.Map, 0, len(items))
    for _, it := range items {
        out = append(out, echo.Map{
            "kind":       it.Kind,
            "party_size": it.PartySize,
            "allocated":  it.Allocated,
            "seats":      it.Seats,
            "available":  it.Available,
            "created_at": it.CreatedAt,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"session_id": sessionID, "items": out})
}

// EndSession handles DELETE /v1/sessions/current.
func (h *BookingHandler) EndSession(c echo.Context) error {
    if err := h.Sessions.Delete(middleware.SessionID(c)); err != nil {
        return sessionError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// record writes a to the audit trail.  Failures are logged and never fail
// the request.
func (h *BookingHandler) record(c echo.Context, a *model.Allocation) {
    if h.Log == nil {
        return
    }
    if err := h.Log.Record(c.Request().Context(), a); err != nil && !errors.Is(err, repository.ErrNotConfigured) {
        c.Logger().Errorf("allocation log: %v", err)
    }
}

// publish sends ev in the background; the broker is never on the request
// path.
func (h *BookingHandler) publish(ev queue.SeatsAllocatedEvent) {
    if h.Events == nil {
        return
    }
    ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
    timeout := h.publishTimeout
    if timeout <= 0 {
        timeout = 5 * time.Second
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), timeout)
        defer cancel()
        _ = h.Events.PublishSeatsAllocated(ctx, ev)
    }()
}

// sessionError maps session store errors to HTTP responses.
func sessionError(c echo.Context, err error) error {
    if errors.Is(err, session.ErrSessionNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
