package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventNotFound is returned when an event lookup yields no results.
var ErrEventNotFound = errors.New("event not found")

// SessionRepository provides play-session and event lookups for the combat
// engine. Sessions group rounds at a location; events group rounds within
// a session. The engine treats both as opaque identifiers.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// ActiveSession returns the active session for the location, creating one
// when none exists. A partial unique index on active sessions per location
// makes the create race-safe: the losing insert is a no-op and the winner's
// row is returned.
func (r *SessionRepository) ActiveSession(ctx context.Context, locationID string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM sessions WHERE location_id = $1 AND active`,
		locationID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("querying active session: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO sessions (id, location_id, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (location_id) WHERE active DO NOTHING`,
		uuid.NewString(), locationID,
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT id FROM sessions WHERE location_id = $1 AND active`,
		locationID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("querying created session: %w", err)
	}
	return id, nil
}

// ActiveEvent returns the session's current active event id, or empty when
// none is running.
func (r *SessionRepository) ActiveEvent(ctx context.Context, sessionID string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM events WHERE session_id = $1 AND active`,
		sessionID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying active event: %w", err)
	}
	return id, nil
}

// EventType returns the type of the given event.
//
// Postcondition: Returns the type string or ErrEventNotFound.
func (r *SessionRepository) EventType(ctx context.Context, eventID string) (string, error) {
	var typ string
	err := r.db.QueryRow(ctx,
		`SELECT type FROM events WHERE id = $1`,
		eventID,
	).Scan(&typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrEventNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying event type: %w", err)
	}
	return typ, nil
}

// StartEvent opens a new active event of the given type in the session.
//
// Postcondition: Returns the new event id.
func (r *SessionRepository) StartEvent(ctx context.Context, sessionID, eventType string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(ctx, `
		INSERT INTO events (id, session_id, type, active)
		VALUES ($1, $2, $3, TRUE)`,
		id, sessionID, eventType,
	)
	if err != nil {
		return "", fmt.Errorf("starting event: %w", err)
	}
	return id, nil
}

// EndEvent deactivates the event. Ending an already-inactive event is a
// no-op.
func (r *SessionRepository) EndEvent(ctx context.Context, eventID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE events SET active = FALSE WHERE id = $1`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("ending event: %w", err)
	}
	return nil
}
