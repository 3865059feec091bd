package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aethelgard/server/internal/game/combat"
	"github.com/aethelgard/server/internal/game/skill"
)

// ErrActiveRoundExists is returned when creating a round at a location that
// already has one active.
var ErrActiveRoundExists = errors.New("location already has an active round")

const roundColumns = `id, location_id, session_id, event_id, round_number, status,
	created_by, resolved_by, resolution, created_at, updated_at, resolved_at`

const actionColumns = `id, round_id, character_id, skill_id, target_id,
	character_name, skill_name, skill_type, target_name, category, branch_id,
	final_output, outcome_multiplier, roll_quality, processed, clash_result, submitted_at`

// RoundRepository provides combat round and action persistence. It carries
// the storage side of the round lifecycle guarantees: the one-active-round
// per location index, the one-action-per-character constraint, and the
// exclusive row lock taken during resolution.
type RoundRepository struct {
	db *pgxpool.Pool
}

// NewRoundRepository creates a RoundRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoundRepository(db *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{db: db}
}

func scanRound(row pgx.Row) (*combat.Round, error) {
	var (
		r      combat.Round
		status string
	)
	err := row.Scan(
		&r.ID, &r.LocationID, &r.SessionID, &r.EventID, &r.RoundNumber, &status,
		&r.CreatedBy, &r.ResolvedBy, &r.Resolution, &r.CreatedAt, &r.UpdatedAt, &r.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = combat.Status(status)
	return &r, nil
}

func scanAction(row pgx.Row) (*combat.Action, error) {
	var (
		a        combat.Action
		category string
		quality  string
	)
	err := row.Scan(
		&a.ID, &a.RoundID, &a.CharacterID, &a.SkillID, &a.TargetID,
		&a.CharacterName, &a.SkillName, &a.SkillType, &a.TargetName, &category, &a.BranchID,
		&a.FinalOutput, &a.OutcomeMultiplier, &quality, &a.Processed, &a.ClashResult, &a.SubmittedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Category, _ = skill.ParseCategory(category)
	a.RollQuality = combat.Quality(quality)
	return &a, nil
}

// Create inserts a new active round, assigning its scoped round number
// atomically: the next number within the round's event, or, for rounds
// without an event, within its location among event-less rounds. Partial
// unique indexes back both sequences; a collision with another in-flight
// create surfaces as ErrActiveRoundExists.
//
// Postcondition: Returns the round with RoundNumber and timestamps set.
func (r *RoundRepository) Create(ctx context.Context, round *combat.Round) (*combat.Round, error) {
	out, err := scanRound(r.db.QueryRow(ctx, `
		INSERT INTO combat_rounds (id, location_id, session_id, event_id, round_number, status, created_by)
		SELECT $1, $2, $3, $4,
		       COALESCE(MAX(cr.round_number), 0) + 1,
		       $5, $6
		FROM (SELECT 1) one
		LEFT JOIN combat_rounds cr ON
		       ($4::text IS NOT NULL AND cr.event_id = $4)
		    OR ($4::text IS NULL AND cr.event_id IS NULL AND cr.location_id = $2)
		RETURNING `+roundColumns,
		round.ID, round.LocationID, round.SessionID, round.EventID,
		string(combat.StatusActive), round.CreatedBy,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrActiveRoundExists
		}
		return nil, fmt.Errorf("inserting round: %w", err)
	}
	return out, nil
}

// GetByID retrieves a round by its primary key.
//
// Postcondition: Returns nil, nil when no round exists with the id, per
// the combat.RoundStore contract.
func (r *RoundRepository) GetByID(ctx context.Context, id string) (*combat.Round, error) {
	round, err := scanRound(r.db.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM combat_rounds WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying round: %w", err)
	}
	return round, nil
}

// ActiveAtLocation returns the location's active round, or nil when none.
func (r *RoundRepository) ActiveAtLocation(ctx context.Context, locationID string) (*combat.Round, error) {
	round, err := scanRound(r.db.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM combat_rounds WHERE location_id = $1 AND status = $2`,
		locationID, string(combat.StatusActive),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying active round: %w", err)
	}
	return round, nil
}

// ListResolved returns up to limit resolved rounds for the location, newest
// resolution first.
func (r *RoundRepository) ListResolved(ctx context.Context, locationID string, limit int) ([]*combat.Round, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+roundColumns+`
		FROM combat_rounds
		WHERE location_id = $1 AND status = $2
		ORDER BY resolved_at DESC
		LIMIT $3`,
		locationID, string(combat.StatusResolved), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing resolved rounds: %w", err)
	}
	defer rows.Close()

	rounds := make([]*combat.Round, 0)
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning round row: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// Cancel transitions an active round to cancelled. The conditional update
// makes cancellation of a non-active round a no-op rather than an error.
//
// Postcondition: Returns true iff the round was active and is now cancelled.
func (r *RoundRepository) Cancel(ctx context.Context, roundID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE combat_rounds SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		roundID, string(combat.StatusCancelled), string(combat.StatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("cancelling round: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Actions returns the round's actions in submission order.
func (r *RoundRepository) Actions(ctx context.Context, roundID string) ([]*combat.Action, error) {
	return r.queryActions(ctx, r.db, roundID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *RoundRepository) queryActions(ctx context.Context, q querier, roundID string) ([]*combat.Action, error) {
	rows, err := q.Query(ctx, `
		SELECT `+actionColumns+`
		FROM combat_actions
		WHERE round_id = $1
		ORDER BY submitted_at ASC, id ASC`,
		roundID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing actions: %w", err)
	}
	defer rows.Close()

	actions := make([]*combat.Action, 0)
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning action row: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// HasAction reports whether the character already has an action in the
// round. Advisory only: the unique constraint checked in SubmitAction is
// the authoritative guard.
func (r *RoundRepository) HasAction(ctx context.Context, roundID, characterID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM combat_actions WHERE round_id = $1 AND character_id = $2)`,
		roundID, characterID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking existing action: %w", err)
	}
	return exists, nil
}

// SubmitAction inserts the action and bumps the character's skill and
// branch usage counters in one transaction. The (round_id, character_id)
// unique constraint turns a concurrent double-submit into
// combat.ErrDuplicateAction with nothing committed.
func (r *RoundRepository) SubmitAction(ctx context.Context, a *combat.Action) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO combat_actions
			(id, round_id, character_id, skill_id, target_id,
			 character_name, skill_name, skill_type, target_name, category, branch_id,
			 final_output, outcome_multiplier, roll_quality, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.RoundID, a.CharacterID, a.SkillID, a.TargetID,
		a.CharacterName, a.SkillName, a.SkillType, a.TargetName, a.Category.String(), a.BranchID,
		a.FinalOutput, a.OutcomeMultiplier, string(a.RollQuality), a.SubmittedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: character %s in round %s",
				combat.ErrDuplicateAction, a.CharacterID, a.RoundID)
		}
		return fmt.Errorf("inserting action: %w", err)
	}

	if err := incrementUsage(ctx, tx, a.CharacterID, a.SkillID, a.BranchID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing action: %w", err)
	}
	return nil
}

// Resolve runs the resolution as one atomic unit. The round row is locked
// with SELECT ... FOR UPDATE, so a concurrent resolver blocks here and
// then observes the terminal status. The status is moved through
// resolving before fn runs; fn's action mutations (Processed, ClashResult)
// and the final transition to resolved commit together, or not at all.
//
// Postcondition: Returns the resolution, or combat.ErrRoundNotActive /
// combat.ErrConcurrentResolution with the round untouched.
func (r *RoundRepository) Resolve(ctx context.Context, roundID, resolverID string, fn combat.ResolveFunc) (*combat.Resolution, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	round, err := scanRound(tx.QueryRow(ctx, `
		SELECT `+roundColumns+`
		FROM combat_rounds WHERE id = $1
		FOR UPDATE`,
		roundID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: round %s", combat.ErrRoundNotActive, roundID)
		}
		return nil, fmt.Errorf("locking round: %w", err)
	}

	switch round.Status {
	case combat.StatusActive:
	case combat.StatusResolving:
		// Only reachable if a prior resolver crashed mid-transaction and
		// left the intermediate status behind.
		return nil, fmt.Errorf("%w: round %s", combat.ErrConcurrentResolution, roundID)
	default:
		return nil, fmt.Errorf("%w: round %s is %s", combat.ErrRoundNotActive, roundID, round.Status)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE combat_rounds SET status = $2, updated_at = NOW() WHERE id = $1`,
		roundID, string(combat.StatusResolving),
	); err != nil {
		return nil, fmt.Errorf("marking round resolving: %w", err)
	}
	round.Status = combat.StatusResolving

	actions, err := r.queryActions(ctx, tx, roundID)
	if err != nil {
		return nil, err
	}

	res, err := fn(round, actions)
	if err != nil {
		return nil, err
	}

	for _, a := range actions {
		if _, err := tx.Exec(ctx, `
			UPDATE combat_actions SET processed = $2, clash_result = $3
			WHERE id = $1`,
			a.ID, a.Processed, a.ClashResult,
		); err != nil {
			return nil, fmt.Errorf("updating action %s: %w", a.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE combat_rounds
		SET status = $2, resolved_by = $3, resolution = $4,
		    resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1`,
		roundID, string(combat.StatusResolved), resolverID, res,
	); err != nil {
		return nil, fmt.Errorf("marking round resolved: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing resolution: %w", err)
	}
	return res, nil
}
