package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aethelgard/server/internal/game/skill"
)

// ErrSkillNotFound is returned when a skill lookup yields no results.
var ErrSkillNotFound = errors.New("skill not found")

const skillColumns = `id, name, base_power, aether_cost, target, scaling_stats, required_stats, type, branch_id`

// SkillRepository provides skill persistence operations. Skill content is
// authored in YAML and imported; at runtime the table is read-only.
type SkillRepository struct {
	db *pgxpool.Pool
}

// NewSkillRepository creates a SkillRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSkillRepository(db *pgxpool.Pool) *SkillRepository {
	return &SkillRepository{db: db}
}

func scanSkill(row pgx.Row) (*skill.Skill, error) {
	var s skill.Skill
	err := row.Scan(
		&s.ID, &s.Name, &s.BasePower, &s.AetherCost, &s.Target,
		&s.ScalingStats, &s.RequiredStats, &s.Type, &s.BranchID,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a skill by its ID.
//
// Postcondition: Returns the Skill or ErrSkillNotFound.
func (r *SkillRepository) GetByID(ctx context.Context, id string) (*skill.Skill, error) {
	s, err := scanSkill(r.db.QueryRow(ctx, `
		SELECT `+skillColumns+`
		FROM skills WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSkillNotFound
		}
		return nil, fmt.Errorf("querying skill: %w", err)
	}
	return s, nil
}

// List returns all skills ordered by branch and name.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *SkillRepository) List(ctx context.Context) ([]*skill.Skill, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+skillColumns+`
		FROM skills ORDER BY branch_id ASC, name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing skills: %w", err)
	}
	defer rows.Close()

	skills := make([]*skill.Skill, 0)
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning skill row: %w", err)
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

// Upsert inserts or replaces a skill definition. Used by the content
// importer; existing rows are overwritten wholesale.
//
// Precondition: s must pass skill.Validate.
func (r *SkillRepository) Upsert(ctx context.Context, s *skill.Skill) error {
	if err := s.Validate(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO skills (id, name, base_power, aether_cost, target, scaling_stats, required_stats, type, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_power = EXCLUDED.base_power,
			aether_cost = EXCLUDED.aether_cost,
			target = EXCLUDED.target,
			scaling_stats = EXCLUDED.scaling_stats,
			required_stats = EXCLUDED.required_stats,
			type = EXCLUDED.type,
			branch_id = EXCLUDED.branch_id`,
		s.ID, s.Name, s.BasePower, s.AetherCost, s.Target,
		s.ScalingStats, s.RequiredStats, s.Type, s.BranchID,
	)
	if err != nil {
		return fmt.Errorf("upserting skill %s: %w", s.ID, err)
	}
	return nil
}
