package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aethelgard/server/internal/game/proficiency"
)

// UsageRepository tracks cumulative skill and branch usage counters per
// character. Counters only ever increase.
type UsageRepository struct {
	db *pgxpool.Pool
}

// NewUsageRepository creates a UsageRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

// Counts fetches the character's skill and branch usage counters in one
// batched round trip. Missing counter rows read as zero.
//
// Postcondition: Returns skillUses >= 0 and branchUses >= 0.
func (r *UsageRepository) Counts(ctx context.Context, characterID, skillID, branchID string) (int, int, error) {
	b := &pgx.Batch{}
	b.Queue(`
		SELECT COALESCE(
			(SELECT uses FROM character_skills WHERE character_id = $1 AND skill_id = $2), 0)`,
		characterID, skillID,
	)
	b.Queue(`
		SELECT COALESCE(
			(SELECT uses FROM character_skill_branches WHERE character_id = $1 AND branch_id = $2), 0)`,
		characterID, branchID,
	)

	br := r.db.SendBatch(ctx, b)
	defer br.Close()

	var skillUses, branchUses int
	if err := br.QueryRow().Scan(&skillUses); err != nil {
		return 0, 0, fmt.Errorf("querying skill uses: %w", err)
	}
	if err := br.QueryRow().Scan(&branchUses); err != nil {
		return 0, 0, fmt.Errorf("querying branch uses: %w", err)
	}
	return skillUses, branchUses, nil
}

// SkillProgress returns the character's usage and derived rank for the
// skill and its branch.
func (r *UsageRepository) SkillProgress(ctx context.Context, characterID, skillID, branchID string) (proficiency.SkillUsage, proficiency.BranchUsage, error) {
	skillUses, branchUses, err := r.Counts(ctx, characterID, skillID, branchID)
	if err != nil {
		return proficiency.SkillUsage{}, proficiency.BranchUsage{}, err
	}
	su := proficiency.SkillUsage{
		CharacterID: characterID,
		SkillID:     skillID,
		Uses:        skillUses,
		Rank:        proficiency.SkillRank(skillUses),
	}
	bu := proficiency.BranchUsage{
		CharacterID: characterID,
		BranchID:    branchID,
		Uses:        branchUses,
		Rank:        proficiency.BranchRank(branchUses),
	}
	return su, bu, nil
}

// incrementUsage bumps the character's skill and branch counters inside the
// caller's transaction, creating the counter rows on first use.
func incrementUsage(ctx context.Context, tx pgx.Tx, characterID, skillID, branchID string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO character_skills (character_id, skill_id, uses)
		VALUES ($1, $2, 1)
		ON CONFLICT (character_id, skill_id)
		DO UPDATE SET uses = character_skills.uses + 1`,
		characterID, skillID,
	); err != nil {
		return fmt.Errorf("incrementing skill uses: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO character_skill_branches (character_id, branch_id, uses)
		VALUES ($1, $2, 1)
		ON CONFLICT (character_id, branch_id)
		DO UPDATE SET uses = character_skill_branches.uses + 1`,
		characterID, branchID,
	); err != nil {
		return fmt.Errorf("incrementing branch uses: %w", err)
	}
	return nil
}
