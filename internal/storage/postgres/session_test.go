package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethelgard/server/internal/game/combat"
	"github.com/aethelgard/server/internal/game/skill"
	"github.com/aethelgard/server/internal/storage/postgres"
	"github.com/aethelgard/server/internal/testutil"
)

func TestSessionRepository_ActiveSessionCreatesOnce(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSessionRepository(pool)
	ctx := context.Background()

	first, err := repo.ActiveSession(ctx, "the_forge")
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := repo.ActiveSession(ctx, "the_forge")
	require.NoError(t, err)
	assert.Equal(t, first, second, "repeated calls reuse the active session")

	other, err := repo.ActiveSession(ctx, "the_docks")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestSessionRepository_Events(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSessionRepository(pool)
	ctx := context.Background()

	sessionID, err := repo.ActiveSession(ctx, "the_forge")
	require.NoError(t, err)

	eventID, err := repo.ActiveEvent(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, eventID, "no event running yet")

	started, err := repo.StartEvent(ctx, sessionID, combat.EventTypeCombat)
	require.NoError(t, err)

	eventID, err = repo.ActiveEvent(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, started, eventID)

	typ, err := repo.EventType(ctx, started)
	require.NoError(t, err)
	assert.Equal(t, combat.EventTypeCombat, typ)

	_, err = repo.EventType(ctx, "missing")
	assert.ErrorIs(t, err, postgres.ErrEventNotFound)

	require.NoError(t, repo.EndEvent(ctx, started))
	eventID, err = repo.ActiveEvent(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, eventID)
}

func TestSkillRepository_UpsertAndGet(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSkillRepository(pool)
	ctx := context.Background()

	s := &skill.Skill{
		ID: "ember_bolt", Name: "Ember Bolt", BasePower: 12, AetherCost: 8,
		Target: skill.TargetOther, ScalingStats: []string{"insight", "resolve"},
		RequiredStats: map[string]int{"insight": 10},
		Type:          "attack", BranchID: "pyromancy",
	}
	require.NoError(t, repo.Upsert(ctx, s))

	got, err := repo.GetByID(ctx, "ember_bolt")
	require.NoError(t, err)
	assert.Equal(t, "Ember Bolt", got.Name)
	assert.Equal(t, []string{"insight", "resolve"}, got.ScalingStats)
	assert.Equal(t, map[string]int{"insight": 10}, got.RequiredStats)
	assert.Equal(t, skill.TargetOther, got.Target)

	// Upsert replaces existing rows.
	s.BasePower = 15
	require.NoError(t, repo.Upsert(ctx, s))
	got, err = repo.GetByID(ctx, "ember_bolt")
	require.NoError(t, err)
	assert.Equal(t, 15, got.BasePower)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, postgres.ErrSkillNotFound)
}

func TestSkillRepository_UpsertValidates(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewSkillRepository(pool)

	bad := &skill.Skill{
		ID: "mystery", Name: "Mystery", Target: skill.TargetNone,
		Type: "unknowable", BranchID: "void",
	}
	assert.Error(t, repo.Upsert(context.Background(), bad))
}

func TestUsageRepository_CountsAndProgress(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()

	skillUses, branchUses, err := f.usage.Counts(ctx, f.attacker.ID, f.strike.ID, f.strike.BranchID)
	require.NoError(t, err)
	assert.Zero(t, skillUses, "missing counter rows read as zero")
	assert.Zero(t, branchUses)

	round := f.newRound(t, "the_forge")
	require.NoError(t, f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender)))

	su, bu, err := f.usage.SkillProgress(ctx, f.attacker.ID, f.strike.ID, f.strike.BranchID)
	require.NoError(t, err)
	assert.Equal(t, 1, su.Uses)
	assert.Equal(t, "Novice", su.Rank)
	assert.Equal(t, 1, bu.Uses)
	assert.Equal(t, "Uninitiated", bu.Rank)
}
