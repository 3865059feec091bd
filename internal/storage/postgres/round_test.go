package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aethelgard/server/internal/game/character"
	"github.com/aethelgard/server/internal/game/combat"
	"github.com/aethelgard/server/internal/game/skill"
	"github.com/aethelgard/server/internal/storage/postgres"
	"github.com/aethelgard/server/internal/testutil"
)

type combatFixture struct {
	pool     *pgxpool.Pool
	rounds   *postgres.RoundRepository
	usage    *postgres.UsageRepository
	sessions *postgres.SessionRepository
	attacker *character.Character
	defender *character.Character
	strike   *skill.Skill
	guard    *skill.Skill
}

func setupCombatFixture(t *testing.T) *combatFixture {
	t.Helper()
	pool := testutil.NewPool(t)
	ctx := context.Background()

	chars := postgres.NewCharacterRepository(pool)
	attacker, err := chars.Create(ctx, makeTestCharacter("Ash", "the_forge"))
	require.NoError(t, err)
	defender, err := chars.Create(ctx, makeTestCharacter("Brynn", "the_forge"))
	require.NoError(t, err)

	skills := postgres.NewSkillRepository(pool)
	strike := &skill.Skill{
		ID: "strike", Name: "Strike", BasePower: 10, AetherCost: 10,
		Target: skill.TargetOther, ScalingStats: []string{"might"},
		Type: "attack", BranchID: "blades",
	}
	guard := &skill.Skill{
		ID: "guard", Name: "Guard", BasePower: 8, AetherCost: 5,
		Target: skill.TargetAny, ScalingStats: []string{"finesse"},
		Type: "defence", BranchID: "wards",
	}
	require.NoError(t, skills.Upsert(ctx, strike))
	require.NoError(t, skills.Upsert(ctx, guard))

	return &combatFixture{
		pool:     pool,
		rounds:   postgres.NewRoundRepository(pool),
		usage:    postgres.NewUsageRepository(pool),
		sessions: postgres.NewSessionRepository(pool),
		attacker: attacker,
		defender: defender,
		strike:   strike,
		guard:    guard,
	}
}

func (f *combatFixture) newRound(t *testing.T, locationID string) *combat.Round {
	t.Helper()
	round, err := f.rounds.Create(context.Background(), &combat.Round{
		ID:         uuid.NewString(),
		LocationID: locationID,
		CreatedBy:  f.attacker.UserID,
	})
	require.NoError(t, err)
	return round
}

func (f *combatFixture) newAction(ch *character.Character, sk *skill.Skill, roundID string, target *character.Character) *combat.Action {
	category, _ := skill.Classify(sk.Type)
	a := &combat.Action{
		ID:                uuid.NewString(),
		RoundID:           roundID,
		CharacterID:       ch.ID,
		SkillID:           sk.ID,
		CharacterName:     ch.Name,
		SkillName:         sk.Name,
		SkillType:         sk.Type,
		Category:          category,
		BranchID:          sk.BranchID,
		FinalOutput:       24,
		OutcomeMultiplier: 1.0,
		RollQuality:       combat.QualityStandard,
		SubmittedAt:       time.Now().UTC(),
	}
	if target != nil {
		a.TargetID = &target.ID
		a.TargetName = target.Name
	}
	return a
}

// TestRoundRepository_GetByID_Missing pins the RoundStore contract: a
// missing round is nil, nil, which the orchestrator maps to
// ErrRoundNotActive.
func TestRoundRepository_GetByID_Missing(t *testing.T) {
	f := setupCombatFixture(t)

	got, err := f.rounds.GetByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRoundRepository_CreateAssignsScopedNumbers(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()

	r1 := f.newRound(t, "the_forge")
	assert.Equal(t, 1, r1.RoundNumber)
	assert.Equal(t, combat.StatusActive, r1.Status)

	cancelled, err := f.rounds.Cancel(ctx, r1.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	r2 := f.newRound(t, "the_forge")
	assert.Equal(t, 2, r2.RoundNumber)

	// A different location counts independently.
	other := f.newRound(t, "the_docks")
	assert.Equal(t, 1, other.RoundNumber)
}

func TestRoundRepository_CreateNumbersPerEvent(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()

	sessionID, err := f.sessions.ActiveSession(ctx, "the_forge")
	require.NoError(t, err)
	eventID, err := f.sessions.StartEvent(ctx, sessionID, combat.EventTypeCombat)
	require.NoError(t, err)

	// Location sequence already advanced by an event-less round.
	r0 := f.newRound(t, "the_forge")
	_, err = f.rounds.Cancel(ctx, r0.ID)
	require.NoError(t, err)

	r1, err := f.rounds.Create(ctx, &combat.Round{
		ID: uuid.NewString(), LocationID: "the_forge",
		SessionID: &sessionID, EventID: &eventID, CreatedBy: "gm",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r1.RoundNumber, "event scope starts its own sequence")
}

func TestRoundRepository_OneActiveRoundPerLocation(t *testing.T) {
	f := setupCombatFixture(t)

	f.newRound(t, "the_forge")
	_, err := f.rounds.Create(context.Background(), &combat.Round{
		ID: uuid.NewString(), LocationID: "the_forge", CreatedBy: "gm",
	})
	assert.ErrorIs(t, err, postgres.ErrActiveRoundExists)
}

func TestRoundRepository_SubmitActionPersistsAndCounts(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")

	a := f.newAction(f.attacker, f.strike, round.ID, f.defender)
	require.NoError(t, f.rounds.SubmitAction(ctx, a))

	has, err := f.rounds.HasAction(ctx, round.ID, f.attacker.ID)
	require.NoError(t, err)
	assert.True(t, has)

	actions, err := f.rounds.Actions(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	got := actions[0]
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, skill.CategoryAttack, got.Category)
	assert.Equal(t, combat.QualityStandard, got.RollQuality)
	require.NotNil(t, got.TargetID)
	assert.Equal(t, f.defender.ID, *got.TargetID)
	assert.False(t, got.Processed)

	skillUses, branchUses, err := f.usage.Counts(ctx, f.attacker.ID, f.strike.ID, f.strike.BranchID)
	require.NoError(t, err)
	assert.Equal(t, 1, skillUses)
	assert.Equal(t, 1, branchUses)
}

func TestRoundRepository_SubmitActionDuplicate(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")

	require.NoError(t, f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender)))
	err := f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender))
	require.ErrorIs(t, err, combat.ErrDuplicateAction)

	// The rejected submission's usage increments rolled back with it.
	skillUses, _, err := f.usage.Counts(ctx, f.attacker.ID, f.strike.ID, f.strike.BranchID)
	require.NoError(t, err)
	assert.Equal(t, 1, skillUses)
}

func TestRoundRepository_SubmitActionConcurrentDuplicate(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")

	const attempts = 4
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender))
		}()
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, combat.ErrDuplicateAction)
		}
	}
	assert.Equal(t, 1, successes)

	skillUses, _, err := f.usage.Counts(ctx, f.attacker.ID, f.strike.ID, f.strike.BranchID)
	require.NoError(t, err)
	assert.Equal(t, 1, skillUses)
}

func TestRoundRepository_Cancel(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")

	cancelled, err := f.rounds.Cancel(ctx, round.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	got, err := f.rounds.GetByID(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusCancelled, got.Status)

	cancelled, err = f.rounds.Cancel(ctx, round.ID)
	require.NoError(t, err)
	assert.False(t, cancelled, "cancelling a non-active round is a no-op")
}

func TestRoundRepository_ActiveAtLocation(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()

	got, err := f.rounds.ActiveAtLocation(ctx, "the_forge")
	require.NoError(t, err)
	assert.Nil(t, got)

	round := f.newRound(t, "the_forge")
	got, err = f.rounds.ActiveAtLocation(ctx, "the_forge")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, round.ID, got.ID)
}

func TestRoundRepository_Resolve(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")

	atk := f.newAction(f.attacker, f.strike, round.ID, f.defender)
	def := f.newAction(f.defender, f.guard, round.ID, f.defender)
	require.NoError(t, f.rounds.SubmitAction(ctx, atk))
	require.NoError(t, f.rounds.SubmitAction(ctx, def))

	res, err := f.rounds.Resolve(ctx, round.ID, "resolver-1", func(r *combat.Round, actions []*combat.Action) (*combat.Resolution, error) {
		require.Equal(t, combat.StatusResolving, r.Status)
		require.Len(t, actions, 2)
		for _, a := range actions {
			a.Processed = true
			a.ClashResult = &combat.ClashOutcome{IsClash: true, Kind: "attack_vs_defence"}
		}
		return &combat.Resolution{RoundNumber: r.RoundNumber, ClashCount: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ClashCount)

	got, err := f.rounds.GetByID(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedBy)
	assert.Equal(t, "resolver-1", *got.ResolvedBy)
	assert.NotNil(t, got.ResolvedAt)
	require.NotNil(t, got.Resolution)
	assert.Equal(t, 1, got.Resolution.ClashCount)

	actions, err := f.rounds.Actions(ctx, round.ID)
	require.NoError(t, err)
	for _, a := range actions {
		assert.True(t, a.Processed)
		require.NotNil(t, a.ClashResult)
		assert.Equal(t, "attack_vs_defence", a.ClashResult.Kind)
	}

	// A second resolve finds the round terminal.
	_, err = f.rounds.Resolve(ctx, round.ID, "resolver-2", func(*combat.Round, []*combat.Action) (*combat.Resolution, error) {
		t.Fatal("resolution callback must not run on a resolved round")
		return nil, nil
	})
	assert.ErrorIs(t, err, combat.ErrRoundNotActive)
}

func TestRoundRepository_ResolveCallbackErrorRollsBack(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")
	require.NoError(t, f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender)))

	_, err := f.rounds.Resolve(ctx, round.ID, "resolver-1", func(*combat.Round, []*combat.Action) (*combat.Resolution, error) {
		return nil, combat.ErrNoActions
	})
	require.ErrorIs(t, err, combat.ErrNoActions)

	got, err := f.rounds.GetByID(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, combat.StatusActive, got.Status, "failed resolution must leave the round active")
}

func TestRoundRepository_ResolveConcurrentAdmitsOne(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()
	round := f.newRound(t, "the_forge")
	require.NoError(t, f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender)))

	const resolvers = 4
	errs := make(chan error, resolvers)
	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.rounds.Resolve(ctx, round.ID, "resolver", func(r *combat.Round, actions []*combat.Action) (*combat.Resolution, error) {
				for _, a := range actions {
					a.Processed = true
				}
				return &combat.Resolution{RoundNumber: r.RoundNumber}, nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, combat.ErrRoundNotActive)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestRoundRepository_ListResolved(t *testing.T) {
	f := setupCombatFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		round := f.newRound(t, "the_forge")
		require.NoError(t, f.rounds.SubmitAction(ctx, f.newAction(f.attacker, f.strike, round.ID, f.defender)))
		_, err := f.rounds.Resolve(ctx, round.ID, "resolver", func(r *combat.Round, actions []*combat.Action) (*combat.Resolution, error) {
			for _, a := range actions {
				a.Processed = true
			}
			return &combat.Resolution{RoundNumber: r.RoundNumber}, nil
		})
		require.NoError(t, err)
	}

	rounds, err := f.rounds.ListResolved(ctx, "the_forge", 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 3, rounds[0].RoundNumber, "newest resolution first")
	assert.Equal(t, 2, rounds[1].RoundNumber)
}
