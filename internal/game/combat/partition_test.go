package combat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aethelgard/server/internal/game/skill"
)

func at(a *Action, offset time.Duration) *Action {
	a.SubmittedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(offset)
	return a
}

func TestPartitionMutualAttackersClash(t *testing.T) {
	a := at(action("a1", "c1", skill.CategoryAttack, "c2", 50), 0)
	b := at(action("a2", "c2", skill.CategoryAttack, "c1", 30), time.Second)
	heal := at(action("a3", "c3", skill.CategoryHeal, "c3", 20), 2*time.Second)

	res := PartitionActions([]*Action{a, b, heal})

	require.Len(t, res.Clashes, 1)
	assert.Equal(t, "a1", res.Clashes[0].A.ID)
	assert.Equal(t, "a2", res.Clashes[0].B.ID)
	require.Len(t, res.Independent, 1)
	assert.Equal(t, "a3", res.Independent[0].ID)
}

func TestPartitionDefenceFoundThroughProtectionIndex(t *testing.T) {
	// The defence targets c3, not the attacker, so it is only reachable
	// through the protecting-defences index.
	atk := at(action("a1", "c1", skill.CategoryAttack, "c3", 50), 0)
	def := at(action("a2", "c2", skill.CategoryDefence, "c3", 30), time.Second)

	res := PartitionActions([]*Action{atk, def})

	require.Len(t, res.Clashes, 1)
	assert.Equal(t, "attack_vs_defence", res.Clashes[0].Outcome.Kind)
	assert.Empty(t, res.Independent)
}

func TestPartitionGreedyFirstMatch(t *testing.T) {
	// c1 and c2 attack each other; c3 also attacks c1. The earlier mutual
	// pair wins, c3 resolves independently.
	a := at(action("a1", "c1", skill.CategoryAttack, "c2", 50), 0)
	b := at(action("a2", "c2", skill.CategoryAttack, "c1", 30), time.Second)
	c := at(action("a3", "c3", skill.CategoryAttack, "c1", 40), 2*time.Second)

	res := PartitionActions([]*Action{a, b, c})

	require.Len(t, res.Clashes, 1)
	assert.Equal(t, "a1", res.Clashes[0].A.ID)
	assert.Equal(t, "a2", res.Clashes[0].B.ID)
	require.Len(t, res.Independent, 1)
	assert.Equal(t, "a3", res.Independent[0].ID)
}

func TestPartitionOrderIsBySubmissionTime(t *testing.T) {
	// c2 could pair with either attacker; the earlier submission wins.
	early := at(action("a1", "c1", skill.CategoryAttack, "c2", 50), 0)
	late := at(action("a3", "c3", skill.CategoryAttack, "c2", 40), 2*time.Second)
	mid := at(action("a2", "c2", skill.CategoryAttack, "c1", 30), time.Second)

	res := PartitionActions([]*Action{late, mid, early})

	require.Len(t, res.Clashes, 1)
	assert.Equal(t, "a1", res.Clashes[0].A.ID)
	assert.Equal(t, "a2", res.Clashes[0].B.ID)
}

func TestPartitionDeterministicUnderInputOrder(t *testing.T) {
	build := func() []*Action {
		return []*Action{
			at(action("a1", "c1", skill.CategoryAttack, "c2", 50), 0),
			at(action("a2", "c2", skill.CategoryAttack, "c1", 30), time.Second),
			at(action("a3", "c3", skill.CategoryDefence, "c2", 25), 2*time.Second),
			at(action("a4", "c4", skill.CategoryHeal, "c4", 15), 3*time.Second),
			at(action("a5", "c5", skill.CategoryAttack, "c4", 35), 4*time.Second),
		}
	}

	baseline := PartitionActions(build())

	rapid.Check(t, func(t *rapid.T) {
		shuffled := build()
		perm := rapid.Permutation(shuffled).Draw(t, "perm")

		res := PartitionActions(perm)

		require.Len(t, res.Clashes, len(baseline.Clashes))
		for i := range baseline.Clashes {
			assert.Equal(t, baseline.Clashes[i].A.ID, res.Clashes[i].A.ID)
			assert.Equal(t, baseline.Clashes[i].B.ID, res.Clashes[i].B.ID)
		}
		require.Len(t, res.Independent, len(baseline.Independent))
		for i := range baseline.Independent {
			assert.Equal(t, baseline.Independent[i].ID, res.Independent[i].ID)
		}
	})
}

func TestPartitionEveryActionAppearsExactlyOnce(t *testing.T) {
	actions := []*Action{
		at(action("a1", "c1", skill.CategoryAttack, "c2", 50), 0),
		at(action("a2", "c2", skill.CategoryCounter, "c1", 60), time.Second),
		at(action("a3", "c3", skill.CategoryAttack, "c4", 30), 2*time.Second),
		at(action("a4", "c4", skill.CategoryDefence, "c4", 20), 3*time.Second),
		at(action("a5", "c5", skill.CategoryBuff, "c5", 10), 4*time.Second),
		at(action("a6", "c6", skill.CategoryCrafting, "", 40), 5*time.Second),
	}

	res := PartitionActions(actions)

	seen := map[string]int{}
	for _, pair := range res.Clashes {
		seen[pair.A.ID]++
		seen[pair.B.ID]++
	}
	for _, a := range res.Independent {
		seen[a.ID]++
	}
	require.Len(t, seen, len(actions))
	for id, n := range seen {
		assert.Equal(t, 1, n, "action %s partitioned %d times", id, n)
	}
}

func TestPartitionEmptyInput(t *testing.T) {
	res := PartitionActions(nil)
	assert.Empty(t, res.Clashes)
	assert.Empty(t, res.Independent)
}
