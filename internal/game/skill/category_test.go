package skill_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aethelgard/server/internal/game/skill"
)

func TestClassify_Keywords(t *testing.T) {
	cases := []struct {
		typeName string
		want     skill.Category
	}{
		{"Fire Attack", skill.CategoryAttack},
		{"arcane bolt", skill.CategoryAttack},
		{"Frost Blast", skill.CategoryAttack},
		{"Stone Ward", skill.CategoryDefence},
		{"shield of thorns", skill.CategoryDefence},
		{"Defensive Stance", skill.CategoryDefence},
		{"Counterstrike", skill.CategoryCounter},
		{"Riposte", skill.CategoryCounter},
		{"Minor Heal", skill.CategoryHeal},
		{"Restoration", skill.CategoryHeal},
		{"Battle Blessing", skill.CategoryBuff},
		{"Empowering Chant", skill.CategoryBuff},
		{"Withering Curse", skill.CategoryDebuff},
		{"Aether Drain", skill.CategoryDebuff},
		{"Forge Blade", skill.CategoryCrafting},
		{"Potion Brewing", skill.CategoryCrafting},
		{"Passive Regeneration Aura", skill.CategoryPassive},
	}
	for _, tc := range cases {
		got, ok := skill.Classify(tc.typeName)
		assert.True(t, ok, "type %q should classify", tc.typeName)
		assert.Equal(t, tc.want, got, "type %q", tc.typeName)
	}
}

// TestClassify_CounterBeatsAttack verifies the more specific keyword wins
// when a type name contains both.
func TestClassify_CounterBeatsAttack(t *testing.T) {
	got, ok := skill.Classify("Counter Attack")
	assert.True(t, ok)
	assert.Equal(t, skill.CategoryCounter, got)
}

// TestClassify_UnknownFallsBackToAttack verifies the fallback is Attack but
// flagged via ok=false so callers can surface it.
func TestClassify_UnknownFallsBackToAttack(t *testing.T) {
	got, ok := skill.Classify("Interpretive Dance")
	assert.False(t, ok)
	assert.Equal(t, skill.CategoryAttack, got)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	got, ok := skill.Classify("HEALING TOUCH")
	assert.True(t, ok)
	assert.Equal(t, skill.CategoryHeal, got)
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "Attack", skill.CategoryAttack.String())
	assert.Equal(t, "Defence", skill.CategoryDefence.String())
	assert.Equal(t, "Passive", skill.CategoryPassive.String())
}
