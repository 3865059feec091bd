package combat

import (
	"fmt"
	"math"
	"sort"

	"github.com/aethelgard/server/internal/game/character"
	"github.com/aethelgard/server/internal/game/dice"
	"github.com/aethelgard/server/internal/game/proficiency"
	"github.com/aethelgard/server/internal/game/skill"
)

// Quality is the 3-tier randomized outcome classification of a skill use.
type Quality string

const (
	QualityPoor     Quality = "Poor"
	QualityStandard Quality = "Standard"
	QualityCritical Quality = "Critical"
)

// Multiplier returns the output multiplier for the quality tier.
//
// Postcondition: Returns 0.6, 1.0, or 1.4.
func (q Quality) Multiplier() float64 {
	switch q {
	case QualityPoor:
		return 0.6
	case QualityCritical:
		return 1.4
	default:
		return 1.0
	}
}

// ParseQuality validates a quality label.
//
// Postcondition: Returns one of the three known qualities or an error.
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case QualityPoor, QualityStandard, QualityCritical:
		return Quality(s), nil
	default:
		return "", fmt.Errorf("combat: unknown roll quality %q", s)
	}
}

// QualityForRoll maps a d20 result to its quality tier:
// 1–3 Poor (15%), 4–17 Standard (70%), 18–20 Critical (15%).
//
// Precondition: roll in [1, 20].
func QualityForRoll(roll int) Quality {
	switch {
	case roll <= 3:
		return QualityPoor
	case roll >= 18:
		return QualityCritical
	default:
		return QualityStandard
	}
}

// scalingWeights holds the positional weights applied to scaling-stat
// values sorted descending, indexed by stat count - 1.
var scalingWeights = [skill.MaxScalingStats][]float64{
	{1.0},
	{0.7, 0.3},
	{0.6, 0.25, 0.15},
}

// Impact computes a skill's base numeric potency for a character: basePower
// plus the positionally-weighted, individually-floored contributions of the
// character's scaling-stat values sorted descending. Scaling stats that are
// not known primary stats are silently dropped, and the weight row is
// chosen by the count of stats that survived.
//
// Precondition: ch and sk must be non-nil.
// Postcondition: Returns >= sk.BasePower when stat values are non-negative.
func Impact(ch *character.Character, sk *skill.Skill) int {
	impact := sk.BasePower

	var values []int
	for _, name := range sk.ScalingStats {
		if character.IsPrimaryStat(name) {
			values = append(values, ch.Stat(name))
		}
	}
	if len(values) == 0 {
		return impact
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	weights := scalingWeights[len(values)-1]
	for i, v := range values {
		impact += int(math.Floor(float64(v) * weights[i]))
	}
	return impact
}

// Calculator computes one character's numeric result for one skill use.
// The outcome roll is drawn once and cached: output and clash narration
// both depend on it, so repeated calls must agree.
//
// A Calculator is short-lived: one instance per action submission. Not
// safe for concurrent use.
type Calculator struct {
	src     dice.Source
	rolled  bool
	quality Quality
}

// NewCalculator creates a Calculator drawing randomness from src.
//
// Precondition: src must be non-nil.
func NewCalculator(src dice.Source) *Calculator {
	return &Calculator{src: src}
}

// RollOutcome draws the d20 quality roll, caching the result for the
// lifetime of the Calculator.
//
// Postcondition: Every call on the same instance returns the same Quality.
func (c *Calculator) RollOutcome() Quality {
	if !c.rolled {
		roll := c.src.Intn(20) + 1
		c.quality = QualityForRoll(roll)
		c.rolled = true
	}
	return c.quality
}

// FinalOutput computes the action's final numeric output:
// floor(impact × (skillMultiplier + branchMultiplier) × outcomeMultiplier).
// skillUses and branchUses are the character's cumulative usage counts,
// fetched together by the caller in a single batched read.
//
// Precondition: ch and sk must be non-nil; uses >= 0.
// Postcondition: Returns >= 0; the quality roll is cached afterwards.
func (c *Calculator) FinalOutput(ch *character.Character, sk *skill.Skill, skillUses, branchUses int) int {
	impact := Impact(ch, sk)
	rankMult := proficiency.SkillMultiplier(skillUses) + proficiency.BranchMultiplier(branchUses)
	return int(math.Floor(float64(impact) * rankMult * c.RollOutcome().Multiplier()))
}

// ApplyCost validates the character can pay for the skill and returns the
// character's new aether value. The caller assigns and persists the new
// value as an explicit separate step; nothing is mutated here.
//
// Precondition: ch and sk must be non-nil.
// Postcondition: On success returns ch.Aether() - sk.AetherCost >= 0.
// On shortfall returns an *InsufficientResourceError naming the stat.
func ApplyCost(ch *character.Character, sk *skill.Skill) (int, error) {
	for stat, min := range sk.RequiredStats {
		if have := ch.Stat(stat); have < min {
			return 0, &InsufficientResourceError{
				CharacterID: ch.ID,
				Resource:    stat,
				Have:        have,
				Need:        min,
			}
		}
	}
	if ch.Aether() < sk.AetherCost {
		return 0, &InsufficientResourceError{
			CharacterID: ch.ID,
			Resource:    character.StatAether,
			Have:        ch.Aether(),
			Need:        sk.AetherCost,
		}
	}
	return ch.Aether() - sk.AetherCost, nil
}
