package combat

import (
	"fmt"

	"github.com/aethelgard/server/internal/game/skill"
)

// ClashOutcome is the joint numeric resolution of one clash pair.
// Participant A is always the first argument given to Interact.
type ClashOutcome struct {
	IsClash bool `json:"is_clash"`
	// Kind names the table row that applied, e.g. "attack_vs_defence".
	Kind string `json:"kind"`
	// DamageToA and DamageToB are the outputs applied to each participant.
	DamageToA int `json:"damage_to_a"`
	DamageToB int `json:"damage_to_b"`
	// Absorbed is the damage soaked in an attack-vs-defence clash.
	Absorbed int `json:"absorbed,omitempty"`
	// SpilloverCharacterID and SpilloverDamage carry residual damage to a
	// protected character who is not one of the two participants.
	SpilloverCharacterID string `json:"spillover_character_id,omitempty"`
	SpilloverDamage      int    `json:"spillover_damage,omitempty"`
	// NegatedActionID is the crafting action interrupted by an attack.
	NegatedActionID string `json:"negated_action_id,omitempty"`
	// WinnerActionID names the prevailing action; empty on a tie or when
	// the row defines no winner.
	WinnerActionID string `json:"winner_action_id,omitempty"`
	Tie            bool   `json:"tie,omitempty"`
	// Resolution is the human-readable resolution text.
	Resolution string `json:"resolution"`
}

// mutualTargeting reports whether a and b target each other's characters.
func mutualTargeting(a, b *Action) bool {
	return a.TargetsCharacter(b.CharacterID) && b.TargetsCharacter(a.CharacterID)
}

// protects reports whether defence d covers the character the attack a is
// aimed at.
func protects(d, a *Action) bool {
	return d.TargetID != nil && a.TargetID != nil && *d.TargetID == *a.TargetID
}

// Interact applies the interaction rules table to two already-computed
// action outcomes. The table is symmetric: when the first-listed type is
// the second participant's, roles are swapped and the outcome mirrored.
//
// A clash requires the two actions to target each other, with two
// exceptions: Attack-vs-Defence clashes when the defence protects the
// attack's target, and Attack-vs-Crafting clashes when the attack targets
// the crafter (a crafting action never targets the attacker back).
//
// Postcondition: Returns (outcome, true) when the pair clashes, with the
// outcome expressed from a's perspective as participant A; otherwise
// (zero, false) and both actions resolve independently.
func Interact(a, b *Action) (ClashOutcome, bool) {
	if a.CharacterID == b.CharacterID {
		return ClashOutcome{}, false
	}

	switch {
	case a.Category == skill.CategoryAttack && b.Category == skill.CategoryAttack:
		if !mutualTargeting(a, b) {
			return ClashOutcome{}, false
		}
		return attackVsAttack(a, b), true

	case a.Category == skill.CategoryAttack && b.Category == skill.CategoryDefence:
		if !protects(b, a) {
			return ClashOutcome{}, false
		}
		return attackVsDefence(a, b), true
	case a.Category == skill.CategoryDefence && b.Category == skill.CategoryAttack:
		if !protects(a, b) {
			return ClashOutcome{}, false
		}
		return mirror(attackVsDefence(b, a)), true

	case a.Category == skill.CategoryAttack && b.Category == skill.CategoryCounter:
		if !mutualTargeting(a, b) {
			return ClashOutcome{}, false
		}
		return attackVsCounter(a, b), true
	case a.Category == skill.CategoryCounter && b.Category == skill.CategoryAttack:
		if !mutualTargeting(a, b) {
			return ClashOutcome{}, false
		}
		return mirror(attackVsCounter(b, a)), true

	case a.Category == skill.CategoryAttack && b.Category == skill.CategoryCrafting:
		if !a.TargetsCharacter(b.CharacterID) {
			return ClashOutcome{}, false
		}
		return attackVsCrafting(a, b), true
	case a.Category == skill.CategoryCrafting && b.Category == skill.CategoryAttack:
		if !b.TargetsCharacter(a.CharacterID) {
			return ClashOutcome{}, false
		}
		return mirror(attackVsCrafting(b, a)), true
	}

	// Attack vs Buff/Heal/Debuff, Defence vs Buff/Heal, Buff/Heal vs
	// Debuff, Buff/Heal vs Buff/Heal, and every remaining combination:
	// no interaction, both resolve independently.
	return ClashOutcome{}, false
}

// attackVsAttack resolves mutual damage: each side takes the other's
// output; the higher output wins, equal outputs tie.
func attackVsAttack(a, b *Action) ClashOutcome {
	out := ClashOutcome{
		IsClash:   true,
		Kind:      "attack_vs_attack",
		DamageToA: b.FinalOutput,
		DamageToB: a.FinalOutput,
	}
	switch {
	case a.FinalOutput > b.FinalOutput:
		out.WinnerActionID = a.ID
		out.Resolution = fmt.Sprintf("%s and %s strike each other; %s overwhelms %s (%d to %d)",
			a.CharacterName, b.CharacterName, a.CharacterName, b.CharacterName, a.FinalOutput, b.FinalOutput)
	case b.FinalOutput > a.FinalOutput:
		out.WinnerActionID = b.ID
		out.Resolution = fmt.Sprintf("%s and %s strike each other; %s overwhelms %s (%d to %d)",
			a.CharacterName, b.CharacterName, b.CharacterName, a.CharacterName, b.FinalOutput, a.FinalOutput)
	default:
		out.Tie = true
		out.Resolution = fmt.Sprintf("%s and %s strike each other evenly (%d apiece)",
			a.CharacterName, b.CharacterName, a.FinalOutput)
	}
	return out
}

// attackVsDefence resolves absorption: absorbed = min(attack, defence),
// residual = max(0, attack - defence), applied to the attacked side. When
// the defence protects a third party, the residual is carried as
// spillover rather than participant damage.
func attackVsDefence(atk, def *Action) ClashOutcome {
	absorbed := atk.FinalOutput
	if def.FinalOutput < absorbed {
		absorbed = def.FinalOutput
	}
	residual := atk.FinalOutput - def.FinalOutput
	if residual < 0 {
		residual = 0
	}

	out := ClashOutcome{
		IsClash:  true,
		Kind:     "attack_vs_defence",
		Absorbed: absorbed,
	}
	if atk.TargetsCharacter(def.CharacterID) {
		out.DamageToB = residual
	} else if atk.TargetID != nil {
		out.SpilloverCharacterID = *atk.TargetID
		out.SpilloverDamage = residual
	}
	if residual > 0 {
		out.WinnerActionID = atk.ID
		out.Resolution = fmt.Sprintf("%s's %s absorbs %d of %s's %s; %d slips through to %s",
			def.CharacterName, def.SkillName, absorbed, atk.CharacterName, atk.SkillName, residual, atk.TargetName)
	} else {
		out.WinnerActionID = def.ID
		out.Resolution = fmt.Sprintf("%s's %s fully absorbs %s's %s (%d absorbed)",
			def.CharacterName, def.SkillName, atk.CharacterName, atk.SkillName, absorbed)
	}
	return out
}

// attackVsCounter resolves the counter gamble: a counter that out-rolls
// the attack turns it back on the attacker; otherwise the attack lands.
func attackVsCounter(atk, ctr *Action) ClashOutcome {
	out := ClashOutcome{
		IsClash: true,
		Kind:    "attack_vs_counter",
	}
	if ctr.FinalOutput > atk.FinalOutput {
		out.DamageToA = ctr.FinalOutput
		out.WinnerActionID = ctr.ID
		out.Resolution = fmt.Sprintf("%s's %s turns %s's %s back on them for %d",
			ctr.CharacterName, ctr.SkillName, atk.CharacterName, atk.SkillName, ctr.FinalOutput)
	} else {
		out.DamageToB = atk.FinalOutput
		out.WinnerActionID = atk.ID
		out.Resolution = fmt.Sprintf("%s's %s breaks through %s's %s for %d",
			atk.CharacterName, atk.SkillName, ctr.CharacterName, ctr.SkillName, atk.FinalOutput)
	}
	return out
}

// attackVsCrafting interrupts the craft: its output is negated and the
// attack deals its full output to the crafter.
func attackVsCrafting(atk, cft *Action) ClashOutcome {
	return ClashOutcome{
		IsClash:         true,
		Kind:            "attack_vs_crafting",
		DamageToB:       atk.FinalOutput,
		NegatedActionID: cft.ID,
		WinnerActionID:  atk.ID,
		Resolution: fmt.Sprintf("%s's %s interrupts %s's %s, dealing %d",
			atk.CharacterName, atk.SkillName, cft.CharacterName, cft.SkillName, atk.FinalOutput),
	}
}

// mirror swaps the A/B perspective of an outcome.
func mirror(out ClashOutcome) ClashOutcome {
	out.DamageToA, out.DamageToB = out.DamageToB, out.DamageToA
	return out
}
