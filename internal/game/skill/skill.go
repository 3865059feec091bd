// Package skill defines the skill domain model, the interaction-category
// classifier, and the YAML content loader.
package skill

import (
	"fmt"
	"strings"

	"github.com/aethelgard/server/internal/game/character"
)

// TargetMode describes who a skill may be aimed at.
type TargetMode string

const (
	// TargetSelf always resolves to the caster.
	TargetSelf TargetMode = "self"
	// TargetOther requires a target that is not the caster.
	TargetOther TargetMode = "other"
	// TargetAny accepts any target and defaults to the caster.
	TargetAny TargetMode = "any"
	// TargetNone takes no target at all.
	TargetNone TargetMode = "none"
)

// ParseTargetMode validates a target mode string.
//
// Postcondition: Returns a valid TargetMode or a descriptive error.
func ParseTargetMode(s string) (TargetMode, error) {
	switch TargetMode(strings.ToLower(s)) {
	case TargetSelf, TargetOther, TargetAny, TargetNone:
		return TargetMode(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("skill: unknown target mode %q", s)
	}
}

// MaxScalingStats is the maximum number of stats a skill may scale on.
const MaxScalingStats = 3

// Skill represents one usable skill. Read-only to the combat engine.
type Skill struct {
	ID   string
	Name string

	// BasePower is the numeric potency before stat scaling and multipliers.
	BasePower int
	// AetherCost is the aether spent per use.
	AetherCost int
	// Target is the targeting mode.
	Target TargetMode
	// ScalingStats is the ordered set of up to MaxScalingStats primary
	// stat names the skill scales on.
	ScalingStats []string
	// RequiredStats maps stat names to the minimum value needed to use
	// the skill.
	RequiredStats map[string]int
	// Type is the free-text type name, classified into a Category by
	// Classify.
	Type string
	// BranchID groups skills for branch proficiency tracking.
	BranchID string
}

// Validate checks authoring-time invariants on the skill definition.
//
// Postcondition: Returns nil iff the skill is well-formed, including a
// classifiable type name and known scaling/required stat names.
func (s *Skill) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("skill: id must not be empty")
	}
	if s.Name == "" {
		return fmt.Errorf("skill %s: name must not be empty", s.ID)
	}
	if s.BasePower < 0 {
		return fmt.Errorf("skill %s: base power must be >= 0, got %d", s.ID, s.BasePower)
	}
	if s.AetherCost < 0 {
		return fmt.Errorf("skill %s: aether cost must be >= 0, got %d", s.ID, s.AetherCost)
	}
	if _, err := ParseTargetMode(string(s.Target)); err != nil {
		return fmt.Errorf("skill %s: %w", s.ID, err)
	}
	if len(s.ScalingStats) > MaxScalingStats {
		return fmt.Errorf("skill %s: at most %d scaling stats, got %d", s.ID, MaxScalingStats, len(s.ScalingStats))
	}
	for _, stat := range s.ScalingStats {
		if !character.IsPrimaryStat(stat) {
			return fmt.Errorf("skill %s: unknown scaling stat %q", s.ID, stat)
		}
	}
	for stat := range s.RequiredStats {
		if !character.IsPrimaryStat(stat) && stat != character.StatAether {
			return fmt.Errorf("skill %s: unknown required stat %q", s.ID, stat)
		}
	}
	if s.BranchID == "" {
		return fmt.Errorf("skill %s: branch id must not be empty", s.ID)
	}
	if _, ok := Classify(s.Type); !ok {
		return fmt.Errorf("skill %s: unclassifiable type %q", s.ID, s.Type)
	}
	return nil
}
