// Package proficiency derives rank tiers and output multipliers from
// cumulative skill and branch usage counts.
package proficiency

import "time"

// skillTiers maps cumulative skill uses to a multiplier and rank label.
// A tier applies while uses < threshold of the next row.
var skillTiers = []struct {
	threshold  int // tier applies while uses < threshold
	multiplier float64
	rank       string
}{
	{20, 1.0, "Novice"},
	{35, 1.3, "Apprentice"},
	{60, 1.7, "Adept"},
	{100, 2.2, "Expert"},
	{0, 2.8, "Master"}, // threshold 0 = unbounded final tier
}

// branchTiers maps cumulative branch uses to a multiplier and rank label,
// across ten tiers.
var branchTiers = []struct {
	threshold  int
	multiplier float64
	rank       string
}{
	{75, 1.0, "Uninitiated"},
	{150, 1.05, "Initiate"},
	{250, 1.10, "Student"},
	{375, 1.15, "Practitioner"},
	{525, 1.20, "Journeyman"},
	{700, 1.25, "Specialist"},
	{900, 1.30, "Veteran"},
	{1125, 1.35, "Authority"},
	{1375, 1.40, "Luminary"},
	{0, 1.50, "Grandmaster"},
}

// SkillMultiplier returns the output multiplier earned by cumulative skill
// uses. Step function with thresholds at 20, 35, 60, and 100 uses.
//
// Precondition: uses >= 0.
// Postcondition: Returns one of 1.0, 1.3, 1.7, 2.2, 2.8.
func SkillMultiplier(uses int) float64 {
	for _, tier := range skillTiers {
		if tier.threshold > 0 && uses < tier.threshold {
			return tier.multiplier
		}
	}
	return skillTiers[len(skillTiers)-1].multiplier
}

// SkillRank returns the rank label for cumulative skill uses.
//
// Postcondition: Returns one of the five skill rank labels.
func SkillRank(uses int) string {
	for _, tier := range skillTiers {
		if tier.threshold > 0 && uses < tier.threshold {
			return tier.rank
		}
	}
	return skillTiers[len(skillTiers)-1].rank
}

// BranchMultiplier returns the output multiplier earned by cumulative
// branch uses. Step function across ten tiers with thresholds at
// 75, 150, 250, 375, 525, 700, 900, 1125, and 1375 uses.
//
// Precondition: uses >= 0.
// Postcondition: Returns a value in [1.0, 1.5].
func BranchMultiplier(uses int) float64 {
	for _, tier := range branchTiers {
		if tier.threshold > 0 && uses < tier.threshold {
			return tier.multiplier
		}
	}
	return branchTiers[len(branchTiers)-1].multiplier
}

// BranchRank returns the rank label for cumulative branch uses.
//
// Postcondition: Returns one of the ten branch rank labels.
func BranchRank(uses int) string {
	for _, tier := range branchTiers {
		if tier.threshold > 0 && uses < tier.threshold {
			return tier.rank
		}
	}
	return branchTiers[len(branchTiers)-1].rank
}

// SkillUsage is a per-(character, skill) usage counter with its derived
// rank. Created lazily on first use; Uses only ever increases.
type SkillUsage struct {
	CharacterID string
	SkillID     string
	Uses        int
	Rank        string
	UpdatedAt   time.Time
}

// BranchUsage is a per-(character, branch) usage counter with its derived
// rank. Created lazily on first use; Uses only ever increases.
type BranchUsage struct {
	CharacterID string
	BranchID    string
	Uses        int
	Rank        string
	UpdatedAt   time.Time
}
