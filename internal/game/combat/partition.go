package combat

import (
	"sort"

	"github.com/aethelgard/server/internal/game/skill"
)

// ClashPair is a detected clash and its joint resolution.
type ClashPair struct {
	A       *Action
	B       *Action
	Outcome ClashOutcome
}

// PartitionResult splits a round's actions into clash pairs and
// independent actions.
type PartitionResult struct {
	Clashes     []ClashPair
	Independent []*Action
}

// PartitionActions partitions a round's actions into clashing pairs and
// independents using greedy first-match over indexed candidate sets.
//
// For each action, candidates come from three indexes: actions targeting
// this action's character, the actions of the characters this action
// targets, and (for Attacks) Defence actions protecting this action's
// target. Only candidates are tested with Interact, keeping the pass
// O(n·k) for small candidate sets k.
//
// Pairing is greedy first-match, not an optimal matching: when an action
// has multiple valid partners, the pair chosen depends on iteration order.
// That order is made deterministic by sorting on (SubmittedAt, ID), so the
// same action set always partitions the same way, but submission order
// still decides multi-partner outcomes. Known simplification, kept on
// purpose.
//
// Postcondition: every input action appears in exactly one clash pair or
// in Independent.
func PartitionActions(actions []*Action) PartitionResult {
	ordered := make([]*Action, len(actions))
	copy(ordered, actions)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].SubmittedAt.Equal(ordered[j].SubmittedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt)
	})

	byCharacter := make(map[string]*Action, len(ordered))
	targeting := make(map[string][]*Action)
	var defences []*Action
	for _, a := range ordered {
		byCharacter[a.CharacterID] = a
		if a.TargetID != nil {
			targeting[*a.TargetID] = append(targeting[*a.TargetID], a)
		}
		if a.Category == skill.CategoryDefence {
			defences = append(defences, a)
		}
	}

	consumed := make(map[string]bool, len(ordered))
	var result PartitionResult

	for _, a := range ordered {
		if consumed[a.ID] {
			continue
		}
		for _, cand := range candidatesFor(a, byCharacter, targeting, defences) {
			if consumed[cand.ID] || cand.ID == a.ID {
				continue
			}
			outcome, ok := Interact(a, cand)
			if !ok {
				continue
			}
			result.Clashes = append(result.Clashes, ClashPair{A: a, B: cand, Outcome: outcome})
			consumed[a.ID] = true
			consumed[cand.ID] = true
			break
		}
	}

	for _, a := range ordered {
		if !consumed[a.ID] {
			result.Independent = append(result.Independent, a)
		}
	}
	return result
}

// candidatesFor gathers the deduplicated candidate set for a, preserving
// submission order within each index bucket.
func candidatesFor(a *Action, byCharacter map[string]*Action, targeting map[string][]*Action, defences []*Action) []*Action {
	var candidates []*Action
	seen := make(map[string]bool)
	add := func(c *Action) {
		if c != nil && !seen[c.ID] {
			seen[c.ID] = true
			candidates = append(candidates, c)
		}
	}

	for _, c := range targeting[a.CharacterID] {
		add(c)
	}
	if a.TargetID != nil {
		add(byCharacter[*a.TargetID])
	}
	if a.Category == skill.CategoryAttack && a.TargetID != nil {
		for _, d := range defences {
			if d.TargetsCharacter(*a.TargetID) {
				add(d)
			}
		}
	}
	return candidates
}
