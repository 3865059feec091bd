// Package combat implements the turn-based combat resolution core: outcome
// calculation, clash detection and resolution, the round state machine,
// and the round orchestrator.
package combat

import (
	"time"

	"github.com/aethelgard/server/internal/game/skill"
)

// Status is the lifecycle state of a combat round.
type Status string

const (
	// StatusActive accepts action submissions.
	StatusActive Status = "active"
	// StatusResolving is held by exactly one resolver while it computes.
	StatusResolving Status = "resolving"
	// StatusResolved is terminal; the round carries a resolution payload.
	StatusResolved Status = "resolved"
	// StatusCancelled is terminal; the round was abandoned while active.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are legal from s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// CanTransitionTo reports whether the transition s → next is legal.
// Legal transitions: active → resolving|resolved|cancelled, and
// resolving → resolved. Terminal states admit nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusResolving || next == StatusResolved || next == StatusCancelled
	case StatusResolving:
		return next == StatusResolved
	default:
		return false
	}
}

// Round is one discrete bundle of simultaneous actions at a location.
//
// Invariant: RoundNumber is unique and monotonically increasing within its
// scope: (EventID) when the round belongs to an event, otherwise
// (LocationID) among rounds without an event.
type Round struct {
	ID         string
	LocationID string
	SessionID  *string
	EventID    *string

	RoundNumber int
	Status      Status

	CreatedBy  string
	ResolvedBy *string
	Resolution *Resolution

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// Action is one character's submitted skill use in a round.
//
// Invariant: at most one Action per (RoundID, CharacterID); enforced by an
// advisory pre-check in the orchestrator and by a unique constraint at the
// storage layer.
//
// Actions are immutable once submitted except for Processed and
// ClashResult, written exactly once during resolution.
type Action struct {
	ID          string
	RoundID     string
	CharacterID string
	SkillID     string
	// TargetID is the resolved target character, nil when the skill takes
	// no target.
	TargetID *string

	// Display snapshots, captured at submission time and never re-derived.
	CharacterName string
	SkillName     string
	SkillType     string
	TargetName    string

	// Category is the interaction category the skill type classified to
	// at submission time.
	Category skill.Category
	// BranchID is the skill's proficiency branch at submission time.
	BranchID string

	FinalOutput       int
	OutcomeMultiplier float64
	RollQuality       Quality

	Processed   bool
	ClashResult *ClashOutcome

	SubmittedAt time.Time
}

// TargetsCharacter reports whether the action is aimed at the given
// character.
func (a *Action) TargetsCharacter(characterID string) bool {
	return a.TargetID != nil && *a.TargetID == characterID
}

// Resolution is the structured result of resolving a round. It is returned
// to the caller, persisted on the round, and handed to the narrative
// collaborator, which must be able to render it without re-deriving
// anything.
type Resolution struct {
	RoundNumber      int                 `json:"round_number"`
	ClashCount       int                 `json:"clash_count"`
	IndependentCount int                 `json:"independent_count"`
	Clashes          []ClashDetail       `json:"clashes,omitempty"`
	Independent      []IndependentDetail `json:"independent,omitempty"`
}

// Participant identifies one side of a clash for rendering.
type Participant struct {
	ActionID      string  `json:"action_id"`
	CharacterID   string  `json:"character_id"`
	CharacterName string  `json:"character_name"`
	SkillID       string  `json:"skill_id"`
	SkillName     string  `json:"skill_name"`
	Category      string  `json:"category"`
	Output        int     `json:"output"`
	Quality       Quality `json:"quality"`
}

// ClashDetail is one resolved clash pair.
type ClashDetail struct {
	A       Participant  `json:"a"`
	B       Participant  `json:"b"`
	Outcome ClashOutcome `json:"outcome"`
}

// IndependentDetail is one action resolved on its own merits.
type IndependentDetail struct {
	ActionID      string  `json:"action_id"`
	CharacterID   string  `json:"character_id"`
	CharacterName string  `json:"character_name"`
	SkillName     string  `json:"skill_name"`
	TargetName    string  `json:"target_name,omitempty"`
	Output        int     `json:"output"`
	Quality       Quality `json:"quality"`
	Narrative     string  `json:"narrative"`
}
