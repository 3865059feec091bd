package combat

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the orchestrator. Typed errors below unwrap
// to these so callers can match with errors.Is.
var (
	// ErrRoundNotActive is returned when the referenced round is missing
	// or not in the active state.
	ErrRoundNotActive = errors.New("combat: round not active")
	// ErrDuplicateAction is returned when a character already has an
	// action in the round.
	ErrDuplicateAction = errors.New("combat: character already acted this round")
	// ErrTargetNotFound is returned when target resolution fails.
	ErrTargetNotFound = errors.New("combat: target not found")
	// ErrInsufficientResource is returned when a skill's aether cost or a
	// required-stat minimum is unmet.
	ErrInsufficientResource = errors.New("combat: insufficient resource")
	// ErrNoActions is returned when resolving a round with zero actions.
	ErrNoActions = errors.New("combat: no actions to resolve")
	// ErrLocationRequired is returned when creating a round without a
	// location.
	ErrLocationRequired = errors.New("combat: location required")
	// ErrInvalidEventType is returned when the supplied event is not a
	// combat event.
	ErrInvalidEventType = errors.New("combat: event is not a combat event")
	// ErrConcurrentResolution is returned when another resolver holds the
	// round.
	ErrConcurrentResolution = errors.New("combat: round is being resolved by another caller")
)

// TargetNotFoundError reports a failed target lookup together with the
// targets that would have been valid.
type TargetNotFoundError struct {
	// Target is the identifier that failed to resolve.
	Target string
	// Valid lists the names of currently valid targets, when known.
	Valid []string
}

// Error renders the failed identifier and the valid-target listing.
func (e *TargetNotFoundError) Error() string {
	if len(e.Valid) == 0 {
		return fmt.Sprintf("combat: target %q not found", e.Target)
	}
	return fmt.Sprintf("combat: target %q not found; valid targets: %s",
		e.Target, strings.Join(e.Valid, ", "))
}

// Unwrap allows errors.Is(err, ErrTargetNotFound).
func (e *TargetNotFoundError) Unwrap() error { return ErrTargetNotFound }

// InsufficientResourceError reports an unmet aether cost or stat minimum.
type InsufficientResourceError struct {
	CharacterID string
	// Resource is the stat that fell short (aether or a required stat).
	Resource string
	Have     int
	Need     int
}

// Error renders the shortfall with enough context to act on.
func (e *InsufficientResourceError) Error() string {
	return fmt.Sprintf("combat: character %s has %d %s, needs %d",
		e.CharacterID, e.Have, e.Resource, e.Need)
}

// Unwrap allows errors.Is(err, ErrInsufficientResource).
func (e *InsufficientResourceError) Unwrap() error { return ErrInsufficientResource }
