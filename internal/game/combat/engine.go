package combat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aethelgard/server/internal/game/character"
	"github.com/aethelgard/server/internal/game/dice"
	"github.com/aethelgard/server/internal/game/skill"
)

// EventTypeCombat is the only event type a round may be attached to.
const EventTypeCombat = "combat"

// CharacterStore is the character persistence contract consumed by the
// orchestrator.
type CharacterStore interface {
	GetByID(ctx context.Context, id string) (*character.Character, error)
	// FindActiveByIdentifier resolves an active character by id, user id,
	// or name.
	FindActiveByIdentifier(ctx context.Context, ident string) (*character.Character, error)
	ListActiveAtLocation(ctx context.Context, locationID string) ([]*character.Character, error)
	// SaveStats persists the character's current stats map.
	SaveStats(ctx context.Context, ch *character.Character) error
}

// SkillStore is the read-only skill lookup contract.
type SkillStore interface {
	GetByID(ctx context.Context, id string) (*skill.Skill, error)
}

// UsageStore reads usage counters. Counts fetches the skill and branch
// counters together in a single batched read.
type UsageStore interface {
	Counts(ctx context.Context, characterID, skillID, branchID string) (skillUses, branchUses int, err error)
}

// ResolveFunc computes a Resolution from a locked round's actions. It runs
// inside the store's atomic unit and must be pure apart from mutating the
// given actions' Processed and ClashResult fields.
type ResolveFunc func(r *Round, actions []*Action) (*Resolution, error)

// RoundStore is the round/action persistence contract. Implementations
// must enforce the (round, character) uniqueness constraint and the
// lock-then-read-then-write pattern for Resolve.
type RoundStore interface {
	// Create persists the round as active, assigning RoundNumber
	// atomically within its scope (event, or location-without-event).
	Create(ctx context.Context, r *Round) (*Round, error)
	// GetByID returns nil, nil when no round exists with the id; the
	// orchestrator reports a missing round as ErrRoundNotActive.
	GetByID(ctx context.Context, id string) (*Round, error)
	ActiveAtLocation(ctx context.Context, locationID string) (*Round, error)
	ListResolved(ctx context.Context, locationID string, limit int) ([]*Round, error)
	// Cancel transitions an active round to cancelled. Returns false,
	// without error, when the round is not currently active.
	Cancel(ctx context.Context, roundID string) (bool, error)
	Actions(ctx context.Context, roundID string) ([]*Action, error)
	// HasAction is the advisory duplicate pre-check; the insert in
	// SubmitAction is the authoritative guard.
	HasAction(ctx context.Context, roundID, characterID string) (bool, error)
	// SubmitAction inserts the action and increments the character's
	// skill and branch usage counters in one transaction. Returns
	// ErrDuplicateAction when the uniqueness constraint is violated.
	SubmitAction(ctx context.Context, a *Action) error
	// Resolve acquires an exclusive lock on the round, verifies it is
	// active, loads its actions, invokes fn, and commits the resolution
	// (action writes + round transition) atomically. A concurrent
	// resolver fails with ErrRoundNotActive or ErrConcurrentResolution.
	Resolve(ctx context.Context, roundID, resolverID string, fn ResolveFunc) (*Resolution, error)
}

// SessionProvider supplies session/event context for a location. The
// engine treats sessions and events as opaque and never manages their
// lifecycle.
type SessionProvider interface {
	// ActiveSession returns the active session for the location, creating
	// one when none exists.
	ActiveSession(ctx context.Context, locationID string) (string, error)
	// ActiveEvent returns the session's current event id, or empty when
	// none is running.
	ActiveEvent(ctx context.Context, sessionID string) (string, error)
	EventType(ctx context.Context, eventID string) (string, error)
}

// Narrator renders resolution payloads for players. Called after the
// resolution has committed; failures are logged and swallowed, never
// surfaced to the resolver.
type Narrator interface {
	RoundResolved(ctx context.Context, round *Round, res *Resolution) error
}

// Orchestrator owns round creation, action submission, and the
// transactional resolution pass. Safe for concurrent use; all shared
// state lives behind the stores.
type Orchestrator struct {
	characters CharacterStore
	skills     SkillStore
	usage      UsageStore
	rounds     RoundStore
	sessions   SessionProvider
	narrator   Narrator // may be nil
	src        dice.Source
	logger     *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
//
// Precondition: all arguments except narrator must be non-nil.
func NewOrchestrator(
	characters CharacterStore,
	skills SkillStore,
	usage UsageStore,
	rounds RoundStore,
	sessions SessionProvider,
	narrator Narrator,
	src dice.Source,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		characters: characters,
		skills:     skills,
		usage:      usage,
		rounds:     rounds,
		sessions:   sessions,
		narrator:   narrator,
		src:        src,
		logger:     logger,
	}
}

// CreateRound opens a new active round at the location. When no session is
// supplied, the location's active session is resolved or lazily created.
// When no event is supplied, a backfill from the session's current event
// is attempted; backfill lookup failures are swallowed and the round
// proceeds without an event. A supplied event must be a combat event.
//
// Postcondition: Returns an active round with its scoped RoundNumber
// assigned, or ErrLocationRequired / ErrInvalidEventType.
func (o *Orchestrator) CreateRound(ctx context.Context, locationID, creatorID string, sessionID, eventID *string) (*Round, error) {
	if locationID == "" {
		return nil, ErrLocationRequired
	}

	if eventID != nil {
		typ, err := o.sessions.EventType(ctx, *eventID)
		if err != nil {
			return nil, fmt.Errorf("looking up event %s: %w", *eventID, err)
		}
		if typ != EventTypeCombat {
			return nil, fmt.Errorf("%w: event %s has type %q", ErrInvalidEventType, *eventID, typ)
		}
	}

	if sessionID == nil {
		sid, err := o.sessions.ActiveSession(ctx, locationID)
		if err != nil {
			return nil, fmt.Errorf("resolving session for location %s: %w", locationID, err)
		}
		sessionID = &sid
	}

	if eventID == nil {
		eventID = o.backfillEvent(ctx, *sessionID)
	}

	r := &Round{
		ID:         uuid.NewString(),
		LocationID: locationID,
		SessionID:  sessionID,
		EventID:    eventID,
		Status:     StatusActive,
		CreatedBy:  creatorID,
	}
	created, err := o.rounds.Create(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("creating round: %w", err)
	}

	o.logger.Info("round created",
		zap.String("round_id", created.ID),
		zap.String("location_id", locationID),
		zap.Int("round_number", created.RoundNumber),
	)
	return created, nil
}

// backfillEvent looks up the session's current combat event. Failures and
// non-combat events leave the round event-less; that is local recovery,
// not an error.
func (o *Orchestrator) backfillEvent(ctx context.Context, sessionID string) *string {
	eid, err := o.sessions.ActiveEvent(ctx, sessionID)
	if err != nil || eid == "" {
		if err != nil {
			o.logger.Debug("event backfill skipped", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	}
	typ, err := o.sessions.EventType(ctx, eid)
	if err != nil || typ != EventTypeCombat {
		return nil
	}
	return &eid
}

// PrecomputedOutcome carries an already-rolled result supplied by an
// upstream narrative system in place of a fresh calculation.
type PrecomputedOutcome struct {
	Output  int
	Quality string
}

// SubmitParams are the inputs to SubmitAction.
type SubmitParams struct {
	RoundID     string
	CharacterID string
	SkillID     string
	// TargetID is an identifier in any of the three lookup forms; nil
	// when the skill needs no explicit target.
	TargetID *string
	// Precomputed, when non-nil, replaces the fresh outcome calculation.
	// Validated the same way regardless of origin.
	Precomputed *PrecomputedOutcome
}

// SubmitAction validates and persists one character's action for the
// round: target resolution per the skill's target mode, outcome
// computation (fresh roll or validated pre-computed result), cost
// application, display snapshots, and the transactional action insert
// with usage increments.
//
// Postcondition: Returns the persisted action, or one of
// ErrRoundNotActive, ErrDuplicateAction, ErrTargetNotFound,
// ErrInsufficientResource.
func (o *Orchestrator) SubmitAction(ctx context.Context, p SubmitParams) (*Action, error) {
	round, err := o.rounds.GetByID(ctx, p.RoundID)
	if err != nil {
		return nil, fmt.Errorf("loading round %s: %w", p.RoundID, err)
	}
	if round == nil || round.Status != StatusActive {
		return nil, fmt.Errorf("%w: round %s", ErrRoundNotActive, p.RoundID)
	}

	// Advisory pre-check; the storage unique constraint is authoritative
	// under concurrent submission.
	if exists, err := o.rounds.HasAction(ctx, p.RoundID, p.CharacterID); err != nil {
		return nil, fmt.Errorf("checking existing action: %w", err)
	} else if exists {
		return nil, fmt.Errorf("%w: character %s in round %s", ErrDuplicateAction, p.CharacterID, p.RoundID)
	}

	actor, err := o.characters.GetByID(ctx, p.CharacterID)
	if err != nil {
		return nil, fmt.Errorf("loading character %s: %w", p.CharacterID, err)
	}
	sk, err := o.skills.GetByID(ctx, p.SkillID)
	if err != nil {
		return nil, fmt.Errorf("loading skill %s: %w", p.SkillID, err)
	}

	target, err := o.resolveTarget(ctx, actor, sk, p.TargetID)
	if err != nil {
		return nil, err
	}

	category, ok := skill.Classify(sk.Type)
	if !ok {
		o.logger.Warn("skill type fell back to Attack",
			zap.String("skill_id", sk.ID),
			zap.String("type", sk.Type),
		)
	}

	output, quality, err := o.computeOutcome(ctx, actor, sk, p.Precomputed)
	if err != nil {
		return nil, err
	}

	newAether, err := ApplyCost(actor, sk)
	if err != nil {
		return nil, err
	}

	a := &Action{
		ID:                uuid.NewString(),
		RoundID:           round.ID,
		CharacterID:       actor.ID,
		SkillID:           sk.ID,
		CharacterName:     actor.Name,
		SkillName:         sk.Name,
		SkillType:         sk.Type,
		Category:          category,
		BranchID:          sk.BranchID,
		FinalOutput:       output,
		OutcomeMultiplier: quality.Multiplier(),
		RollQuality:       quality,
		SubmittedAt:       time.Now().UTC(),
	}
	if target != nil {
		a.TargetID = &target.ID
		a.TargetName = target.Name
	}

	if err := o.rounds.SubmitAction(ctx, a); err != nil {
		return nil, err
	}

	// The charge is persisted only once the action is recorded: a submission
	// that loses the uniqueness race must leave the character's aether
	// untouched.
	actor.SetAether(newAether)
	if err := o.characters.SaveStats(ctx, actor); err != nil {
		return nil, fmt.Errorf("persisting aether for character %s: %w", actor.ID, err)
	}

	o.logger.Info("action submitted",
		zap.String("round_id", round.ID),
		zap.String("character_id", actor.ID),
		zap.String("skill_id", sk.ID),
		zap.Int("output", output),
		zap.String("quality", string(quality)),
	)
	return a, nil
}

// resolveTarget applies the skill's target mode. self → caster; other →
// must resolve to an existing active character that is not the caster;
// any → defaults to the caster when no target is given; none → no target.
func (o *Orchestrator) resolveTarget(ctx context.Context, actor *character.Character, sk *skill.Skill, targetID *string) (*character.Character, error) {
	switch sk.Target {
	case skill.TargetNone:
		return nil, nil
	case skill.TargetSelf:
		return actor, nil
	case skill.TargetAny:
		if targetID == nil {
			return actor, nil
		}
		return o.lookupTarget(ctx, actor, *targetID)
	case skill.TargetOther:
		if targetID == nil {
			return nil, o.targetNotFound(ctx, actor, "")
		}
		target, err := o.lookupTarget(ctx, actor, *targetID)
		if err != nil {
			return nil, err
		}
		if target.ID == actor.ID {
			return nil, o.targetNotFound(ctx, actor, *targetID)
		}
		return target, nil
	default:
		return nil, fmt.Errorf("combat: skill %s has unknown target mode %q", sk.ID, sk.Target)
	}
}

func (o *Orchestrator) lookupTarget(ctx context.Context, actor *character.Character, ident string) (*character.Character, error) {
	target, err := o.characters.FindActiveByIdentifier(ctx, ident)
	if err != nil || target == nil {
		return nil, o.targetNotFound(ctx, actor, ident)
	}
	return target, nil
}

// targetNotFound builds a TargetNotFoundError listing the active
// characters at the actor's location. The listing lookup is best-effort.
func (o *Orchestrator) targetNotFound(ctx context.Context, actor *character.Character, ident string) error {
	var valid []string
	if others, err := o.characters.ListActiveAtLocation(ctx, actor.LocationID); err == nil {
		for _, ch := range others {
			if ch.ID != actor.ID {
				valid = append(valid, ch.Name)
			}
		}
	}
	return &TargetNotFoundError{Target: ident, Valid: valid}
}

// computeOutcome produces the action's output and quality, either from a
// fresh calculation or from a validated pre-computed result.
func (o *Orchestrator) computeOutcome(ctx context.Context, actor *character.Character, sk *skill.Skill, pre *PrecomputedOutcome) (int, Quality, error) {
	if pre != nil {
		quality, err := ParseQuality(pre.Quality)
		if err != nil {
			return 0, "", err
		}
		if pre.Output <= 0 {
			return 0, "", fmt.Errorf("combat: pre-computed output must be > 0, got %d", pre.Output)
		}
		return pre.Output, quality, nil
	}

	skillUses, branchUses, err := o.usage.Counts(ctx, actor.ID, sk.ID, sk.BranchID)
	if err != nil {
		return 0, "", fmt.Errorf("loading usage counts: %w", err)
	}
	calc := NewCalculator(o.src)
	output := calc.FinalOutput(actor, sk, skillUses, branchUses)
	return output, calc.RollOutcome(), nil
}

// ActiveRound returns the location's active round, or nil when none.
func (o *Orchestrator) ActiveRound(ctx context.Context, locationID string) (*Round, error) {
	return o.rounds.ActiveAtLocation(ctx, locationID)
}

// RoundActions returns all actions submitted to the round.
func (o *Orchestrator) RoundActions(ctx context.Context, roundID string) ([]*Action, error) {
	return o.rounds.Actions(ctx, roundID)
}

// ResolvedRounds returns up to limit resolved rounds for the location,
// newest first.
func (o *Orchestrator) ResolvedRounds(ctx context.Context, locationID string, limit int) ([]*Round, error) {
	return o.rounds.ListResolved(ctx, locationID, limit)
}

// CancelRound transitions an active round to cancelled. Cancelling a round
// that is not active is a silent no-op.
func (o *Orchestrator) CancelRound(ctx context.Context, roundID string) error {
	cancelled, err := o.rounds.Cancel(ctx, roundID)
	if err != nil {
		return fmt.Errorf("cancelling round %s: %w", roundID, err)
	}
	if !cancelled {
		o.logger.Debug("cancel skipped, round not active", zap.String("round_id", roundID))
	}
	return nil
}

// ResolveRound resolves all submitted actions for the round as one atomic
// unit: the store locks the round, the actions are partitioned into
// clashes and independents, every action is marked processed, and the
// round transitions to resolved with the structured payload. Any failure
// aborts the whole operation with nothing committed.
//
// Post-commit narration is best-effort and never fails the resolution.
//
// Postcondition: Returns the resolution payload, or ErrRoundNotActive /
// ErrConcurrentResolution / ErrNoActions.
func (o *Orchestrator) ResolveRound(ctx context.Context, roundID, resolverID string) (*Resolution, error) {
	var resolvedRound *Round
	res, err := o.rounds.Resolve(ctx, roundID, resolverID, func(r *Round, actions []*Action) (*Resolution, error) {
		if len(actions) == 0 {
			return nil, fmt.Errorf("%w: round %s", ErrNoActions, r.ID)
		}
		resolvedRound = r
		return o.buildResolution(r, actions), nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("round resolved",
		zap.String("round_id", roundID),
		zap.String("resolver_id", resolverID),
		zap.Int("clashes", res.ClashCount),
		zap.Int("independent", res.IndependentCount),
	)

	if o.narrator != nil {
		if nerr := o.narrator.RoundResolved(ctx, resolvedRound, res); nerr != nil {
			o.logger.Warn("narration failed after resolution",
				zap.String("round_id", roundID),
				zap.Error(nerr),
			)
		}
	}
	return res, nil
}

// buildResolution partitions the actions, stamps each with its result, and
// assembles the structured payload.
func (o *Orchestrator) buildResolution(r *Round, actions []*Action) *Resolution {
	part := PartitionActions(actions)

	res := &Resolution{
		RoundNumber:      r.RoundNumber,
		ClashCount:       len(part.Clashes),
		IndependentCount: len(part.Independent),
	}

	for _, pair := range part.Clashes {
		outcome := pair.Outcome
		pair.A.Processed = true
		pair.A.ClashResult = &outcome
		mirrored := mirror(outcome)
		pair.B.Processed = true
		pair.B.ClashResult = &mirrored

		res.Clashes = append(res.Clashes, ClashDetail{
			A:       participantOf(pair.A),
			B:       participantOf(pair.B),
			Outcome: outcome,
		})
	}

	for _, a := range part.Independent {
		a.Processed = true
		res.Independent = append(res.Independent, IndependentDetail{
			ActionID:      a.ID,
			CharacterID:   a.CharacterID,
			CharacterName: a.CharacterName,
			SkillName:     a.SkillName,
			TargetName:    a.TargetName,
			Output:        a.FinalOutput,
			Quality:       a.RollQuality,
			Narrative:     independentNarrative(a),
		})
	}
	return res
}

func participantOf(a *Action) Participant {
	return Participant{
		ActionID:      a.ID,
		CharacterID:   a.CharacterID,
		CharacterName: a.CharacterName,
		SkillID:       a.SkillID,
		SkillName:     a.SkillName,
		Category:      a.Category.String(),
		Output:        a.FinalOutput,
		Quality:       a.RollQuality,
	}
}

// independentNarrative renders the pass-through text for an unopposed
// action.
func independentNarrative(a *Action) string {
	if a.TargetName != "" && (a.TargetID == nil || *a.TargetID != a.CharacterID) {
		return fmt.Sprintf("%s uses %s on %s for %d (%s)",
			a.CharacterName, a.SkillName, a.TargetName, a.FinalOutput, a.RollQuality)
	}
	return fmt.Sprintf("%s uses %s for %d (%s)",
		a.CharacterName, a.SkillName, a.FinalOutput, a.RollQuality)
}
