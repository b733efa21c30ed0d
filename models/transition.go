package models

import (
	"errors"
	"fmt"
)

var ErrInvalidStatusTransition = errors.New("invalid status transition")

// StatusScope names the entity kind a status event belongs to. The values
// double as event-bus topics.
type StatusScope string

const (
	ScopeTournament StatusScope = "TOURNAMENT"
	ScopeRound      StatusScope = "TOURNAMENT_ROUND"
	ScopeSeries     StatusScope = "TOURNAMENT_SERIES"
	ScopeMatch      StatusScope = "TOURNAMENT_MATCH"
)

// StatusEvent describes an observed status change. Callers fire side effects
// only when Changed() is true, which makes re-applying a transition a no-op.
type StatusEvent struct {
	Scope    StatusScope      `json:"scope"`
	EntityID int              `json:"entity_id"`
	From     TournamentStatus `json:"from"`
	To       TournamentStatus `json:"to"`
}

func (e StatusEvent) Changed() bool {
	return e.From != e.To
}

// tournamentEdges lists the legal forward edges of the tournament lifecycle.
// Cancel terminals (declined, deleted) are reachable from any pre-finished
// state and are handled separately in Transition.
var tournamentEdges = map[TournamentStatus][]TournamentStatus{
	StatusCreated:    {StatusSignUp},
	StatusSignUp:     {StatusAdjustment},
	StatusAdjustment: {StatusStarted},
	StatusStarted:    {StatusPause, StatusFinished},
	StatusPause:      {StatusStarted, StatusFinished},
}

// roundEdges covers rounds, series and matches: they are created, started,
// optionally paused, and finished. No sign_up or adjustment below tournament
// scope.
var roundEdges = map[TournamentStatus][]TournamentStatus{
	StatusCreated: {StatusStarted},
	StatusStarted: {StatusPause, StatusFinished},
	StatusPause:   {StatusStarted, StatusFinished},
}

// Transition validates the requested edge for the given scope and returns the
// resulting status with its event. Requesting the current status is legal and
// yields an event with Changed()==false, which is the idempotence guard for
// every "advance" style operation.
func Transition(scope StatusScope, entityID int, current, requested TournamentStatus) (TournamentStatus, StatusEvent, error) {
	event := StatusEvent{Scope: scope, EntityID: entityID, From: current, To: requested}

	if !requested.Valid() {
		return current, event, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, requested)
	}
	if current == requested {
		return current, event, nil
	}
	if current.IsTerminal() {
		return current, event, fmt.Errorf("%w: %s %s is terminal", ErrInvalidStatusTransition, scope, current)
	}
	// Cancel terminals short-circuit pending generation from any live state.
	if requested.IsCancelled() {
		return requested, event, nil
	}

	edges := roundEdges
	if scope == ScopeTournament {
		edges = tournamentEdges
	}
	for _, next := range edges[current] {
		if next == requested {
			return requested, event, nil
		}
	}
	return current, event, fmt.Errorf("%w: %s cannot go %s -> %s", ErrInvalidStatusTransition, scope, current, requested)
}

// ParticipationStatus is the lifecycle of a team/user proposal.
type ParticipationStatus string

const (
	ProposalCreated   ParticipationStatus = "created"
	ProposalApproved  ParticipationStatus = "approved"
	ProposalRejected  ParticipationStatus = "rejected"
	ProposalQuit      ParticipationStatus = "quit"
	ProposalCancelled ParticipationStatus = "cancelled"
)

func (s ParticipationStatus) Valid() bool {
	switch s {
	case ProposalCreated, ProposalApproved, ProposalRejected, ProposalQuit, ProposalCancelled:
		return true
	}
	return false
}

var proposalEdges = map[ParticipationStatus][]ParticipationStatus{
	ProposalCreated:  {ProposalApproved, ProposalRejected, ProposalCancelled},
	ProposalApproved: {ProposalQuit, ProposalCancelled},
}

// TransitionProposal validates a proposal state edge. Unlike bracket entities,
// re-requesting the current state is rejected: approving an approved proposal
// would double-charge the participation fee.
func TransitionProposal(current, requested ParticipationStatus) (ParticipationStatus, error) {
	if !requested.Valid() {
		return current, fmt.Errorf("%w: unknown participation state %q", ErrInvalidStatusTransition, requested)
	}
	for _, next := range proposalEdges[current] {
		if next == requested {
			return requested, nil
		}
	}
	return current, fmt.Errorf("%w: proposal cannot go %s -> %s", ErrInvalidStatusTransition, current, requested)
}
