package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTournament(t *testing.T) {
	tests := []struct {
		name      string
		current   TournamentStatus
		requested TournamentStatus
		wantErr   bool
	}{
		{name: "created to sign_up", current: StatusCreated, requested: StatusSignUp},
		{name: "sign_up to adjustment", current: StatusSignUp, requested: StatusAdjustment},
		{name: "adjustment to started", current: StatusAdjustment, requested: StatusStarted},
		{name: "started to pause", current: StatusStarted, requested: StatusPause},
		{name: "pause back to started", current: StatusPause, requested: StatusStarted},
		{name: "started to finished", current: StatusStarted, requested: StatusFinished},
		{name: "decline from sign_up", current: StatusSignUp, requested: StatusDeclined},
		{name: "delete from created", current: StatusCreated, requested: StatusDeleted},
		{name: "created cannot start", current: StatusCreated, requested: StatusStarted, wantErr: true},
		{name: "sign_up cannot finish", current: StatusSignUp, requested: StatusFinished, wantErr: true},
		{name: "finished is terminal", current: StatusFinished, requested: StatusStarted, wantErr: true},
		{name: "deleted is terminal", current: StatusDeleted, requested: StatusSignUp, wantErr: true},
		{name: "unknown status", current: StatusCreated, requested: TournamentStatus("bogus"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, event, err := Transition(ScopeTournament, 1, tt.current, tt.requested)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidStatusTransition)
				assert.Equal(t, tt.current, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.requested, got)
			assert.True(t, event.Changed())
		})
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	got, event, err := Transition(ScopeSeries, 7, StatusStarted, StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, got)
	assert.False(t, event.Changed())
}

func TestTransitionBelowTournamentScope(t *testing.T) {
	// Rounds, series and matches never pass through sign_up or adjustment.
	_, _, err := Transition(ScopeRound, 1, StatusCreated, StatusSignUp)
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	got, _, err := Transition(ScopeMatch, 1, StatusCreated, StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, got)

	got, _, err = Transition(ScopeSeries, 1, StatusStarted, StatusFinished)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got)
}

func TestTransitionProposal(t *testing.T) {
	tests := []struct {
		name      string
		current   ParticipationStatus
		requested ParticipationStatus
		wantErr   bool
	}{
		{name: "approve pending", current: ProposalCreated, requested: ProposalApproved},
		{name: "reject pending", current: ProposalCreated, requested: ProposalRejected},
		{name: "cancel pending", current: ProposalCreated, requested: ProposalCancelled},
		{name: "quit after approval", current: ProposalApproved, requested: ProposalQuit},
		{name: "cancel after approval", current: ProposalApproved, requested: ProposalCancelled},
		{name: "re-requesting current state", current: ProposalCreated, requested: ProposalCreated, wantErr: true},
		{name: "rejected is terminal", current: ProposalRejected, requested: ProposalApproved, wantErr: true},
		{name: "quit is terminal", current: ProposalQuit, requested: ProposalApproved, wantErr: true},
		{name: "pending cannot quit", current: ProposalCreated, requested: ProposalQuit, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransitionProposal(tt.current, tt.requested)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.requested, got)
		})
	}
}
