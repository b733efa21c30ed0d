package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhrulSergey/league-core-sub002/models"
)

func signUpSettings() *models.TournamentSettings {
	s := autoSettings()
	s.MinParticipantsPerTeam = 2
	s.MaxParticipantsPerTeam = 5
	return s
}

// seedSoloTournament puts a solo (per-user) tournament with settings straight
// into the store.
func (e *testEnv) seedSoloTournament(t *testing.T, status models.TournamentStatus, settings *models.TournamentSettings) *models.Tournament {
	t.Helper()
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	tournament := &models.Tournament{
		ID:                e.store.id(),
		Name:              "solo ladder",
		Discipline:        "cs2",
		EliminationSystem: models.SingleElimination,
		ParticipantType:   models.ParticipantUser,
		Status:            status,
		StartDate:         time.Now().Add(72 * time.Hour),
	}
	e.store.tournaments[tournament.ID] = tournament
	settings.TournamentID = tournament.ID
	e.store.settings[tournament.ID] = settings
	return tournament
}

func TestSubmitProposalTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12, 13},
		ReserveUserIDs:     []int{14},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProposalCreated, proposal.Status)
	assert.NotZero(t, proposal.ID)
	require.Len(t, proposal.Participants, 4)
	assert.Equal(t, models.RoleMain, proposal.Participants[0].Role)
	assert.Equal(t, models.RoleReserve, proposal.Participants[3].Role)
	assert.Nil(t, proposal.FeeTransactionRef)
	assert.True(t, env.publisher.published("proposal.submitted"))

	stored, err := env.proposals.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalCreated, stored.Status)
}

func TestSubmitProposalDuplicateTeam(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	teamID := 500
	input := SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	}
	_, err := env.proposals.SubmitProposal(ctx, input)
	require.NoError(t, err)

	_, err = env.proposals.SubmitProposal(ctx, input)
	assert.ErrorIs(t, err, ErrProposalDuplicate)
}

func TestSubmitProposalReapplyAfterRejection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	teamID := 500
	input := SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	}
	first, err := env.proposals.SubmitProposal(ctx, input)
	require.NoError(t, err)

	_, err = env.proposals.ChangeProposalStatus(ctx, first.ID, models.ProposalRejected)
	require.NoError(t, err)

	second, err := env.proposals.SubmitProposal(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.ProposalCreated, second.Status)
}

func TestSubmitProposalSignUpClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	teamID := 500

	for _, status := range []models.TournamentStatus{
		models.StatusCreated, models.StatusAdjustment, models.StatusStarted,
	} {
		tournament, _ := env.seedTournament(t, models.SingleElimination, status, signUpSettings(), 0)
		_, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
			TournamentID:       tournament.ID,
			TeamID:             &teamID,
			ParticipantUserIDs: []int{11, 12},
		})
		assert.ErrorIs(t, err, ErrSignUpClosed, "status %s", status)
	}
}

func TestSubmitProposalRosterBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	tests := []struct {
		name    string
		mains   []int
		wantErr error
	}{
		{name: "below minimum", mains: []int{11}, wantErr: ErrRosterSizeViolation},
		{name: "above maximum", mains: []int{11, 12, 13, 14, 15, 16}, wantErr: ErrRosterSizeViolation},
		{name: "within bounds", mains: []int{11, 12, 13}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			teamID := 500 + len(tc.mains)
			_, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
				TournamentID:       tournament.ID,
				TeamID:             &teamID,
				ParticipantUserIDs: tc.mains,
			})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSubmitProposalSolo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.seedSoloTournament(t, models.StatusSignUp, autoSettings())

	userID := 42
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID: tournament.ID,
		UserID:       &userID,
	})
	require.NoError(t, err)
	require.Len(t, proposal.Participants, 1)
	assert.Equal(t, userID, proposal.Participants[0].UserID)
	assert.Equal(t, models.RoleMain, proposal.Participants[0].Role)

	_, err = env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID: tournament.ID,
		UserID:       &userID,
	})
	assert.ErrorIs(t, err, ErrProposalDuplicate)
}

func TestSubmitProposalMissingIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	teamTournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)
	_, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       teamTournament.ID,
		ParticipantUserIDs: []int{11, 12},
	})
	assert.ErrorIs(t, err, ErrValidationFailed)

	soloTournament := env.seedSoloTournament(t, models.StatusSignUp, autoSettings())
	_, err = env.proposals.SubmitProposal(ctx, SubmitProposalInput{TournamentID: soloTournament.ID})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestSubmitProposalUnknownTournament(t *testing.T) {
	env := newTestEnv(t)
	teamID := 500
	_, err := env.proposals.SubmitProposal(context.Background(), SubmitProposalInput{
		TournamentID:       999,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitProposalDoesNotChargeFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := signUpSettings()
	settings.FeeRequired = true
	settings.ParticipationFee = 25
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, settings, 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)
	assert.Nil(t, proposal.FeeTransactionRef)
	assert.Empty(t, env.ledger.charges, "the fee is due on approval, not on submission")
}

func TestApproveProposalChargesFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := signUpSettings()
	settings.FeeRequired = true
	settings.ParticipationFee = 25
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, settings, 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	approved, err := env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, approved.Status)
	require.NotNil(t, approved.FeeTransactionRef)
	assert.Equal(t, []float64{25}, env.ledger.charges)

	// The transaction ref survives a fresh read, so a later refund can find it.
	stored, err := env.proposals.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FeeTransactionRef)
	assert.Equal(t, *approved.FeeTransactionRef, *stored.FeeTransactionRef)
}

func TestApproveProposalFeeChargeFailureBlocksApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := signUpSettings()
	settings.FeeRequired = true
	settings.ParticipationFee = 25
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, settings, 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	env.ledger.failCharges = true
	_, err = env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalApproved)
	assert.ErrorIs(t, err, ErrFeeChargeFailed)

	stored, err := env.proposals.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalCreated, stored.Status, "a failed charge must not approve the proposal")
	assert.Nil(t, stored.FeeTransactionRef)

	env.ledger.failCharges = false
	approved, err := env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, approved.Status)
	assert.Equal(t, []float64{25}, env.ledger.charges)
}

func TestChangeProposalStatusApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	approved, err := env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, approved.Status)
	assert.True(t, env.publisher.published("proposal.status_changed"))

	stored, err := env.proposals.GetProposal(ctx, proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApproved, stored.Status)
}

func TestCancelApprovedProposalRefundsFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := signUpSettings()
	settings.FeeRequired = true
	settings.ParticipationFee = 25
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, settings, 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	approved, err := env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalApproved)
	require.NoError(t, err)
	require.NotNil(t, approved.FeeTransactionRef)

	_, err = env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalCancelled)
	require.NoError(t, err)
	assert.Equal(t, []string{*approved.FeeTransactionRef}, env.ledger.refunds)
}

func TestCancelPendingProposalTouchesNoMoney(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := signUpSettings()
	settings.FeeRequired = true
	settings.ParticipationFee = 25
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, settings, 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	cancelled, err := env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalCancelled, cancelled.Status)
	assert.Empty(t, env.ledger.charges, "nothing was charged before approval")
	assert.Empty(t, env.ledger.refunds, "nothing to refund without a charge")
}

func TestSubmitProposalRequiresCaptain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)
	env.roster.captains = map[int]int{500: 11}

	teamID := 500
	notCaptain := 12
	_, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
		SubmittedByUserID:  &notCaptain,
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	captain := 11
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
		SubmittedByUserID:  &captain,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalCreated, proposal.Status)
}

func TestApproveProposalAfterBracketGenerated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusAdjustment, autoSettings(), 2)

	env.store.mu.Lock()
	teamID := 700
	pending := &models.TournamentTeamProposal{
		ID:           env.store.id(),
		TournamentID: tournament.ID,
		TeamID:       &teamID,
		Status:       models.ProposalCreated,
	}
	env.store.proposals[pending.ID] = pending
	env.store.mu.Unlock()

	_, err := env.bracket.GenerateBracket(ctx, tournament.ID)
	require.NoError(t, err)

	// The roster froze at generation, so a late approval cannot slip a rival
	// into a running bracket.
	_, err = env.proposals.ChangeProposalStatus(ctx, pending.ID, models.ProposalApproved)
	assert.ErrorIs(t, err, ErrWrongTournamentState)
}

func TestChangeProposalStatusInvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	// re-requesting the current state must not be a silent no-op
	_, err = env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalCreated)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)

	_, err = env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalRejected)
	require.NoError(t, err)

	_, err = env.proposals.ChangeProposalStatus(ctx, proposal.ID, models.ProposalApproved)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func TestQuitTournamentChargesPenalty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	settings := signUpSettings()
	settings.QuitPenalties = []models.PenaltyBreakpoint{
		{HoursBeforeStart: 0, Amount: 20},
		{HoursBeforeStart: 24, Amount: 10},
		{HoursBeforeStart: 48, Amount: 5},
	}
	tournament, proposals := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, settings, 1)
	proposal := proposals[0]

	now := tournament.StartDate.Add(-30 * time.Hour)
	quit, err := env.proposals.QuitTournament(ctx, proposal.ID, now)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalQuit, quit.Status)
	assert.Equal(t, []float64{10}, env.ledger.penalties)
	assert.True(t, env.publisher.published("proposal.quit"))
}

func TestQuitTournamentWithoutPenaltyTable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, proposals := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 1)

	quit, err := env.proposals.QuitTournament(ctx, proposals[0].ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ProposalQuit, quit.Status)
	assert.Empty(t, env.ledger.penalties)
}

func TestQuitTournamentRequiresApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, _ := env.seedTournament(t, models.SingleElimination, models.StatusSignUp, signUpSettings(), 0)

	teamID := 500
	proposal, err := env.proposals.SubmitProposal(ctx, SubmitProposalInput{
		TournamentID:       tournament.ID,
		TeamID:             &teamID,
		ParticipantUserIDs: []int{11, 12},
	})
	require.NoError(t, err)

	_, err = env.proposals.QuitTournament(ctx, proposal.ID, time.Now())
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}
