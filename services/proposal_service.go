package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
)

type ProposalService interface {
	SubmitProposal(ctx context.Context, input SubmitProposalInput) (*models.TournamentTeamProposal, error)
	GetProposal(ctx context.Context, proposalID int) (*models.TournamentTeamProposal, error)
	ListProposals(ctx context.Context, tournamentID int, statusFilter *models.ParticipationStatus) ([]*models.TournamentTeamProposal, error)
	ChangeProposalStatus(ctx context.Context, proposalID int, requested models.ParticipationStatus) (*models.TournamentTeamProposal, error)
	QuitTournament(ctx context.Context, proposalID int, now time.Time) (*models.TournamentTeamProposal, error)
}

type SubmitProposalInput struct {
	TournamentID       int
	TeamID             *int
	UserID             *int
	ParticipantUserIDs []int
	ReserveUserIDs     []int
	// SubmittedByUserID carries the acting player for captaincy checks on
	// team proposals. Nil means an organizer submitted on the team's behalf.
	SubmittedByUserID *int
}

type proposalService struct {
	proposalRepo   repositories.ProposalRepository
	tournamentRepo repositories.TournamentRepository
	txManager      repositories.TxManager
	locks          *TournamentLocks
	ledger         FinancialLedger
	roster         TeamRosterProvider
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewProposalService(
	proposalRepo repositories.ProposalRepository,
	tournamentRepo repositories.TournamentRepository,
	txManager repositories.TxManager,
	locks *TournamentLocks,
	ledger FinancialLedger,
	roster TeamRosterProvider,
	publisher EventPublisher,
	logger *slog.Logger,
) ProposalService {
	return &proposalService{
		proposalRepo:   proposalRepo,
		tournamentRepo: tournamentRepo,
		txManager:      txManager,
		locks:          locks,
		ledger:         ledger,
		roster:         roster,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *proposalService) SubmitProposal(ctx context.Context, input SubmitProposalInput) (*models.TournamentTeamProposal, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, input.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("tournament %d: %w", input.TournamentID, ErrNotFound)
		}
		return nil, err
	}
	if tournament.Status != models.StatusSignUp {
		return nil, fmt.Errorf("tournament %d is %s: %w", tournament.ID, tournament.Status, ErrSignUpClosed)
	}

	settings, err := s.tournamentRepo.GetSettings(ctx, nil, tournament.ID)
	if err != nil {
		return nil, err
	}

	proposal := &models.TournamentTeamProposal{
		TournamentID: tournament.ID,
		TeamID:       input.TeamID,
		UserID:       input.UserID,
		Status:       models.ProposalCreated,
	}
	switch tournament.ParticipantType {
	case models.ParticipantTeam:
		if input.TeamID == nil {
			return nil, fmt.Errorf("team id required for team tournament: %w", ErrValidationFailed)
		}
		if input.SubmittedByUserID != nil {
			captain, err := s.roster.IsCaptain(ctx, *input.TeamID, *input.SubmittedByUserID)
			if err != nil {
				return nil, fmt.Errorf("captaincy check: %w", err)
			}
			if !captain {
				return nil, fmt.Errorf("user %d is not captain of team %d: %w",
					*input.SubmittedByUserID, *input.TeamID, ErrForbiddenOperation)
			}
		}
		existing, err := s.proposalRepo.FindByTeamAndTournament(ctx, nil, *input.TeamID, tournament.ID)
		if err != nil && !errors.Is(err, repositories.ErrProposalNotFound) {
			return nil, err
		}
		if existing != nil && existing.Status != models.ProposalRejected && existing.Status != models.ProposalCancelled {
			return nil, fmt.Errorf("team %d already applied: %w", *input.TeamID, ErrProposalDuplicate)
		}

		mainCount := len(input.ParticipantUserIDs)
		if settings.MinParticipantsPerTeam > 0 && mainCount < settings.MinParticipantsPerTeam {
			return nil, fmt.Errorf("roster of %d below minimum %d: %w",
				mainCount, settings.MinParticipantsPerTeam, ErrRosterSizeViolation)
		}
		if settings.MaxParticipantsPerTeam > 0 && mainCount > settings.MaxParticipantsPerTeam {
			return nil, fmt.Errorf("roster of %d above maximum %d: %w",
				mainCount, settings.MaxParticipantsPerTeam, ErrRosterSizeViolation)
		}
		allMembers := append(append([]int{}, input.ParticipantUserIDs...), input.ReserveUserIDs...)
		if err := s.roster.VerifyTeamMembers(ctx, *input.TeamID, allMembers); err != nil {
			return nil, fmt.Errorf("roster verification: %w", err)
		}
		for _, userID := range input.ParticipantUserIDs {
			proposal.Participants = append(proposal.Participants, &models.TournamentTeamParticipant{
				UserID: userID,
				Role:   models.RoleMain,
			})
		}
		for _, userID := range input.ReserveUserIDs {
			proposal.Participants = append(proposal.Participants, &models.TournamentTeamParticipant{
				UserID: userID,
				Role:   models.RoleReserve,
			})
		}
	case models.ParticipantUser:
		if input.UserID == nil {
			return nil, fmt.Errorf("user id required for solo tournament: %w", ErrValidationFailed)
		}
		existing, err := s.proposalRepo.FindByUserAndTournament(ctx, nil, *input.UserID, tournament.ID)
		if err != nil && !errors.Is(err, repositories.ErrProposalNotFound) {
			return nil, err
		}
		if existing != nil && existing.Status != models.ProposalRejected && existing.Status != models.ProposalCancelled {
			return nil, fmt.Errorf("user %d already applied: %w", *input.UserID, ErrProposalDuplicate)
		}
		proposal.Participants = []*models.TournamentTeamParticipant{{UserID: *input.UserID, Role: models.RoleMain}}
	default:
		return nil, fmt.Errorf("unknown participant type %q: %w", tournament.ParticipantType, ErrValidationFailed)
	}

	unlock := s.locks.Lock(tournament.ID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.proposalRepo.Create(ctx, exec, proposal)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrProposalConflict) {
			return nil, fmt.Errorf("proposal for tournament %d: %w", tournament.ID, ErrProposalDuplicate)
		}
		return nil, err
	}

	s.publisher.Publish("proposal.submitted", tournament.ID, proposal)
	return proposal, nil
}

func (s *proposalService) GetProposal(ctx context.Context, proposalID int) (*models.TournamentTeamProposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, nil, proposalID)
	if err != nil {
		if errors.Is(err, repositories.ErrProposalNotFound) {
			return nil, fmt.Errorf("proposal %d: %w", proposalID, ErrNotFound)
		}
		return nil, err
	}
	return proposal, nil
}

func (s *proposalService) ListProposals(ctx context.Context, tournamentID int, statusFilter *models.ParticipationStatus) ([]*models.TournamentTeamProposal, error) {
	return s.proposalRepo.ListByTournament(ctx, nil, tournamentID, statusFilter)
}

// ChangeProposalStatus moves a proposal along the participation lifecycle:
// approve, reject or cancel. Quit has its own entry point because it charges
// a penalty.
//
// Approval is the moment the participation fee is charged. A ledger failure
// rolls the transition back, so a proposal is never approved unpaid. Rejected
// and cancelled proposals get the fee refunded when one was charged.
func (s *proposalService) ChangeProposalStatus(ctx context.Context, proposalID int, requested models.ParticipationStatus) (*models.TournamentTeamProposal, error) {
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if _, err := models.TransitionProposal(proposal.Status, requested); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(proposal.TournamentID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		proposal, err = s.proposalRepo.GetByID(ctx, exec, proposalID)
		if err != nil {
			return err
		}
		newStatus, err := models.TransitionProposal(proposal.Status, requested)
		if err != nil {
			return err
		}

		if newStatus == models.ProposalApproved {
			tournament, err := s.tournamentRepo.GetByID(ctx, exec, proposal.TournamentID)
			if err != nil {
				return err
			}
			if tournament.Status != models.StatusSignUp && tournament.Status != models.StatusAdjustment {
				return fmt.Errorf("tournament %d is %s, roster is frozen: %w",
					tournament.ID, tournament.Status, ErrWrongTournamentState)
			}
			settings, err := s.tournamentRepo.GetSettings(ctx, exec, tournament.ID)
			if err != nil {
				return err
			}
			if settings.FeeRequired && settings.ParticipationFee > 0 {
				ref, err := s.ledger.ChargeParticipationFee(ctx, proposal, settings.ParticipationFee)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrFeeChargeFailed, err)
				}
				if err := s.proposalRepo.SetFeeTransactionRef(ctx, exec, proposalID, ref); err != nil {
					return err
				}
				proposal.FeeTransactionRef = &ref
			}
		}

		if err := s.proposalRepo.UpdateStatus(ctx, exec, proposalID, newStatus); err != nil {
			return err
		}
		proposal.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, err
	}

	terminal := proposal.Status == models.ProposalRejected || proposal.Status == models.ProposalCancelled
	if terminal && proposal.FeeTransactionRef != nil {
		if err := s.ledger.Refund(ctx, *proposal.FeeTransactionRef); err != nil {
			s.logger.ErrorContext(ctx, "fee refund failed",
				slog.Int("proposal_id", proposalID), slog.String("error", err.Error()))
		}
	}

	s.publisher.Publish("proposal.status_changed", proposal.TournamentID, proposal)
	return proposal, nil
}

// QuitTournament withdraws an approved proposal. Quitting after sign-up costs
// a penalty picked from the settings breakpoints by hours remaining until the
// tournament starts.
func (s *proposalService) QuitTournament(ctx context.Context, proposalID int, now time.Time) (*models.TournamentTeamProposal, error) {
	proposal, err := s.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	newStatus, err := models.TransitionProposal(proposal.Status, models.ProposalQuit)
	if err != nil {
		return nil, err
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, nil, proposal.TournamentID)
	if err != nil {
		return nil, err
	}
	settings, err := s.tournamentRepo.GetSettings(ctx, nil, tournament.ID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tournament.ID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.proposalRepo.UpdateStatus(ctx, exec, proposalID, newStatus)
	})
	if err != nil {
		return nil, err
	}

	hours := tournament.HoursToStart(now)
	if amount := settings.PenaltyFor(hours); amount > 0 {
		if err := s.ledger.ChargeQuitPenalty(ctx, proposal, amount, hours); err != nil {
			s.logger.ErrorContext(ctx, "quit penalty charge failed",
				slog.Int("proposal_id", proposalID), slog.String("error", err.Error()))
		}
	}

	proposal.Status = newStatus
	s.publisher.Publish("proposal.quit", proposal.TournamentID, proposal)
	return proposal, nil
}
