package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/KhrulSergey/league-core-sub002/brackets"
	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
)

type BracketService interface {
	// GenerateBracket freezes the approved proposal list, builds the round
	// and series skeleton for the tournament's elimination system and starts
	// the tournament. All-or-nothing: a failed generation leaves no rows.
	GenerateBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
	// GetBracket returns the tournament with its full round/series tree,
	// settings and proposals.
	GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type bracketService struct {
	tournamentRepo repositories.TournamentRepository
	proposalRepo   repositories.ProposalRepository
	roundRepo      repositories.RoundRepository
	seriesRepo     repositories.SeriesRepository
	txManager      repositories.TxManager
	locks          *TournamentLocks
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	proposalRepo repositories.ProposalRepository,
	roundRepo repositories.RoundRepository,
	seriesRepo repositories.SeriesRepository,
	txManager repositories.TxManager,
	locks *TournamentLocks,
	publisher EventPublisher,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tournamentRepo: tournamentRepo,
		proposalRepo:   proposalRepo,
		roundRepo:      roundRepo,
		seriesRepo:     seriesRepo,
		txManager:      txManager,
		locks:          locks,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *bracketService) GenerateBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("tournament %d: %w", tournamentID, ErrNotFound)
		}
		return nil, err
	}
	if tournament.Status != models.StatusAdjustment {
		return nil, fmt.Errorf("tournament %d is %s: %w", tournament.ID, tournament.Status, ErrWrongTournamentState)
	}

	// The lock is taken before the proposal list is read: approvals and quits
	// serialize against generation, so the frozen roster is exactly what the
	// bracket is built from.
	unlock := s.locks.Lock(tournament.ID)
	defer unlock()

	settings, err := s.tournamentRepo.GetSettings(ctx, nil, tournament.ID)
	if err != nil {
		return nil, err
	}

	approved := models.ProposalApproved
	proposals, err := s.proposalRepo.ListByTournament(ctx, nil, tournament.ID, &approved)
	if err != nil {
		return nil, err
	}
	minTeams := settings.MinTeamCount
	if minTeams < 2 {
		minTeams = 2
	}
	if len(proposals) < minTeams {
		return nil, fmt.Errorf("%d approved of %d required: %w", len(proposals), minTeams, ErrNotEnoughTeams)
	}
	if settings.MaxTeamCount > 0 && len(proposals) > settings.MaxTeamCount {
		return nil, fmt.Errorf("%d approved, capacity %d: %w", len(proposals), settings.MaxTeamCount, ErrTooManyTeams)
	}

	generator, err := brackets.ForSystem(tournament.EliminationSystem)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	plan, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Tournament: tournament,
		Settings:   settings,
		Proposals:  proposals,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.tournamentRepo.GetByID(ctx, exec, tournament.ID)
		if err != nil {
			return err
		}
		if current.Status != models.StatusAdjustment {
			return fmt.Errorf("tournament %d is %s: %w", current.ID, current.Status, ErrWrongTournamentState)
		}

		if err := s.persistPlan(ctx, exec, tournament, settings, plan); err != nil {
			return err
		}

		newStatus, event, terr := models.Transition(models.ScopeTournament, tournament.ID, current.Status, models.StatusStarted)
		if terr != nil {
			return terr
		}
		tournament.Status = newStatus
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournament.ID, newStatus); err != nil {
			return err
		}
		publishStatusEvent(s.publisher, tournament.ID, event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bracket generated",
		slog.Int("tournament_id", tournament.ID),
		slog.String("strategy", generator.GetName()),
		slog.Int("rounds", len(plan.Rounds)),
		slog.Int("series", plan.SeriesCount()))
	s.publisher.Publish("tournament.bracket_generated", tournament.ID, tournament)

	return s.GetBracket(ctx, tournament.ID)
}

// persistPlan writes the generated skeleton: rounds, series, known rivals and
// parent/child links, then opens the first round.
func (s *bracketService) persistPlan(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, settings *models.TournamentSettings, plan *brackets.BracketPlan) error {
	seriesIDsByUID := make(map[string]int, plan.SeriesCount())
	var firstRound *models.TournamentRound
	var firstRoundSeries []*models.TournamentSeries

	for _, roundPlan := range plan.Rounds {
		round := &models.TournamentRound{
			TournamentID: tournament.ID,
			RoundNumber:  roundPlan.RoundNumber,
			IsLast:       roundPlan.IsLast,
			Status:       models.StatusCreated,
		}
		if err := s.roundRepo.Create(ctx, exec, round); err != nil {
			return err
		}
		if roundPlan.RoundNumber == 1 {
			firstRound = round
		}

		for _, seriesPlan := range roundPlan.Series {
			series := &models.TournamentSeries{
				RoundID:  round.ID,
				Position: seriesPlan.Position,
				Status:   models.StatusCreated,
			}
			if err := s.seriesRepo.Create(ctx, exec, series); err != nil {
				return err
			}
			seriesIDsByUID[seriesPlan.UID] = series.ID

			for _, proposalID := range seriesPlan.RivalProposalIDs {
				rival := &models.TournamentSeriesRival{
					SeriesID:   series.ID,
					ProposalID: proposalID,
					Status:     models.RivalActive,
				}
				if err := s.seriesRepo.AddRival(ctx, exec, rival); err != nil {
					return err
				}
				series.Rivals = append(series.Rivals, rival)
			}
			if roundPlan.RoundNumber == 1 {
				firstRoundSeries = append(firstRoundSeries, series)
			}
		}
	}

	for _, roundPlan := range plan.Rounds {
		for _, seriesPlan := range roundPlan.Series {
			childID := seriesIDsByUID[seriesPlan.UID]
			for _, parentUID := range seriesPlan.SourceSeriesUIDs {
				parentID, ok := seriesIDsByUID[parentUID]
				if !ok {
					return fmt.Errorf("unknown source series %q: %w", parentUID, ErrGenerationFailed)
				}
				if err := s.seriesRepo.Link(ctx, exec, parentID, childID); err != nil {
					return err
				}
			}
		}
	}

	if firstRound == nil {
		return fmt.Errorf("plan has no first round: %w", ErrGenerationFailed)
	}
	newStatus, event, err := models.Transition(models.ScopeRound, firstRound.ID, firstRound.Status, models.StatusStarted)
	if err != nil {
		return err
	}
	firstRound.Status = newStatus
	if err := s.roundRepo.UpdateStatus(ctx, exec, firstRound.ID, newStatus); err != nil {
		return err
	}
	publishStatusEvent(s.publisher, tournament.ID, event)

	if settings.AutoStartSeries {
		for _, series := range firstRoundSeries {
			if len(series.Rivals) < 2 {
				continue
			}
			seriesStatus, seriesEvent, terr := models.Transition(models.ScopeSeries, series.ID, series.Status, models.StatusStarted)
			if terr != nil {
				return terr
			}
			series.Status = seriesStatus
			if err := s.seriesRepo.UpdateStatusWinner(ctx, exec, series.ID, seriesStatus, nil, false); err != nil {
				return err
			}
			publishStatusEvent(s.publisher, tournament.ID, seriesEvent)
		}
	}
	return nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("tournament %d: %w", tournamentID, ErrNotFound)
		}
		return nil, err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		rounds, err := s.roundRepo.ListByTournament(groupCtx, nil, tournament.ID)
		if err != nil {
			return err
		}
		for _, round := range rounds {
			series, err := s.seriesRepo.ListByRound(groupCtx, nil, round.ID)
			if err != nil {
				return err
			}
			round.Series = series
		}
		tournament.Rounds = rounds
		return nil
	})
	group.Go(func() error {
		proposals, err := s.proposalRepo.ListByTournament(groupCtx, nil, tournament.ID, nil)
		if err != nil {
			return err
		}
		tournament.Proposals = proposals
		return nil
	})
	group.Go(func() error {
		settings, err := s.tournamentRepo.GetSettings(groupCtx, nil, tournament.ID)
		if err != nil {
			if errors.Is(err, repositories.ErrSettingsNotFound) {
				return nil
			}
			return err
		}
		tournament.Settings = settings
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}
