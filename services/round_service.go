package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
)

type RoundService interface {
	GetRound(ctx context.Context, roundID int) (*models.TournamentRound, error)
	ListRounds(ctx context.Context, tournamentID int) ([]*models.TournamentRound, error)
	// CloseRound is the manual counterpart of automatic round progression:
	// finish a fully settled round and open the next one.
	CloseRound(ctx context.Context, roundID int) (*models.TournamentRound, error)
	// ChangeRoundStatus force-declines or deletes a round, short-circuiting
	// pending progression. Forward edges go through CloseRound.
	ChangeRoundStatus(ctx context.Context, roundID int, requested models.TournamentStatus) (*models.TournamentRound, error)

	// ProgressAfterSeries runs inside an already-open transaction holding the
	// tournament lock. settledSeries is the series whose finish triggered it.
	ProgressAfterSeries(ctx context.Context, exec repositories.SQLExecutor, settledSeries *models.TournamentSeries, bctx *bracketContext) error
}

type roundService struct {
	roundRepo      repositories.RoundRepository
	seriesRepo     repositories.SeriesRepository
	tournamentRepo repositories.TournamentRepository
	txManager      repositories.TxManager
	locks          *TournamentLocks
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewRoundService(
	roundRepo repositories.RoundRepository,
	seriesRepo repositories.SeriesRepository,
	tournamentRepo repositories.TournamentRepository,
	txManager repositories.TxManager,
	locks *TournamentLocks,
	publisher EventPublisher,
	logger *slog.Logger,
) RoundService {
	return &roundService{
		roundRepo:      roundRepo,
		seriesRepo:     seriesRepo,
		tournamentRepo: tournamentRepo,
		txManager:      txManager,
		locks:          locks,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *roundService) GetRound(ctx context.Context, roundID int) (*models.TournamentRound, error) {
	round, err := s.roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, fmt.Errorf("round %d: %w", roundID, ErrNotFound)
		}
		return nil, err
	}
	series, err := s.seriesRepo.ListByRound(ctx, nil, roundID)
	if err != nil {
		return nil, err
	}
	round.Series = series
	return round, nil
}

func (s *roundService) ListRounds(ctx context.Context, tournamentID int) ([]*models.TournamentRound, error) {
	return s.roundRepo.ListByTournament(ctx, nil, tournamentID)
}

func (s *roundService) CloseRound(ctx context.Context, roundID int) (*models.TournamentRound, error) {
	bctx, err := loadBracketContext(ctx, s.roundRepo, s.tournamentRepo, roundID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	var round *models.TournamentRound
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		round, err = s.roundRepo.GetByID(ctx, exec, roundID)
		if err != nil {
			return err
		}
		if round.Status.IsSettled() {
			return fmt.Errorf("round %d is %s: %w", round.ID, round.Status, ErrWrongTournamentState)
		}
		round.Series, err = s.seriesRepo.ListByRound(ctx, exec, round.ID)
		if err != nil {
			return err
		}
		if !round.Complete() {
			return fmt.Errorf("round %d: %w", round.ID, ErrRoundNotComplete)
		}
		return s.closeRound(ctx, exec, round, bctx)
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// ChangeRoundStatus is the administrative override for rounds: declined and
// deleted are reachable from any live state, everything else is rejected.
func (s *roundService) ChangeRoundStatus(ctx context.Context, roundID int, requested models.TournamentStatus) (*models.TournamentRound, error) {
	if !requested.IsCancelled() {
		return nil, fmt.Errorf("round %d: only decline and delete are operator edges: %w", roundID, ErrForbiddenOperation)
	}
	bctx, err := loadBracketContext(ctx, s.roundRepo, s.tournamentRepo, roundID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	var round *models.TournamentRound
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		round, err = s.roundRepo.GetByID(ctx, exec, roundID)
		if err != nil {
			return err
		}
		newStatus, event, err := models.Transition(models.ScopeRound, round.ID, round.Status, requested)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrongTournamentState, err)
		}
		round.Status = newStatus
		if err := s.roundRepo.UpdateStatus(ctx, exec, round.ID, newStatus); err != nil {
			return err
		}
		publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("round.status_changed", bctx.Tournament.ID, round)
	return round, nil
}

// ProgressAfterSeries checks whether the settled series completed its round
// and, if so, closes the round and opens the next one (or finishes the
// tournament after the last round).
func (s *roundService) ProgressAfterSeries(ctx context.Context, exec repositories.SQLExecutor, settledSeries *models.TournamentSeries, bctx *bracketContext) error {
	if !bctx.Settings.AutoFinishRounds {
		return nil
	}
	round, err := s.roundRepo.GetByID(ctx, exec, settledSeries.RoundID)
	if err != nil {
		return err
	}
	if round.Status.IsSettled() {
		return nil
	}
	round.Series, err = s.seriesRepo.ListByRound(ctx, exec, round.ID)
	if err != nil {
		return err
	}
	if !round.Complete() {
		return nil
	}
	return s.closeRound(ctx, exec, round, bctx)
}

// closeRound finishes a complete round, then either finishes the tournament
// (last round) or opens the next round.
func (s *roundService) closeRound(ctx context.Context, exec repositories.SQLExecutor, round *models.TournamentRound, bctx *bracketContext) error {
	if err := s.setRoundStatus(ctx, exec, round, models.StatusFinished); err != nil {
		return err
	}
	s.publisher.Publish("round.finished", bctx.Tournament.ID, round)

	if round.IsLast {
		return s.finishTournament(ctx, exec, round, bctx)
	}
	if bctx.Tournament.EliminationSystem.FullyGenerated() {
		return s.startNextRound(ctx, exec, round, bctx)
	}
	return s.composeSurvivalRound(ctx, exec, round, bctx)
}

// setRoundStatus walks the round through intermediate states when needed: a
// round settled purely by walkovers may still be in created.
func (s *roundService) setRoundStatus(ctx context.Context, exec repositories.SQLExecutor, round *models.TournamentRound, target models.TournamentStatus) error {
	if round.Status == models.StatusCreated && target == models.StatusFinished {
		if err := s.setRoundStatus(ctx, exec, round, models.StatusStarted); err != nil {
			return err
		}
	}
	newStatus, event, err := models.Transition(models.ScopeRound, round.ID, round.Status, target)
	if err != nil {
		return err
	}
	round.Status = newStatus
	if err := s.roundRepo.UpdateStatus(ctx, exec, round.ID, newStatus); err != nil {
		return err
	}
	publishStatusEvent(s.publisher, round.TournamentID, event)
	return nil
}

// finishTournament settles the tournament after its last round and records
// the winner proposals taken from the final series.
func (s *roundService) finishTournament(ctx context.Context, exec repositories.SQLExecutor, lastRound *models.TournamentRound, bctx *bracketContext) error {
	winners := winnersOfRound(lastRound)

	newStatus, event, err := models.Transition(models.ScopeTournament, bctx.Tournament.ID, bctx.Tournament.Status, models.StatusFinished)
	if err != nil {
		return err
	}
	bctx.Tournament.Status = newStatus
	bctx.Tournament.WinnerProposalIDs = winners
	if err := s.tournamentRepo.UpdateStatus(ctx, exec, bctx.Tournament.ID, newStatus); err != nil {
		return err
	}
	if err := s.tournamentRepo.UpdateWinners(ctx, exec, bctx.Tournament.ID, winners); err != nil {
		return err
	}
	publishStatusEvent(s.publisher, bctx.Tournament.ID, event)

	s.logger.InfoContext(ctx, "tournament finished",
		slog.Int("tournament_id", bctx.Tournament.ID),
		slog.Any("winner_proposal_ids", winners))
	s.publisher.Publish("tournament.finished", bctx.Tournament.ID, bctx.Tournament)
	return nil
}

// startNextRound opens the pre-generated next round of a fully generated
// bracket. A next round already settled by walkovers is closed immediately,
// which recurses until an open round or the tournament end is reached.
func (s *roundService) startNextRound(ctx context.Context, exec repositories.SQLExecutor, finished *models.TournamentRound, bctx *bracketContext) error {
	rounds, err := s.roundRepo.ListByTournament(ctx, exec, bctx.Tournament.ID)
	if err != nil {
		return err
	}
	var next *models.TournamentRound
	for _, candidate := range rounds {
		if candidate.RoundNumber == finished.RoundNumber+1 {
			next = candidate
			break
		}
	}
	if next == nil {
		return fmt.Errorf("round %d of tournament %d has no successor: %w",
			finished.RoundNumber, bctx.Tournament.ID, ErrNotFound)
	}

	if next.Status == models.StatusCreated {
		if err := s.setRoundStatus(ctx, exec, next, models.StatusStarted); err != nil {
			return err
		}
	}
	next.Series, err = s.seriesRepo.ListByRound(ctx, exec, next.ID)
	if err != nil {
		return err
	}
	if bctx.Settings.AutoStartSeries {
		for _, series := range next.Series {
			if series.Status != models.StatusCreated || len(series.ActiveRivals()) < 2 {
				continue
			}
			newStatus, event, terr := models.Transition(models.ScopeSeries, series.ID, series.Status, models.StatusStarted)
			if terr != nil {
				return terr
			}
			series.Status = newStatus
			if err := s.seriesRepo.UpdateStatusWinner(ctx, exec, series.ID, newStatus, nil, false); err != nil {
				return err
			}
			publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
		}
	}
	s.publisher.Publish("round.started", bctx.Tournament.ID, next)

	if next.Complete() {
		return s.closeRound(ctx, exec, next, bctx)
	}
	return nil
}

// composeSurvivalRound builds the next survival round from the finished one:
// rivals are ranked by their placement in the round's series, the configured
// kick-off count is eliminated, and the survivors are reseeded into a fresh
// single series. Fewer than two survivors ends the tournament instead.
func (s *roundService) composeSurvivalRound(ctx context.Context, exec repositories.SQLExecutor, finished *models.TournamentRound, bctx *bracketContext) error {
	if len(finished.Series) == 0 {
		return fmt.Errorf("round %d has no series: %w", finished.ID, ErrGenerationFailed)
	}
	source := finished.Series[0]

	ranked := rankedActiveRivals(source)
	kick, err := bctx.Settings.KickOffCountForRound(finished.RoundNumber)
	if err != nil {
		return err
	}
	if kick >= len(ranked) {
		kick = len(ranked) - 1
	}
	survivors := ranked[:len(ranked)-kick]
	kicked := ranked[len(ranked)-kick:]

	for _, rival := range kicked {
		rival.Status = models.RivalDisabled
		if err := s.seriesRepo.UpdateRival(ctx, exec, rival); err != nil {
			return err
		}
	}

	if len(survivors) < 2 {
		finished.IsLast = true
		if err := s.roundRepo.MarkLast(ctx, exec, finished.ID); err != nil {
			return err
		}
		return s.finishTournament(ctx, exec, finished, bctx)
	}

	nextNumber := finished.RoundNumber + 1
	isLast := false
	if nextKick, kickErr := bctx.Settings.KickOffCountForRound(nextNumber); kickErr != nil || len(survivors)-nextKick < 2 {
		isLast = true
	}

	next := &models.TournamentRound{
		TournamentID: bctx.Tournament.ID,
		RoundNumber:  nextNumber,
		IsLast:       isLast,
		Status:       models.StatusCreated,
	}
	if err := s.roundRepo.Create(ctx, exec, next); err != nil {
		return err
	}

	series := &models.TournamentSeries{
		RoundID:  next.ID,
		Position: 1,
		Status:   models.StatusCreated,
	}
	if err := s.seriesRepo.Create(ctx, exec, series); err != nil {
		return err
	}
	for _, survivor := range survivors {
		rival := &models.TournamentSeriesRival{
			SeriesID:   series.ID,
			ProposalID: survivor.ProposalID,
			Status:     models.RivalActive,
		}
		if err := s.seriesRepo.AddRival(ctx, exec, rival); err != nil {
			return err
		}
		series.Rivals = append(series.Rivals, rival)
	}
	if err := s.seriesRepo.Link(ctx, exec, source.ID, series.ID); err != nil {
		return err
	}

	if err := s.setRoundStatus(ctx, exec, next, models.StatusStarted); err != nil {
		return err
	}
	if bctx.Settings.AutoStartSeries {
		newStatus, event, terr := models.Transition(models.ScopeSeries, series.ID, series.Status, models.StatusStarted)
		if terr != nil {
			return terr
		}
		series.Status = newStatus
		if err := s.seriesRepo.UpdateStatusWinner(ctx, exec, series.ID, newStatus, nil, false); err != nil {
			return err
		}
		publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
	}

	next.Series = []*models.TournamentSeries{series}
	s.publisher.Publish("round.started", bctx.Tournament.ID, next)
	return nil
}

// winnersOfRound extracts the winner proposal ids from the series of a
// finished last round. A series finished with no winner shares the title
// between its first-placed rivals.
func winnersOfRound(round *models.TournamentRound) []int {
	var winners []int
	for _, series := range round.Series {
		if series.Status == models.StatusDeleted {
			continue
		}
		if winner := series.Winner(); winner != nil {
			winners = append(winners, winner.ProposalID)
			continue
		}
		for _, rival := range series.ActiveRivals() {
			if rival.WonPlace != nil && *rival.WonPlace == 1 {
				winners = append(winners, rival.ProposalID)
			}
		}
	}
	return winners
}

// rankedActiveRivals orders a settled series' active rivals by placement.
func rankedActiveRivals(series *models.TournamentSeries) []*models.TournamentSeriesRival {
	active := series.ActiveRivals()
	sort.SliceStable(active, func(i, j int) bool {
		left, right := active[i].WonPlace, active[j].WonPlace
		switch {
		case left == nil && right == nil:
			return active[i].ID < active[j].ID
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return *left < *right
		}
	})
	return active
}
