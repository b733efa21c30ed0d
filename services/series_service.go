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

type SeriesService interface {
	GetSeries(ctx context.Context, seriesID int) (*models.TournamentSeries, error)
	ListSeriesByRound(ctx context.Context, roundID int) ([]*models.TournamentSeries, error)
	GenerateNextMatch(ctx context.Context, seriesID int) (*models.TournamentMatch, error)
	SetSeriesWinner(ctx context.Context, seriesID int, winnerRivalID *int, hasNoWinner bool) (*models.TournamentSeries, error)
	// ChangeSeriesStatus force-declines or deletes a series. The declined
	// series settles without a winner so its round can still complete.
	ChangeSeriesStatus(ctx context.Context, seriesID int, requested models.TournamentStatus) (*models.TournamentSeries, error)

	// ProgressAfterMatch runs inside an already-open transaction holding the
	// tournament lock: it settles the series when its matches decide it, then
	// pushes progression into the round coordinator.
	ProgressAfterMatch(ctx context.Context, exec repositories.SQLExecutor, seriesID int, bctx *bracketContext) error
}

type seriesService struct {
	seriesRepo     repositories.SeriesRepository
	matchRepo      repositories.MatchRepository
	roundRepo      repositories.RoundRepository
	tournamentRepo repositories.TournamentRepository
	roundService   RoundService
	txManager      repositories.TxManager
	locks          *TournamentLocks
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewSeriesService(
	seriesRepo repositories.SeriesRepository,
	matchRepo repositories.MatchRepository,
	roundRepo repositories.RoundRepository,
	tournamentRepo repositories.TournamentRepository,
	roundService RoundService,
	txManager repositories.TxManager,
	locks *TournamentLocks,
	publisher EventPublisher,
	logger *slog.Logger,
) SeriesService {
	return &seriesService{
		seriesRepo:     seriesRepo,
		matchRepo:      matchRepo,
		roundRepo:      roundRepo,
		tournamentRepo: tournamentRepo,
		roundService:   roundService,
		txManager:      txManager,
		locks:          locks,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *seriesService) GetSeries(ctx context.Context, seriesID int) (*models.TournamentSeries, error) {
	series, err := s.seriesRepo.GetWithDetails(ctx, nil, seriesID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeriesNotFound) {
			return nil, fmt.Errorf("series %d: %w", seriesID, ErrNotFound)
		}
		return nil, err
	}
	return series, nil
}

func (s *seriesService) ListSeriesByRound(ctx context.Context, roundID int) ([]*models.TournamentSeries, error) {
	return s.seriesRepo.ListByRound(ctx, nil, roundID)
}

// GenerateNextMatch opens the next match of a series. The previous match must
// be settled, the series must not be clinched and the configured match count
// must not be exhausted.
func (s *seriesService) GenerateNextMatch(ctx context.Context, seriesID int) (*models.TournamentMatch, error) {
	preread, err := s.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	bctx, err := loadBracketContext(ctx, s.roundRepo, s.tournamentRepo, preread.RoundID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	var match *models.TournamentMatch
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		series, err := s.seriesRepo.GetWithDetails(ctx, exec, seriesID)
		if err != nil {
			return err
		}
		if series.Status.IsSettled() {
			return fmt.Errorf("series %d is %s: %w", series.ID, series.Status, ErrWrongTournamentState)
		}

		maxNumber := 0
		playable := 0
		for _, existing := range series.Matches {
			// Deleted matches keep their number occupied but do not count
			// against the series length.
			if existing.MatchNumberInSeries > maxNumber {
				maxNumber = existing.MatchNumberInSeries
			}
			if existing.Status == models.StatusDeleted {
				continue
			}
			playable++
			if !existing.Status.IsSettled() {
				return fmt.Errorf("match %d: %w", existing.ID, ErrMatchStillOpen)
			}
		}
		if playable >= bctx.Settings.MatchCountPerSeries {
			return fmt.Errorf("series %d: %w", series.ID, ErrSeriesLimitReached)
		}
		majority := bctx.Settings.MajorityWinCount()
		for _, count := range seriesWinCounts(series) {
			if count >= majority {
				return fmt.Errorf("series %d: %w", series.ID, ErrSeriesClinched)
			}
		}

		activeRivals := series.ActiveRivals()
		if len(activeRivals) < 2 {
			return fmt.Errorf("series %d has %d active rivals: %w", series.ID, len(activeRivals), ErrValidationFailed)
		}

		match = &models.TournamentMatch{
			SeriesID:            series.ID,
			MatchNumberInSeries: maxNumber + 1,
			Status:              models.StatusCreated,
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return err
		}
		for _, rival := range activeRivals {
			matchRival := &models.TournamentMatchRival{
				MatchID:       match.ID,
				SeriesRivalID: rival.ID,
				ProposalID:    rival.ProposalID,
				Status:        models.RivalActive,
			}
			if err := s.matchRepo.CreateRival(ctx, exec, matchRival); err != nil {
				return err
			}
			match.Rivals = append(match.Rivals, matchRival)
		}
		if series.Status == models.StatusCreated {
			newStatus, event, terr := models.Transition(models.ScopeSeries, series.ID, series.Status, models.StatusStarted)
			if terr != nil {
				return terr
			}
			if err := s.seriesRepo.UpdateStatusWinner(ctx, exec, series.ID, newStatus, nil, false); err != nil {
				return err
			}
			publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNumberConflict) {
			return nil, fmt.Errorf("next match already generated for series %d: %w", seriesID, ErrValidationFailed)
		}
		return nil, err
	}

	s.publisher.Publish("series.match_generated", bctx.Tournament.ID, match)
	return match, nil
}

// SetSeriesWinner is the organizer override for a series outcome. It settles
// the series and runs the same progression as an automatic finish.
func (s *seriesService) SetSeriesWinner(ctx context.Context, seriesID int, winnerRivalID *int, hasNoWinner bool) (*models.TournamentSeries, error) {
	preread, err := s.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if winnerRivalID != nil && preread.RivalByID(*winnerRivalID) == nil {
		return nil, fmt.Errorf("series rival %d: %w", *winnerRivalID, ErrNotFound)
	}
	if winnerRivalID == nil && !hasNoWinner {
		return nil, fmt.Errorf("either a winner or a tie is required: %w", ErrValidationFailed)
	}
	bctx, err := loadBracketContext(ctx, s.roundRepo, s.tournamentRepo, preread.RoundID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	var series *models.TournamentSeries
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		series, err = s.seriesRepo.GetWithDetails(ctx, exec, seriesID)
		if err != nil {
			return err
		}
		if series.Status.IsSettled() {
			return fmt.Errorf("series %d is %s: %w", series.ID, series.Status, ErrWrongTournamentState)
		}
		if err := s.settleSeries(ctx, exec, series, bctx, winnerRivalID, hasNoWinner); err != nil {
			return err
		}
		if err := s.advanceWinner(ctx, exec, series, bctx); err != nil {
			return err
		}
		return s.roundService.ProgressAfterSeries(ctx, exec, series, bctx)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("series.finished", bctx.Tournament.ID, series)
	return series, nil
}

// ChangeSeriesStatus is the administrative override for a series: declined and
// deleted are reachable from any live state. A declined series counts as
// settled with no winner, so its round can complete without it and a child
// series waiting on it settles by walkover.
func (s *seriesService) ChangeSeriesStatus(ctx context.Context, seriesID int, requested models.TournamentStatus) (*models.TournamentSeries, error) {
	if !requested.IsCancelled() {
		return nil, fmt.Errorf("series %d: only decline and delete are operator edges: %w", seriesID, ErrForbiddenOperation)
	}
	preread, err := s.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	bctx, err := loadBracketContext(ctx, s.roundRepo, s.tournamentRepo, preread.RoundID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	var series *models.TournamentSeries
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		series, err = s.seriesRepo.GetWithDetails(ctx, exec, seriesID)
		if err != nil {
			return err
		}
		newStatus, event, err := models.Transition(models.ScopeSeries, series.ID, series.Status, requested)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrongTournamentState, err)
		}
		if !event.Changed() {
			return nil
		}
		series.Status = newStatus
		if err := s.seriesRepo.UpdateStatusWinner(ctx, exec, series.ID, newStatus, nil, false); err != nil {
			return err
		}
		publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
		if series.ChildSeriesID != nil {
			if err := s.settleWalkover(ctx, exec, series, *series.ChildSeriesID, bctx); err != nil {
				return err
			}
		}
		return s.roundService.ProgressAfterSeries(ctx, exec, series, bctx)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("series.status_changed", bctx.Tournament.ID, series)
	return series, nil
}

// ProgressAfterMatch decides whether the series is now settled and, if so,
// finishes it, advances the winner into the child series and hands
// progression to the round coordinator.
func (s *seriesService) ProgressAfterMatch(ctx context.Context, exec repositories.SQLExecutor, seriesID int, bctx *bracketContext) error {
	series, err := s.seriesRepo.GetWithDetails(ctx, exec, seriesID)
	if err != nil {
		return err
	}
	if series.Status.IsSettled() {
		return nil
	}
	if !bctx.Settings.AutoFinishSeries {
		return nil
	}

	finished, winnerRivalID, hasNoWinner := computeSeriesOutcome(series, bctx.Settings)
	if !finished {
		return nil
	}

	if err := s.settleSeries(ctx, exec, series, bctx, winnerRivalID, hasNoWinner); err != nil {
		return err
	}
	if err := s.advanceWinner(ctx, exec, series, bctx); err != nil {
		return err
	}
	s.publisher.Publish("series.finished", bctx.Tournament.ID, series)
	return s.roundService.ProgressAfterSeries(ctx, exec, series, bctx)
}

// settleSeries finishes the series, persists the winner flag pair and writes
// every active rival's placement.
func (s *seriesService) settleSeries(ctx context.Context, exec repositories.SQLExecutor, series *models.TournamentSeries, bctx *bracketContext, winnerRivalID *int, hasNoWinner bool) error {
	newStatus, event, err := models.Transition(models.ScopeSeries, series.ID, series.Status, models.StatusFinished)
	if err != nil {
		return err
	}
	series.Status = newStatus
	series.WinnerRivalID = winnerRivalID
	series.HasNoWinner = hasNoWinner
	if err := s.seriesRepo.UpdateStatusWinner(ctx, exec, series.ID, newStatus, winnerRivalID, hasNoWinner); err != nil {
		return err
	}
	publishStatusEvent(s.publisher, bctx.Tournament.ID, event)

	for rivalID, place := range rankSeriesRivals(series, bctx.Settings) {
		rival := series.RivalByID(rivalID)
		if rival == nil {
			continue
		}
		place := place
		rival.WonPlace = &place
		if err := s.seriesRepo.UpdateRival(ctx, exec, rival); err != nil {
			return err
		}
	}
	return nil
}

// advanceWinner inserts the series winner's proposal into the child series.
// The (series, proposal) unique constraint makes re-advancing a no-op, so a
// recalculated series never seeds its winner twice.
func (s *seriesService) advanceWinner(ctx context.Context, exec repositories.SQLExecutor, series *models.TournamentSeries, bctx *bracketContext) error {
	if series.ChildSeriesID == nil {
		return nil
	}
	if winner := series.Winner(); winner != nil {
		childRival := &models.TournamentSeriesRival{
			SeriesID:   *series.ChildSeriesID,
			ProposalID: winner.ProposalID,
			Status:     models.RivalActive,
		}
		if err := s.seriesRepo.AddRival(ctx, exec, childRival); err != nil &&
			!errors.Is(err, repositories.ErrSeriesRivalConflict) {
			return err
		}
	}
	return s.settleWalkover(ctx, exec, series, *series.ChildSeriesID, bctx)
}

// settleWalkover settles a child series that can never field two rivals:
// once every parent is settled, a single remaining rival wins by walkover and
// zero remaining rivals leaves the child tied as well, carried further down
// the bracket.
func (s *seriesService) settleWalkover(ctx context.Context, exec repositories.SQLExecutor, settledParent *models.TournamentSeries, childID int, bctx *bracketContext) error {
	child, err := s.seriesRepo.GetWithDetails(ctx, exec, childID)
	if err != nil {
		return err
	}
	if child.Status.IsSettled() {
		return nil
	}
	for _, parentID := range child.ParentSeriesIDs {
		if parentID == settledParent.ID {
			continue
		}
		parent, err := s.seriesRepo.GetByID(ctx, exec, parentID)
		if err != nil {
			return err
		}
		if !parent.Status.IsSettled() {
			return nil
		}
	}

	active := child.ActiveRivals()
	if len(active) >= 2 {
		return nil
	}
	var winnerID *int
	hasNoWinner := true
	if len(active) == 1 {
		winnerID = &active[0].ID
		hasNoWinner = false
	}
	if err := s.settleSeries(ctx, exec, child, bctx, winnerID, hasNoWinner); err != nil {
		return err
	}
	return s.advanceWinner(ctx, exec, child, bctx)
}

// seriesWinCounts tallies settled match wins per series rival id.
func seriesWinCounts(series *models.TournamentSeries) map[int]int {
	wins := make(map[int]int)
	for _, match := range series.Matches {
		if match.Status == models.StatusDeleted || !match.Status.IsSettled() {
			continue
		}
		winner := match.Winner()
		if winner == nil {
			continue
		}
		wins[winner.SeriesRivalID]++
	}
	return wins
}

// seriesScoreTotals sums each rival's placement scores across settled
// matches using the tournament score distribution table.
func seriesScoreTotals(series *models.TournamentSeries, settings *models.TournamentSettings) map[int]float64 {
	totals := make(map[int]float64)
	for _, match := range series.Matches {
		if match.Status == models.StatusDeleted || !match.Status.IsSettled() {
			continue
		}
		for _, matchRival := range match.Rivals {
			if matchRival.WonPlace == nil {
				continue
			}
			totals[matchRival.SeriesRivalID] += settings.ScoreForPlacement(*matchRival.WonPlace)
		}
	}
	return totals
}

// computeSeriesOutcome decides whether a series is settled by its matches.
// A rival holding the majority win count clinches early. Otherwise the series
// waits until the configured match count is played; at that point the most
// match wins take it, placement scores break a tie, and a still-standing tie
// finishes the series with no winner.
func computeSeriesOutcome(series *models.TournamentSeries, settings *models.TournamentSettings) (finished bool, winnerRivalID *int, hasNoWinner bool) {
	wins := seriesWinCounts(series)
	majority := settings.MajorityWinCount()
	for rivalID, count := range wins {
		if count >= majority {
			id := rivalID
			return true, &id, false
		}
	}

	settled := 0
	for _, match := range series.Matches {
		if match.Status == models.StatusDeleted {
			continue
		}
		if !match.Status.IsSettled() {
			return false, nil, false
		}
		settled++
	}
	if settled < settings.MatchCountPerSeries {
		return false, nil, false
	}

	leaders := topRivalsByWins(series, wins)
	if len(leaders) == 1 {
		id := leaders[0]
		return true, &id, false
	}

	totals := seriesScoreTotals(series, settings)
	best := make([]int, 0, len(leaders))
	var bestScore float64
	for _, rivalID := range leaders {
		score := totals[rivalID]
		switch {
		case len(best) == 0 || score > bestScore:
			best = []int{rivalID}
			bestScore = score
		case score == bestScore:
			best = append(best, rivalID)
		}
	}
	if len(best) == 1 {
		id := best[0]
		return true, &id, false
	}
	return true, nil, true
}

// topRivalsByWins returns the active rival ids sharing the highest win count.
func topRivalsByWins(series *models.TournamentSeries, wins map[int]int) []int {
	var leaders []int
	bestWins := -1
	for _, rival := range series.ActiveRivals() {
		count := wins[rival.ID]
		switch {
		case count > bestWins:
			leaders = []int{rival.ID}
			bestWins = count
		case count == bestWins:
			leaders = append(leaders, rival.ID)
		}
	}
	return leaders
}

// rankSeriesRivals assigns competition-style placements to the series rivals:
// match wins first, placement score totals second, ties share a place.
func rankSeriesRivals(series *models.TournamentSeries, settings *models.TournamentSettings) map[int]int {
	wins := seriesWinCounts(series)
	totals := seriesScoreTotals(series, settings)

	active := series.ActiveRivals()
	ranked := make([]*models.TournamentSeriesRival, len(active))
	copy(ranked, active)
	sort.SliceStable(ranked, func(i, j int) bool {
		if wins[ranked[i].ID] != wins[ranked[j].ID] {
			return wins[ranked[i].ID] > wins[ranked[j].ID]
		}
		return totals[ranked[i].ID] > totals[ranked[j].ID]
	})

	placements := make(map[int]int, len(ranked))
	for i, rival := range ranked {
		place := i + 1
		if i > 0 &&
			wins[rival.ID] == wins[ranked[i-1].ID] &&
			totals[rival.ID] == totals[ranked[i-1].ID] {
			place = placements[ranked[i-1].ID]
		}
		placements[rival.ID] = place
	}
	return placements
}
