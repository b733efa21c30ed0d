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

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.TournamentMatch, error)
	ReportRivalResult(ctx context.Context, input ReportRivalResultInput) (*models.TournamentMatch, error)
	ResolveMatch(ctx context.Context, matchID int, forceRecalculate bool) (*models.TournamentMatch, error)
	SetMatchWinner(ctx context.Context, matchID int, winnerMatchRivalID *int, hasNoWinner bool) (*models.TournamentMatch, error)
	// ChangeMatchStatus force-declines or deletes a match without a result.
	ChangeMatchStatus(ctx context.Context, matchID int, requested models.TournamentStatus) (*models.TournamentMatch, error)
}

type ReportRivalResultInput struct {
	MatchID      int
	MatchRivalID int
	Indicators   []models.Indicator
	// ParticipantIndicators keys per-player indicator lists by team
	// participant id.
	ParticipantIndicators map[int][]models.Indicator
	// SelfReport marks a submission by a rival captain instead of an
	// organizer. Only allowed for self-hosted tournaments.
	SelfReport bool
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	seriesRepo     repositories.SeriesRepository
	roundRepo      repositories.RoundRepository
	tournamentRepo repositories.TournamentRepository
	seriesService  SeriesService
	txManager      repositories.TxManager
	locks          *TournamentLocks
	publisher      EventPublisher
	logger         *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	seriesRepo repositories.SeriesRepository,
	roundRepo repositories.RoundRepository,
	tournamentRepo repositories.TournamentRepository,
	seriesService SeriesService,
	txManager repositories.TxManager,
	locks *TournamentLocks,
	publisher EventPublisher,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo:      matchRepo,
		seriesRepo:     seriesRepo,
		roundRepo:      roundRepo,
		tournamentRepo: tournamentRepo,
		seriesService:  seriesService,
		txManager:      txManager,
		locks:          locks,
		publisher:      publisher,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.TournamentMatch, error) {
	match, err := s.matchRepo.GetWithRivals(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("match %d: %w", matchID, ErrNotFound)
		}
		return nil, err
	}
	return match, nil
}

// bracketContextForMatch resolves the match's tournament surroundings before
// the lock is taken.
func (s *matchService) bracketContextForMatch(ctx context.Context, match *models.TournamentMatch) (*bracketContext, error) {
	series, err := s.seriesRepo.GetByID(ctx, nil, match.SeriesID)
	if err != nil {
		return nil, err
	}
	return loadBracketContext(ctx, s.roundRepo, s.tournamentRepo, series.RoundID)
}

// ReportRivalResult stores one rival's indicators for a match. Organizer
// reports are always accepted; self-reports only when the tournament runs
// self-hosted.
func (s *matchService) ReportRivalResult(ctx context.Context, input ReportRivalResultInput) (*models.TournamentMatch, error) {
	match, err := s.GetMatch(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	if match.Status.IsSettled() {
		return nil, fmt.Errorf("match %d is %s: %w", match.ID, match.Status, ErrMatchAlreadyResolved)
	}

	rival := match.RivalByID(input.MatchRivalID)
	if rival == nil {
		return nil, fmt.Errorf("match rival %d: %w", input.MatchRivalID, ErrNotFound)
	}
	for _, ind := range input.Indicators {
		if !ind.Type.Valid() {
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownIndicatorType, ind.Type)
		}
	}

	bctx, err := s.bracketContextForMatch(ctx, match)
	if err != nil {
		return nil, err
	}
	if input.SelfReport && !bctx.Settings.SelfHosted {
		return nil, fmt.Errorf("tournament %d: %w", bctx.Tournament.ID, ErrSelfReportDisabled)
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		rival.Indicators = input.Indicators
		if err := s.matchRepo.UpdateRival(ctx, exec, rival); err != nil {
			return err
		}
		for participantID, indicators := range input.ParticipantIndicators {
			participant := &models.TournamentMatchRivalParticipant{
				MatchRivalID:      rival.ID,
				TeamParticipantID: participantID,
				Indicators:        indicators,
			}
			if err := s.matchRepo.CreateRivalParticipant(ctx, exec, participant); err != nil {
				return err
			}
		}
		if match.Status == models.StatusCreated {
			newStatus, event, terr := models.Transition(models.ScopeMatch, match.ID, match.Status, models.StatusStarted)
			if terr != nil {
				return terr
			}
			match.Status = newStatus
			if err := s.matchRepo.UpdateStatus(ctx, exec, match.ID, newStatus); err != nil {
				return err
			}
			publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("match.result_reported", bctx.Tournament.ID, match)
	return match, nil
}

// ResolveMatch settles a match from the indicators reported so far: every
// active rival is scored, placed and the best one declared winner. A full tie
// finishes the match with no winner. The series, round and tournament are
// progressed in the same transaction.
func (s *matchService) ResolveMatch(ctx context.Context, matchID int, forceRecalculate bool) (*models.TournamentMatch, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status.IsSettled() && !forceRecalculate {
		return nil, fmt.Errorf("match %d is %s: %w", match.ID, match.Status, ErrMatchAlreadyResolved)
	}
	bctx, err := s.bracketContextForMatch(ctx, match)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err = s.matchRepo.GetWithRivals(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if match.Status.IsSettled() && !forceRecalculate {
			return fmt.Errorf("match %d is %s: %w", match.ID, match.Status, ErrMatchAlreadyResolved)
		}

		placements, winner, hasNoWinner, rerr := rankMatchRivals(match)
		if rerr != nil {
			return rerr
		}
		for _, rival := range match.ActiveRivals() {
			place := placements[rival.ID]
			rival.WonPlace = &place
			if err := s.matchRepo.UpdateRival(ctx, exec, rival); err != nil {
				return err
			}
		}

		var winnerID *int
		if winner != nil {
			winnerID = &winner.ID
		}
		return s.finishMatch(ctx, exec, match, winnerID, hasNoWinner, bctx)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("match.finished", bctx.Tournament.ID, match)
	return match, nil
}

// SetMatchWinner is the organizer override: declare the winner (or a tie)
// without scoring indicators. Used for forfeits and disputed results.
func (s *matchService) SetMatchWinner(ctx context.Context, matchID int, winnerMatchRivalID *int, hasNoWinner bool) (*models.TournamentMatch, error) {
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if winnerMatchRivalID != nil && match.RivalByID(*winnerMatchRivalID) == nil {
		return nil, fmt.Errorf("match rival %d: %w", *winnerMatchRivalID, ErrNotFound)
	}
	if winnerMatchRivalID == nil && !hasNoWinner {
		return nil, fmt.Errorf("either a winner or a tie is required: %w", ErrValidationFailed)
	}
	bctx, err := s.bracketContextForMatch(ctx, match)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err = s.matchRepo.GetWithRivals(ctx, exec, matchID)
		if err != nil {
			return err
		}
		return s.finishMatch(ctx, exec, match, winnerMatchRivalID, hasNoWinner, bctx)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("match.finished", bctx.Tournament.ID, match)
	return match, nil
}

// ChangeMatchStatus is the administrative override for a match: a deleted
// match drops out of the series outcome entirely, a declined one counts as
// settled with no winner. Series progression runs in the same transaction.
func (s *matchService) ChangeMatchStatus(ctx context.Context, matchID int, requested models.TournamentStatus) (*models.TournamentMatch, error) {
	if !requested.IsCancelled() {
		return nil, fmt.Errorf("match %d: only decline and delete are operator edges: %w", matchID, ErrForbiddenOperation)
	}
	match, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	bctx, err := s.bracketContextForMatch(ctx, match)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(bctx.Tournament.ID)
	defer unlock()

	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err = s.matchRepo.GetWithRivals(ctx, exec, matchID)
		if err != nil {
			return err
		}
		newStatus, event, err := models.Transition(models.ScopeMatch, match.ID, match.Status, requested)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrongTournamentState, err)
		}
		if !event.Changed() {
			return nil
		}
		match.Status = newStatus
		if err := s.matchRepo.UpdateStatus(ctx, exec, match.ID, newStatus); err != nil {
			return err
		}
		publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
		return s.seriesService.ProgressAfterMatch(ctx, exec, match.SeriesID, bctx)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish("match.status_changed", bctx.Tournament.ID, match)
	return match, nil
}

// finishMatch persists the match outcome and hands progression up to the
// series coordinator within the same transaction.
func (s *matchService) finishMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.TournamentMatch, winnerID *int, hasNoWinner bool, bctx *bracketContext) error {
	newStatus := match.Status
	var event models.StatusEvent
	if !match.Status.IsSettled() {
		var terr error
		newStatus, event, terr = models.Transition(models.ScopeMatch, match.ID, match.Status, models.StatusFinished)
		if terr != nil {
			return terr
		}
	}
	match.Status = newStatus
	match.WinnerMatchRivalID = winnerID
	match.HasNoWinner = hasNoWinner
	if err := s.matchRepo.UpdateWinner(ctx, exec, match.ID, newStatus, winnerID, hasNoWinner); err != nil {
		return err
	}
	publishStatusEvent(s.publisher, bctx.Tournament.ID, event)
	return s.seriesService.ProgressAfterMatch(ctx, exec, match.SeriesID, bctx)
}

// rankMatchRivals scores the active rivals and assigns competition-style
// placements (tied rivals share a place, the next place skips). The match has
// a winner only when the top place is held by exactly one rival. Every active
// rival must have reported the same set of indicator types.
func rankMatchRivals(match *models.TournamentMatch) (placements map[int]int, winner *models.TournamentMatchRival, hasNoWinner bool, err error) {
	active := match.ActiveRivals()
	if len(active) == 0 {
		return nil, nil, false, fmt.Errorf("match %d has no active rivals: %w", match.ID, ErrMatchIndicatorsMissing)
	}

	var required map[models.IndicatorType]struct{}
	for _, rival := range active {
		if len(rival.Indicators) == 0 {
			return nil, nil, false, fmt.Errorf("match rival %d has no indicators: %w", rival.ID, ErrMatchIndicatorsMissing)
		}
		set := models.IndicatorTypeSet(rival.Indicators)
		if required == nil {
			required = set
			continue
		}
		if len(set) != len(required) {
			return nil, nil, false, fmt.Errorf("match rival %d reported a different indicator set: %w", rival.ID, ErrMatchIndicatorsMissing)
		}
		for indicatorType := range set {
			if _, ok := required[indicatorType]; !ok {
				return nil, nil, false, fmt.Errorf("match rival %d reported a different indicator set: %w", rival.ID, ErrMatchIndicatorsMissing)
			}
		}
	}

	type scored struct {
		rival *models.TournamentMatchRival
		score float64
	}
	ranked := make([]scored, 0, len(active))
	for _, rival := range active {
		score, serr := models.WeightedScore(rival.Indicators)
		if serr != nil {
			return nil, nil, false, serr
		}
		ranked = append(ranked, scored{rival: rival, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	placements = make(map[int]int, len(ranked))
	for i, entry := range ranked {
		place := i + 1
		if i > 0 && entry.score == ranked[i-1].score {
			place = placements[ranked[i-1].rival.ID]
		}
		placements[entry.rival.ID] = place
	}

	if len(ranked) > 1 && ranked[0].score == ranked[1].score {
		return placements, nil, true, nil
	}
	return placements, ranked[0].rival, false, nil
}
