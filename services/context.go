package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/KhrulSergey/league-core-sub002/models"
	"github.com/KhrulSergey/league-core-sub002/repositories"
)

// bracketContext bundles the ancestors of a series: its round, the owning
// tournament and the tournament settings. Progression decisions need all
// three.
type bracketContext struct {
	Tournament *models.Tournament
	Settings   *models.TournamentSettings
	Round      *models.TournamentRound
}

// loadBracketContext walks round -> tournament -> settings. Used by the match
// and series services before taking the tournament lock.
func loadBracketContext(ctx context.Context, roundRepo repositories.RoundRepository, tournamentRepo repositories.TournamentRepository, roundID int) (*bracketContext, error) {
	round, err := roundRepo.GetByID(ctx, nil, roundID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundNotFound) {
			return nil, fmt.Errorf("round %d: %w", roundID, ErrNotFound)
		}
		return nil, err
	}
	tournament, err := tournamentRepo.GetByID(ctx, nil, round.TournamentID)
	if err != nil {
		return nil, err
	}
	settings, err := tournamentRepo.GetSettings(ctx, nil, tournament.ID)
	if err != nil {
		return nil, err
	}
	return &bracketContext{Tournament: tournament, Settings: settings, Round: round}, nil
}
