package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhrulSergey/league-core-sub002/models"
)

func seriesRival(id int, status models.RivalStatus) *models.TournamentSeriesRival {
	return &models.TournamentSeriesRival{ID: id, SeriesID: 1, ProposalID: id * 100, Status: status}
}

// settledMatch builds a finished match won by the given series rival, with
// per-rival placements recorded.
func settledMatch(number int, winnerSeriesRivalID int, placements map[int]int) *models.TournamentMatch {
	match := &models.TournamentMatch{
		ID:                  number,
		SeriesID:            1,
		MatchNumberInSeries: number,
		Status:              models.StatusFinished,
	}
	for seriesRivalID, place := range placements {
		placeCopy := place
		rival := &models.TournamentMatchRival{
			ID:            number*100 + seriesRivalID,
			MatchID:       match.ID,
			SeriesRivalID: seriesRivalID,
			Status:        models.RivalActive,
			WonPlace:      &placeCopy,
		}
		match.Rivals = append(match.Rivals, rival)
		if seriesRivalID == winnerSeriesRivalID {
			match.WinnerMatchRivalID = &rival.ID
		}
	}
	if winnerSeriesRivalID == 0 {
		match.HasNoWinner = true
	}
	return match
}

func openMatch(number int) *models.TournamentMatch {
	return &models.TournamentMatch{
		ID:                  number,
		SeriesID:            1,
		MatchNumberInSeries: number,
		Status:              models.StatusStarted,
	}
}

func twoRivalSeries() *models.TournamentSeries {
	return &models.TournamentSeries{
		ID:     1,
		Status: models.StatusStarted,
		Rivals: []*models.TournamentSeriesRival{
			seriesRival(1, models.RivalActive),
			seriesRival(2, models.RivalActive),
		},
	}
}

func TestComputeSeriesOutcomeMajorityClinch(t *testing.T) {
	// Best of three, rival 1 takes the first two games.
	settings := &models.TournamentSettings{MatchCountPerSeries: 3, ScoreDistribution: map[int]float64{1: 3, 2: 1}}
	series := twoRivalSeries()
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2}),
		settledMatch(2, 1, map[int]int{1: 1, 2: 2}),
	}

	finished, winnerID, hasNoWinner := computeSeriesOutcome(series, settings)
	assert.True(t, finished)
	require.NotNil(t, winnerID)
	assert.Equal(t, 1, *winnerID)
	assert.False(t, hasNoWinner)
}

func TestComputeSeriesOutcomeWaitsForOpenMatch(t *testing.T) {
	settings := &models.TournamentSettings{MatchCountPerSeries: 3}
	series := twoRivalSeries()
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2}),
		openMatch(2),
	}

	finished, _, _ := computeSeriesOutcome(series, settings)
	assert.False(t, finished)
}

func TestComputeSeriesOutcomeWaitsForRemainingMatches(t *testing.T) {
	// One win each in a best of three: a third game is still owed.
	settings := &models.TournamentSettings{MatchCountPerSeries: 3}
	series := twoRivalSeries()
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2}),
		settledMatch(2, 2, map[int]int{1: 2, 2: 1}),
	}

	finished, _, _ := computeSeriesOutcome(series, settings)
	assert.False(t, finished)
}

func TestComputeSeriesOutcomeScoreTiebreak(t *testing.T) {
	// Best of two, one win each: placement scores decide.
	settings := &models.TournamentSettings{MatchCountPerSeries: 2, ScoreDistribution: map[int]float64{1: 3, 2: 1, 3: 0}}
	series := &models.TournamentSeries{
		ID:     1,
		Status: models.StatusStarted,
		Rivals: []*models.TournamentSeriesRival{
			seriesRival(1, models.RivalActive),
			seriesRival(2, models.RivalActive),
			seriesRival(3, models.RivalActive),
		},
	}
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2, 3: 3}),
		settledMatch(2, 2, map[int]int{1: 3, 2: 1, 3: 2}),
	}
	// Wins 1-1-0; rival 1 scored 3+0, rival 2 scored 1+3.

	finished, winnerID, hasNoWinner := computeSeriesOutcome(series, settings)
	assert.True(t, finished)
	require.NotNil(t, winnerID)
	assert.Equal(t, 2, *winnerID)
	assert.False(t, hasNoWinner)
}

func TestComputeSeriesOutcomeDeadTie(t *testing.T) {
	settings := &models.TournamentSettings{MatchCountPerSeries: 2, ScoreDistribution: map[int]float64{1: 3, 2: 1}}
	series := twoRivalSeries()
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2}),
		settledMatch(2, 2, map[int]int{1: 2, 2: 1}),
	}

	finished, winnerID, hasNoWinner := computeSeriesOutcome(series, settings)
	assert.True(t, finished)
	assert.Nil(t, winnerID)
	assert.True(t, hasNoWinner)
}

func TestComputeSeriesOutcomeDrawnMatchesCountAsPlayed(t *testing.T) {
	// Single game ends drawn: the series finishes with no winner rather than
	// waiting forever.
	settings := &models.TournamentSettings{MatchCountPerSeries: 1, ScoreDistribution: map[int]float64{1: 3}}
	series := twoRivalSeries()
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 0, map[int]int{1: 1, 2: 1}),
	}

	finished, winnerID, hasNoWinner := computeSeriesOutcome(series, settings)
	assert.True(t, finished)
	assert.Nil(t, winnerID)
	assert.True(t, hasNoWinner)
}

func TestRankSeriesRivals(t *testing.T) {
	settings := &models.TournamentSettings{MatchCountPerSeries: 2, ScoreDistribution: map[int]float64{1: 3, 2: 1, 3: 0}}
	series := &models.TournamentSeries{
		ID:     1,
		Status: models.StatusStarted,
		Rivals: []*models.TournamentSeriesRival{
			seriesRival(1, models.RivalActive),
			seriesRival(2, models.RivalActive),
			seriesRival(3, models.RivalActive),
			seriesRival(4, models.RivalDisabled),
		},
	}
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2, 3: 3}),
		settledMatch(2, 1, map[int]int{1: 1, 2: 2, 3: 3}),
	}

	placements := rankSeriesRivals(series, settings)
	assert.Equal(t, 1, placements[1])
	assert.Equal(t, 2, placements[2])
	assert.Equal(t, 3, placements[3])
	assert.NotContains(t, placements, 4)
}

func TestRankSeriesRivalsSharedPlace(t *testing.T) {
	settings := &models.TournamentSettings{MatchCountPerSeries: 2, ScoreDistribution: map[int]float64{1: 3, 2: 1}}
	series := twoRivalSeries()
	series.Matches = []*models.TournamentMatch{
		settledMatch(1, 1, map[int]int{1: 1, 2: 2}),
		settledMatch(2, 2, map[int]int{1: 2, 2: 1}),
	}

	placements := rankSeriesRivals(series, settings)
	assert.Equal(t, 1, placements[1])
	assert.Equal(t, 1, placements[2])
}
