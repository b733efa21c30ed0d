package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhrulSergey/league-core-sub002/models"
)

func matchRival(id int, status models.RivalStatus, indicators ...models.Indicator) *models.TournamentMatchRival {
	return &models.TournamentMatchRival{
		ID:            id,
		MatchID:       1,
		SeriesRivalID: id * 10,
		ProposalID:    id * 100,
		Status:        status,
		Indicators:    indicators,
	}
}

func frags(value float64) models.Indicator {
	return models.Indicator{Type: models.IndicatorFragCount, Value: value}
}

func deaths(value float64) models.Indicator {
	return models.Indicator{Type: models.IndicatorDeathCount, Value: value}
}

func TestRankMatchRivalsOutright(t *testing.T) {
	match := &models.TournamentMatch{ID: 1, Rivals: []*models.TournamentMatchRival{
		matchRival(1, models.RivalActive, frags(20), deaths(4)),
		matchRival(2, models.RivalActive, frags(12), deaths(2)),
	}}

	placements, winner, hasNoWinner, err := rankMatchRivals(match)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 1, winner.ID)
	assert.False(t, hasNoWinner)
	assert.Equal(t, 1, placements[1])
	assert.Equal(t, 2, placements[2])
}

func TestRankMatchRivalsTopTieHasNoWinner(t *testing.T) {
	match := &models.TournamentMatch{ID: 1, Rivals: []*models.TournamentMatchRival{
		matchRival(1, models.RivalActive, frags(10)),
		matchRival(2, models.RivalActive, frags(10)),
		matchRival(3, models.RivalActive, frags(4)),
	}}

	placements, winner, hasNoWinner, err := rankMatchRivals(match)
	require.NoError(t, err)
	assert.Nil(t, winner)
	assert.True(t, hasNoWinner)
	// Competition ranking: the tied pair shares first, next place skips.
	assert.Equal(t, 1, placements[1])
	assert.Equal(t, 1, placements[2])
	assert.Equal(t, 3, placements[3])
}

func TestRankMatchRivalsLowerTieDoesNotBlockWinner(t *testing.T) {
	match := &models.TournamentMatch{ID: 1, Rivals: []*models.TournamentMatchRival{
		matchRival(1, models.RivalActive, frags(15)),
		matchRival(2, models.RivalActive, frags(8)),
		matchRival(3, models.RivalActive, frags(8)),
	}}

	placements, winner, hasNoWinner, err := rankMatchRivals(match)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 1, winner.ID)
	assert.False(t, hasNoWinner)
	assert.Equal(t, 2, placements[2])
	assert.Equal(t, 2, placements[3])
}

func TestRankMatchRivalsIgnoresInactive(t *testing.T) {
	// The disabled rival would win on score but does not count.
	match := &models.TournamentMatch{ID: 1, Rivals: []*models.TournamentMatchRival{
		matchRival(1, models.RivalDisabled, frags(99)),
		matchRival(2, models.RivalActive, frags(5)),
		matchRival(3, models.RivalActive, frags(3)),
	}}

	placements, winner, _, err := rankMatchRivals(match)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 2, winner.ID)
	assert.NotContains(t, placements, 1)
}

func TestRankMatchRivalsSingleActiveWinsOutright(t *testing.T) {
	match := &models.TournamentMatch{ID: 1, Rivals: []*models.TournamentMatchRival{
		matchRival(1, models.RivalActive, frags(0)),
		matchRival(2, models.RivalAFK),
	}}

	_, winner, hasNoWinner, err := rankMatchRivals(match)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, 1, winner.ID)
	assert.False(t, hasNoWinner)
}

func TestRankMatchRivalsIndicatorSetMismatch(t *testing.T) {
	tests := []struct {
		name   string
		rivals []*models.TournamentMatchRival
	}{
		{
			name: "one rival reported nothing",
			rivals: []*models.TournamentMatchRival{
				matchRival(1, models.RivalActive, frags(10)),
				matchRival(2, models.RivalActive),
			},
		},
		{
			name: "different indicator types",
			rivals: []*models.TournamentMatchRival{
				matchRival(1, models.RivalActive, frags(10)),
				matchRival(2, models.RivalActive, deaths(3)),
			},
		},
		{
			name: "partial overlap",
			rivals: []*models.TournamentMatchRival{
				matchRival(1, models.RivalActive, frags(10), deaths(1)),
				matchRival(2, models.RivalActive, frags(8)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := &models.TournamentMatch{ID: 1, Rivals: tt.rivals}
			_, _, _, err := rankMatchRivals(match)
			require.ErrorIs(t, err, ErrMatchIndicatorsMissing)
		})
	}
}
