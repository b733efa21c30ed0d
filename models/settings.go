package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	DefaultMatchRivalCount     = 2
	DefaultMatchCountPerSeries = 1
)

var (
	ErrSettingsInvalid          = errors.New("tournament settings invalid")
	ErrRoundKickOffMissing      = errors.New("per-round kick-off count missing")
	ErrScoreDistributionMissing = errors.New("score distribution table missing")
)

// PenaltyBreakpoint maps hours-remaining-to-start to the quit penalty charged
// when an approved proposal withdraws.
type PenaltyBreakpoint struct {
	HoursBeforeStart int     `json:"hours_before_start"`
	Amount           float64 `json:"amount"`
}

// TournamentSettings is stored as a single JSONB document per tournament
// (at most one non-deleted row). Maps keyed by int marshal with string keys,
// which is fine for the JSONB column.
type TournamentSettings struct {
	ID           int              `json:"id" db:"id"`
	TournamentID int              `json:"tournament_id" db:"tournament_id"`
	Status       TournamentStatus `json:"status" db:"status"`

	MatchRivalCount     int `json:"match_rival_count"`
	MatchCountPerSeries int `json:"match_count_per_series"`

	MinTeamCount           int `json:"min_team_count"`
	MaxTeamCount           int `json:"max_team_count"`
	MinParticipantsPerTeam int `json:"min_participants_per_team"`
	MaxParticipantsPerTeam int `json:"max_participants_per_team"`

	// RoundKickOffs: round number -> rivals eliminated when the round closes.
	// Required for survival elimination, ignored for single elimination.
	RoundKickOffs map[int]int `json:"round_kick_offs,omitempty"`

	// ScoreDistribution: placement (1-based) -> score awarded. Used to rank
	// rivals when match wins tie and to rank survival-round survivors.
	ScoreDistribution map[int]float64 `json:"score_distribution,omitempty"`

	// PrizeDistribution: placement -> prize share, forwarded to the financial
	// ledger when the tournament finishes.
	PrizeDistribution map[int]float64 `json:"prize_distribution,omitempty"`

	ParticipationFee float64             `json:"participation_fee"`
	FeeRequired      bool                `json:"fee_required"`
	QuitPenalties    []PenaltyBreakpoint `json:"quit_penalties,omitempty"`

	SelfHosted       bool `json:"self_hosted"`
	AutoStartSeries  bool `json:"auto_start_series"`
	AutoFinishSeries bool `json:"auto_finish_series"`
	AutoFinishRounds bool `json:"auto_finish_rounds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Normalize fills defaults for zero-valued knobs.
func (s *TournamentSettings) Normalize() {
	if s.MatchRivalCount <= 0 {
		s.MatchRivalCount = DefaultMatchRivalCount
	}
	if s.MatchCountPerSeries <= 0 {
		s.MatchCountPerSeries = DefaultMatchCountPerSeries
	}
	if s.MinTeamCount <= 0 {
		s.MinTeamCount = 2
	}
}

func (s *TournamentSettings) Validate() error {
	if s.MatchRivalCount < 1 {
		return fmt.Errorf("%w: match_rival_count must be at least 1", ErrSettingsInvalid)
	}
	if s.MatchCountPerSeries < 1 {
		return fmt.Errorf("%w: match_count_per_series must be at least 1", ErrSettingsInvalid)
	}
	if s.MinTeamCount < 2 {
		return fmt.Errorf("%w: min_team_count must be at least 2", ErrSettingsInvalid)
	}
	if s.MaxTeamCount > 0 && s.MaxTeamCount < s.MinTeamCount {
		return fmt.Errorf("%w: max_team_count %d below min_team_count %d", ErrSettingsInvalid, s.MaxTeamCount, s.MinTeamCount)
	}
	if s.MinParticipantsPerTeam > 0 && s.MaxParticipantsPerTeam > 0 &&
		s.MaxParticipantsPerTeam < s.MinParticipantsPerTeam {
		return fmt.Errorf("%w: participants-per-team range inverted", ErrSettingsInvalid)
	}
	for hoursIdx, bp := range s.QuitPenalties {
		if bp.HoursBeforeStart < 0 || bp.Amount < 0 {
			return fmt.Errorf("%w: quit penalty breakpoint %d negative", ErrSettingsInvalid, hoursIdx)
		}
	}
	return nil
}

// MajorityWinCount is the win count that clinches a best-of-N series early.
func (s *TournamentSettings) MajorityWinCount() int {
	return s.MatchCountPerSeries/2 + 1
}

// KickOffCountForRound returns how many rivals are dropped when the given
// round of a survival tournament closes. A missing entry is a configuration
// error, never silently zero.
func (s *TournamentSettings) KickOffCountForRound(roundNumber int) (int, error) {
	count, ok := s.RoundKickOffs[roundNumber]
	if !ok {
		return 0, fmt.Errorf("%w: round %d", ErrRoundKickOffMissing, roundNumber)
	}
	if count < 1 {
		return 0, fmt.Errorf("%w: round %d kick-off count %d", ErrSettingsInvalid, roundNumber, count)
	}
	return count, nil
}

// ScoreForPlacement awards the configured score for a 1-based placement.
// Placements beyond the table score zero.
func (s *TournamentSettings) ScoreForPlacement(place int) float64 {
	return s.ScoreDistribution[place]
}

// PenaltyFor looks up a quit penalty by hours remaining to tournament start
// using the nearest lower breakpoint. With breakpoints {0: 20, 24: 10, 48: 5},
// a quit 30 hours out pays 10 and a quit 50 hours out pays 5.
func (s *TournamentSettings) PenaltyFor(hoursBeforeStart int) float64 {
	if hoursBeforeStart < 0 {
		hoursBeforeStart = 0
	}
	breakpoints := make([]PenaltyBreakpoint, len(s.QuitPenalties))
	copy(breakpoints, s.QuitPenalties)
	sort.Slice(breakpoints, func(i, j int) bool {
		return breakpoints[i].HoursBeforeStart < breakpoints[j].HoursBeforeStart
	})

	amount := 0.0
	for _, bp := range breakpoints {
		if bp.HoursBeforeStart <= hoursBeforeStart {
			amount = bp.Amount
			continue
		}
		break
	}
	return amount
}
