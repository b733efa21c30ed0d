package models

import "time"

// TournamentMatch is one played game inside a series. Its rival list mirrors
// the series rival list at the moment the match was generated.
type TournamentMatch struct {
	ID                  int              `json:"id" db:"id"`
	SeriesID            int              `json:"series_id" db:"series_id"`
	MatchNumberInSeries int              `json:"match_number_in_series" db:"match_number"`
	Status              TournamentStatus `json:"status" db:"status"`
	HasNoWinner         bool             `json:"has_no_winner" db:"has_no_winner"`
	// WinnerMatchRivalID references a row of this match's own rival list.
	WinnerMatchRivalID *int `json:"winner_match_rival_id,omitempty" db:"winner_match_rival_id"`
	// Properties carries free-form, map-specific key/value pairs (map name,
	// server region, ...).
	Properties map[string]string `json:"properties,omitempty" db:"properties"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`

	Rivals []*TournamentMatchRival `json:"rivals,omitempty" db:"-"`
}

func (m *TournamentMatch) RivalByID(rivalID int) *TournamentMatchRival {
	for _, rival := range m.Rivals {
		if rival.ID == rivalID {
			return rival
		}
	}
	return nil
}

func (m *TournamentMatch) RivalBySeriesRival(seriesRivalID int) *TournamentMatchRival {
	for _, rival := range m.Rivals {
		if rival.SeriesRivalID == seriesRivalID {
			return rival
		}
	}
	return nil
}

// ActiveRivals filters out disabled/afk/banned entries.
func (m *TournamentMatch) ActiveRivals() []*TournamentMatchRival {
	active := make([]*TournamentMatchRival, 0, len(m.Rivals))
	for _, rival := range m.Rivals {
		if rival.Status.CountsForResult() {
			active = append(active, rival)
		}
	}
	return active
}

// Winner returns the winning match rival when resolved.
func (m *TournamentMatch) Winner() *TournamentMatchRival {
	if m.WinnerMatchRivalID == nil {
		return nil
	}
	return m.RivalByID(*m.WinnerMatchRivalID)
}

// TournamentMatchRival is a series rival's per-match standing.
type TournamentMatchRival struct {
	ID            int         `json:"id" db:"id"`
	MatchID       int         `json:"match_id" db:"match_id"`
	SeriesRivalID int         `json:"series_rival_id" db:"series_rival_id"`
	ProposalID    int         `json:"proposal_id" db:"proposal_id"`
	Status        RivalStatus `json:"status" db:"status"`
	Indicators    []Indicator `json:"indicators,omitempty" db:"indicators"`
	WonPlace      *int        `json:"won_place,omitempty" db:"won_place"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`

	Participants []*TournamentMatchRivalParticipant `json:"participants,omitempty" db:"-"`
}

// TournamentMatchRivalParticipant holds one team member's indicator values
// feeding the match result.
type TournamentMatchRivalParticipant struct {
	ID                int         `json:"id" db:"id"`
	MatchRivalID      int         `json:"match_rival_id" db:"match_rival_id"`
	TeamParticipantID int         `json:"team_participant_id" db:"team_participant_id"`
	Indicators        []Indicator `json:"indicators,omitempty" db:"indicators"`
}
