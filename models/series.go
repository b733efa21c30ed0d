package models

import "time"

// RivalStatus is the standing of one proposal within a series or match.
type RivalStatus string

const (
	RivalActive   RivalStatus = "active"
	RivalDisabled RivalStatus = "disabled"
	RivalAFK      RivalStatus = "afk"
	RivalBanned   RivalStatus = "banned"
)

func (s RivalStatus) CountsForResult() bool {
	return s == RivalActive
}

// TournamentSeries is the unit that advances through the bracket: a group of
// matches between the same rival set. Parent/child links are id lists backed
// by a junction table, keeping the structure an acyclic forest that
// serializes without back-pointers.
type TournamentSeries struct {
	ID          int              `json:"id" db:"id"`
	RoundID     int              `json:"round_id" db:"round_id"`
	Position    int              `json:"position" db:"position"`
	Status      TournamentStatus `json:"status" db:"status"`
	HasNoWinner bool             `json:"has_no_winner" db:"has_no_winner"`
	// WinnerRivalID references a row of this series' own rival list.
	WinnerRivalID *int      `json:"winner_rival_id,omitempty" db:"winner_rival_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	ParentSeriesIDs []int `json:"parent_series_ids,omitempty" db:"-"`
	ChildSeriesID   *int  `json:"child_series_id,omitempty" db:"-"`

	Rivals  []*TournamentSeriesRival `json:"rivals,omitempty" db:"-"`
	Matches []*TournamentMatch       `json:"matches,omitempty" db:"-"`
}

// RivalByProposal finds this series' rival entry for a proposal, if any.
func (s *TournamentSeries) RivalByProposal(proposalID int) *TournamentSeriesRival {
	for _, rival := range s.Rivals {
		if rival.ProposalID == proposalID {
			return rival
		}
	}
	return nil
}

func (s *TournamentSeries) RivalByID(rivalID int) *TournamentSeriesRival {
	for _, rival := range s.Rivals {
		if rival.ID == rivalID {
			return rival
		}
	}
	return nil
}

// ActiveRivals filters out disabled/afk/banned entries.
func (s *TournamentSeries) ActiveRivals() []*TournamentSeriesRival {
	active := make([]*TournamentSeriesRival, 0, len(s.Rivals))
	for _, rival := range s.Rivals {
		if rival.Status.CountsForResult() {
			active = append(active, rival)
		}
	}
	return active
}

// Winner returns the winning rival when the series is finished with one.
func (s *TournamentSeries) Winner() *TournamentSeriesRival {
	if s.WinnerRivalID == nil {
		return nil
	}
	return s.RivalByID(*s.WinnerRivalID)
}

// TournamentSeriesRival is one proposal's standing within one series. At most
// one rival exists per (series, proposal) pair.
type TournamentSeriesRival struct {
	ID         int         `json:"id" db:"id"`
	SeriesID   int         `json:"series_id" db:"series_id"`
	ProposalID int         `json:"proposal_id" db:"proposal_id"`
	Status     RivalStatus `json:"status" db:"status"`
	Indicators []Indicator `json:"indicators,omitempty" db:"indicators"`
	WonPlace   *int        `json:"won_place,omitempty" db:"won_place"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}
