package models

import "time"

// TournamentRound groups the series played in one wave of the bracket.
// Round numbers are contiguous starting at 1 and at most one round per
// tournament is open (not finished/cancelled) at a time.
type TournamentRound struct {
	ID           int              `json:"id" db:"id"`
	TournamentID int              `json:"tournament_id" db:"tournament_id"`
	RoundNumber  int              `json:"round_number" db:"round_number"`
	IsLast       bool             `json:"is_last" db:"is_last"`
	Status       TournamentStatus `json:"status" db:"status"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`

	Series []*TournamentSeries `json:"series,omitempty" db:"-"`
}

// Complete reports whether every non-deleted series is settled, i.e. finished
// or explicitly left without a winner by an operator override.
func (r *TournamentRound) Complete() bool {
	if len(r.Series) == 0 {
		return false
	}
	for _, series := range r.Series {
		if series.Status == StatusDeleted {
			continue
		}
		if series.Status.IsSettled() {
			continue
		}
		if series.HasNoWinner {
			continue
		}
		return false
	}
	return true
}
