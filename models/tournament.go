package models

import "time"

// EliminationSystem selects the bracket generation policy.
type EliminationSystem string

const (
	SingleElimination   EliminationSystem = "single_elimination"
	SurvivalElimination EliminationSystem = "survival_elimination"
)

func (e EliminationSystem) Valid() bool {
	return e == SingleElimination || e == SurvivalElimination
}

// FullyGenerated reports whether the whole round/series tree is built up
// front. Partially generated systems get their next round composed on demand
// by the round progression coordinator.
func (e EliminationSystem) FullyGenerated() bool {
	return e == SingleElimination
}

// ParticipantType distinguishes tournaments played by individual users from
// tournaments played by teams.
type ParticipantType string

const (
	ParticipantUser ParticipantType = "user"
	ParticipantTeam ParticipantType = "team"
)

func (p ParticipantType) Valid() bool {
	return p == ParticipantUser || p == ParticipantTeam
}

// Tournament is the aggregate root: it owns its rounds, its settings document
// and its proposals. Rounds, series and matches are loaded on demand by the
// read model, never embedded in list responses.
type Tournament struct {
	ID                int               `json:"id" db:"id"`
	Name              string            `json:"name" db:"name"`
	Description       *string           `json:"description,omitempty" db:"description"`
	Discipline        string            `json:"discipline" db:"discipline"`
	EliminationSystem EliminationSystem `json:"elimination_system" db:"elimination_system"`
	ParticipantType   ParticipantType   `json:"participant_type" db:"participant_type"`
	Status            TournamentStatus  `json:"status" db:"status"`
	StartDate         time.Time         `json:"start_date" db:"start_date"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	// WinnerProposalIDs is filled when the last round closes. Usually one
	// entry; a survival tournament that collapses below two survivors may
	// declare several.
	WinnerProposalIDs []int `json:"winner_proposal_ids,omitempty" db:"winner_proposal_ids"`

	Settings  *TournamentSettings      `json:"settings,omitempty" db:"-"`
	Rounds    []*TournamentRound       `json:"rounds,omitempty" db:"-"`
	Proposals []*TournamentTeamProposal `json:"proposals,omitempty" db:"-"`
}

// HoursToStart is used for quit-penalty lookups.
func (t *Tournament) HoursToStart(now time.Time) int {
	if !now.Before(t.StartDate) {
		return 0
	}
	return int(t.StartDate.Sub(now).Hours())
}
