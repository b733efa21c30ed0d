package models

import "time"

// ParticipantRole marks a roster member as starting or substitute.
type ParticipantRole string

const (
	RoleMain    ParticipantRole = "main"
	RoleReserve ParticipantRole = "reserve"
)

// TournamentTeamProposal is a team's (or, for user tournaments, a single
// user's) application to a tournament. Exactly one of TeamID/UserID is set,
// matching the tournament's participant type. Proposals are owned by the
// tournament and referenced by id from series and match rivals.
type TournamentTeamProposal struct {
	ID           int                 `json:"id" db:"id"`
	TournamentID int                 `json:"tournament_id" db:"tournament_id"`
	TeamID       *int                `json:"team_id,omitempty" db:"team_id"`
	UserID       *int                `json:"user_id,omitempty" db:"user_id"`
	Status       ParticipationStatus `json:"status" db:"status"`
	// FeeTransactionRef is the ledger reference returned by the participation
	// fee charge, kept for refunds.
	FeeTransactionRef *string   `json:"fee_transaction_ref,omitempty" db:"fee_transaction_ref"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`

	Participants []*TournamentTeamParticipant `json:"participants,omitempty" db:"-"`
}

// RosterSize counts main-roster members only.
func (p *TournamentTeamProposal) RosterSize() int {
	size := 0
	for _, member := range p.Participants {
		if member.Role == RoleMain {
			size++
		}
	}
	return size
}

// TournamentTeamParticipant is one roster member of a proposal.
type TournamentTeamParticipant struct {
	ID         int             `json:"id" db:"id"`
	ProposalID int             `json:"proposal_id" db:"proposal_id"`
	UserID     int             `json:"user_id" db:"user_id"`
	Role       ParticipantRole `json:"role" db:"role"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
