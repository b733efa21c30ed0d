package brackets

import (
	"context"
	"fmt"

	"github.com/KhrulSergey/league-core-sub002/models"
)

type GenerateBracketParams struct {
	Tournament *models.Tournament
	Settings   *models.TournamentSettings
	// Proposals is the approved proposal list at generation time, in
	// submission order. The roster is frozen once generation succeeds.
	Proposals []*models.TournamentTeamProposal
}

// BracketGenerator builds the initial round/series skeleton for one
// elimination system. Generators are pure: they return a plan, the bracket
// service persists it atomically.
type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*BracketPlan, error)

	GetName() string
}

// SeriesPlan is one series of the skeleton. RivalProposalIDs are the rivals
// known at generation time; SourceSeriesUIDs name the parent series whose
// winners flow in later.
type SeriesPlan struct {
	UID         string
	RoundNumber int
	Position    int

	RivalProposalIDs []int
	SourceSeriesUIDs []string
}

type RoundPlan struct {
	RoundNumber int
	IsLast      bool
	Series      []*SeriesPlan
}

type BracketPlan struct {
	Rounds []*RoundPlan
}

func (p *BracketPlan) SeriesCount() int {
	count := 0
	for _, round := range p.Rounds {
		count += len(round.Series)
	}
	return count
}

// ForSystem selects the generation strategy once, at generation time. Adding
// an elimination system means adding a generator, not editing a shared branch.
func ForSystem(system models.EliminationSystem) (BracketGenerator, error) {
	switch system {
	case models.SingleElimination:
		return NewSingleEliminationGenerator(SequentialSeeder), nil
	case models.SurvivalElimination:
		return NewSurvivalEliminationGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported elimination system %q", system)
	}
}

func seriesUID(roundNumber, position int) string {
	return fmt.Sprintf("R%dS%d", roundNumber, position)
}
