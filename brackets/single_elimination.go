package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/KhrulSergey/league-core-sub002/models"
)

// Seeder orders the approved proposals before round-1 pairing. The default is
// sequential submission order; bracket-seeded pairing plugs in here.
type Seeder func(proposals []*models.TournamentTeamProposal) []*models.TournamentTeamProposal

// SequentialSeeder keeps submission order: position i pairs with i+1.
func SequentialSeeder(proposals []*models.TournamentTeamProposal) []*models.TournamentTeamProposal {
	seeded := make([]*models.TournamentTeamProposal, len(proposals))
	copy(seeded, proposals)
	return seeded
}

// slot is one feeder of a series: either a proposal known now or the future
// winner of an earlier series.
type slot struct {
	proposalID      int
	sourceSeriesUID string
}

type SingleEliminationGenerator struct {
	seeder Seeder
}

func NewSingleEliminationGenerator(seeder Seeder) BracketGenerator {
	if seeder == nil {
		seeder = SequentialSeeder
	}
	return &SingleEliminationGenerator{seeder: seeder}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds the full tree up front. For N proposals it produces
// ceil(log2 N) rounds and exactly N-1 series: byes do not get a series of
// their own, the spare proposals are seeded directly into the second round,
// so every generated series eliminates exactly one rival.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*BracketPlan, error) {
	proposals := g.seeder(params.Proposals)
	n := len(proposals)

	if n < 2 {
		return nil, fmt.Errorf("not enough approved proposals for single elimination (minimum 2, found %d)", n)
	}
	if params.Settings.MatchRivalCount != 2 {
		return nil, fmt.Errorf("single elimination pairs rivals two per series, match_rival_count %d unsupported",
			params.Settings.MatchRivalCount)
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(numRounds)
	numByes := bracketSize - n
	firstRoundSeries := n - bracketSize/2

	plan := &BracketPlan{Rounds: make([]*RoundPlan, 0, numRounds)}

	// Round 1: the first 2*firstRoundSeries proposals pair consecutively,
	// the remaining numByes proposals wait for round 2.
	round1 := &RoundPlan{RoundNumber: 1, IsLast: numRounds == 1}
	carried := make([]slot, 0, bracketSize/2)
	for i := 0; i < firstRoundSeries; i++ {
		sp := &SeriesPlan{
			UID:              seriesUID(1, i+1),
			RoundNumber:      1,
			Position:         i + 1,
			RivalProposalIDs: []int{proposals[2*i].ID, proposals[2*i+1].ID},
		}
		round1.Series = append(round1.Series, sp)
		carried = append(carried, slot{sourceSeriesUID: sp.UID})
	}
	for i := 0; i < numByes; i++ {
		carried = append(carried, slot{proposalID: proposals[2*firstRoundSeries+i].ID})
	}
	plan.Rounds = append(plan.Rounds, round1)

	for r := 2; r <= numRounds; r++ {
		if len(carried)%2 != 0 {
			return nil, errors.New("internal error: odd slot count while composing bracket tree")
		}
		round := &RoundPlan{RoundNumber: r, IsLast: r == numRounds}
		next := make([]slot, 0, len(carried)/2)
		for i := 0; i < len(carried); i += 2 {
			sp := &SeriesPlan{
				UID:         seriesUID(r, i/2+1),
				RoundNumber: r,
				Position:    i/2 + 1,
			}
			for _, feeder := range []slot{carried[i], carried[i+1]} {
				if feeder.sourceSeriesUID != "" {
					sp.SourceSeriesUIDs = append(sp.SourceSeriesUIDs, feeder.sourceSeriesUID)
				} else {
					sp.RivalProposalIDs = append(sp.RivalProposalIDs, feeder.proposalID)
				}
			}
			round.Series = append(round.Series, sp)
			next = append(next, slot{sourceSeriesUID: sp.UID})
		}
		plan.Rounds = append(plan.Rounds, round)
		carried = next
	}

	if len(carried) != 1 {
		return nil, fmt.Errorf("internal error: bracket tree for %d proposals did not converge to one final series", n)
	}
	return plan, nil
}
