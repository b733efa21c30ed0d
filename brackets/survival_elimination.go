package brackets

import (
	"context"
	"fmt"

	"github.com/KhrulSergey/league-core-sub002/models"
)

type SurvivalEliminationGenerator struct{}

func NewSurvivalEliminationGenerator() BracketGenerator {
	return &SurvivalEliminationGenerator{}
}

func (g *SurvivalEliminationGenerator) GetName() string {
	return "SurvivalElimination"
}

// GenerateBracket produces only the first round: one series holding every
// approved rival, no pairing. Later rounds are composed on demand by the
// round progression coordinator, dropping the configured kick-off count of
// lowest-ranked rivals each time. Missing per-round configuration is fatal
// here so no partial bracket is ever persisted.
func (g *SurvivalEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*BracketPlan, error) {
	proposals := params.Proposals
	settings := params.Settings
	n := len(proposals)

	if n < 2 {
		return nil, fmt.Errorf("not enough approved proposals for survival elimination (minimum 2, found %d)", n)
	}
	if _, err := settings.KickOffCountForRound(1); err != nil {
		return nil, fmt.Errorf("survival elimination misconfigured: %w", err)
	}
	if len(settings.ScoreDistribution) == 0 {
		return nil, fmt.Errorf("survival elimination misconfigured: %w", models.ErrScoreDistributionMissing)
	}

	sp := &SeriesPlan{
		UID:              seriesUID(1, 1),
		RoundNumber:      1,
		Position:         1,
		RivalProposalIDs: make([]int, 0, n),
	}
	for _, proposal := range proposals {
		sp.RivalProposalIDs = append(sp.RivalProposalIDs, proposal.ID)
	}

	return &BracketPlan{
		Rounds: []*RoundPlan{{
			RoundNumber: 1,
			IsLast:      false,
			Series:      []*SeriesPlan{sp},
		}},
	}, nil
}
