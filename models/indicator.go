package models

import (
	"errors"
	"fmt"
)

// IndicatorType is a typed, directionally-scored measurement reported for a
// rival within a match (frag count, round time, ...).
type IndicatorType string

const (
	IndicatorFragCount   IndicatorType = "FRAG_COUNT"
	IndicatorDeathCount  IndicatorType = "DEATH_COUNT"
	IndicatorAssistCount IndicatorType = "ASSIST_COUNT"
	IndicatorTotalScore  IndicatorType = "TOTAL_SCORE"
	IndicatorRoundTime   IndicatorType = "ROUND_TIME_SEC"
	IndicatorObjectives  IndicatorType = "OBJECTIVES_DONE"
)

type IndicatorDirection string

const (
	HigherIsBetter IndicatorDirection = "higher"
	LowerIsBetter  IndicatorDirection = "lower"
)

type IndicatorConfig struct {
	Direction  IndicatorDirection
	Multiplier float64
}

// indicatorConfigs is the discipline's optimal-indicator table: how each
// indicator type contributes to a rival's weighted score.
var indicatorConfigs = map[IndicatorType]IndicatorConfig{
	IndicatorFragCount:   {Direction: HigherIsBetter, Multiplier: 1.0},
	IndicatorDeathCount:  {Direction: LowerIsBetter, Multiplier: 0.5},
	IndicatorAssistCount: {Direction: HigherIsBetter, Multiplier: 0.25},
	IndicatorTotalScore:  {Direction: HigherIsBetter, Multiplier: 1.0},
	IndicatorRoundTime:   {Direction: LowerIsBetter, Multiplier: 0.01},
	IndicatorObjectives:  {Direction: HigherIsBetter, Multiplier: 2.0},
}

func (t IndicatorType) Config() (IndicatorConfig, bool) {
	cfg, ok := indicatorConfigs[t]
	return cfg, ok
}

func (t IndicatorType) Valid() bool {
	_, ok := indicatorConfigs[t]
	return ok
}

// Indicator is a single reported value.
type Indicator struct {
	Type  IndicatorType `json:"type"`
	Value float64       `json:"value"`
}

var ErrUnknownIndicatorType = errors.New("unknown indicator type")

// WeightedScore folds a rival's indicators into one comparable number.
// Lower-is-better indicators contribute negatively so that the highest score
// always wins.
func WeightedScore(indicators []Indicator) (float64, error) {
	var total float64
	for _, ind := range indicators {
		cfg, ok := ind.Type.Config()
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownIndicatorType, ind.Type)
		}
		weighted := ind.Value * cfg.Multiplier
		if cfg.Direction == LowerIsBetter {
			weighted = -weighted
		}
		total += weighted
	}
	return total, nil
}

// IndicatorTypeSet returns the distinct indicator types present in the list.
func IndicatorTypeSet(indicators []Indicator) map[IndicatorType]struct{} {
	set := make(map[IndicatorType]struct{}, len(indicators))
	for _, ind := range indicators {
		set[ind.Type] = struct{}{}
	}
	return set
}
