package scoring

import (
	"fmt"

	"github.com/citruscircuits/calcserver/internal/domain/model"
)

// Pipeline turns an alliance's team data into a predicted score and rank
// points using one rule table. It holds no mutable state and is safe for
// concurrent use; accumulators are not.
type Pipeline struct {
	rules Rules
}

// NewPipeline creates a pipeline for the default rules adjusted by opts.
func NewPipeline(opts ...Option) *Pipeline {
	return &Pipeline{rules: NewRules(opts...)}
}

// NewPipelineWithRules creates a pipeline for an explicit rule table.
func NewPipelineWithRules(rules Rules) *Pipeline {
	return &Pipeline{rules: rules}
}

// Rules returns the rule table in use.
func (p *Pipeline) Rules() Rules {
	return p.rules
}

// CalculateStageContribution returns the control-panel and endgame points the
// accumulator predicts.
func (p *Pipeline) CalculateStageContribution(acc *PredictedAimScores) float64 {
	r := p.rules
	return float64(acc.RotationSuccessRate*r.Rotation) +
		float64(acc.PositionSuccessRate*r.Position) +
		float64(acc.ClimbSuccessRate*r.Climb) +
		float64(acc.ParkSuccessRate*r.Park)
}

// CalculatePredictedAllianceScore folds every team in teamList into acc and
// returns the predicted alliance score. All teams are resolved before acc is
// touched, so on error acc is unchanged.
func (p *Pipeline) CalculatePredictedAllianceScore(
	acc *PredictedAimScores,
	aggregates map[int]model.TeamAggregate,
	splits map[int]model.TeamZoneSplit,
	teamList []int,
) (float64, error) {
	teams := make([]model.TeamAggregate, len(teamList))
	teamSplits := make([]model.TeamZoneSplit, len(teamList))
	for i, number := range teamList {
		agg, ok := aggregates[number]
		if !ok {
			return 0, fmt.Errorf("%w: team %d", ErrMissingTeamAggregate, number)
		}
		split, ok := splits[number]
		if !ok {
			return 0, fmt.Errorf("%w: team %d", ErrMissingZoneSplit, number)
		}
		if agg.MatchesPlayed <= 0 {
			return 0, fmt.Errorf("%w: team %d", ErrNoMatchesPlayed, number)
		}
		teams[i], teamSplits[i] = agg, split
	}

	for i := range teams {
		CalculatePredictedBallsScore(acc, teams[i], teamSplits[i])
		CalculatePredictedPanelScore(acc, teams[i])
		if err := AccumulateBonusRates(acc, teams[i], teamSplits[i]); err != nil {
			return 0, err
		}
	}

	r := p.rules
	score := 0.0
	score += float64(acc.AutoBallsLow * r.AutoBallsLow)
	score += float64(acc.AutoBallsOuter * r.AutoBallsOuter)
	score += float64(acc.AutoBallsInner * r.AutoBallsInner)
	score += float64(acc.TeleBallsLow * r.TeleBallsLow)
	score += float64(acc.TeleBallsOuter * r.TeleBallsOuter)
	score += float64(acc.TeleBallsInner * r.TeleBallsInner)
	score += p.CalculateStageContribution(acc)
	score += float64(acc.AutoLineSuccessRate * r.AutoLine)
	return score, nil
}

// CalculatePredictedClimbRP returns 1 when predicted climb and park points
// reach the climb rank-point threshold.
func (p *Pipeline) CalculatePredictedClimbRP(acc *PredictedAimScores) int {
	points := float64(acc.ClimbSuccessRate*p.rules.Climb) + float64(acc.ParkSuccessRate*p.rules.Park)
	if points >= p.rules.ClimbRPThreshold && points > 0 {
		return 1
	}
	return 0
}

// CalculatePredictedStageRP returns 1 when the predicted control-panel points
// reach the stage rank-point threshold.
func (p *Pipeline) CalculatePredictedStageRP(acc *PredictedAimScores) int {
	points := float64(acc.RotationSuccessRate*p.rules.Rotation) + float64(acc.PositionSuccessRate*p.rules.Position)
	if points >= p.rules.StageRPThreshold && points > 0 {
		return 1
	}
	return 0
}
