package scoring

import (
	"fmt"

	"github.com/citruscircuits/calcserver/internal/domain/model"
)

// PredictedAimScores accumulates the three teams' contributions for one
// alliance prediction. The zero value is the empty alliance. An instance
// belongs to a single prediction and must not be shared between goroutines.
type PredictedAimScores struct {
	AutoBallsLow   float64
	AutoBallsOuter float64
	AutoBallsInner float64
	TeleBallsLow   float64
	TeleBallsOuter float64
	TeleBallsInner float64

	// One-shot control-panel indicators, 0 or 1.
	RotationSuccessRate float64
	PositionSuccessRate float64

	AutoLineSuccessRate float64
	ClimbSuccessRate    float64
	ParkSuccessRate     float64
}

// Products are wrapped in float64() so each is rounded before the add; no
// fused multiply-add on any GOARCH.

// CalculatePredictedBallsScore adds one team's expected power cells to acc,
// splitting high goals between the outer and inner port.
func CalculatePredictedBallsScore(acc *PredictedAimScores, team model.TeamAggregate, split model.TeamZoneSplit) {
	acc.AutoBallsLow += team.AutoAvgBallsLow
	acc.AutoBallsOuter += float64(team.AutoAvgBallsHigh * (1 - split.AutoHighBallsPercentInner))
	acc.AutoBallsInner += float64(team.AutoAvgBallsHigh * split.AutoHighBallsPercentInner)

	acc.TeleBallsLow += team.TeleAvgBallsLow
	acc.TeleBallsOuter += float64(team.TeleAvgBallsHigh * (1 - split.TeleHighBallsPercentInner))
	acc.TeleBallsInner += float64(team.TeleAvgBallsHigh * split.TeleHighBallsPercentInner)
}

// CalculatePredictedPanelScore marks a control-panel action as achievable when
// the team has ever completed it. Indicators never decrease.
func CalculatePredictedPanelScore(acc *PredictedAimScores, team model.TeamAggregate) {
	if team.TeleCPRotationSuccesses > 0 {
		acc.RotationSuccessRate = max(acc.RotationSuccessRate, 1)
	}
	if team.TeleCPPositionSuccesses > 0 {
		acc.PositionSuccessRate = max(acc.PositionSuccessRate, 1)
	}
}

// AccumulateBonusRates adds the team's auto-line, climb and park success rates.
func AccumulateBonusRates(acc *PredictedAimScores, team model.TeamAggregate, split model.TeamZoneSplit) error {
	if team.MatchesPlayed <= 0 {
		return fmt.Errorf("%w: team %d", ErrNoMatchesPlayed, team.TeamNumber)
	}
	played := float64(team.MatchesPlayed)
	acc.AutoLineSuccessRate += float64(split.AutoLineSuccesses) / played
	acc.ClimbSuccessRate += float64(split.ClimbAllSuccesses) / played
	acc.ParkSuccessRate += float64(split.ParkSuccesses) / played
	return nil
}
