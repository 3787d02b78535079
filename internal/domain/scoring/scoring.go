// Package scoring holds the alliance score model: the game-rule point table,
// the per-alliance accumulator and the pure functions that fold team
// aggregates into a predicted score and rank points.
package scoring

import (
	"fmt"
	"math"
	"sort"
)

// Point table keys accepted from configuration.
const (
	PointAutoBallsLow   = "auto_balls_low"
	PointAutoBallsOuter = "auto_balls_outer"
	PointAutoBallsInner = "auto_balls_inner"
	PointTeleBallsLow   = "tele_balls_low"
	PointTeleBallsOuter = "tele_balls_outer"
	PointTeleBallsInner = "tele_balls_inner"
	PointAutoLine       = "auto_line"
	PointRotation       = "rotation"
	PointPosition       = "position"
	PointClimb          = "climb"
	PointPark           = "park"
)

// Threshold keys accepted from configuration.
const (
	ThresholdClimbRP = "climb_rp"
	ThresholdStageRP = "stage_rp"
)

// Rules is the season's official point table and rank-point thresholds.
type Rules struct {
	AutoBallsLow   float64
	AutoBallsOuter float64
	AutoBallsInner float64
	TeleBallsLow   float64
	TeleBallsOuter float64
	TeleBallsInner float64

	AutoLine float64
	Rotation float64
	Position float64
	Climb    float64
	Park     float64

	// ClimbRPThreshold is the endgame point total (climb + park) earning the climb rank point.
	ClimbRPThreshold float64
	// StageRPThreshold is the control-panel point total earning the stage rank point.
	StageRPThreshold float64
}

// DefaultRules returns the 2020 game manual values.
func DefaultRules() Rules {
	return Rules{
		AutoBallsLow:     2,
		AutoBallsOuter:   4,
		AutoBallsInner:   6,
		TeleBallsLow:     1,
		TeleBallsOuter:   2,
		TeleBallsInner:   3,
		AutoLine:         5,
		Rotation:         10,
		Position:         20,
		Climb:            25,
		Park:             5,
		ClimbRPThreshold: 65,
		StageRPThreshold: 30,
	}
}

// Rule table presets selectable from configuration.
const (
	PresetManual2020 = "manual2020"
	PresetLegacy     = "legacy"
)

// LegacyRules returns the table the scouting server used before the manual
// endgame values: hangs are worth 15, the climb rank point needs two predicted
// hangs and the stage rank point is earned by the rotation alone.
func LegacyRules() Rules {
	r := DefaultRules()
	r.Climb = 15
	r.ClimbRPThreshold = 30
	r.StageRPThreshold = 10
	return r
}

// PresetRules returns the named rule table. An empty name selects the manual.
func PresetRules(name string) (Rules, error) {
	switch name {
	case "", PresetManual2020:
		return DefaultRules(), nil
	case PresetLegacy:
		return LegacyRules(), nil
	}
	return Rules{}, fmt.Errorf("%w: preset %q", ErrUnknownRule, name)
}

// Option overrides part of the rule table.
type Option func(*Rules)

// WithPointValues overrides point values by key. Unknown keys and negative
// values are ignored here; use ValidateTables to reject them up front.
func WithPointValues(points map[string]float64) Option {
	return func(r *Rules) {
		for key, value := range points {
			if ptr := r.pointField(key); ptr != nil && value >= 0 {
				*ptr = value
			}
		}
	}
}

// WithThresholds overrides rank-point thresholds by key.
func WithThresholds(thresholds map[string]float64) Option {
	return func(r *Rules) {
		for key, value := range thresholds {
			if ptr := r.thresholdField(key); ptr != nil && value >= 0 {
				*ptr = value
			}
		}
	}
}

// NewRules builds a rule table from the defaults and opts.
func NewRules(opts ...Option) Rules {
	return DefaultRules().With(opts...)
}

// With returns a copy of r adjusted by opts.
func (r Rules) With(opts ...Option) Rules {
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// ValidateTables reports unknown keys and invalid values in configured tables.
func ValidateTables(points, thresholds map[string]float64) error {
	var table Rules
	for _, key := range sortedKeys(points) {
		if table.pointField(key) == nil {
			return fmt.Errorf("%w: point value %q", ErrUnknownRule, key)
		}
		if err := checkValue(key, points[key]); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(thresholds) {
		if table.thresholdField(key) == nil {
			return fmt.Errorf("%w: threshold %q", ErrUnknownRule, key)
		}
		if err := checkValue(key, thresholds[key]); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(key string, value float64) error {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %q must be a finite non-negative number, got %v", ErrInvalidRule, key, value)
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Rules) pointField(key string) *float64 {
	switch key {
	case PointAutoBallsLow:
		return &r.AutoBallsLow
	case PointAutoBallsOuter:
		return &r.AutoBallsOuter
	case PointAutoBallsInner:
		return &r.AutoBallsInner
	case PointTeleBallsLow:
		return &r.TeleBallsLow
	case PointTeleBallsOuter:
		return &r.TeleBallsOuter
	case PointTeleBallsInner:
		return &r.TeleBallsInner
	case PointAutoLine:
		return &r.AutoLine
	case PointRotation:
		return &r.Rotation
	case PointPosition:
		return &r.Position
	case PointClimb:
		return &r.Climb
	case PointPark:
		return &r.Park
	}
	return nil
}

func (r *Rules) thresholdField(key string) *float64 {
	switch key {
	case ThresholdClimbRP:
		return &r.ClimbRPThreshold
	case ThresholdStageRP:
		return &r.StageRPThreshold
	}
	return nil
}
