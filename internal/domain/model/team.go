// Package model contains the documents exchanged between the store and the calculators.
package model

// Source collections consumed by the alliance predictor.
const (
	CollectionTeamAggregates = "obj_team"
	CollectionTeamZoneSplits = "tba_team"
)

// TeamAggregate is one team's per-period scoring averages and control-panel
// history, maintained upstream from raw scouting observations.
type TeamAggregate struct {
	TeamNumber int `bson:"team_number" json:"team_number"`

	AutoAvgBallsLow  float64 `bson:"auto_avg_balls_low" json:"auto_avg_balls_low"`
	AutoAvgBallsHigh float64 `bson:"auto_avg_balls_high" json:"auto_avg_balls_high"`
	TeleAvgBallsLow  float64 `bson:"tele_avg_balls_low" json:"tele_avg_balls_low"`
	TeleAvgBallsHigh float64 `bson:"tele_avg_balls_high" json:"tele_avg_balls_high"`

	TeleCPRotationSuccesses int `bson:"tele_cp_rotation_successes" json:"tele_cp_rotation_successes"`
	TeleCPPositionSuccesses int `bson:"tele_cp_position_successes" json:"tele_cp_position_successes"`

	MatchesPlayed int `bson:"matches_played" json:"matches_played"`
}

// TeamZoneSplit carries the share of high goals landing in the inner port
// and the bonus-action success counts reported by the official event API.
type TeamZoneSplit struct {
	TeamNumber int `bson:"team_number" json:"team_number"`

	AutoHighBallsPercentInner float64 `bson:"auto_high_balls_percent_inner" json:"auto_high_balls_percent_inner"`
	TeleHighBallsPercentInner float64 `bson:"tele_high_balls_percent_inner" json:"tele_high_balls_percent_inner"`

	ClimbAllSuccesses int `bson:"climb_all_successes" json:"climb_all_successes"`
	ParkSuccesses     int `bson:"park_successes" json:"park_successes"`
	AutoLineSuccesses int `bson:"auto_line_successes" json:"auto_line_successes"`
}
