package model

import (
	"fmt"
	"strings"
)

// AllianceSize is the number of teams on one alliance.
const AllianceSize = 3

// Alliance color tags as stored in the match schedule.
const (
	AllianceRed  = "R"
	AllianceBlue = "B"
)

// AllianceComposition identifies one alliance in one match.
type AllianceComposition struct {
	MatchNumber   int    `bson:"match_number" json:"match_number"`
	AllianceColor string `bson:"alliance_color" json:"alliance_color"`
	TeamList      []int  `bson:"team_list" json:"team_list"`
}

// IsRed resolves the color tag. Lowercase and spelled-out tags are accepted.
func (a AllianceComposition) IsRed() (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(a.AllianceColor)) {
	case AllianceRed, "RED":
		return true, nil
	case AllianceBlue, "BLUE":
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown alliance color %q", ErrMalformedAlliance, a.AllianceColor)
	}
}

// Validate reports whether the descriptor is fully specified.
func (a AllianceComposition) Validate() error {
	if a.MatchNumber <= 0 {
		return fmt.Errorf("%w: match number %d", ErrMalformedAlliance, a.MatchNumber)
	}
	if _, err := a.IsRed(); err != nil {
		return err
	}
	if len(a.TeamList) != AllianceSize {
		return fmt.Errorf("%w: expected %d teams, got %d", ErrMalformedAlliance, AllianceSize, len(a.TeamList))
	}
	seen := make(map[int]struct{}, AllianceSize)
	for _, team := range a.TeamList {
		if team <= 0 {
			return fmt.Errorf("%w: team number %d", ErrMalformedAlliance, team)
		}
		if _, dup := seen[team]; dup {
			return fmt.Errorf("%w: team %d listed twice", ErrMalformedAlliance, team)
		}
		seen[team] = struct{}{}
	}
	return nil
}
