package scoring

import "errors"

// Sentinel errors returned by the scoring pipeline.
var (
	ErrMissingTeamAggregate = errors.New("missing team aggregate")
	ErrMissingZoneSplit     = errors.New("missing team zone split")
	ErrNoMatchesPlayed      = errors.New("team has no matches played")
	ErrUnknownRule          = errors.New("unknown game rule")
	ErrInvalidRule          = errors.New("invalid game rule value")
)
