package predictedaim

import (
	"errors"
	"fmt"

	"github.com/citruscircuits/calcserver/internal/domain/model"
	"github.com/citruscircuits/calcserver/internal/domain/scoring"
)

// Failure classes for alliances skipped during a run.
const (
	ClassMissingDependency = "missing_dependency"
	ClassMalformedInput    = "malformed_input"
	ClassStoreRead         = "store_read"
)

// ErrSourceRead wraps failures reading the schedule or team collections.
var ErrSourceRead = errors.New("read prediction sources")

// AllianceError describes one alliance that could not be predicted.
type AllianceError struct {
	MatchNumber   int
	AllianceColor string
	Class         string
	Err           error
}

func (e *AllianceError) Error() string {
	return fmt.Sprintf("match %d alliance %q: %s: %v", e.MatchNumber, e.AllianceColor, e.Class, e.Err)
}

func (e *AllianceError) Unwrap() error { return e.Err }

func newAllianceError(aim model.AllianceComposition, err error) *AllianceError {
	return &AllianceError{
		MatchNumber:   aim.MatchNumber,
		AllianceColor: aim.AllianceColor,
		Class:         classify(err),
		Err:           err,
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, model.ErrMalformedAlliance):
		return ClassMalformedInput
	case errors.Is(err, scoring.ErrMissingTeamAggregate),
		errors.Is(err, scoring.ErrMissingZoneSplit),
		errors.Is(err, scoring.ErrNoMatchesPlayed):
		return ClassMissingDependency
	default:
		return ClassStoreRead
	}
}
