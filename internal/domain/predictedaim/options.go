package predictedaim

import (
	"github.com/citruscircuits/calcserver/internal/domain/scoring"
	"github.com/citruscircuits/calcserver/pkg/logger"
)

// Option applies a configuration option to the Predictor.
type Option func(*Predictor)

// WithLogger sets the logger that receives per-alliance failures.
func WithLogger(l logger.Logger) Option {
	return func(p *Predictor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithAllianceSource replaces the schedule collection as the alliance list.
func WithAllianceSource(src AllianceSource) Option {
	return func(p *Predictor) {
		if src != nil {
			p.source = src
		}
	}
}

// WithScheduleCollection reads alliances from the named collection.
func WithScheduleCollection(collection string) Option {
	return func(p *Predictor) {
		p.scheduleCollection = collection
	}
}

// WithPipeline sets the scoring pipeline, and with it the game rules.
func WithPipeline(pipeline *scoring.Pipeline) Option {
	return func(p *Predictor) {
		if pipeline != nil {
			p.pipeline = pipeline
		}
	}
}
