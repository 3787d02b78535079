// Package predictedaim implements the alliance score predictor: for every
// scheduled alliance it folds the three teams' aggregates into a predicted
// score and rank points and upserts one record per (match, color).
package predictedaim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/citruscircuits/calcserver/internal/adapters/repository"
	"github.com/citruscircuits/calcserver/internal/domain/model"
	"github.com/citruscircuits/calcserver/internal/domain/scoring"
	"github.com/citruscircuits/calcserver/pkg/logger"
	"github.com/citruscircuits/calcserver/pkg/metrics"
)

// Name identifies the predictor in the calculation registry.
const Name = "predicted_aim"

// Store is the part of the document store the predictor uses.
type Store interface {
	Find(ctx context.Context, collection string, filter repository.Filter, out any) error
	UpdateDocument(ctx context.Context, collection string, doc any, query repository.Filter) error
}

// Predictor is the alliance score calculator.
type Predictor struct {
	store              Store
	source             AllianceSource
	scheduleCollection string
	pipeline           *scoring.Pipeline
	log                logger.Logger
}

// New creates a predictor reading from and writing to store.
func New(store Store, opts ...Option) *Predictor {
	p := &Predictor{
		store:              store,
		scheduleCollection: DefaultScheduleCollection,
		pipeline:           scoring.NewPipeline(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.source == nil {
		p.source = NewScheduleSource(store, p.scheduleCollection)
	}
	if p.log == nil {
		p.log = logger.Get().Named(Name)
	}
	return p
}

// Name implements calculation.Calculator.
func (p *Predictor) Name() string { return Name }

// WatchedCollections implements calculation.Calculator.
func (p *Predictor) WatchedCollections() []string {
	return []string{model.CollectionTeamAggregates, model.CollectionTeamZoneSplits}
}

// Run predicts every scheduled alliance and upserts the results.
//
// Alliances that are malformed or reference unknown teams are logged and
// skipped. A failure reading the sources is logged and nothing is written.
// Only write failures are returned, joined, after every result was attempted.
func (p *Predictor) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.log.With(logger.String("run_id", runID))
	start := time.Now()

	aims, undecodable, aggregates, splits, err := p.load(ctx, log)
	if err != nil {
		metrics.RecordAllianceFailure(ClassStoreRead)
		log.Error(ctx, "skipping run, sources unreadable", logger.Error(err))
		return nil
	}

	results, failures := p.UpdatePredictedAim(aims, aggregates, splits)
	failures = append(undecodable, failures...)
	for _, f := range failures {
		metrics.RecordAllianceFailure(f.Class)
		log.Warn(ctx, "skipping alliance",
			logger.Int("match_number", f.MatchNumber),
			logger.String("alliance_color", f.AllianceColor),
			logger.String("class", f.Class),
			logger.Error(f.Err),
		)
	}

	var writeErrs []error
	for _, aim := range results {
		if err := p.store.UpdateDocument(ctx, model.CollectionPredictedAim, aim, aim.KeyFilter()); err != nil {
			log.Error(ctx, "failed to write prediction",
				logger.Int("match_number", aim.MatchNumber),
				logger.Bool("alliance_color_is_red", aim.AllianceColorIsRed),
				logger.Error(err),
			)
			writeErrs = append(writeErrs, fmt.Errorf("write match %d red=%t: %w", aim.MatchNumber, aim.AllianceColorIsRed, err))
			continue
		}
		metrics.RecordPredictionWritten()
	}

	log.Info(ctx, "predicted alliances",
		logger.Int("alliances", len(aims)+len(undecodable)),
		logger.Int("written", len(results)-len(writeErrs)),
		logger.Int("skipped", len(failures)),
		logger.Int("write_errors", len(writeErrs)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return errors.Join(writeErrs...)
}

// UpdatePredictedAim predicts every alliance in aims. Results keep the input
// order; alliances that cannot be predicted are returned as failures instead.
func (p *Predictor) UpdatePredictedAim(
	aims []model.AllianceComposition,
	aggregates map[int]model.TeamAggregate,
	splits map[int]model.TeamZoneSplit,
) ([]model.PredictedAim, []*AllianceError) {
	results := make([]model.PredictedAim, 0, len(aims))
	var failures []*AllianceError
	for _, aim := range aims {
		result, err := p.predict(aim, aggregates, splits)
		if err != nil {
			failures = append(failures, newAllianceError(aim, err))
			continue
		}
		results = append(results, result)
	}
	return results, failures
}

func (p *Predictor) predict(
	aim model.AllianceComposition,
	aggregates map[int]model.TeamAggregate,
	splits map[int]model.TeamZoneSplit,
) (model.PredictedAim, error) {
	if err := aim.Validate(); err != nil {
		return model.PredictedAim{}, err
	}
	isRed, err := aim.IsRed()
	if err != nil {
		return model.PredictedAim{}, err
	}

	var acc scoring.PredictedAimScores
	score, err := p.pipeline.CalculatePredictedAllianceScore(&acc, aggregates, splits, aim.TeamList)
	if err != nil {
		return model.PredictedAim{}, err
	}
	return model.PredictedAim{
		MatchNumber:        aim.MatchNumber,
		AllianceColorIsRed: isRed,
		PredictedScore:     score,
		PredictedRP1:       p.pipeline.CalculatePredictedClimbRP(&acc),
		PredictedRP2:       p.pipeline.CalculatePredictedStageRP(&acc),
	}, nil
}

// load reads the alliance list and both team collections concurrently.
// Schedule documents that do not decode come back as failures; team rows
// that do not decode are dropped so only the alliances using them fail.
func (p *Predictor) load(ctx context.Context, log logger.Logger) (
	[]model.AllianceComposition, []*AllianceError,
	map[int]model.TeamAggregate, map[int]model.TeamZoneSplit, error,
) {
	var (
		aims        []model.AllianceComposition
		undecodable []*AllianceError
		aggDocs     []bson.Raw
		splitDocs   []bson.Raw
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		aims, undecodable, err = p.source.Alliances(gctx)
		if err != nil {
			return fmt.Errorf("%w: alliances: %w", ErrSourceRead, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.store.Find(gctx, model.CollectionTeamAggregates, nil, &aggDocs); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSourceRead, model.CollectionTeamAggregates, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := p.store.Find(gctx, model.CollectionTeamZoneSplits, nil, &splitDocs); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSourceRead, model.CollectionTeamZoneSplits, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, nil, err
	}

	aggs, badAggs := decodeRows[model.TeamAggregate](model.CollectionTeamAggregates, aggDocs)
	split, badSplits := decodeRows[model.TeamZoneSplit](model.CollectionTeamZoneSplits, splitDocs)
	for _, bad := range append(badAggs, badSplits...) {
		log.Warn(ctx, "dropping undecodable team row",
			logger.String("collection", bad.Collection),
			logger.Int("index", bad.Index),
			logger.Int("team_number", bad.TeamNumber),
			logger.Error(bad.Err),
		)
	}

	// Later rows for the same team win.
	aggregates := make(map[int]model.TeamAggregate, len(aggs))
	for _, a := range aggs {
		aggregates[a.TeamNumber] = a
	}
	splits := make(map[int]model.TeamZoneSplit, len(split))
	for _, s := range split {
		splits[s.TeamNumber] = s
	}
	return aims, undecodable, aggregates, splits, nil
}
