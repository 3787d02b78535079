package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/citruscircuits/calcserver/internal/adapters/repository"
	service "github.com/citruscircuits/calcserver/internal/app"
	"github.com/citruscircuits/calcserver/internal/domain/calculation"
	"github.com/citruscircuits/calcserver/internal/domain/model"
	"github.com/citruscircuits/calcserver/internal/domain/predictedaim"
	"github.com/citruscircuits/calcserver/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func seedCompetition(ctx context.Context, store *repository.MemoryStore) {
	So(store.InsertDocuments(ctx, model.CollectionTeamAggregates, []any{
		model.TeamAggregate{TeamNumber: 1678, AutoAvgBallsLow: 4.5, AutoAvgBallsHigh: 6.7, TeleAvgBallsLow: 3.3, TeleAvgBallsHigh: 20.8, TeleCPRotationSuccesses: 3, TeleCPPositionSuccesses: 1, MatchesPlayed: 8},
		model.TeamAggregate{TeamNumber: 1533, AutoAvgBallsLow: 9.7, AutoAvgBallsHigh: 5.9, TeleAvgBallsLow: 2.7, TeleAvgBallsHigh: 21.5, TeleCPRotationSuccesses: 1, MatchesPlayed: 7},
		model.TeamAggregate{TeamNumber: 7229, AutoAvgBallsLow: 8.5, AutoAvgBallsHigh: 7.1, TeleAvgBallsLow: 3.8, TeleAvgBallsHigh: 16.4, MatchesPlayed: 7},
	}), ShouldBeNil)
	So(store.InsertDocuments(ctx, model.CollectionTeamZoneSplits, []any{
		model.TeamZoneSplit{TeamNumber: 1678, AutoHighBallsPercentInner: 0.4, TeleHighBallsPercentInner: 0.6, ClimbAllSuccesses: 7, ParkSuccesses: 1, AutoLineSuccesses: 8},
		model.TeamZoneSplit{TeamNumber: 1533, AutoHighBallsPercentInner: 0.3, TeleHighBallsPercentInner: 0.7, ClimbAllSuccesses: 4, ParkSuccesses: 2, AutoLineSuccesses: 7},
		model.TeamZoneSplit{TeamNumber: 7229, AutoHighBallsPercentInner: 0.1, TeleHighBallsPercentInner: 0.9, ClimbAllSuccesses: 2, ParkSuccesses: 5, AutoLineSuccesses: 5},
	}), ShouldBeNil)
	So(store.InsertDocuments(ctx, predictedaim.DefaultScheduleCollection, []any{
		model.AllianceComposition{MatchNumber: 1, AllianceColor: "B", TeamList: []int{7229, 1533, 1678}},
		model.AllianceComposition{MatchNumber: 1, AllianceColor: "R", TeamList: []int{1678, 1533, 7229}},
	}), ShouldBeNil)
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service hosting the alliance predictor over a seeded store", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store := repository.NewMemoryStore()
		seedCompetition(ctx, store)
		predictor := predictedaim.New(store, predictedaim.WithLogger(logger.New(&bytes.Buffer{})))
		registry, err := calculation.NewRegistry(predictor)
		So(err, ShouldBeNil)

		svc := service.New(store, registry, service.WithWorkerCount(2), service.WithQueueSize(16))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		expected := []model.PredictedAim{
			{MatchNumber: 1, AllianceColorIsRed: true, PredictedScore: 396.51, PredictedRP1: 0, PredictedRP2: 1},
			{MatchNumber: 1, AllianceColorIsRed: false, PredictedScore: 396.51, PredictedRP1: 0, PredictedRP2: 1},
		}

		Convey("When a watched collection changes", func() {
			res, err := svc.Notify(ctx, "obj_team")
			So(err, ShouldBeNil)
			So(res.Scheduled, ShouldResemble, []string{"predicted_aim"})

			Convey("Then the worker pool materializes one record per alliance", func() {
				deadline := time.Now().Add(5 * time.Second)
				for store.Count(model.CollectionPredictedAim) < 2 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				aims, err := svc.PredictedAims(ctx, 1)
				So(err, ShouldBeNil)
				So(aims, ShouldResemble, expected)
			})
		})

		Convey("When runs are requested on demand repeatedly", func() {
			So(svc.RunNow(ctx, predictedaim.Name), ShouldBeNil)
			So(svc.RunAll(ctx), ShouldBeNil)

			Convey("Then records are rewritten in place", func() {
				So(store.Count(model.CollectionPredictedAim), ShouldEqual, 2)
				aims, err := svc.PredictedAims(ctx, 0)
				So(err, ShouldBeNil)
				So(aims, ShouldResemble, expected)

				none, err := svc.PredictedAims(ctx, 2)
				So(err, ShouldBeNil)
				So(none, ShouldBeEmpty)
			})
		})
	})
}
