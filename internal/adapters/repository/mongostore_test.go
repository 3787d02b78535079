package repository_test

import (
	"bytes"
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/citruscircuits/calcserver/internal/adapters/repository"
	"github.com/citruscircuits/calcserver/internal/domain/model"
	"github.com/citruscircuits/calcserver/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func mockStore(mt *mtest.T, logs *bytes.Buffer) *repository.MongoStore {
	return repository.NewMongoStore(mt.Client, "calc_test", repository.WithLogger(logger.New(logs)))
}

func upsertedResponse() bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: 1},
		bson.E{Key: "nModified", Value: 0},
		bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "aim-1-red"}}}},
	)
}

func replacedResponse() bson.D {
	return mtest.CreateSuccessResponse(
		bson.E{Key: "n", Value: 1},
		bson.E{Key: "nModified", Value: 1},
	)
}

// updateStatement returns the single statement of a started update command.
func updateStatement(mt *mtest.T) bson.Raw {
	ev := mt.GetStartedEvent()
	So(ev, ShouldNotBeNil)
	So(ev.CommandName, ShouldEqual, "update")
	values, err := ev.Command.Lookup("updates").Array().Values()
	So(err, ShouldBeNil)
	So(len(values), ShouldEqual, 1)
	return values[0].Document()
}

func TestMongoStore_UpdateDocument(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	aim := model.PredictedAim{MatchNumber: 1, AllianceColorIsRed: true, PredictedScore: 396.51, PredictedRP2: 1}

	mt.Run("upsert inserts a missing key", func(mt *mtest.T) {
		Convey("Given a store with no record for the key", mt.T, func() {
			var logs bytes.Buffer
			s := mockStore(mt, &logs)
			mt.AddMockResponses(upsertedResponse())

			So(s.UpdateDocument(context.Background(), model.CollectionPredictedAim, aim, aim.KeyFilter()), ShouldBeNil)

			stmt := updateStatement(mt)
			So(stmt.Lookup("upsert").Boolean(), ShouldBeTrue)
			So(stmt.Lookup("q", model.FieldMatchNumber).AsInt64(), ShouldEqual, 1)
			So(stmt.Lookup("u", "predicted_score").Double(), ShouldEqual, 396.51)
			So(mt.GetStartedEvent(), ShouldBeNil)
		})
	})

	mt.Run("upsert replaces an existing key", func(mt *mtest.T) {
		Convey("Given a store already holding the key", mt.T, func() {
			var logs bytes.Buffer
			s := mockStore(mt, &logs)
			mt.AddMockResponses(replacedResponse())
			updated := aim
			updated.PredictedScore = 400

			So(s.UpdateDocument(context.Background(), model.CollectionPredictedAim, updated, updated.KeyFilter()), ShouldBeNil)

			stmt := updateStatement(mt)
			So(stmt.Lookup("u", "predicted_score").Double(), ShouldEqual, 400)
			So(mt.GetStartedEvent(), ShouldBeNil)
		})
	})

	mt.Run("duplicate key on the first attempt is retried once", func(mt *mtest.T) {
		Convey("Given a concurrent writer winning the unique index", mt.T, func() {
			var logs bytes.Buffer
			s := mockStore(mt, &logs)
			mt.AddMockResponses(
				mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
				replacedResponse(),
			)

			So(s.UpdateDocument(context.Background(), model.CollectionPredictedAim, aim, aim.KeyFilter()), ShouldBeNil)

			updateStatement(mt)
			updateStatement(mt)
			So(mt.GetStartedEvent(), ShouldBeNil)
		})
	})

	mt.Run("a second duplicate key is returned", func(mt *mtest.T) {
		Convey("Given the retry also hitting the unique index", mt.T, func() {
			var logs bytes.Buffer
			s := mockStore(mt, &logs)
			dup := mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"})
			mt.AddMockResponses(dup, dup)

			err := s.UpdateDocument(context.Background(), model.CollectionPredictedAim, aim, aim.KeyFilter())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "upsert into predicted_aim")

			updateStatement(mt)
			updateStatement(mt)
			So(mt.GetStartedEvent(), ShouldBeNil)
		})
	})
}

func TestMongoStore_NilFilter(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find sends an empty filter", func(mt *mtest.T) {
		Convey("Given a find with no filter", mt.T, func() {
			var logs bytes.Buffer
			s := mockStore(mt, &logs)
			mt.AddMockResponses(mtest.CreateCursorResponse(0, "calc_test.obj_team", mtest.FirstBatch,
				bson.D{{Key: "team_number", Value: 1678}, {Key: "matches_played", Value: 8}},
				bson.D{{Key: "team_number", Value: 1533}, {Key: "matches_played", Value: 7}},
			))

			var out []model.TeamAggregate
			So(s.Find(context.Background(), model.CollectionTeamAggregates, nil, &out), ShouldBeNil)
			So(len(out), ShouldEqual, 2)
			So(out[0].TeamNumber, ShouldEqual, 1678)
			So(out[1].MatchesPlayed, ShouldEqual, 7)

			ev := mt.GetStartedEvent()
			So(ev.CommandName, ShouldEqual, "find")
			So(ev.Command.Lookup("find").StringValue(), ShouldEqual, "obj_team")
			So(ev.Command.Lookup("filter").Document().String(), ShouldEqual, "{}")
		})
	})

	mt.Run("delete sends an empty filter", func(mt *mtest.T) {
		Convey("Given a delete with no filter", mt.T, func() {
			var logs bytes.Buffer
			s := mockStore(mt, &logs)
			mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

			So(s.DeleteData(context.Background(), model.CollectionPredictedAim, nil), ShouldBeNil)

			ev := mt.GetStartedEvent()
			So(ev.CommandName, ShouldEqual, "delete")
			values, err := ev.Command.Lookup("deletes").Array().Values()
			So(err, ShouldBeNil)
			So(values[0].Document().Lookup("q").Document().String(), ShouldEqual, "{}")
		})
	})
}
