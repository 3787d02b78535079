package calculation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/citruscircuits/calcserver/internal/domain/calculation"
	. "github.com/smartystreets/goconvey/convey"
)

type stubCalculator struct {
	name    string
	watched []string
}

func (s stubCalculator) Name() string                 { return s.name }
func (s stubCalculator) WatchedCollections() []string { return s.watched }
func (s stubCalculator) Run(context.Context) error    { return nil }

func TestRegistry(t *testing.T) {
	Convey("Given a registry with two calculators", t, func() {
		aim := stubCalculator{name: "predicted_aim", watched: []string{"obj_team", "tba_team"}}
		pickability := stubCalculator{name: "pickability", watched: []string{"obj_team"}}
		r, err := calculation.NewRegistry(aim, pickability)
		So(err, ShouldBeNil)

		Convey("Names keep registration order", func() {
			So(r.Names(), ShouldResemble, []string{"predicted_aim", "pickability"})
		})

		Convey("Get finds registered calculators", func() {
			c, err := r.Get("pickability")
			So(err, ShouldBeNil)
			So(c.Name(), ShouldEqual, "pickability")

			_, err = r.Get("missing")
			So(errors.Is(err, calculation.ErrUnknownCalculator), ShouldBeTrue)
		})

		Convey("Watching selects calculators by source collection", func() {
			So(len(r.Watching("obj_team")), ShouldEqual, 2)
			watching := r.Watching("tba_team")
			So(len(watching), ShouldEqual, 1)
			So(watching[0].Name(), ShouldEqual, "predicted_aim")
			So(r.Watching("raw_qr"), ShouldBeEmpty)
		})

		Convey("Duplicate and empty registrations are rejected", func() {
			So(errors.Is(r.Register(aim), calculation.ErrDuplicateCalculator), ShouldBeTrue)
			So(errors.Is(r.Register(stubCalculator{name: "x"}), calculation.ErrInvalidCalculator), ShouldBeTrue)
			So(errors.Is(r.Register(stubCalculator{watched: []string{"a"}}), calculation.ErrInvalidCalculator), ShouldBeTrue)
			So(errors.Is(r.Register(nil), calculation.ErrInvalidCalculator), ShouldBeTrue)
		})
	})
}
