package predictedaim

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/citruscircuits/calcserver/internal/domain/model"
)

// DefaultScheduleCollection holds one AllianceComposition per alliance to predict.
const DefaultScheduleCollection = "match_schedule"

// AllianceSource lists the alliances that need a prediction. Entries that
// cannot be read as alliances are returned as failures, not as an error.
type AllianceSource interface {
	Alliances(ctx context.Context) ([]model.AllianceComposition, []*AllianceError, error)
}

// AllianceSourceFunc adapts a function returning decoded alliances to AllianceSource.
type AllianceSourceFunc func(ctx context.Context) ([]model.AllianceComposition, error)

// Alliances implements AllianceSource.
func (f AllianceSourceFunc) Alliances(ctx context.Context) ([]model.AllianceComposition, []*AllianceError, error) {
	aims, err := f(ctx)
	return aims, nil, err
}

// ScheduleSource reads every alliance from a schedule collection.
type ScheduleSource struct {
	store      Store
	collection string
}

// NewScheduleSource reads alliances from collection in store.
func NewScheduleSource(store Store, collection string) *ScheduleSource {
	if collection == "" {
		collection = DefaultScheduleCollection
	}
	return &ScheduleSource{store: store, collection: collection}
}

// Alliances implements AllianceSource.
func (s *ScheduleSource) Alliances(ctx context.Context) ([]model.AllianceComposition, []*AllianceError, error) {
	var docs []bson.Raw
	if err := s.store.Find(ctx, s.collection, nil, &docs); err != nil {
		return nil, nil, err
	}
	aims, bad := decodeAlliances(docs)
	return aims, bad, nil
}
