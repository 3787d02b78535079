package predictedaim

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/citruscircuits/calcserver/internal/domain/model"
)

// RowError describes a source document that could not be decoded.
type RowError struct {
	Collection string
	Index      int
	TeamNumber int // 0 when the document carries no readable team number
	Err        error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s document %d (team %d): %v", e.Collection, e.Index, e.TeamNumber, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// decodeRows decodes each document on its own so one bad row does not hide
// the rest of the collection.
func decodeRows[T any](collection string, docs []bson.Raw) ([]T, []*RowError) {
	rows := make([]T, 0, len(docs))
	var bad []*RowError
	for i, doc := range docs {
		var row T
		if err := bson.Unmarshal(doc, &row); err != nil {
			bad = append(bad, &RowError{
				Collection: collection,
				Index:      i,
				TeamNumber: intField(doc, "team_number"),
				Err:        err,
			})
			continue
		}
		rows = append(rows, row)
	}
	return rows, bad
}

// decodeAlliances decodes schedule documents. Undecodable documents become
// malformed-input failures keyed by whatever match and color they carry.
func decodeAlliances(docs []bson.Raw) ([]model.AllianceComposition, []*AllianceError) {
	aims := make([]model.AllianceComposition, 0, len(docs))
	var bad []*AllianceError
	for _, doc := range docs {
		var aim model.AllianceComposition
		if err := bson.Unmarshal(doc, &aim); err != nil {
			bad = append(bad, &AllianceError{
				MatchNumber:   intField(doc, model.FieldMatchNumber),
				AllianceColor: stringField(doc, "alliance_color"),
				Class:         ClassMalformedInput,
				Err:           fmt.Errorf("%w: %w", model.ErrMalformedAlliance, err),
			})
			continue
		}
		aims = append(aims, aim)
	}
	return aims, bad
}

func intField(doc bson.Raw, key string) int {
	v, err := doc.LookupErr(key)
	if err != nil {
		return 0
	}
	if n, ok := v.Int32OK(); ok {
		return int(n)
	}
	if n, ok := v.Int64OK(); ok {
		return int(n)
	}
	return 0
}

func stringField(doc bson.Raw, key string) string {
	v, err := doc.LookupErr(key)
	if err != nil {
		return ""
	}
	s, _ := v.StringValueOK()
	return s
}
