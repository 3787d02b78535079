package model

// CollectionPredictedAim holds one predicted record per (match, alliance color).
const CollectionPredictedAim = "predicted_aim"

// Field names forming the derived-record key.
const (
	FieldMatchNumber        = "match_number"
	FieldAllianceColorIsRed = "alliance_color_is_red"
)

// PredictedAim is the derived record written by the alliance predictor.
// RP1 is the climb rank point, RP2 the control-panel stage rank point.
type PredictedAim struct {
	MatchNumber        int     `bson:"match_number" json:"match_number"`
	AllianceColorIsRed bool    `bson:"alliance_color_is_red" json:"alliance_color_is_red"`
	PredictedScore     float64 `bson:"predicted_score" json:"predicted_score"`
	PredictedRP1       int     `bson:"predicted_rp1" json:"predicted_rp1"`
	PredictedRP2       int     `bson:"predicted_rp2" json:"predicted_rp2"`
}

// AimKey is the identity of a PredictedAim.
type AimKey struct {
	MatchNumber        int
	AllianceColorIsRed bool
}

// Key returns the record identity.
func (p PredictedAim) Key() AimKey {
	return AimKey{MatchNumber: p.MatchNumber, AllianceColorIsRed: p.AllianceColorIsRed}
}

// KeyFilter returns the store query selecting this record's key.
func (p PredictedAim) KeyFilter() map[string]any {
	return map[string]any{
		FieldMatchNumber:        p.MatchNumber,
		FieldAllianceColorIsRed: p.AllianceColorIsRed,
	}
}
