// Package scoring turns a property's distress signals into a base score and
// lane, and decays that score by contact history.
package scoring

import (
	"math"

	"github.com/realestateinvestorceo/FirstPulse1.2/internal/model"
)

// PointsScale converts an effective score into allocation points.
const PointsScale = 100.0

// DecayFactor halves the score on every touch.
const DecayFactor = 0.5

// Catalog resolves active signals by key.
type Catalog interface {
	Lookup(key string) (model.Signal, bool)
}

// Result is the outcome of scoring one signal set.
type Result struct {
	BaseScore float64
	Lane      model.Lane
	// Matched lists the recognised signals in input order, deduplicated.
	Matched []model.Signal
}

// Score sums the weights of the recognised signals and picks the most urgent
// lane among them. Unknown, inactive and repeated keys contribute nothing.
// With no recognised signal the result is a zero score in the Nurture lane.
func Score(keys []string, cat Catalog) Result {
	res := Result{Lane: model.LaneNurture}
	seen := make(map[string]struct{}, len(keys))
	rank := model.LaneNurture.Rank()
	for _, k := range keys {
		sig, ok := cat.Lookup(k)
		if !ok {
			continue
		}
		if _, dup := seen[sig.Key]; dup {
			continue
		}
		seen[sig.Key] = struct{}{}
		res.BaseScore += sig.ConversionRate
		res.Matched = append(res.Matched, sig)
		if r := sig.DefaultLane.Rank(); r < rank {
			rank = r
			res.Lane = sig.DefaultLane
		}
	}
	return res
}

// Decay returns the effective score and allocation points after touches.
func Decay(base float64, touches int) (effective, points float64) {
	if touches < 0 {
		touches = 0
	}
	effective = base * math.Pow(DecayFactor, float64(touches))
	return effective, effective * PointsScale
}

// Apply writes res into e and recomputes the decayed fields from the
// current touch count.
func Apply(e *model.TrackingEntity, res Result) {
	e.BaseScore = res.BaseScore
	e.Lane = res.Lane
	Redecay(e)
}

// Redecay recomputes the decayed fields of e from its base score.
func Redecay(e *model.TrackingEntity) {
	e.EffectiveScore, e.FinalAllocationPoints = Decay(e.BaseScore, e.TouchCount)
}

// DisplayNames returns the display names of sigs, falling back to keys.
func DisplayNames(sigs []model.Signal) []string {
	out := make([]string, 0, len(sigs))
	for _, s := range sigs {
		if s.DisplayName != "" {
			out = append(out, s.DisplayName)
			continue
		}
		out = append(out, s.Key)
	}
	return out
}
