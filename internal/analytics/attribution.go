package analytics

import (
	"fmt"
	"math"

	"github.com/promopulse/promopulse/internal/models"
)

// TimeDecayConstant is the per-step decay applied to older touchpoints
// under the time_decay model. Position-based rather than wall-clock-based:
// the weight of the touchpoint at position i (0-indexed from oldest) is
// decay^(n-i-1) before normalization, which keeps the model insensitive to
// irregular gaps between touchpoints.
const TimeDecayConstant = 0.7

// AttributionEngine distributes conversion credit across a touchpoint
// journey. It is a pure function over its inputs: no state, no side
// effects, and it never errors on well-formed sorted input.
type AttributionEngine struct{}

// NewAttributionEngine constructs an AttributionEngine.
func NewAttributionEngine() *AttributionEngine {
	return &AttributionEngine{}
}

// Attribute computes the normalized credit weights for a journey under one
// model. Touchpoints must already be sorted ascending by timestamp; the
// engine asserts the ordering and rejects unsorted input rather than
// silently producing wrong weights. An empty journey yields an empty
// result.
func (e *AttributionEngine) Attribute(touchpoints []*models.Touchpoint, model models.AttributionModel) ([]models.AttributionResult, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: unsupported attribution model %q", ErrInvalidFilter, model)
	}
	if err := assertSorted(touchpoints); err != nil {
		return nil, err
	}

	n := len(touchpoints)
	if n == 0 {
		return []models.AttributionResult{}, nil
	}

	weights := make([]float64, n)
	switch model {
	case models.ModelFirstTouch:
		weights[0] = 1.0
	case models.ModelLastTouch:
		weights[n-1] = 1.0
	case models.ModelLinear:
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
	case models.ModelTimeDecay:
		var sum float64
		for i := range weights {
			weights[i] = math.Pow(TimeDecayConstant, float64(n-i-1))
			sum += weights[i]
		}
		for i := range weights {
			weights[i] /= sum
		}
	}

	results := make([]models.AttributionResult, n)
	for i, tp := range touchpoints {
		results[i] = models.AttributionResult{
			TouchpointID: tp.ID,
			CampaignID:   tp.CampaignID,
			Channel:      tp.Channel,
			Model:        model,
			Weight:       weights[i],
		}
	}
	return results, nil
}

// AttributeAll runs every supported model over the same journey, used to
// compare how credit shifts between models.
func (e *AttributionEngine) AttributeAll(touchpoints []*models.Touchpoint) (map[models.AttributionModel][]models.AttributionResult, error) {
	if err := assertSorted(touchpoints); err != nil {
		return nil, err
	}

	out := make(map[models.AttributionModel][]models.AttributionResult, len(models.AllAttributionModels))
	for _, m := range models.AllAttributionModels {
		results, err := e.Attribute(touchpoints, m)
		if err != nil {
			return nil, err
		}
		out[m] = results
	}
	return out, nil
}

// ModelComparator ranks one model's results against another's; it returns
// true when a should win over b. Callers supply their own tie-break policy.
type ModelComparator func(a, b []models.AttributionResult) bool

// MaxConcentration is the default comparator: the model whose largest
// single weight is highest wins, which favors decisive attributions.
func MaxConcentration(a, b []models.AttributionResult) bool {
	return maxWeight(a) > maxWeight(b)
}

func maxWeight(results []models.AttributionResult) float64 {
	var max float64
	for _, r := range results {
		if r.Weight > max {
			max = r.Weight
		}
	}
	return max
}

// Compare runs all models and picks a winner using the supplied comparator
// (MaxConcentration when nil). Models are evaluated in a fixed order so the
// choice is deterministic.
func (e *AttributionEngine) Compare(touchpoints []*models.Touchpoint, cmp ModelComparator) (models.AttributionModel, map[models.AttributionModel][]models.AttributionResult, error) {
	all, err := e.AttributeAll(touchpoints)
	if err != nil {
		return "", nil, err
	}
	if cmp == nil {
		cmp = MaxConcentration
	}

	winner := models.AllAttributionModels[0]
	for _, m := range models.AllAttributionModels[1:] {
		if cmp(all[m], all[winner]) {
			winner = m
		}
	}
	return winner, all, nil
}

func assertSorted(touchpoints []*models.Touchpoint) error {
	for i := 1; i < len(touchpoints); i++ {
		if touchpoints[i].Timestamp.Before(touchpoints[i-1].Timestamp) {
			return fmt.Errorf("%w: touchpoints are not sorted ascending by timestamp", ErrInvalidFilter)
		}
	}
	return nil
}
