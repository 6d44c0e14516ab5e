package classifier

import (
	"fmt"
	"math"

	"github.com/brixfix/brixfix-go/internal/detection"
)

// scoreTolerance absorbs float32 rounding in softmax outputs.
const scoreTolerance = 1e-4

// argmax returns the index of the highest score. Ties go to the lowest index.
func argmax(scores []float32) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// toResult maps a raw score vector to a labelled result.
func toResult(scores []float32) (detection.Result, error) {
	if len(scores) != len(detection.Labels) {
		return detection.Result{}, inferenceError(
			fmt.Errorf("model returned %d scores, want %d", len(scores), len(detection.Labels)))
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return detection.Result{}, inferenceError(fmt.Errorf("score %d is not finite", i))
		}
	}

	idx := argmax(scores)
	// confidence must stay within [0, 100]; logits or unnormalized outputs are a model fault
	if top := scores[idx]; top < -scoreTolerance || top > 1+scoreTolerance {
		return detection.Result{}, inferenceError(
			fmt.Errorf("score %d is %g, want a probability in [0, 1]", idx, top))
	}
	label, _ := detection.FromIndex(idx)

	out := make([]float32, len(scores))
	copy(out, scores)

	return detection.Result{
		Label:      label,
		Confidence: math.Min(math.Max(float64(scores[idx]), 0), 1) * 100,
		Scores:     out,
	}, nil
}
