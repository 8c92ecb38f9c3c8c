package reasoning

// Factor weights for the overall confidence score. They sum to 1.0.
const (
	weightCoverage    = 0.30
	weightReasoning   = 0.25
	weightReliability = 0.20
	weightConsistency = 0.15
	weightCertainty   = 0.10

	confidenceFloor   = 0.10
	confidenceCeiling = 0.95
)

// CalculateConfidence folds the chain's evidence quality into a single score,
// clamped to [0.10, 0.95]. The same chain always yields the same score.
func CalculateConfidence(chain *Chain) float64 {
	coverage := chain.Coverage

	strong := 0
	for _, s := range chain.Steps {
		if s.Confidence >= 0.5 {
			strong++
		}
	}
	reasoning := 0.0
	if len(chain.Steps) > 0 {
		reasoning = float64(strong) / float64(len(chain.Steps))
	}

	reliability := 0.0
	if len(chain.Citations) > 0 {
		sum := 0.0
		for _, c := range chain.Citations {
			sum += c.Quality
		}
		reliability = sum / float64(len(chain.Citations))
	}

	consistency := 0.3
	if chain.Validation.Passed {
		consistency = 1.0
	}

	certainty := 1.0
	if chain.NoEvidence {
		certainty = 0.0
	} else {
		for _, s := range chain.Steps {
			if s.NoEvidence {
				certainty = 0.0
				break
			}
		}
	}

	score := weightCoverage*coverage +
		weightReasoning*reasoning +
		weightReliability*reliability +
		weightConsistency*consistency +
		weightCertainty*certainty

	if score < confidenceFloor {
		return confidenceFloor
	}
	if score > confidenceCeiling {
		return confidenceCeiling
	}
	return score
}
