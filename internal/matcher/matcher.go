// Package matcher implements the hybrid face matching policy: a closed-set
// classifier agreement test combined with an open-set cosine distance test.
// All functions are pure; errors from embedding or classification belong to
// the caller.
package matcher

import "github.com/kozaktomas/face-sorter/internal/constants"

// ScoreThreshold is the minimum classifier decision score. A target scoring
// below it disables the classifier path for the whole run; a candidate
// scoring below it cannot match via label agreement.
const ScoreThreshold = 0.0

// UseClassifier reports whether the classifier path should be used for a
// run. It is decided once per run from the target's own decision score:
// the classifier is only trusted when it was confident about the target
// itself. Similarity mode disables it unconditionally.
func UseClassifier(mode string, targetScore float64) bool {
	if mode == constants.ModeSimilarity {
		return false
	}
	return targetScore >= ScoreThreshold
}

// Match decides whether a single candidate face matches the target.
//
// With the classifier enabled, label agreement at a sufficient score is
// enough on its own, and the similarity test remains as a fallback so the
// classifier can never block a visually close match. Without it, only the
// distance test applies.
func Match(useClassifier bool, targetLabel, candLabel string, candScore, distance, similarityThreshold float64) bool {
	if useClassifier {
		if candLabel == targetLabel && candScore >= ScoreThreshold {
			return true
		}
	}
	return distance <= similarityThreshold
}
