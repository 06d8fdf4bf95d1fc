// Package sorter drives the per-run face sorting pipeline: target decision
// first, then a sequential pass over candidate images that routes each one
// into the matched or not_matched bucket. A failure while processing one
// image routes that image to not_matched and never aborts the run.
package sorter

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/kozaktomas/face-sorter/internal/classifier"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/embedding"
	"github.com/kozaktomas/face-sorter/internal/matcher"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

// FaceDetector detects faces in an image and returns an embedding per face.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imageData []byte, detector string) ([]embedding.Face, error)
}

// IdentityClassifier scores an embedding against the known identities.
type IdentityClassifier interface {
	Decide(embedding []float32) (classifier.Decision, error)
}

// Sorter runs sort operations against a detector and classifier pair.
type Sorter struct {
	detector   FaceDetector
	classifier IdentityClassifier
}

// New creates a sorter.
func New(detector FaceDetector, cls IdentityClassifier) *Sorter {
	return &Sorter{detector: detector, classifier: cls}
}

// Options control one sort operation.
type Options struct {
	Mode     string // "hybrid" or "similarity"
	Detector string // detector backend name passed to the embedding server

	// SimilarityThreshold is the maximum cosine distance for the similarity
	// test, taken as given. Zero is a valid setting (exact direction only);
	// callers that want the default supply it themselves.
	SimilarityThreshold float64

	// OnProgress is called after each processed image (optional).
	OnProgress func(info ProgressInfo)
}

// ProgressInfo reports batch progress to the caller.
type ProgressInfo struct {
	Current int
	Total   int
	Name    string
	Matched bool
}

// Result summarizes one completed sort operation.
type Result struct {
	TotalScanned    int
	MatchedCount    int
	NotMatchedCount int

	TargetLabel string
	TargetScore float64

	// Failures lists images that were routed to not_matched because of a
	// processing error. They are already counted in NotMatchedCount.
	Failures []ImageFailure
}

// ImageFailure records a per-image processing error that was absorbed.
type ImageFailure struct {
	Name string
	Err  error
}

// policy is the per-run matching context, fixed before any candidate is
// evaluated.
type policy struct {
	targetEmbedding []float32
	targetLabel     string
	useClassifier   bool
	threshold       float64
	detector        string
}

// Sort evaluates every accepted candidate image in the run against the
// stored target face and fills both buckets. The target decision is fully
// computed before any candidate is touched. Returns an error only for
// run-fatal problems (unreadable target, no face in the target photo);
// per-image failures are absorbed into the not_matched bucket.
func (s *Sorter) Sort(ctx context.Context, run *workspace.Run, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = constants.DefaultMode
	}
	if opts.Detector == "" {
		opts.Detector = constants.DefaultDetector
	}

	pol, result, err := s.prepareTarget(ctx, run, opts)
	if err != nil {
		return nil, err
	}

	names, err := run.ListInputImages()
	if err != nil {
		return nil, err
	}

	for i, name := range names {
		matched, imgErr := s.evaluateImage(ctx, run, name, pol)
		if imgErr != nil {
			// A broken image never aborts the batch; it lands in not_matched.
			log.Printf("sort run %s: image %s failed: %v", run.ID, name, imgErr)
			result.Failures = append(result.Failures, ImageFailure{Name: name, Err: imgErr})
			matched = false
		}

		bucket := workspace.BucketNotMatched
		if matched {
			bucket = workspace.BucketMatched
		}
		if err := run.CopyInto(bucket, name); err != nil {
			// Filesystem trouble inside the run's own tree is fatal; the
			// summary would misreport bucket contents otherwise.
			return nil, fmt.Errorf("placing %s into %s: %w", name, bucket, err)
		}

		result.TotalScanned++
		if matched {
			result.MatchedCount++
		} else {
			result.NotMatchedCount++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(ProgressInfo{Current: i + 1, Total: len(names), Name: name, Matched: matched})
		}
	}

	return result, nil
}

// prepareTarget computes the target embedding and identity decision and
// freezes the per-run matching policy.
func (s *Sorter) prepareTarget(ctx context.Context, run *workspace.Run, opts Options) (policy, *Result, error) {
	data, err := os.ReadFile(run.TargetPath())
	if err != nil {
		return policy{}, nil, fmt.Errorf("reading target face: %w", err)
	}

	targetEmb, err := targetEmbedding(ctx, s.detector, data, opts.Detector)
	if err != nil {
		return policy{}, nil, fmt.Errorf("computing target embedding: %w", err)
	}

	decision, err := s.classifier.Decide(targetEmb)
	if err != nil {
		return policy{}, nil, fmt.Errorf("classifying target: %w", err)
	}

	pol := policy{
		targetEmbedding: targetEmb,
		targetLabel:     decision.Label,
		useClassifier:   matcher.UseClassifier(opts.Mode, decision.Score),
		threshold:       opts.SimilarityThreshold,
		detector:        opts.Detector,
	}
	result := &Result{TargetLabel: decision.Label, TargetScore: decision.Score}
	return pol, result, nil
}

// evaluateImage decides whether any face in one candidate image matches the
// target. Any error makes the caller route the image to not_matched.
func (s *Sorter) evaluateImage(ctx context.Context, run *workspace.Run, name string, pol policy) (bool, error) {
	data, err := run.ReadInput(name)
	if err != nil {
		return false, fmt.Errorf("reading image: %w", err)
	}

	faces, err := s.detector.DetectFaces(ctx, embedding.PrepareForUpload(data, constants.MaxImageSize), pol.detector)
	if err != nil {
		return false, fmt.Errorf("detecting faces: %w", err)
	}

	for _, face := range faces {
		if len(face.Embedding) == 0 {
			continue
		}

		distance := matcher.CosineDistance(pol.targetEmbedding, face.Embedding)

		candLabel := ""
		candScore := 0.0
		if pol.useClassifier {
			decision, err := s.classifier.Decide(face.Embedding)
			if err != nil {
				return false, fmt.Errorf("classifying face: %w", err)
			}
			candLabel = decision.Label
			candScore = decision.Score
		}

		// First matching face decides the whole image.
		if matcher.Match(pol.useClassifier, pol.targetLabel, candLabel, candScore, distance, pol.threshold) {
			return true, nil
		}
	}

	return false, nil
}

func targetEmbedding(ctx context.Context, detector FaceDetector, data []byte, backend string) ([]float32, error) {
	faces, err := detector.DetectFaces(ctx, embedding.PrepareForUpload(data, constants.MaxImageSize), backend)
	if err != nil {
		return nil, err
	}
	for _, face := range faces {
		if len(face.Embedding) > 0 {
			return face.Embedding, nil
		}
	}
	return nil, embedding.ErrNoFace
}
