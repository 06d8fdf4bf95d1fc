// Package classifier scores face embeddings against a fixed set of known
// identities using a pre-trained linear model. The model and its label
// encoder are exported as JSON artifacts by the training pipeline and are
// treated as read-only after load, so a single Classifier is safe for
// concurrent use.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	modelFile   = "svm_model.json"
	encoderFile = "label_encoder.json"
)

// ErrModelMissing indicates that one or both classifier artifacts are
// absent from the models directory. This is a configuration error, distinct
// from per-request failures.
var ErrModelMissing = errors.New("model files missing")

// modelArtifact mirrors the exported decision model: one weight row and one
// intercept per known identity.
type modelArtifact struct {
	Weights    [][]float64 `json:"weights"`
	Intercepts []float64   `json:"intercepts"`
}

// encoderArtifact mirrors the exported label encoder: class names indexed
// by the model's output order.
type encoderArtifact struct {
	Classes []string `json:"classes"`
}

// Classifier is a closed-set identity recognizer over face embeddings.
type Classifier struct {
	weights    [][]float64
	intercepts []float64
	labels     []string
	dim        int
}

// Decision is the best-scoring identity for one embedding.
type Decision struct {
	Label string
	Score float64
}

// Load reads the classifier artifact pair from dir. Returns ErrModelMissing
// (wrapped) when either file is absent.
func Load(dir string) (*Classifier, error) {
	modelPath := filepath.Join(dir, modelFile)
	encoderPath := filepath.Join(dir, encoderFile)

	for _, p := range []string{modelPath, encoderPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrModelMissing, p)
		}
	}

	var model modelArtifact
	if err := readJSON(modelPath, &model); err != nil {
		return nil, err
	}
	var encoder encoderArtifact
	if err := readJSON(encoderPath, &encoder); err != nil {
		return nil, err
	}

	if len(model.Weights) == 0 {
		return nil, fmt.Errorf("classifier model %s has no weight rows", modelPath)
	}
	if len(model.Weights) != len(model.Intercepts) {
		return nil, fmt.Errorf("classifier model %s: %d weight rows but %d intercepts",
			modelPath, len(model.Weights), len(model.Intercepts))
	}
	if len(model.Weights) != len(encoder.Classes) {
		return nil, fmt.Errorf("label encoder %s: %d classes but model has %d rows",
			encoderPath, len(encoder.Classes), len(model.Weights))
	}

	dim := len(model.Weights[0])
	for i, row := range model.Weights {
		if len(row) != dim {
			return nil, fmt.Errorf("classifier model %s: weight row %d has length %d, want %d",
				modelPath, i, len(row), dim)
		}
	}

	return &Classifier{
		weights:    model.Weights,
		intercepts: model.Intercepts,
		labels:     encoder.Classes,
		dim:        dim,
	}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-configured
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Decide returns the best-scoring known identity for an embedding. The
// score is the raw decision value (W·x + b), which can be negative; callers
// apply their own confidence threshold.
func (c *Classifier) Decide(embedding []float32) (Decision, error) {
	if len(embedding) != c.dim {
		return Decision{}, fmt.Errorf("embedding has dimension %d, classifier expects %d", len(embedding), c.dim)
	}

	bestIdx := 0
	bestScore := c.score(0, embedding)
	for i := 1; i < len(c.weights); i++ {
		if s := c.score(i, embedding); s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}

	return Decision{Label: c.labels[bestIdx], Score: bestScore}, nil
}

func (c *Classifier) score(idx int, embedding []float32) float64 {
	s := c.intercepts[idx]
	row := c.weights[idx]
	for i, w := range row {
		s += w * float64(embedding[i])
	}
	return s
}

// Labels returns the known identity labels in encoder order.
func (c *Classifier) Labels() []string {
	return c.labels
}

// Dim returns the embedding dimension the classifier was trained on.
func (c *Classifier) Dim() int {
	return c.dim
}
