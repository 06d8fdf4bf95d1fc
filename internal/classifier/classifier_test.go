package classifier

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// writeArtifacts writes a model + encoder pair into dir.
func writeArtifacts(t *testing.T, dir string, model modelArtifact, encoder encoderArtifact) {
	t.Helper()
	for name, v := range map[string]any{
		modelFile:   model,
		encoderFile: encoder,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func testArtifacts() (modelArtifact, encoderArtifact) {
	// Two identities over 3-dimensional embeddings. "alice" points along
	// the first axis, "bob" along the second.
	model := modelArtifact{
		Weights: [][]float64{
			{1, 0, 0},
			{0, 1, 0},
		},
		Intercepts: []float64{0.1, -0.2},
	}
	encoder := encoderArtifact{Classes: []string{"alice", "bob"}}
	return model, encoder
}

func TestLoadMissingArtifacts(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	if !errors.Is(err, ErrModelMissing) {
		t.Fatalf("Load on empty dir: got %v; want ErrModelMissing", err)
	}

	// Model present but encoder missing is still a missing pair.
	model, _ := testArtifacts()
	data, _ := json.Marshal(model)
	if err := os.WriteFile(filepath.Join(dir, modelFile), data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrModelMissing) {
		t.Fatalf("Load without encoder: got %v; want ErrModelMissing", err)
	}
}

func TestLoadValidatesShapes(t *testing.T) {
	tests := []struct {
		name    string
		model   modelArtifact
		encoder encoderArtifact
	}{
		{
			"ragged weight rows",
			modelArtifact{Weights: [][]float64{{1, 2}, {1}}, Intercepts: []float64{0, 0}},
			encoderArtifact{Classes: []string{"a", "b"}},
		},
		{
			"intercept count mismatch",
			modelArtifact{Weights: [][]float64{{1, 2}}, Intercepts: []float64{0, 0}},
			encoderArtifact{Classes: []string{"a"}},
		},
		{
			"class count mismatch",
			modelArtifact{Weights: [][]float64{{1, 2}}, Intercepts: []float64{0}},
			encoderArtifact{Classes: []string{"a", "b"}},
		},
		{
			"no weight rows",
			modelArtifact{},
			encoderArtifact{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeArtifacts(t, dir, tc.model, tc.encoder)
			if _, err := Load(dir); err == nil {
				t.Error("Load accepted malformed artifacts")
			}
		})
	}
}

func TestDecide(t *testing.T) {
	dir := t.TempDir()
	model, encoder := testArtifacts()
	writeArtifacts(t, dir, model, encoder)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name      string
		embedding []float32
		wantLabel string
		wantScore float64
	}{
		{"alice direction", []float32{2, 0, 0}, "alice", 2.1},
		{"bob direction", []float32{0, 3, 0}, "bob", 2.8},
		{"intercept breaks the tie", []float32{1, 1, 0}, "alice", 1.1},
		{"unknown direction, best effort", []float32{0, 0, 5}, "alice", 0.1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := c.Decide(tc.embedding)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if d.Label != tc.wantLabel {
				t.Errorf("label = %q; want %q", d.Label, tc.wantLabel)
			}
			if math.Abs(d.Score-tc.wantScore) > 1e-9 {
				t.Errorf("score = %v; want %v", d.Score, tc.wantScore)
			}
		})
	}
}

func TestDecideDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	model, encoder := testArtifacts()
	writeArtifacts(t, dir, model, encoder)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := c.Decide([]float32{1, 2}); err == nil {
		t.Error("Decide accepted an embedding with the wrong dimension")
	}
}
