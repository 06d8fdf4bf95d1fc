package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-sorter/internal/classifier"
	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/embedding"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			BaseURL:     "http://127.0.0.1:8000",
			FrontendURL: "http://localhost:5173",
		},
		Sort: config.SortConfig{
			Mode:                "hybrid",
			Detector:            "mtcnn",
			SimilarityThreshold: 0.42,
		},
	}
}

// newTestWorkspace creates a workspace manager in a temp dir.
func newTestWorkspace(t *testing.T) *workspace.Manager {
	t.Helper()
	ws, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("workspace.NewManager: %v", err)
	}
	return ws
}

// fakeDetector serves canned faces keyed by raw image bytes.
type fakeDetector struct {
	faces map[string][]embedding.Face
}

func (f *fakeDetector) DetectFaces(_ context.Context, imageData []byte, _ string) ([]embedding.Face, error) {
	return f.faces[string(imageData)], nil
}

// newTestClassifier writes a two-identity linear model over 3-dimensional
// embeddings ("alice" along x, "bob" along y, the z axis unscored) and
// loads it.
func newTestClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	dir := t.TempDir()

	artifacts := map[string]any{
		"svm_model.json": map[string]any{
			"weights":    [][]float64{{1, 0, 0}, {0, 1, 0}},
			"intercepts": []float64{0, 0},
		},
		"label_encoder.json": map[string]any{
			"classes": []string{"alice", "bob"},
		},
	}
	for name, v := range artifacts {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	cls, err := classifier.Load(dir)
	if err != nil {
		t.Fatalf("classifier.Load: %v", err)
	}
	return cls
}

// multipartSortBody builds a multipart body for the sort endpoint.
// images maps filename to content; fields holds extra form values.
func multipartSortBody(t *testing.T, target string, images map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if target != "" {
		part, err := writer.CreateFormFile("target", "target.jpg")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, target)
	}

	for name, content := range images {
		part, err := writer.CreateFormFile("images", name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(part, content)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return body, writer.FormDataContentType()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
