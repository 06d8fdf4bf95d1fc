package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server    ServerConfig
	Embedding EmbeddingConfig
	Paths     PathsConfig
	Sort      SortConfig
}

type ServerConfig struct {
	BaseURL     string // public URL of this service, used for generated links
	FrontendURL string // frontend origin, reported by the status endpoint and allowed by CORS
}

type EmbeddingConfig struct {
	URL string // face detection + embedding server, required
	Dim int    // embedding dimension, defaults to 512 (Facenet512)
}

type PathsConfig struct {
	RunsDir   string // root for per-run directory trees (default "runs")
	ModelsDir string // classifier artifact directory (default "models")
}

type SortConfig struct {
	Mode                string  `yaml:"mode"`
	Detector            string  `yaml:"detector"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type defaultsFile struct {
	Sort SortConfig `yaml:"sort"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Server: ServerConfig{
			BaseURL:     strings.TrimSuffix(envString("BASE_URL", "http://127.0.0.1:8000"), "/"),
			FrontendURL: strings.TrimSuffix(envString("FRONTEND_URL", "http://localhost:5173"), "/"),
		},
		Embedding: EmbeddingConfig{
			URL: envString("EMBEDDING_URL", ""),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Paths: PathsConfig{
			RunsDir:   envString("RUNS_DIR", "runs"),
			ModelsDir: envString("MODELS_DIR", "models"),
		},
		Sort: SortConfig{
			Mode:                envString("SORT_MODE", defaults.Sort.Mode),
			Detector:            envString("SORT_DETECTOR", defaults.Sort.Detector),
			SimilarityThreshold: envFloat("SORT_SIMILARITY_THRESHOLD", defaults.Sort.SimilarityThreshold),
		},
	}
}
