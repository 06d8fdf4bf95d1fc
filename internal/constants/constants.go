// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Sorting constants
const (
	// DefaultSimilarityThreshold is the default maximum cosine distance
	// for the open-set similarity test
	DefaultSimilarityThreshold = 0.42

	// DefaultMode is the default matching mode
	DefaultMode = "hybrid"

	// ModeSimilarity disables the classifier and matches on cosine distance only
	ModeSimilarity = "similarity"

	// DefaultDetector is the default face detector backend passed to the
	// embedding server
	DefaultDetector = "mtcnn"
)

// Result constants
const (
	// PreviewLimit is the maximum number of preview URLs returned per bucket
	PreviewLimit = 24
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the
	// embedding server; larger images are downscaled first
	MaxImageSize = 1920
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart form size in bytes (500MB,
	// a sort request carries a whole batch of candidate images)
	MaxUploadSize = 500 << 20
)
