// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// detection to count as a match against a reference embedding
	DefaultSimilarityThreshold = 0.7

	// DefaultMaxSeconds is the default wall-clock budget for one batch run
	DefaultMaxSeconds = 300
)

// Dataset constants
const (
	// MaxDatasetFiles is the maximum number of images accepted in one uploaded dataset
	MaxDatasetFiles = 500

	// MaxImageUploadMB is the size cap for a single uploaded image
	MaxImageUploadMB = 50

	// MaxArchiveUploadMB is the size cap for an uploaded ZIP dataset
	MaxArchiveUploadMB = 200
)

// Output constants
const (
	// ThumbnailHeight is the pixel height of result thumbnails returned by the API
	ThumbnailHeight = 128

	// AnnotatedJPEGQuality is the JPEG quality used when persisting annotated images
	AnnotatedJPEGQuality = 90

	// TempDirMaxAgeSeconds is the age after which stale extraction folders are removed
	TempDirMaxAgeSeconds = 3600
)
