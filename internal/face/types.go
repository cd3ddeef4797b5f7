// Package face defines the data model shared by the matching engine:
// embeddings, bounding boxes, detections, reference sets and batch summaries.
package face

import (
	"encoding/json"
	"fmt"
)

// Embedding is an L2-normalized face feature vector produced by the detector
// sidecar. Embeddings are immutable once created.
type Embedding []float32

// BoundingBox is a face region in pixel coordinates. Invariant: 0 <= X1 < X2
// and 0 <= Y1 < Y2 after clipping to image bounds.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

// Clip constrains the box to a width x height image. Negative coordinates are
// moved to zero, right/bottom edges are clamped to the image dimensions.
func (b BoundingBox) Clip(width, height int) BoundingBox {
	c := b
	if c.X1 < 0 {
		c.X1 = 0
	}
	if c.Y1 < 0 {
		c.Y1 = 0
	}
	if c.X2 > width {
		c.X2 = width
	}
	if c.Y2 > height {
		c.Y2 = height
	}
	return c
}

// Valid reports whether the box has positive area.
func (b BoundingBox) Valid() bool {
	return b.X1 >= 0 && b.Y1 >= 0 && b.X1 < b.X2 && b.Y1 < b.Y2
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// MarshalJSON encodes the box as [x1, y1, x2, y2], the wire format used by
// the detector sidecar and the web API.
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON decodes a [x1, y1, x2, y2] array.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var arr [4]int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("bounding box must be a [x1, y1, x2, y2] array: %w", err)
	}
	b.X1, b.Y1, b.X2, b.Y2 = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// Detection is one detected face in an image: its embedding and its region.
type Detection struct {
	Embedding Embedding   `json:"embedding"`
	Box       BoundingBox `json:"bbox"`
	DetScore  float64     `json:"det_score,omitempty"`
}

// ReferenceSet is an ordered, append-only sequence of reference embeddings.
// Each embedding carries a stable index assigned at append time; indices are
// 0..N-1 and are never reused or reordered during a run.
type ReferenceSet struct {
	vectors []Embedding
}

// NewReferenceSet builds a reference set from embeddings in caller order.
func NewReferenceSet(vectors ...Embedding) *ReferenceSet {
	rs := &ReferenceSet{}
	for _, v := range vectors {
		rs.Add(v)
	}
	return rs
}

// Add appends an embedding and returns its stable reference index.
func (rs *ReferenceSet) Add(v Embedding) int {
	rs.vectors = append(rs.vectors, v)
	return len(rs.vectors) - 1
}

// Len returns the number of references.
func (rs *ReferenceSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.vectors)
}

// At returns the embedding with the given reference index.
func (rs *ReferenceSet) At(i int) Embedding { return rs.vectors[i] }

// Select returns a new reference set containing the embeddings at the given
// indices, re-indexed 0..len(indices)-1 in the given order. It fails if any
// index is out of range.
func (rs *ReferenceSet) Select(indices []int) (*ReferenceSet, error) {
	out := &ReferenceSet{}
	for _, idx := range indices {
		if idx < 0 || idx >= rs.Len() {
			return nil, fmt.Errorf("invalid face index: %d", idx)
		}
		out.Add(rs.vectors[idx])
	}
	return out, nil
}

// MatchRecord ties one qualifying detection to the reference it matched.
type MatchRecord struct {
	Box      BoundingBox `json:"bbox"`
	Score    float64     `json:"score"`
	RefIndex int         `json:"ref_index"`
}

// ImageResult describes a single image that satisfied the match policy.
// Images with no qualifying matches are omitted from the summary entirely.
type ImageResult struct {
	Filename     string        `json:"filename"`
	SavedPath    string        `json:"saved_path,omitempty"`
	Matches      []MatchRecord `json:"matches"`
	ThumbnailB64 string        `json:"thumbnail_b64,omitempty"`
}

// Summary aggregates the outcome of one batch run. Results keep the
// deterministic enumeration order of the input directory.
type Summary struct {
	TotalImages     int           `json:"total_images"`
	ProcessedImages int           `json:"processed_images"`
	MatchedImages   int           `json:"matched_images"`
	TotalMatches    int           `json:"total_matches"`
	SkippedImages   int           `json:"skipped_images"`
	Results         []ImageResult `json:"results"`
	Error           string        `json:"error,omitempty"`
}
