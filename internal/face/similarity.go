package face

import "math"

// CosineSimilarity computes the cosine similarity between two embeddings.
// Returns a value in [-1, 1] where 1 means identical direction. Mismatched
// lengths, empty or zero vectors score -1 (never matches any threshold in
// the usable range).
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// L2Normalize returns a copy of v scaled to unit length. Vectors with a norm
// below eps are returned unchanged to avoid amplifying noise.
func L2Normalize(v Embedding) Embedding {
	const eps = 1e-10

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm < eps {
		return v
	}

	out := make(Embedding, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
