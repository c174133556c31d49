package domain

// IndexSnapshot is a serialized similarity index: papers plus their
// embeddings, aligned by position.
type IndexSnapshot struct {
	Papers     []Paper
	Embeddings [][]float32
}
