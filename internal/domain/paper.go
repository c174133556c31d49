package domain

// Paper is an academic paper ingested into the similarity index.
// Immutable once created; the index owns it after Build.
type Paper struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
}

// EmbeddingText returns the text the index embeds for a paper.
func (p Paper) EmbeddingText() string {
	return p.Title + "\n\n" + p.Summary
}
