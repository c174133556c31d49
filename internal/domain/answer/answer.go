// Package answer holds the terminal value of one corrective RAG cycle.
package answer

// AttemptKind distinguishes retrieval rounds within one question.
type AttemptKind string

const (
	// KindBaseline is the first retrieve+generate+score round using the raw question.
	KindBaseline AttemptKind = "baseline"
	// KindHyde is the single retry round using a HyDE-rewritten query.
	KindHyde AttemptKind = "hyde"
)

// Attempt is one logged round of retrieve+generate+score.
// The sequence is append-only within a question and returned verbatim.
type Attempt struct {
	Kind    AttemptKind `json:"kind"`
	Query   string      `json:"query"`
	TopIDs  []string    `json:"top_ids"`
	Support float64     `json:"support"`
	Err     string      `json:"error,omitempty"`
}

// Failed reports whether this attempt recorded an error.
func (a Attempt) Failed() bool { return a.Err != "" }

// Citation points at a source paper backing the answer.
type Citation struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Result is the terminal value of one corrective cycle. Immutable once returned.
type Result struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	Support   float64    `json:"support"`
	Attempts  []Attempt  `json:"attempts"`
}

// DedupCitations removes citations whose title was already seen, keeping order.
func DedupCitations(cs []Citation) []Citation {
	seen := make(map[string]struct{}, len(cs))
	out := make([]Citation, 0, len(cs))
	for _, c := range cs {
		if _, ok := seen[c.Title]; ok {
			continue
		}
		seen[c.Title] = struct{}{}
		out = append(out, c)
	}
	return out
}
