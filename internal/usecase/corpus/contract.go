package corpus

import (
	"context"

	"github.com/spin-glass/papers-rag-agent/internal/domain"
)

// Searcher finds papers in the external paper repository.
type Searcher interface {
	SearchPapers(ctx context.Context, query string, maxResults int) ([]domain.Paper, error)
}

// SnapshotStore persists built indexes across restarts.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.IndexSnapshot, error)
	Save(ctx context.Context, snap *domain.IndexSnapshot) error
}
