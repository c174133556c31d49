// Package indexcache persists index snapshots in a key-value store.
package indexcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spin-glass/papers-rag-agent/internal/db"
	"github.com/spin-glass/papers-rag-agent/internal/domain"
	"github.com/spin-glass/papers-rag-agent/internal/repository/embcache"
)

const (
	papersKey     = "papersrag:index:papers"
	embeddingsKey = "papersrag:index:embeddings"
)

// kvStore is the consumer interface for the snapshot store (ISP).
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Store reads and writes index snapshots.
type Store struct {
	kv     kvStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a snapshot store. ttl <= 0 means keys never expire.
func NewStore(kv kvStore, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{kv: kv, ttl: ttl, logger: logger}
}

// embeddingsPayload frames the per-paper vectors. Each vector is a
// little-endian float32 blob so the format matches the embedding cache.
type embeddingsPayload struct {
	Vectors [][]byte `json:"vectors"`
}

// Load fetches and validates a snapshot. A missing snapshot returns
// db.ErrKeyNotFound; a malformed or mismatched one returns
// domain.ErrSnapshotInvalid so the caller can rebuild from scratch.
func (s *Store) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	papersRaw, err := s.kv.Get(ctx, papersKey)
	if err != nil {
		return nil, fmt.Errorf("get papers snapshot: %w", err)
	}
	embRaw, err := s.kv.Get(ctx, embeddingsKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: papers present but embeddings missing", domain.ErrSnapshotInvalid)
		}
		return nil, fmt.Errorf("get embeddings snapshot: %w", err)
	}

	var papers []domain.Paper
	if err := json.Unmarshal(papersRaw, &papers); err != nil {
		return nil, fmt.Errorf("%w: parse papers: %v", domain.ErrSnapshotInvalid, err)
	}

	var payload embeddingsPayload
	if err := json.Unmarshal(embRaw, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse embeddings: %v", domain.ErrSnapshotInvalid, err)
	}

	if len(payload.Vectors) != len(papers) {
		return nil, fmt.Errorf("%w: %d papers but %d embeddings",
			domain.ErrSnapshotInvalid, len(papers), len(payload.Vectors))
	}

	embeddings := make([][]float32, len(payload.Vectors))
	for i, blob := range payload.Vectors {
		vec, err := embcache.BytesToVector(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: embedding %d: %v", domain.ErrSnapshotInvalid, i, err)
		}
		embeddings[i] = vec
	}

	return &domain.IndexSnapshot{Papers: papers, Embeddings: embeddings}, nil
}

// Save writes a snapshot. Papers and embeddings must be aligned by position.
func (s *Store) Save(ctx context.Context, snap *domain.IndexSnapshot) error {
	if len(snap.Papers) != len(snap.Embeddings) {
		return fmt.Errorf("%w: %d papers but %d embeddings",
			domain.ErrSnapshotInvalid, len(snap.Papers), len(snap.Embeddings))
	}

	papersRaw, err := json.Marshal(snap.Papers)
	if err != nil {
		return fmt.Errorf("marshal papers: %w", err)
	}

	payload := embeddingsPayload{Vectors: make([][]byte, len(snap.Embeddings))}
	for i, vec := range snap.Embeddings {
		payload.Vectors[i] = embcache.VectorToBytes(vec)
	}
	embRaw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}

	if err := s.put(ctx, papersKey, papersRaw); err != nil {
		return fmt.Errorf("save papers snapshot: %w", err)
	}
	if err := s.put(ctx, embeddingsKey, embRaw); err != nil {
		return fmt.Errorf("save embeddings snapshot: %w", err)
	}

	s.logger.Info("index snapshot saved",
		zap.Int("papers", len(snap.Papers)), zap.Duration("ttl", s.ttl))
	return nil
}

func (s *Store) put(ctx context.Context, key string, value []byte) error {
	if s.ttl <= 0 {
		return s.kv.Set(ctx, key, value)
	}
	return s.kv.SetWithTTL(ctx, key, value, s.ttl)
}

// Invalidate deletes both snapshot keys.
func (s *Store) Invalidate(ctx context.Context) error {
	if err := s.kv.Del(ctx, papersKey); err != nil {
		return fmt.Errorf("delete papers snapshot: %w", err)
	}
	if err := s.kv.Del(ctx, embeddingsKey); err != nil {
		return fmt.Errorf("delete embeddings snapshot: %w", err)
	}
	return nil
}
