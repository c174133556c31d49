package domain

import "errors"

var (
	// ErrEmbeddingFailed signals an embedding provider failure (quota, network, model).
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrGenerationFailed signals a text generation failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrRewriteFailed signals a HyDE query rewrite failure.
	ErrRewriteFailed = errors.New("hyde rewrite failed")

	// ErrIndexNotReady signals that no index has been built yet.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrRebuildInProgress signals that an index rebuild is already running.
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	// ErrSnapshotInvalid signals a malformed or partial index snapshot.
	ErrSnapshotInvalid = errors.New("index snapshot invalid")
	// ErrCorpusUnavailable signals that the corpus provider returned no papers.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
)
