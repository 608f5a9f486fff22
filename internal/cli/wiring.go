package cli

import (
	"fmt"
	"strings"
	"time"

	"examprep/config"
	"examprep/internal/adapter/cache"
	"examprep/internal/adapter/embedding"
	"examprep/internal/adapter/memstore"
	"examprep/internal/adapter/retriever"
	"examprep/internal/adapter/store"
	"examprep/internal/domain"
	"examprep/internal/port"
)

// session holds the resources one command runs against.
type session struct {
	store port.VectorStore
	// collection is set for the bolt backend only.
	collection *store.Collection
	db         *store.DB
	path       string
}

func (s *session) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStore opens the configured collection. model is recorded when the
// collection is bound.
func openStore(cfg *config.Config, dir string, model string) (*session, error) {
	metric, err := domain.ParseMetric(cfg.Store.Metric)
	if err != nil {
		return nil, err
	}

	if cfg.Store.Backend == "memory" {
		return &session{
			store: memstore.NewMemoryStore(cfg.Store.Collection, metric, model),
			path:  ":memory:",
		}, nil
	}

	if err := config.EnsureDir(dir, cfg); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := config.StorePath(dir, cfg)
	db, err := store.Open(path, store.Options{
		Timeout: time.Duration(cfg.Store.TimeoutSecs) * time.Second,
		Metric:  metric,
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	coll, err := db.Collection(cfg.Store.Collection)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	return &session{store: coll, collection: coll, db: db, path: path}, nil
}

// newEmbedder creates the configured embedding provider.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	opts := embedding.Options{
		BaseURL:           e.BaseURL,
		Timeout:           time.Duration(e.TimeoutSecs) * time.Second,
		Concurrency:       e.Concurrency,
		RequestsPerSecond: e.RequestsPerSecond,
		Dimension:         e.Dimension,
	}
	prefixes := embedding.Prefixes{Document: e.DocumentPrefix, Query: e.QueryPrefix}

	embedder, err := embedding.New(e.Provider, e.APIKeyEnv, e.Model, prefixes, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// newRetriever builds the semantic retriever, cached when the config asks
// for it.
func newRetriever(cfg *config.Config, st port.VectorStore, embedder port.Embedder) port.Retriever {
	var r port.Retriever = retriever.NewSemanticRetriever(st, embedder)
	if cfg.Retrieve.CacheSize > 0 {
		qc := cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSecs)*time.Second)
		r = cache.NewCachedRetriever(r, qc, st)
	}
	return r
}

// warnModelChange prints a notice when the collection was built with a
// different embedding model than the one configured now.
func warnModelChange(s *session, model string) {
	if s.collection == nil {
		return
	}
	if check := s.collection.CheckModel(model); check.NeedsRebuild {
		fmt.Printf("Warning: %s. Run 'examprep purge --all' and re-ingest.\n", check.Reason)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// modelName is the model an embedder built from cfg would report, for
// commands that never embed.
func modelName(cfg *config.Config) string {
	if cfg.Embedding.Provider == "mock" {
		return "mock"
	}
	return strings.TrimPrefix(cfg.Embedding.Model, "models/")
}
