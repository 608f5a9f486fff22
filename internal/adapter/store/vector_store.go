package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.etcd.io/bbolt"

	"examprep/internal/adapter/similarity"
	"examprep/internal/domain"
)

// Collection is one named set of chunks persisted in bbolt. All vectors are
// held in memory for brute-force search; bbolt is the source of truth and is
// written before the cache on every change.
type Collection struct {
	db   *DB
	name string

	mu       sync.RWMutex
	schema   SchemaInfo
	chunks   map[string]domain.Chunk
	bySource map[string]map[string]struct{}
	gen      atomic.Uint64
}

type storedChunk struct {
	Text     string            `json:"t"`
	Metadata map[string]string `json:"m,omitempty"`
	Vector   []float32         `json:"v"`
}

func openCollection(d *DB, name string) (*Collection, error) {
	c := &Collection{
		db:       d,
		name:     name,
		chunks:   make(map[string]domain.Chunk),
		bySource: make(map[string]map[string]struct{}),
	}

	err := d.bolt.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketCollections).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		for _, sub := range [][]byte{bucketChunks, bucketSources, bucketSchema} {
			if _, err := b.CreateBucketIfNotExists(sub); err != nil {
				return fmt.Errorf("create bucket %s: %w", sub, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.StoreError{Op: "create collection", Err: err}
	}

	if err := c.load(); err != nil {
		return nil, &domain.StoreError{Op: "load collection", Err: err}
	}

	if c.schema.Bound() && c.schema.Metric != d.opts.Metric {
		return nil, fmt.Errorf("%w: collection %q is bound to %s, configured %s",
			domain.ErrMetricMismatch, name, c.schema.Metric, d.opts.Metric)
	}

	return c, nil
}

// load reads the schema, chunks and source index into memory.
func (c *Collection) load() error {
	return c.db.bolt.View(func(tx *bbolt.Tx) error {
		b := c.bucket(tx)

		schema, err := readSchema(b.Bucket(bucketSchema))
		if err != nil {
			return err
		}
		c.schema = schema

		err = b.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("decode chunk %q: %w", k, err)
			}
			c.chunks[string(k)] = domain.Chunk{
				ID:        string(k),
				Text:      stored.Text,
				Metadata:  domain.Metadata(stored.Metadata),
				Embedding: stored.Vector,
			}
			return nil
		})
		if err != nil {
			return err
		}

		sources := b.Bucket(bucketSources)
		return sources.ForEach(func(k, v []byte) error {
			ids := make(map[string]struct{})
			err := sources.Bucket(k).ForEach(func(id, _ []byte) error {
				ids[string(id)] = struct{}{}
				return nil
			})
			c.bySource[string(k)] = ids
			return err
		})
	})
}

func (c *Collection) bucket(tx *bbolt.Tx) *bbolt.Bucket {
	return tx.Bucket(bucketCollections).Bucket([]byte(c.name))
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Upsert writes or overwrites each chunk in one transaction. The first
// non-empty write binds the collection's dimension and metric. A batch with
// any invalid chunk is rejected before anything is written.
func (c *Collection) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	return c.write(ctx, "upsert", "", false, chunks)
}

// ReplaceSource removes every chunk of source and writes chunks in the same
// transaction, so a shorter re-ingestion leaves no stale chunks behind.
func (c *Collection) ReplaceSource(ctx context.Context, source string, chunks []domain.Chunk) error {
	if source == "" {
		return domain.Invalidf("empty source")
	}
	return c.write(ctx, "replace source", source, true, chunks)
}

func (c *Collection) write(ctx context.Context, op, source string, purge bool, chunks []domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 && !purge {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db.isClosed() {
		return &domain.StoreError{Op: op, Err: domain.ErrClosed}
	}

	dim, err := domain.ValidateChunks(c.name, c.schema.Dimension, chunks)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	schema := c.schema
	if !schema.Bound() && dim > 0 {
		schema = newSchema(dim, c.db.opts.Metric, c.db.opts.Model)
	}

	var purged []string
	if purge {
		for id := range c.bySource[source] {
			purged = append(purged, id)
		}
	}

	err = c.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := c.bucket(tx)
		if schema != c.schema {
			if err := writeSchema(b.Bucket(bucketSchema), schema); err != nil {
				return err
			}
		}
		if err := c.deleteTx(b, purged); err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := c.putTx(b, chunk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: op, Err: err}
	}

	c.schema = schema
	for _, id := range purged {
		c.forget(id)
	}
	for _, chunk := range chunks {
		c.remember(chunk)
	}
	c.gen.Add(1)

	return nil
}

func (c *Collection) putTx(b *bbolt.Bucket, chunk domain.Chunk) error {
	if prev, ok := c.chunks[chunk.ID]; ok && prev.Metadata.Source() != chunk.Metadata.Source() {
		if err := unindexTx(b, prev.Metadata.Source(), chunk.ID); err != nil {
			return err
		}
	}

	data, err := json.Marshal(storedChunk{
		Text:     chunk.Text,
		Metadata: chunk.Metadata,
		Vector:   chunk.Embedding,
	})
	if err != nil {
		return err
	}
	if err := b.Bucket(bucketChunks).Put([]byte(chunk.ID), data); err != nil {
		return err
	}

	source := chunk.Metadata.Source()
	if source == "" {
		return nil
	}
	sb, err := b.Bucket(bucketSources).CreateBucketIfNotExists([]byte(source))
	if err != nil {
		return err
	}
	return sb.Put([]byte(chunk.ID), nil)
}

func (c *Collection) deleteTx(b *bbolt.Bucket, ids []string) error {
	for _, id := range ids {
		prev, ok := c.chunks[id]
		if !ok {
			continue
		}
		if err := b.Bucket(bucketChunks).Delete([]byte(id)); err != nil {
			return err
		}
		if err := unindexTx(b, prev.Metadata.Source(), id); err != nil {
			return err
		}
	}
	return nil
}

func unindexTx(b *bbolt.Bucket, source, id string) error {
	if source == "" {
		return nil
	}
	sources := b.Bucket(bucketSources)
	sb := sources.Bucket([]byte(source))
	if sb == nil {
		return nil
	}
	if err := sb.Delete([]byte(id)); err != nil {
		return err
	}
	if k, _ := sb.Cursor().First(); k == nil {
		return sources.DeleteBucket([]byte(source))
	}
	return nil
}

// remember and forget keep the in-memory cache in step with a committed
// transaction. Callers hold c.mu.
func (c *Collection) remember(chunk domain.Chunk) {
	if prev, ok := c.chunks[chunk.ID]; ok {
		c.unindex(prev.Metadata.Source(), chunk.ID)
	}

	stored := domain.Chunk{
		ID:        chunk.ID,
		Text:      chunk.Text,
		Metadata:  chunk.Metadata.Clone(),
		Embedding: append([]float32(nil), chunk.Embedding...),
	}
	c.chunks[chunk.ID] = stored

	if source := stored.Metadata.Source(); source != "" {
		ids, ok := c.bySource[source]
		if !ok {
			ids = make(map[string]struct{})
			c.bySource[source] = ids
		}
		ids[chunk.ID] = struct{}{}
	}
}

func (c *Collection) forget(id string) {
	prev, ok := c.chunks[id]
	if !ok {
		return
	}
	delete(c.chunks, id)
	c.unindex(prev.Metadata.Source(), id)
}

func (c *Collection) unindex(source, id string) {
	ids, ok := c.bySource[source]
	if !ok {
		return
	}
	delete(ids, id)
	if len(ids) == 0 {
		delete(c.bySource, source)
	}
}

// Query returns up to k chunks closest to embedding, ordered by ascending
// distance with ties broken by id. An empty collection yields no results.
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.Invalidf("k must be positive, got %d", k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.db.isClosed() {
		return nil, &domain.StoreError{Op: "query", Err: domain.ErrClosed}
	}
	if len(c.chunks) == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(embedding) != c.schema.Dimension {
		return nil, &domain.DimensionMismatchError{Collection: c.name, Expected: c.schema.Dimension, Got: len(embedding)}
	}

	metric := c.schema.Metric
	scored := make([]similarity.Scored, 0, len(c.chunks))
	for id, chunk := range c.chunks {
		scored = append(scored, similarity.Scored{
			ID:       id,
			Distance: similarity.Distance(metric, embedding, chunk.Embedding),
		})
	}

	ranked := similarity.Rank(scored, k)
	results := make([]domain.SearchResult, len(ranked))
	for i, s := range ranked {
		chunk := c.chunks[s.ID]
		results[i] = domain.SearchResult{
			ID:       s.ID,
			Text:     chunk.Text,
			Metadata: chunk.Metadata.Clone(),
			Distance: s.Distance,
		}
	}

	return results, nil
}

// Get returns a copy of the chunk stored under id.
func (c *Collection) Get(ctx context.Context, id string) (domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chunk{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	chunk, ok := c.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %q: %w", id, domain.ErrNotFound)
	}
	chunk.Metadata = chunk.Metadata.Clone()
	chunk.Embedding = append([]float32(nil), chunk.Embedding...)
	return chunk, nil
}

// Delete removes chunks by id. Unknown ids are ignored.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	_, err := c.remove(ctx, "delete", func() []string { return ids })
	return err
}

// DeleteSource removes every chunk of source and returns how many were removed.
func (c *Collection) DeleteSource(ctx context.Context, source string) (int, error) {
	return c.remove(ctx, "delete source", func() []string {
		ids := make([]string, 0, len(c.bySource[source]))
		for id := range c.bySource[source] {
			ids = append(ids, id)
		}
		return ids
	})
}

// remove deletes the ids selected under the write lock.
func (c *Collection) remove(ctx context.Context, op string, selectIDs func() []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db.isClosed() {
		return 0, &domain.StoreError{Op: op, Err: domain.ErrClosed}
	}

	var ids []string
	for _, id := range selectIDs() {
		if _, ok := c.chunks[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		return c.deleteTx(c.bucket(tx), ids)
	})
	if err != nil {
		return 0, &domain.StoreError{Op: op, Err: err}
	}

	for _, id := range ids {
		c.forget(id)
	}
	c.gen.Add(1)

	return len(ids), nil
}

// Clear removes every chunk and unbinds the schema, so the next write may
// establish a new dimension, metric and model.
func (c *Collection) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db.isClosed() {
		return &domain.StoreError{Op: "clear", Err: domain.ErrClosed}
	}

	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		b := c.bucket(tx)
		for _, sub := range [][]byte{bucketChunks, bucketSources, bucketSchema} {
			if err := b.DeleteBucket(sub); err != nil {
				return err
			}
			if _, err := b.CreateBucket(sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: "clear", Err: err}
	}

	c.schema = SchemaInfo{}
	c.chunks = make(map[string]domain.Chunk)
	c.bySource = make(map[string]map[string]struct{})
	c.gen.Add(1)

	return nil
}

// Count returns the number of stored chunks.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Sources lists stored documents and their chunk counts, sorted by source.
func (c *Collection) Sources() []domain.SourceSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.SourceSummary, 0, len(c.bySource))
	for source, ids := range c.bySource {
		out = append(out, domain.SourceSummary{Source: source, Chunks: len(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Info describes the collection.
func (c *Collection) Info() domain.CollectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metric := c.schema.Metric
	if metric == "" {
		metric = c.db.opts.Metric
	}
	return domain.CollectionInfo{
		Name:      c.name,
		ID:        c.schema.ID,
		Dimension: c.schema.Dimension,
		Metric:    metric,
		Model:     c.schema.Model,
		Count:     len(c.chunks),
		CreatedAt: c.schema.CreatedAt,
	}
}

// Schema returns the bound schema; the zero value when unbound.
func (c *Collection) Schema() SchemaInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schema
}

// Generation increases after every committed write.
func (c *Collection) Generation() uint64 {
	return c.gen.Load()
}
