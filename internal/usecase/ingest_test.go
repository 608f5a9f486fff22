package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/adapter/chunker"
	"examprep/internal/adapter/embedding"
	"examprep/internal/adapter/extractor"
	"examprep/internal/adapter/memstore"
	"examprep/internal/domain"
	"examprep/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type failingEmbedder struct {
	err error
}

func (f failingEmbedder) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	return nil, f.err
}

func (f failingEmbedder) Dimension() int    { return 8 }
func (f failingEmbedder) ModelName() string { return "failing" }

type failingStore struct {
	*memstore.MemoryStore
}

func (f failingStore) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	return &domain.StoreError{Op: "upsert", Err: errors.New("disk full")}
}

func (f failingStore) ReplaceSource(ctx context.Context, source string, chunks []domain.Chunk) error {
	return &domain.StoreError{Op: "replace", Err: errors.New("disk full")}
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newIngest(store *memstore.MemoryStore, opts IngestOptions) *IngestUseCase {
	return NewIngestUseCase(
		extractor.NewRegistry(),
		chunker.New(),
		embedding.NewMockEmbedder(256),
		store,
		opts,
	)
}

func TestIngestProducesStableIDs(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: true})

	path := writeDoc(t, t.TempDir(), "a.txt", strings.Repeat("abcd ", 500))
	md := domain.Metadata{domain.MetaSource: "bookA", domain.MetaType: "book"}

	res, err := uc.Ingest(context.Background(), path, md)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.False(t, res.Empty)
	assert.Equal(t, 3, store.Count())

	for i := 0; i < 3; i++ {
		c, err := store.Get(context.Background(), fmt.Sprintf("bookA_%d", i))
		require.NoError(t, err)
		assert.Equal(t, "bookA", c.Metadata.Source())
		assert.Equal(t, "book", c.Metadata.Type())
	}

	// Caller's map is not retained.
	md[domain.MetaSource] = "changed"
	c, err := store.Get(context.Background(), "bookA_0")
	require.NoError(t, err)
	assert.Equal(t, "bookA", c.Metadata.Source())
}

func TestIngestDefaultsMetadata(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{DefaultType: "book", ReplaceExisting: true})

	path := writeDoc(t, t.TempDir(), "biology.md", "Photosynthesis converts light into chemical energy.")

	res, err := uc.Ingest(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "biology.md", res.Source)
	assert.Equal(t, 1, res.Chunks)

	c, err := store.Get(context.Background(), "biology.md_0")
	require.NoError(t, err)
	assert.Equal(t, "book", c.Metadata.Type())
}

func TestIngestEmptyDocument(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: true})

	path := writeDoc(t, t.TempDir(), "blank.txt", "  \n\f\n ")

	res, err := uc.Ingest(context.Background(), path, domain.Metadata{domain.MetaSource: "blank"})
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, 0, res.Chunks)
	assert.Equal(t, 0, store.Count())
	assert.Equal(t, uint64(0), store.Generation())
}

func TestIngestErrorsAreTypedAndWriteNothing(t *testing.T) {
	dir := t.TempDir()
	good := writeDoc(t, dir, "good.txt", "Mitochondria are the powerhouse of the cell.")
	unsupported := writeDoc(t, dir, "slides.pptx", "binary")

	t.Run("missing file", func(t *testing.T) {
		store := memstore.NewMemoryStore("c", domain.MetricCosine, "mock")
		_, err := newIngest(store, IngestOptions{}).Ingest(context.Background(), filepath.Join(dir, "nope.txt"), nil)

		var extErr *domain.ExtractionError
		assert.ErrorAs(t, err, &extErr)
		assert.Equal(t, 0, store.Count())
	})

	t.Run("unsupported format", func(t *testing.T) {
		store := memstore.NewMemoryStore("c", domain.MetricCosine, "mock")
		_, err := newIngest(store, IngestOptions{}).Ingest(context.Background(), unsupported, nil)

		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
		assert.Equal(t, "extraction", domain.Kind(err))
	})

	t.Run("embedding failure", func(t *testing.T) {
		store := memstore.NewMemoryStore("c", domain.MetricCosine, "mock")
		uc := NewIngestUseCase(extractor.NewRegistry(), chunker.New(), failingEmbedder{
			err: &domain.EmbeddingServiceError{Provider: "gemini", Op: "request", Err: errors.New("503")},
		}, store, IngestOptions{})

		_, err := uc.Ingest(context.Background(), good, nil)

		var embErr *domain.EmbeddingServiceError
		assert.ErrorAs(t, err, &embErr)
		assert.True(t, domain.IsRetryable(err))
		assert.Equal(t, 0, store.Count())
	})

	t.Run("store failure", func(t *testing.T) {
		store := failingStore{memstore.NewMemoryStore("c", domain.MetricCosine, "mock")}
		uc := NewIngestUseCase(extractor.NewRegistry(), chunker.New(), embedding.NewMockEmbedder(8), store, IngestOptions{ReplaceExisting: true})

		_, err := uc.Ingest(context.Background(), good, nil)

		var storeErr *domain.StoreError
		assert.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "store", domain.Kind(err))
	})
}

func TestReingestShorterRemovesOrphans(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: true})
	dir := t.TempDir()
	md := domain.Metadata{domain.MetaSource: "bookA"}

	_, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v1.txt", strings.Repeat("abcd ", 500)), md)
	require.NoError(t, err)
	require.Equal(t, 3, store.Count())

	res, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v2.txt", strings.Repeat("efgh ", 100)), md)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, 1, store.Count())

	_, err = store.Get(context.Background(), "bookA_2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReingestEmptyPurgesSource(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: true})
	dir := t.TempDir()
	md := domain.Metadata{domain.MetaSource: "bookA"}

	_, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v1.txt", strings.Repeat("abcd ", 500)), md)
	require.NoError(t, err)
	_, err = uc.Ingest(context.Background(), writeDoc(t, dir, "other.txt", "Enzymes lower activation energy."), nil)
	require.NoError(t, err)
	require.Equal(t, 4, store.Count())

	res, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v2.txt", " \n\f "), md)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, 1, store.Count())

	_, err = store.Get(context.Background(), "bookA_0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReingestEmptyWithoutReplaceKeepsSource(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: false})
	dir := t.TempDir()
	md := domain.Metadata{domain.MetaSource: "bookA"}

	_, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v1.txt", strings.Repeat("abcd ", 500)), md)
	require.NoError(t, err)

	res, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v2.txt", "   "), md)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Zero(t, res.Removed)
	assert.Equal(t, 3, store.Count())
}

func TestReingestWithoutReplaceKeepsTrailingChunks(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: false})
	dir := t.TempDir()
	md := domain.Metadata{domain.MetaSource: "bookA"}

	_, err := uc.Ingest(context.Background(), writeDoc(t, dir, "v1.txt", strings.Repeat("abcd ", 500)), md)
	require.NoError(t, err)

	_, err = uc.Ingest(context.Background(), writeDoc(t, dir, "v2.txt", strings.Repeat("efgh ", 100)), md)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Count())

	c, err := store.Get(context.Background(), "bookA_0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Text, "efgh"))
}

func TestIngestAllConcurrentNoCrossContamination(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: true, Concurrency: 4})
	dir := t.TempDir()

	jobs := []IngestJob{
		{Path: writeDoc(t, dir, "bio.txt", strings.Repeat("photosynthesis chlorophyll ", 150)),
			Metadata: domain.Metadata{domain.MetaSource: "bio", domain.MetaType: "book"}},
		{Path: writeDoc(t, dir, "hist.txt", strings.Repeat("revolution parliament ", 150)),
			Metadata: domain.Metadata{domain.MetaSource: "hist", domain.MetaType: "notes"}},
	}

	var mu sync.Mutex
	var seen []string
	report := uc.IngestAll(context.Background(), jobs, func(d DocumentReport) {
		mu.Lock()
		seen = append(seen, d.Source)
		mu.Unlock()
	})

	require.Len(t, report.Documents, 2)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Succeeded())
	assert.Empty(t, report.Failed())
	assert.Equal(t, store.Count(), report.TotalChunks())
	assert.ElementsMatch(t, []string{"bio", "hist"}, seen)
	assert.Equal(t, "bio", report.Documents[0].Source)
	assert.Equal(t, "hist", report.Documents[1].Source)

	vec, err := embedding.NewMockEmbedder(256).Embed(context.Background(), []string{"photosynthesis"}, domain.TaskQuery)
	require.NoError(t, err)
	results, err := store.Query(context.Background(), vec[0], store.Count())
	require.NoError(t, err)

	sources := map[string]bool{}
	for _, r := range results {
		src := r.Metadata.Source()
		sources[src] = true
		assert.True(t, strings.HasPrefix(r.ID, src+"_"), "chunk %s carries source %s", r.ID, src)
		if src == "bio" {
			assert.Equal(t, "book", r.Metadata.Type())
		} else {
			assert.Equal(t, "notes", r.Metadata.Type())
		}
	}
	assert.True(t, sources["bio"])
	assert.True(t, sources["hist"])
	assert.Equal(t, "bio", results[0].Metadata.Source())
}

func TestIngestAllIsolatesFailures(t *testing.T) {
	store := memstore.NewMemoryStore("exam_prep", domain.MetricCosine, "mock")
	uc := newIngest(store, IngestOptions{ReplaceExisting: true, Concurrency: 2})
	dir := t.TempDir()

	jobs := []IngestJob{
		{Path: writeDoc(t, dir, "ok.txt", "Cells divide by mitosis.")},
		{Path: filepath.Join(dir, "missing.pdf")},
		{Path: writeDoc(t, dir, "dup.txt", "Meiosis halves chromosomes."), Metadata: domain.Metadata{domain.MetaSource: "ok.txt"}},
	}

	report := uc.IngestAll(context.Background(), jobs, nil)

	assert.Equal(t, 1, report.Succeeded())
	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "extraction", failed[0].Kind)
	assert.Equal(t, "invalid", failed[1].Kind)
	assert.NotEmpty(t, failed[1].Error)
	assert.Equal(t, 1, store.Count())
}
