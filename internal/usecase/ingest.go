package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"examprep/internal/domain"
	"examprep/internal/logger"
	"examprep/internal/port"
)

// IngestOptions tunes the ingestion pipeline.
type IngestOptions struct {
	// DefaultType is stored as metadata "type" when the caller gives none.
	DefaultType string
	// ReplaceExisting purges prior chunks of the same source in the same
	// write, so a shorter re-upload leaves no orphans.
	ReplaceExisting bool
	// Concurrency bounds how many documents IngestAll processes at once.
	Concurrency int
}

// IngestUseCase turns source documents into stored, embedded chunks.
type IngestUseCase struct {
	extractor port.Extractor
	chunker   port.Chunker
	embedder  port.Embedder
	store     port.VectorStore
	opts      IngestOptions
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.VectorStore,
	opts IngestOptions,
) *IngestUseCase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &IngestUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		opts:      opts,
	}
}

// IngestResult describes one ingested document.
type IngestResult struct {
	Source      string
	Path        string
	Chunks      int
	Empty       bool
	Removed     int // prior chunks purged because the source is now empty
	FailedPages []int
	Duration    time.Duration
}

// Ingest extracts, chunks, embeds and stores one document. Nothing is
// written unless every step before the store write succeeds. A document with
// no extractable text is not an error: the result is marked Empty, and with
// ReplaceExisting any earlier chunks of the source are removed.
func (u *IngestUseCase) Ingest(ctx context.Context, path string, md domain.Metadata) (*IngestResult, error) {
	start := time.Now()

	md = md.Clone()
	if md.Source() == "" {
		md[domain.MetaSource] = filepath.Base(path)
	}
	if md.Type() == "" && u.opts.DefaultType != "" {
		md[domain.MetaType] = u.opts.DefaultType
	}
	source := md.Source()

	result := &IngestResult{Source: source, Path: path}
	logger.Debug("ingesting document", "source", source, "path", path)

	extraction, err := u.extractor.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	result.FailedPages = extraction.FailedPages
	if len(extraction.FailedPages) > 0 {
		logger.Warn("pages without extractable text", "source", source, "pages", extraction.FailedPages)
	}

	text := extraction.Text()
	if strings.TrimSpace(text) == "" {
		result.Empty = true
		logger.Warn("document has no extractable text", "source", source, "path", path)
		if u.opts.ReplaceExisting {
			n, err := u.store.DeleteSource(ctx, source)
			if err != nil {
				return nil, err
			}
			result.Removed = n
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	texts := u.chunker.Split(text)
	vectors, err := u.embedder.Embed(ctx, texts, domain.TaskDocument)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", source, err)
	}
	if len(vectors) != len(texts) {
		return nil, &domain.EmbeddingServiceError{
			Provider: u.embedder.ModelName(),
			Op:       "embed",
			Err:      fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts)),
		}
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = domain.Chunk{
			ID:        ChunkID(source, i),
			Text:      t,
			Metadata:  md.Clone(),
			Embedding: vectors[i],
		}
	}

	if u.opts.ReplaceExisting {
		err = u.store.ReplaceSource(ctx, source, chunks)
	} else {
		err = u.store.Upsert(ctx, chunks)
	}
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", source, err)
	}

	result.Chunks = len(chunks)
	result.Duration = time.Since(start)
	logger.Info("ingested document", "source", source, "chunks", result.Chunks, "duration", result.Duration)

	return result, nil
}

// ChunkID is the stable id of the index-th chunk of a source.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_%d", source, index)
}

// IngestJob is one document queued for batch ingestion.
type IngestJob struct {
	Path     string
	Metadata domain.Metadata
}

// DocumentReport is the outcome of one job in a batch.
type DocumentReport struct {
	Path        string `json:"path"`
	Source      string `json:"source"`
	Chunks      int    `json:"chunks"`
	Empty       bool   `json:"empty,omitempty"`
	Removed     int    `json:"removed,omitempty"`
	FailedPages []int  `json:"failed_pages,omitempty"`
	Err         error  `json:"-"`
	Error       string `json:"error,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// OK reports whether the document was ingested.
func (d DocumentReport) OK() bool {
	return d.Err == nil
}

// BatchReport aggregates a batch ingestion run.
type BatchReport struct {
	RunID     string           `json:"run_id"`
	Documents []DocumentReport `json:"documents"`
}

// Succeeded counts documents ingested without error, empty ones included.
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, d := range r.Documents {
		if d.OK() {
			n++
		}
	}
	return n
}

// Failed returns the reports of documents that failed.
func (r *BatchReport) Failed() []DocumentReport {
	var out []DocumentReport
	for _, d := range r.Documents {
		if !d.OK() {
			out = append(out, d)
		}
	}
	return out
}

// TotalChunks sums the chunks written across the batch.
func (r *BatchReport) TotalChunks() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Chunks
	}
	return n
}

// IngestAll ingests jobs concurrently. A failing document is reported and
// never aborts the others; nothing is retried. Reports keep job order.
// progress, when non-nil, is called once per finished document.
func (u *IngestUseCase) IngestAll(ctx context.Context, jobs []IngestJob, progress func(DocumentReport)) *BatchReport {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		Documents: make([]DocumentReport, len(jobs)),
	}
	logger.Info("batch ingest started", "run", report.RunID, "documents", len(jobs))

	sources := make(map[string]int, len(jobs))
	dup := make([]error, len(jobs))
	for i, job := range jobs {
		src := job.Metadata.Source()
		if src == "" {
			src = filepath.Base(job.Path)
		}
		if first, ok := sources[src]; ok {
			dup[i] = domain.Invalidf("source %q already used by %s in this batch", src, jobs[first].Path)
			continue
		}
		sources[src] = i
	}

	var g errgroup.Group
	g.SetLimit(u.opts.Concurrency)
	done := make(chan DocumentReport)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for d := range done {
			if progress != nil {
				progress(d)
			}
		}
	}()

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			d := DocumentReport{Path: job.Path, Source: job.Metadata.Source()}
			if d.Source == "" {
				d.Source = filepath.Base(job.Path)
			}

			err := dup[i]
			if err == nil {
				var res *IngestResult
				res, err = u.Ingest(ctx, job.Path, job.Metadata)
				if err == nil {
					d.Chunks = res.Chunks
					d.Empty = res.Empty
					d.Removed = res.Removed
					d.FailedPages = res.FailedPages
				}
			}
			if err != nil {
				d.Err = err
				d.Error = err.Error()
				d.Kind = domain.Kind(err)
				logger.Error("document failed", "path", job.Path, "source", d.Source, "kind", d.Kind, "err", err)
			}

			report.Documents[i] = d
			done <- d
			return nil
		})
	}
	_ = g.Wait()
	close(done)
	<-finished

	logger.Info("batch ingest finished", "run", report.RunID,
		"succeeded", report.Succeeded(), "failed", len(report.Failed()), "chunks", report.TotalChunks())
	return report
}
