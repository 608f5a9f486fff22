package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"examprep/config"
	"examprep/internal/adapter/embedding"
	"examprep/internal/adapter/retriever"
	"examprep/internal/adapter/store"
	"examprep/internal/domain"
	"examprep/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding the store")
	query := flag.String("q", "", "Optional query to time end to end")
	topK := flag.Int("k", 5, "Number of results")
	samples := flag.Int("n", 50, "Stored chunks to check for self-retrieval")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	metric, err := domain.ParseMetric(cfg.Store.Metric)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(config.StorePath(*dir, cfg), store.Options{
		Timeout: time.Duration(cfg.Store.TimeoutSecs) * time.Second,
		Metric:  metric,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	coll, err := st.Collection(cfg.Store.Collection)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening collection: %v\n", err)
		os.Exit(1)
	}

	info := coll.Info()
	fmt.Println("VECTOR STORE BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Collection: %s (%d chunks)\n", info.Name, info.Count)
	fmt.Printf("Schema:     dim=%d metric=%s model=%s\n", info.Dimension, info.Metric, info.Model)
	fmt.Println()

	if info.Count == 0 {
		fmt.Println("Collection is empty - run 'examprep ingest' first")
		os.Exit(1)
	}

	ctx := context.Background()
	selfRetrieval(ctx, coll, *samples, *topK)

	if *query != "" {
		timeQuery(ctx, cfg, coll, *query, *topK)
	}
}

// selfRetrieval queries the store with stored embeddings and checks each
// chunk comes back first, or tied for first.
func selfRetrieval(ctx context.Context, coll *store.Collection, samples, k int) {
	fmt.Println("Self-retrieval")
	fmt.Println(strings.Repeat("-", 70))

	var ids []string
	for _, s := range coll.Sources() {
		for i := 0; i < s.Chunks && len(ids) < samples; i++ {
			ids = append(ids, usecase.ChunkID(s.Source, i))
		}
	}

	var latencies []time.Duration
	hits, checked := 0, 0
	for _, id := range ids {
		chunk, err := coll.Get(ctx, id)
		if err != nil {
			continue
		}
		checked++

		start := time.Now()
		results, err := coll.Query(ctx, chunk.Embedding, k)
		latencies = append(latencies, time.Since(start))
		if err != nil {
			fmt.Fprintf(os.Stderr, "  query %s: %v\n", id, err)
			continue
		}
		switch {
		case len(results) == 0:
			fmt.Printf("  MISS %s (no results)\n", id)
		case results[0].ID == id || results[0].Distance == distanceOf(results, id):
			hits++
		default:
			fmt.Printf("  MISS %s (top: %s)\n", id, results[0].ID)
		}
	}

	if checked == 0 {
		fmt.Println("  No chunks could be read")
		return
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Printf("  Checked:  %d chunks\n", checked)
	fmt.Printf("  Hit rate: %.1f%%\n", 100*float64(hits)/float64(checked))
	fmt.Printf("  Latency:  p50=%s p95=%s max=%s\n",
		percentile(latencies, 0.50), percentile(latencies, 0.95), latencies[len(latencies)-1])
	fmt.Println()
}

func timeQuery(ctx context.Context, cfg *config.Config, coll *store.Collection, query string, k int) {
	_ = godotenv.Load()

	e := cfg.Embedding
	embedder, err := embedding.New(e.Provider, e.APIKeyEnv, e.Model,
		embedding.Prefixes{Document: e.DocumentPrefix, Query: e.QueryPrefix},
		embedding.Options{
			BaseURL:     e.BaseURL,
			Timeout:     time.Duration(e.TimeoutSecs) * time.Second,
			Concurrency: e.Concurrency,
			Dimension:   e.Dimension,
		})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder not available: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Query: %q\n", query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	results, err := retriever.NewSemanticRetriever(coll, embedder).SearchResults(ctx, query, k)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}

	for i, r := range results {
		preview := strings.ReplaceAll(r.Text, "\n", " ")
		if runes := []rune(preview); len(runes) > 150 {
			preview = string(runes[:150]) + "..."
		}
		fmt.Printf("%d. [%.4f] %s\n   %s\n\n", i+1, r.Distance, r.ID, preview)
	}
	fmt.Printf("End-to-end latency: %s (embedding + search)\n", elapsed)
}

func distanceOf(results []domain.SearchResult, id string) float64 {
	for _, r := range results {
		if r.ID == id {
			return r.Distance
		}
	}
	return -1
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
