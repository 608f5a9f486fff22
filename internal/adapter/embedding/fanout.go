package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"examprep/internal/domain"
)

// Options holds the transport settings shared by the remote embedders.
type Options struct {
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// Timeout bounds each HTTP request. Zero means the provider default.
	Timeout time.Duration
	// Concurrency caps in-flight requests per Embed call.
	Concurrency int
	// RequestsPerSecond throttles requests across calls. Zero disables it.
	RequestsPerSecond float64
	// Dimension asks the provider for vectors of this length and rejects
	// responses of any other length. Zero keeps the model's native size.
	Dimension int
	// Client replaces the HTTP client, mainly for tests.
	Client *http.Client
}

func (o Options) httpClient(defaultTimeout time.Duration) *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// fanout issues batched requests concurrently, bounded by a worker limit and
// an optional token bucket, and reassembles the vectors in input order.
type fanout struct {
	provider    string
	concurrency int
	// dimension is the required vector length, zero when unchecked.
	dimension int
	limiter   *rate.Limiter
}

func newFanout(provider string, concurrency int, rps float64, dimension int) *fanout {
	if concurrency <= 0 {
		concurrency = 1
	}
	if dimension < 0 {
		dimension = 0
	}
	f := &fanout{provider: provider, concurrency: concurrency, dimension: dimension}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return f
}

// batchFunc embeds texts[start:end] and returns one vector per text.
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// run splits texts into batches of at most batchSize and calls embed for each.
// The first failure cancels the remaining requests and fails the whole call.
func (f *fanout) run(ctx context.Context, texts []string, batchSize int, embed batchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if f.limiter != nil {
				if err := f.limiter.Wait(gctx); err != nil {
					return f.fail("rate limit", err)
				}
			}

			vecs, err := embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return f.fail("decode", fmt.Errorf("expected %d vectors, got %d", end-start, len(vecs)))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var embErr *domain.EmbeddingServiceError
		if errors.As(err, &embErr) {
			return nil, err
		}
		return nil, f.fail("embed", err)
	}

	if err := checkVectors(out, f.dimension); err != nil {
		return nil, f.fail("decode", err)
	}
	return out, nil
}

func (f *fanout) fail(op string, err error) error {
	return &domain.EmbeddingServiceError{
		Provider: f.provider,
		Op:       op,
		Timeout:  isTimeout(err),
		Err:      err,
	}
}

// checkVectors rejects missing, empty or ragged vectors, and vectors whose
// length differs from want when want is set. A zero vector must never stand
// in for a failed embedding.
func checkVectors(vecs [][]float32, want int) error {
	dim := want
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("text %d: empty embedding", i)
		}
		if want > 0 && len(v) != want {
			return fmt.Errorf("text %d: embedding has %d dimensions, configured %d", i, len(v), want)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("text %d: embedding has %d dimensions, others have %d", i, len(v), dim)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// truncate shortens a response body for error messages.
func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
