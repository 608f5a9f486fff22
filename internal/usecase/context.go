package usecase

import (
	"context"
	"strings"

	"examprep/internal/domain"
	"examprep/internal/logger"
	"examprep/internal/port"
)

// PromptContext is the retrieved material handed to a generation prompt.
type PromptContext struct {
	Query      string                `json:"query"`
	Passages   []domain.SearchResult `json:"passages"`
	Text       string                `json:"text"`
	UsedTokens int                   `json:"used_tokens"`
	Degraded   bool                  `json:"degraded,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// ContextUseCase builds prompt context from retrieval results.
type ContextUseCase struct {
	retriever port.Retriever
	tokenizer port.Tokenizer
	budget    int
}

// NewContextUseCase creates a context builder. A budget of 0 keeps every
// retrieved passage.
func NewContextUseCase(retriever port.Retriever, tokenizer port.Tokenizer, budget int) *ContextUseCase {
	return &ContextUseCase{
		retriever: retriever,
		tokenizer: tokenizer,
		budget:    budget,
	}
}

// WithBudget returns a copy using a different token budget.
func (u *ContextUseCase) WithBudget(budget int) *ContextUseCase {
	c := *u
	c.budget = budget
	return &c
}

// Build retrieves the top-k passages for query and joins them with newlines.
// A retrieval failure never fails the build: the context comes back empty
// and flagged Degraded so generation can proceed without it.
func (u *ContextUseCase) Build(ctx context.Context, query string, k int) PromptContext {
	out := PromptContext{Query: query, Passages: []domain.SearchResult{}}

	results, err := u.retriever.SearchResults(ctx, query, k)
	if err != nil {
		out.Degraded = true
		out.Reason = err.Error()
		logger.Warn("retrieval failed, continuing without context", "kind", domain.Kind(err), "err", err)
		return out
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		n := u.tokenizer.CountTokens(r.Text)
		if u.budget > 0 && out.UsedTokens+n > u.budget {
			logger.Debug("passage over budget", "id", r.ID, "tokens", n)
			continue
		}
		out.Passages = append(out.Passages, r)
		out.UsedTokens += n
		texts = append(texts, r.Text)
	}
	out.Text = strings.Join(texts, "\n")

	return out
}
