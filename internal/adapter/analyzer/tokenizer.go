// Package analyzer does the light text analysis the pipeline needs outside
// the embedding model: word features and prompt-size estimates.
package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer lowercases words and drops stopwords and single letters.
type Tokenizer struct {
	stopwords map[string]struct{}
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopwords: defaultStopwords()}
}

// Tokenize splits text into content words.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// CountTokens estimates how many model tokens text costs in a prompt. It
// takes the larger of ~1.3 tokens per word and ~4 characters per token, so
// formula-heavy textbook pages with few spaces are not undercounted.
func (t *Tokenizer) CountTokens(text string) int {
	words := len(splitWords(text))
	if words == 0 {
		return 0
	}
	byWords := int(float64(words) * 1.3)
	byChars := (utf8.RuneCountInString(text) + 3) / 4
	if byChars > byWords {
		return byChars
	}
	return byWords
}

// splitWords splits text into runs of letters and digits.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
