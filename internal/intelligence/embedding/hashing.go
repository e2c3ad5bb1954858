package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// HashingEncoder is an offline encoder. Every unigram, bigram and 5-rune
// prefix is hashed into one of Dimensions() buckets with a signed weight,
// and the result is L2-normalized. Identical texts always map to identical
// vectors, and texts with no content tokens map to the zero vector.
type HashingEncoder struct {
	dims      int
	stopwords map[string]struct{}
}

// NewHashingEncoder returns an encoder with dims buckets (at least 8).
func NewHashingEncoder(dims int) (*HashingEncoder, error) {
	if dims < 8 {
		return nil, fmt.Errorf("hashing encoder needs at least 8 dimensions, got %d", dims)
	}
	return &HashingEncoder{dims: dims, stopwords: defaultStopwords()}, nil
}

func (e *HashingEncoder) Name() string    { return "hashing" }
func (e *HashingEncoder) Dimensions() int { return e.dims }

func (e *HashingEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dims)
	tokens := e.tokenize(text)
	for i, tok := range tokens {
		e.add(vec, "w:"+tok, 1.0)
		if r := []rune(tok); len(r) > 5 {
			e.add(vec, "p:"+string(r[:5]), 0.5)
		}
		if i > 0 {
			e.add(vec, "b:"+tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalize(vec)
	return vec, nil
}

func (e *HashingEncoder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (e *HashingEncoder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that",
		"these", "those", "from", "up", "down", "over", "under", "so", "such", "into", "about", "between",
		"through", "during", "before", "after", "can", "will", "just", "should", "now", "i", "me", "my",
		"we", "our", "you", "your", "he", "she", "him", "her", "his", "they", "them", "their", "what",
		"which", "who", "how", "do", "does", "did", "have", "has", "had", "not", "no",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
