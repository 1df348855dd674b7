// Package testutil holds deterministic fakes for the model, the embedder and
// the document source, shared by package tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder embeds text as a normalized bag of hashed words. Texts that
// share words are closer than texts that do not, which is enough for
// retrieval tests.
type HashEmbedder struct {
	ModelName string
	Dim       int

	mu    sync.Mutex
	calls int
	err   error
}

// NewHashEmbedder returns an embedder named "hash" with the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{ModelName: "hash", Dim: dim}
}

// FailWith makes every following call return err.
func (e *HashEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many Embed and EmbedBatch calls were made.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) Model() string  { return e.ModelName }
func (e *HashEmbedder) Dimension() int { return e.Dim }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if e.Dim <= 0 {
		return nil, errors.New("hash embedder: dimension must be positive")
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.Dim)
	for _, w := range Words(text) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(e.Dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Words lowercases text and splits it on anything that is not a letter or digit.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
