package index

import (
	"math"
	"sort"

	"github.com/raphaelgruber/docchat/internal/models"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector or their lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK ranks chunks by similarity to vec and returns the best k.
func TopK(chunks []Chunk, vec []float32, k int) []models.RetrievedDocument {
	type scored struct {
		chunk *Chunk
		score float64
	}
	ranked := make([]scored, len(chunks))
	for i := range chunks {
		ranked[i] = scored{chunk: &chunks[i], score: CosineSimilarity(chunks[i].Embedding, vec)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.Ordinal < ranked[j].chunk.Ordinal
	})

	k = max(0, min(k, len(ranked)))
	out := make([]models.RetrievedDocument, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, models.RetrievedDocument{
			Content:    r.chunk.Content,
			Source:     r.chunk.Source,
			Page:       r.chunk.Page,
			ChunkIndex: r.chunk.Ordinal,
			Score:      r.score,
		})
	}
	return out
}
