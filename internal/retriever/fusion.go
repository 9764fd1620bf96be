package retriever

import (
	"sort"

	"github.com/cklxx/codectx/internal/lexical"
	"github.com/cklxx/codectx/internal/vector"
)

type fused struct {
	chunkID  int64
	vecScore float64
	kwScore  float64
	score    float64
}

// normalizeScores min-max normalizes a score set to [0,1]. A set with zero
// spread maps to all ones.
func normalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	spread := max - min
	out := make([]float64, len(scores))
	for i, s := range scores {
		if spread == 0 {
			out[i] = 1.0
		} else {
			out[i] = (s - min) / spread
		}
	}
	return out
}

// fuse merges the two retrieval legs with weighted score fusion. Each leg is
// min-max normalized first so bleve scores and cosine similarities share a
// scale; a chunk missing from one leg takes 0 from that side. Results come
// back best first, ties broken by chunk id, truncated to k.
func fuse(vec []vector.Result, kw []lexical.Result, vecWeight, kwWeight float64, k int) []fused {
	vecScores := make([]float64, len(vec))
	for i, r := range vec {
		vecScores[i] = r.Score
	}
	kwScores := make([]float64, len(kw))
	for i, r := range kw {
		kwScores[i] = r.Score
	}
	vecNorm := normalizeScores(vecScores)
	kwNorm := normalizeScores(kwScores)

	type entry struct {
		vec float64
		kw  float64
	}
	byID := make(map[int64]*entry, len(vec)+len(kw))
	for i, r := range vec {
		byID[r.ChunkID] = &entry{vec: vecNorm[i]}
	}
	for i, r := range kw {
		if e, ok := byID[r.ChunkID]; ok {
			e.kw = kwNorm[i]
		} else {
			byID[r.ChunkID] = &entry{kw: kwNorm[i]}
		}
	}

	merged := make([]fused, 0, len(byID))
	for id, e := range byID {
		merged = append(merged, fused{
			chunkID:  id,
			vecScore: e.vec,
			kwScore:  e.kw,
			score:    vecWeight*e.vec + kwWeight*e.kw,
		})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].chunkID < merged[j].chunkID
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}
