// Package search fuses lexical and vector rankings into one hybrid result list.
package search

import (
	"sort"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/lexical"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/vector"
)

// NormalizeLexicalScores min-max normalizes keyword scores to [0,1]. A single hit, or hits
// that all share one score, normalize to 1.0. Duplicate ids keep their best score.
func NormalizeLexicalScores(hits []lexical.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	spread := maxScore - minScore
	for _, h := range hits {
		score := 1.0
		if spread > 0 {
			score = (h.Score - minScore) / spread
		}
		if prev, ok := normalized[h.DocID]; !ok || score > prev {
			normalized[h.DocID] = score
		}
	}
	return normalized
}

// VectorSimilarities converts neighbour distances to similarities in [0,1].
func VectorSimilarities(neighbors []vector.Neighbor) map[string]float64 {
	sims := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		s := vector.DistanceToSimilarity(n.Distance)
		if prev, ok := sims[n.DocID]; !ok || s > prev {
			sims[n.DocID] = s
		}
	}
	return sims
}

// Fuse merges normalized lexical and vector scores as alpha*vector + (1-alpha)*lexical,
// a missing term counting as 0. Results are ordered by fused score descending, ties by
// doc id ascending, truncated to size and ranked from 1.
func Fuse(lexicalScores, vectorScores map[string]float64, alpha float64, size int) []*models.SearchResult {
	merged := make(map[string]*models.SearchResult, len(lexicalScores)+len(vectorScores))
	for id, score := range lexicalScores {
		s := score
		merged[id] = &models.SearchResult{DocID: id, LexicalScore: &s}
	}
	for id, score := range vectorScores {
		s := score
		if r, ok := merged[id]; ok {
			r.VectorScore = &s
		} else {
			merged[id] = &models.SearchResult{DocID: id, VectorScore: &s}
		}
	}

	results := make([]*models.SearchResult, 0, len(merged))
	for _, r := range merged {
		var lex, vec float64
		if r.LexicalScore != nil {
			lex = *r.LexicalScore
		}
		if r.VectorScore != nil {
			vec = *r.VectorScore
		}
		r.FusedScore = alpha*vec + (1-alpha)*lex
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].DocID < results[j].DocID
	})
	if size >= 0 && len(results) > size {
		results = results[:size]
	}
	for i, r := range results {
		r.Rank = uint32(i + 1)
	}
	return results
}
