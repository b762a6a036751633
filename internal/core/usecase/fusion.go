package usecase

import (
	"math"
	"sort"

	"github.com/tendersuite/kbengine/internal/core/domain"
)

type fusedCandidate struct {
	passage   domain.Passage
	score     float64
	denseRank int
	seq       int
}

// fuseRelativeScore merges the two rankings after normalizing each source's
// scores to [0,1] over that source's own range, so cosine similarities and
// term-frequency scores never get compared on their raw scales. A passage in
// both lists keeps the maximum normalized score. Ties prefer the passage the
// dense retriever ranked higher, then insertion order.
func fuseRelativeScore(dense, lexical []domain.ScoredPassage) []domain.ScoredPassage {
	denseNorm := normalizeScores(dense)
	lexicalNorm := normalizeScores(lexical)

	acc := make(map[string]*fusedCandidate, len(dense)+len(lexical))
	order := make([]string, 0, len(dense)+len(lexical))
	seq := 0

	add := func(p domain.Passage, score float64, denseRank int) {
		id := p.ID
		candidate, ok := acc[id]
		if !ok {
			acc[id] = &fusedCandidate{passage: p, score: score, denseRank: denseRank, seq: seq}
			order = append(order, id)
			seq++
			return
		}
		if score > candidate.score {
			candidate.score = score
		}
		if denseRank >= 0 && (candidate.denseRank < 0 || denseRank < candidate.denseRank) {
			candidate.denseRank = denseRank
		}
	}

	for rank, sp := range dense {
		add(sp.Passage, denseNorm[rank], rank)
	}
	for rank, sp := range lexical {
		add(sp.Passage, lexicalNorm[rank], -1)
	}

	out := make([]domain.ScoredPassage, 0, len(order))
	for _, id := range order {
		c := acc[id]
		out = append(out, domain.ScoredPassage{Passage: c.passage, Score: c.score, DenseRank: c.denseRank})
	}
	sortFused(out, acc)
	return out
}

// fuseRRF is the reciprocal-rank alternative: score = Σ 1/(k + rank + 1) over
// the lists a passage appears in. Selected via config; relative score is the
// default.
func fuseRRF(dense, lexical []domain.ScoredPassage, k int) []domain.ScoredPassage {
	if k <= 0 {
		k = 60
	}

	acc := make(map[string]*fusedCandidate, len(dense)+len(lexical))
	order := make([]string, 0, len(dense)+len(lexical))
	seq := 0

	addList := func(list []domain.ScoredPassage, isDense bool) {
		for rank, sp := range list {
			id := sp.Passage.ID
			candidate, ok := acc[id]
			if !ok {
				candidate = &fusedCandidate{passage: sp.Passage, denseRank: -1, seq: seq}
				acc[id] = candidate
				order = append(order, id)
				seq++
			}
			candidate.score += 1.0 / float64(k+rank+1)
			if isDense {
				candidate.denseRank = rank
			}
		}
	}
	addList(dense, true)
	addList(lexical, false)

	out := make([]domain.ScoredPassage, 0, len(order))
	for _, id := range order {
		c := acc[id]
		out = append(out, domain.ScoredPassage{Passage: c.passage, Score: c.score, DenseRank: c.denseRank})
	}
	sortFused(out, acc)
	return out
}

// normalizeScores min-max normalizes one source's scores over its own result
// set. A degenerate range (single hit, or all scores equal) normalizes to 1.0
// so ranking falls through to the tie-breakers.
func normalizeScores(list []domain.ScoredPassage) []float64 {
	out := make([]float64, len(list))
	if len(list) == 0 {
		return out
	}
	minScore := list[0].Score
	maxScore := list[0].Score
	for _, sp := range list[1:] {
		if sp.Score < minScore {
			minScore = sp.Score
		}
		if sp.Score > maxScore {
			maxScore = sp.Score
		}
	}
	span := maxScore - minScore
	for i, sp := range list {
		if span <= 0 || math.IsNaN(span) {
			out[i] = 1.0
			continue
		}
		out[i] = (sp.Score - minScore) / span
	}
	return out
}

func sortFused(out []domain.ScoredPassage, acc map[string]*fusedCandidate) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, rj := fusedRank(out[i].DenseRank), fusedRank(out[j].DenseRank)
		if ri != rj {
			return ri < rj
		}
		return acc[out[i].Passage.ID].seq < acc[out[j].Passage.ID].seq
	})
}

// fusedRank orders dense-ranked passages ahead of lexical-only ones on ties.
func fusedRank(denseRank int) int {
	if denseRank < 0 {
		return math.MaxInt
	}
	return denseRank
}

func sortByScoreStable(list []domain.ScoredPassage) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
}
