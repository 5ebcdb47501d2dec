package vectorstore

import "math"

// DefaultMMRLambda weighs relevance and diversity equally.
const DefaultMMRLambda = 0.5

// candidate is a fetched document with its vector and query similarity.
type candidate struct {
	result    Result
	embedding []float32
}

// selectMMR picks up to k candidates, each maximizing
//
//	lambda*sim(q, d) - (1-lambda)*max(sim(d, s) for s in selected)
//
// The first pick is the most query-similar candidate. Ties keep the earlier
// candidate so the selection is deterministic.
func selectMMR(cands []candidate, k int, lambda float64) []Result {
	if k <= 0 || len(cands) == 0 {
		return []Result{}
	}
	k = min(k, len(cands))

	selected := make([]int, 0, k)
	used := make([]bool, len(cands))
	// maxSim[i] tracks max similarity of candidate i to the selected set.
	maxSim := make([]float64, len(cands))
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}

	for len(selected) < k {
		best, bestScore := -1, math.Inf(-1)
		for i, c := range cands {
			if used[i] {
				continue
			}
			score := lambda * c.result.Score
			if len(selected) > 0 {
				score -= (1 - lambda) * maxSim[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		selected = append(selected, best)
		for i, c := range cands {
			if used[i] {
				continue
			}
			if s := cosine(c.embedding, cands[best].embedding); s > maxSim[i] {
				maxSim[i] = s
			}
		}
	}

	out := make([]Result, len(selected))
	for i, idx := range selected {
		out[i] = cands[idx].result
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
