package retrieve

import "github.com/newslens/newslens/app/dedup"

// MMR re-ranks candidates by Maximal Marginal Relevance: each round picks
// the candidate maximizing lambda*relevance + (1-lambda)*(1 - maxSimToSelected),
// where similarity is cosine similarity of the embedding vectors. Ties go
// to the earlier candidate. The result has min(topK, len(candidates))
// entries and no duplicates.
func MMR(candidates []Candidate, lambda float64, topK int) []Candidate {
	if topK > len(candidates) {
		topK = len(candidates)
	}
	if topK <= 0 {
		return nil
	}

	selected := make([]Candidate, 0, topK)
	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)

	for len(selected) < topK {
		bestIdx := -1
		bestValue := 0.0

		for i, c := range remaining {
			value := lambda*c.Score + (1-lambda)*(1-maxSimilarity(c, selected))
			if bestIdx == -1 || value > bestValue {
				bestIdx = i
				bestValue = value
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func maxSimilarity(c Candidate, selected []Candidate) float64 {
	max := 0.0
	for _, s := range selected {
		if sim := dedup.CosineSimilarity(c.Vector, s.Vector); sim > max {
			max = sim
		}
	}
	return max
}
