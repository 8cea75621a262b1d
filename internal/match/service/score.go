package service

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"match-service/internal/match/model"
)

// charSimilarity is the order-insensitive token-set fuzzy ratio in [0,1].
// Tolerant of one string being a token-subset of the other.
func charSimilarity(a, b string) float64 {
	return float64(fuzzy.TokenSetRatio(a, b)) / 100.0
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range strings.Fields(clean(s)) {
		out[t] = struct{}{}
	}
	return out
}

// jaccardSimilarity over whitespace tokens. 0.0 when both sets are empty:
// no division by zero and no implied perfect similarity.
func jaccardSimilarity(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0.0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// scoreCandidate combines the three components into both mode composites.
func scoreCandidate(scrapedCanon, masterCanon string, masterPos int, cosine float64, opt model.Options) model.Candidate {
	ch := charSimilarity(scrapedCanon, masterCanon)
	jac := jaccardSimilarity(scrapedCanon, masterCanon)

	tw, vw := opt.TrueWeights, opt.VariantWeights
	return model.Candidate{
		MasterPos:    masterPos,
		Char:         ch,
		Jaccard:      jac,
		Cosine:       cosine,
		TrueScore:    tw.Char*ch + tw.Jaccard*jac + tw.Cosine*cosine,
		VariantScore: vw.Char*ch + vw.Jaccard*jac + vw.Cosine*cosine,
	}
}
