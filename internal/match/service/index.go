package service

import (
	"math"
	"sort"
	"strings"
)

// tfidfIndex is a disposable, block-scoped lexical vector space over the
// block's master canon strings: word unigrams + bigrams, smoothed document
// frequency weighting (no minimum-df pruning), l2-normalized vectors.
// Built, queried, discarded; vocabularies differ per block.
//
// All float accumulation runs over sorted term lists; map iteration order
// must not leak into scores or repeated runs stop being identical.
type tfidfIndex struct {
	df   map[string]int       // term -> documents containing it
	n    int                  // document count
	docs []map[string]float64 // l2-normalized tf-idf vector per master row
}

// terms emits unigrams and bigrams over whitespace-delimited tokens.
func terms(text string) []string {
	toks := strings.Fields(text)
	if len(toks) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(toks))
	out = append(out, toks...)
	for i := 0; i+1 < len(toks); i++ {
		out = append(out, toks[i]+" "+toks[i+1])
	}
	return out
}

func termCounts(text string) map[string]float64 {
	tf := make(map[string]float64)
	for _, term := range terms(text) {
		tf[term]++
	}
	return tf
}

func sortedTerms(vec map[string]float64) []string {
	keys := make([]string, 0, len(vec))
	for term := range vec {
		keys = append(keys, term)
	}
	sort.Strings(keys)
	return keys
}

func buildIndex(texts []string) *tfidfIndex {
	ix := &tfidfIndex{
		df:   make(map[string]int),
		n:    len(texts),
		docs: make([]map[string]float64, len(texts)),
	}

	counts := make([]map[string]float64, len(texts))
	for i, t := range texts {
		counts[i] = termCounts(t)
		for term := range counts[i] {
			ix.df[term]++
		}
	}

	for i, tf := range counts {
		vec := make(map[string]float64, len(tf))
		for term, c := range tf {
			vec[term] = c * ix.idf(term)
		}
		normalizeVec(vec)
		ix.docs[i] = vec
	}
	return ix
}

// smoothed idf, so terms appearing in every document still carry weight
func (ix *tfidfIndex) idf(term string) float64 {
	return math.Log(float64(1+ix.n)/float64(1+ix.df[term])) + 1
}

func normalizeVec(vec map[string]float64) {
	keys := sortedTerms(vec)
	var ss float64
	for _, term := range keys {
		ss += vec[term] * vec[term]
	}
	if ss == 0 {
		return
	}
	norm := math.Sqrt(ss)
	for _, term := range keys {
		vec[term] /= norm
	}
}

// hit is one retrieved master row with its cosine similarity to the query.
type hit struct {
	pos    int
	cosine float64
}

// query projects text into the block's vector space (out-of-vocabulary
// terms contribute nothing) and returns the k most similar master rows by
// cosine, ties broken by master position ascending. k is capped at the
// document count, so retrieval never returns more candidates than the
// block has master rows.
func (ix *tfidfIndex) query(text string, k int) []hit {
	if k > ix.n {
		k = ix.n
	}
	if k <= 0 {
		return nil
	}

	vec := make(map[string]float64)
	for term, c := range termCounts(text) {
		if _, ok := ix.df[term]; ok {
			vec[term] = c * ix.idf(term)
		}
	}
	normalizeVec(vec)
	qTerms := sortedTerms(vec)

	hits := make([]hit, ix.n)
	for i, doc := range ix.docs {
		var dot float64
		for _, term := range qTerms {
			dot += vec[term] * doc[term]
		}
		hits[i] = hit{pos: i, cosine: dot}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].cosine != hits[j].cosine {
			return hits[i].cosine > hits[j].cosine
		}
		return hits[i].pos < hits[j].pos
	})
	return hits[:k]
}
