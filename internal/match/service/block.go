package service

import (
	"sort"

	"match-service/internal/match/model"
)

// masterEntry / scrapedEntry carry a record together with its canon string.
// Canons are computed once up front and never persisted.
type masterEntry struct {
	rec   model.MasterRecord
	brand string // clean(brand), blocking key
	canon string
}

type scrapedEntry struct {
	rec   model.ScrapedRecord
	brand string
	canon string
}

func buildMasterEntries(recs []model.MasterRecord) []masterEntry {
	out := make([]masterEntry, len(recs))
	for i, r := range recs {
		out[i] = masterEntry{
			rec:   r,
			brand: clean(r.Brand),
			canon: buildCanon(r.Brand, r.Name, deref(r.Size)),
		}
	}
	return out
}

func buildScrapedEntries(recs []model.ScrapedRecord) []scrapedEntry {
	out := make([]scrapedEntry, len(recs))
	for i, r := range recs {
		out[i] = scrapedEntry{
			rec:   r,
			brand: clean(r.Brand),
			canon: buildCanon(r.Brand, r.ItemName, deref(r.ApproxSize), deref(r.BaseUnit)),
		}
	}
	return out
}

// partitionByBrand groups entries by normalized brand. Blocks are disjoint;
// matching never crosses them.
func partitionMaster(entries []masterEntry) map[string][]masterEntry {
	m := make(map[string][]masterEntry)
	for _, e := range entries {
		m[e.brand] = append(m[e.brand], e)
	}
	return m
}

func partitionScraped(entries []scrapedEntry) map[string][]scrapedEntry {
	m := make(map[string][]scrapedEntry)
	for _, e := range entries {
		m[e.brand] = append(m[e.brand], e)
	}
	return m
}

// selectBrands returns the block keys to process. With an explicit list the
// keys are normalized and passed through as-is (degenerate blocks still get
// a summary). Otherwise: brands present in both catalogs, ranked by scraped
// frequency descending (key ascending on ties, for determinism), truncated
// to topBrands.
func selectBrands(masterBy map[string][]masterEntry, scrapedBy map[string][]scrapedEntry, opt model.Options) []string {
	if len(opt.Brands) > 0 {
		out := make([]string, 0, len(opt.Brands))
		for _, b := range opt.Brands {
			out = append(out, clean(b))
		}
		return out
	}

	keys := make([]string, 0, len(scrapedBy))
	for k := range scrapedBy {
		if _, ok := masterBy[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := len(scrapedBy[keys[i]]), len(scrapedBy[keys[j]])
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	if len(keys) > opt.TopBrands {
		keys = keys[:opt.TopBrands]
	}
	return keys
}
