package handler

import (
	"regexp"
	"strconv"
	"strings"

	"match-service/internal/match/model"
	"match-service/internal/utils"
)

// normHeaderKey: lowercase, strip non-alphanumerics, collapse spaces, so
// that "Item Name " and "item_name" resolve to the same column.
func normHeaderKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", " ", " ", " ").Replace(s)
	s = regexp.MustCompile(`[^\p{L}\p{N}]+`).ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// resolveKey finds the real column key for a wanted name. Supports
// alternatives via "|" (e.g. "item_name|product_name"): exact match first,
// then normalized equality, then the longest containment either way.
func resolveKey(rec map[string]string, want string) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	alts := strings.Split(want, "|")
	for i := range alts {
		alts[i] = strings.TrimSpace(alts[i])
	}

	for _, a := range alts {
		if _, ok := rec[a]; ok {
			return a
		}
	}

	var nWantAll []string
	for _, a := range alts {
		nWantAll = append(nWantAll, normHeaderKey(a))
	}

	bestKey := ""
	bestScore := 0
	for k := range rec {
		nk := normHeaderKey(k)
		for _, n := range nWantAll {
			if nk == n {
				return k
			}
		}
		score := 0
		for _, n := range nWantAll {
			if n != "" && (strings.Contains(nk, n) || strings.Contains(n, nk)) {
				if len(n) > score {
					score = len(n)
				}
			}
		}
		// deterministic pick on equal score
		if score > bestScore || (score == bestScore && score > 0 && k < bestKey) {
			bestScore, bestKey = score, k
		}
	}
	return bestKey
}

// field returns the cell for a wanted column, nil when the column is absent
// or the cell is blank. "No data" stays distinct from "empty after clean".
func field(rec map[string]string, want string) *string {
	key := resolveKey(rec, want)
	if key == "" {
		return nil
	}
	v := strings.TrimSpace(rec[key])
	if v == "" {
		return nil
	}
	return &v
}

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// masterMapping / scrapedMapping are the form-driven column names.
type masterMapping struct {
	Brand, Name, Size string
	HeaderRow         int
}

type scrapedMapping struct {
	Brand, ItemName, Size, Unit, Store, Category string
	HeaderRow                                    int
}

func toMasterRecords(maps []map[string]string, m masterMapping) []model.MasterRecord {
	out := make([]model.MasterRecord, 0, len(maps))
	for _, rec := range maps {
		brand := strOr(field(rec, m.Brand))
		name := strOr(field(rec, m.Name))
		if brand == "" && name == "" {
			continue
		}
		out = append(out, model.MasterRecord{
			ID:    len(out),
			Brand: brand,
			Name:  name,
			Size:  field(rec, m.Size),
		})
	}
	return out
}

func toScrapedRecords(maps []map[string]string, m scrapedMapping) []model.ScrapedRecord {
	out := make([]model.ScrapedRecord, 0, len(maps))
	for _, rec := range maps {
		brand := strOr(field(rec, m.Brand))
		name := strOr(field(rec, m.ItemName))
		if brand == "" && name == "" {
			continue
		}
		out = append(out, model.ScrapedRecord{
			ID:         len(out),
			Store:      field(rec, m.Store),
			Category:   field(rec, m.Category),
			ItemName:   name,
			ApproxSize: field(rec, m.Size),
			BaseUnit:   field(rec, m.Unit),
			Brand:      brand,
		})
	}
	return out
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func toFloat(s string, def float64) float64 {
	if f, ok := utils.ParseFloatLoose(s); ok {
		return f
	}
	return def
}

// parseWeights reads "0.5,0.25,0.25" (char, jaccard, cosine). Anything that
// doesn't split into three numbers keeps the default; Options.Validate
// still guards the sum.
func parseWeights(s string, def model.Weights) model.Weights {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return def
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return def
		}
		vals[i] = f
	}
	return model.Weights{Char: vals[0], Jaccard: vals[1], Cosine: vals[2]}
}

func parseBrands(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}
