package model

import (
	"fmt"
	"math"
)

// Verdicts for one scoring mode.
const (
	Accepted          = "ACCEPTED"
	RejectedAmbiguous = "REJECTED_AMBIGUOUS"
)

// MasterRecord is one curated-catalog product. ID is the row's position in
// the source catalog and survives blocking.
type MasterRecord struct {
	ID    int     `json:"id"`
	Brand string  `json:"brand"`
	Name  string  `json:"name"`
	Size  *string `json:"size,omitempty"` // nil = column absent or cell empty
}

// ScrapedRecord is one competitor listing.
type ScrapedRecord struct {
	ID         int     `json:"id"`
	Store      *string `json:"store,omitempty"`
	Category   *string `json:"category,omitempty"`
	ItemName   string  `json:"itemName"`
	ApproxSize *string `json:"approxSize,omitempty"`
	BaseUnit   *string `json:"baseUnit,omitempty"`
	Brand      string  `json:"brand"`
}

// Weights is one (char, jaccard, cosine) convex combination.
type Weights struct {
	Char    float64 `json:"char"`
	Jaccard float64 `json:"jaccard"`
	Cosine  float64 `json:"cosine"`
}

func (w Weights) sum() float64 { return w.Char + w.Jaccard + w.Cosine }

// Options are the recognized tunables of the engine. Fixed at construction,
// never mutated during a run.
type Options struct {
	TopK             int      `json:"topK"`             // candidates retrieved per scraped record
	TopBrands        int      `json:"topBrands"`        // brand blocks to process when Brands is empty
	Brands           []string `json:"brands,omitempty"` // explicit normalized brand keys; overrides TopBrands selection
	TrueWeights      Weights  `json:"trueWeights"`
	VariantWeights   Weights  `json:"variantWeights"`
	TrueThreshold    float64  `json:"trueThreshold"`
	TrueMargin       float64  `json:"trueMargin"`
	VariantThreshold float64  `json:"variantThreshold"`
	VariantMargin    float64  `json:"variantMargin"`
}

func DefaultOptions() Options {
	return Options{
		TopK:             10,
		TopBrands:        10,
		TrueWeights:      Weights{Char: 0.50, Jaccard: 0.25, Cosine: 0.25},
		VariantWeights:   Weights{Char: 0.30, Jaccard: 0.20, Cosine: 0.50},
		TrueThreshold:    0.90,
		TrueMargin:       0.05,
		VariantThreshold: 0.88,
		VariantMargin:    0.03,
	}
}

const weightSumEps = 1e-6

// Validate fails fast, before any block is processed.
func (o Options) Validate() error {
	if o.TopK < 1 {
		return fmt.Errorf("topK must be >= 1, got %d", o.TopK)
	}
	if len(o.Brands) == 0 && o.TopBrands < 1 {
		return fmt.Errorf("topBrands must be >= 1 when no explicit brand list is given, got %d", o.TopBrands)
	}
	for _, wc := range []struct {
		name string
		w    Weights
	}{{"trueWeights", o.TrueWeights}, {"variantWeights", o.VariantWeights}} {
		if wc.w.Char < 0 || wc.w.Jaccard < 0 || wc.w.Cosine < 0 {
			return fmt.Errorf("%s must be non-negative, got %+v", wc.name, wc.w)
		}
		if math.Abs(wc.w.sum()-1.0) > weightSumEps {
			return fmt.Errorf("%s must sum to 1.0, got %.6f", wc.name, wc.w.sum())
		}
	}
	for _, tc := range []struct {
		name string
		v    float64
	}{{"trueThreshold", o.TrueThreshold}, {"variantThreshold", o.VariantThreshold}} {
		if tc.v < 0 || tc.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", tc.name, tc.v)
		}
	}
	for _, mc := range []struct {
		name string
		v    float64
	}{{"trueMargin", o.TrueMargin}, {"variantMargin", o.VariantMargin}} {
		if mc.v < 0 {
			return fmt.Errorf("%s must be >= 0, got %g", mc.name, mc.v)
		}
	}
	return nil
}

// Candidate is one retrieved (scraped, master) pair inside a block.
// MasterPos is the position within the block, not the catalog ID.
type Candidate struct {
	MasterPos    int
	Char         float64
	Jaccard      float64
	Cosine       float64
	TrueScore    float64
	VariantScore float64
}

// ModeDecision is the outcome for one scraped record under one scoring mode.
// Second* fields are set only when at least two candidates were scored.
type ModeDecision struct {
	Verdict        string   `json:"verdict"`
	BestScore      float64  `json:"bestScore"`
	SecondScore    *float64 `json:"secondScore,omitempty"`
	Margin         *float64 `json:"margin,omitempty"`
	BestMasterID   int      `json:"bestMasterId"`
	BestName       string   `json:"bestName"`
	BestSize       *string  `json:"bestSize,omitempty"`
	SecondMasterID *int     `json:"secondMasterId,omitempty"`
	SecondName     *string  `json:"secondName,omitempty"`
	SecondSize     *string  `json:"secondSize,omitempty"`
}

// ResultRow is the full decision detail for one scraped record in one block:
// both modes plus the raw components of the true-mode best candidate.
type ResultRow struct {
	ScrapedID    int          `json:"scrapedId"`
	BrandKey     string       `json:"brandKey"`
	Store        *string      `json:"store,omitempty"`
	Category     *string      `json:"category,omitempty"`
	ItemName     string       `json:"itemName"`
	ApproxSize   *string      `json:"approxSize,omitempty"`
	ScrapedCanon string       `json:"scrapedCanon"`
	True         ModeDecision `json:"true"`
	Variant      ModeDecision `json:"variant"`
	BestChar     float64      `json:"bestChar"`
	BestJaccard  float64      `json:"bestJaccard"`
	BestCosine   float64      `json:"bestCosine"`
}

type BlockSummary struct {
	BrandKey          string  `json:"brandKey"`
	MasterRows        int     `json:"masterRows"`
	ScrapedRows       int     `json:"scrapedRows"`
	ScoredRows        int     `json:"scoredRows"`
	TrueAcceptRate    float64 `json:"trueAcceptRate"`
	VariantAcceptRate float64 `json:"variantAcceptRate"`
	Note              string  `json:"note,omitempty"`
}

type Result struct {
	Rows    []ResultRow    `json:"rows"`
	Summary []BlockSummary `json:"summary"`
	Opts    Options        `json:"opts"`
}
