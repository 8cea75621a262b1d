package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-service/internal/match/model"
)

func strp(s string) *string { return &s }

func masterRec(id int, brand, name, size string) model.MasterRecord {
	r := model.MasterRecord{ID: id, Brand: brand, Name: name}
	if size != "" {
		r.Size = strp(size)
	}
	return r
}

func scrapedRec(id int, brand, item, size, unit string) model.ScrapedRecord {
	r := model.ScrapedRecord{ID: id, Brand: brand, ItemName: item}
	if size != "" {
		r.ApproxSize = strp(size)
	}
	if unit != "" {
		r.BaseUnit = strp(unit)
	}
	return r
}

func TestRunRejectsBadOptions(t *testing.T) {
	opt := model.DefaultOptions()
	opt.TrueWeights = model.Weights{Char: 0.7, Jaccard: 0.7, Cosine: 0.7}
	_, err := Run(nil, nil, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trueWeights")
}

func TestDegenerateBlocks(t *testing.T) {
	t.Run("single master row", func(t *testing.T) {
		master := []model.MasterRecord{masterRec(0, "Acme", "Cola", "1l")}
		scraped := []model.ScrapedRecord{
			scrapedRec(0, "Acme", "Cola", "1", "l"),
			scrapedRec(1, "Acme", "Cola Zero", "1", "l"),
		}
		res, err := Run(master, scraped, model.DefaultOptions())
		require.NoError(t, err)

		assert.Empty(t, res.Rows)
		require.Len(t, res.Summary, 1)
		sum := res.Summary[0]
		assert.Equal(t, "acme", sum.BrandKey)
		assert.Equal(t, 1, sum.MasterRows)
		assert.Equal(t, 2, sum.ScrapedRows)
		assert.Equal(t, 0, sum.ScoredRows)
		assert.Equal(t, 0.0, sum.TrueAcceptRate)
		assert.Equal(t, 0.0, sum.VariantAcceptRate)
		assert.NotEmpty(t, sum.Note)
	})

	t.Run("no scraped rows for requested brand", func(t *testing.T) {
		master := []model.MasterRecord{
			masterRec(0, "Acme", "Cola", "1l"),
			masterRec(1, "Acme", "Water", "500ml"),
		}
		opt := model.DefaultOptions()
		opt.Brands = []string{"acme"}
		res, err := Run(master, nil, opt)
		require.NoError(t, err)
		require.Len(t, res.Summary, 1)
		assert.Equal(t, 0, res.Summary[0].ScoredRows)
		assert.NotEmpty(t, res.Summary[0].Note)
	})

	t.Run("degenerate block does not fail the run", func(t *testing.T) {
		master := []model.MasterRecord{
			masterRec(0, "Acme", "Cola", "1l"),
			masterRec(1, "Acme", "Water", "500ml"),
			masterRec(2, "Bravo", "Soap", ""), // only one Bravo master
		}
		scraped := []model.ScrapedRecord{
			scrapedRec(0, "acme", "cola", "1l", ""),
			scrapedRec(1, "bravo", "soap", "", ""),
		}
		res, err := Run(master, scraped, model.DefaultOptions())
		require.NoError(t, err)
		assert.Len(t, res.Summary, 2)
		assert.Len(t, res.Rows, 1) // only the acme block scores
	})
}

func TestEmptyCanonScrapedSkipped(t *testing.T) {
	// records whose fields all clean away produce an empty canon and are
	// skipped from scoring, reflected only in scoredRows < scrapedRows
	master := []model.MasterRecord{
		masterRec(0, "", "Alpha Soap", ""),
		masterRec(1, "", "Alpha Gel", ""),
	}
	scraped := []model.ScrapedRecord{
		{ID: 0, Brand: "", ItemName: ""},
		{ID: 1, Brand: "", ItemName: "alpha soap"},
	}
	opt := model.DefaultOptions()
	opt.Brands = []string{""}

	res, err := Run(master, scraped, opt)
	require.NoError(t, err)
	require.Len(t, res.Summary, 1)
	assert.Equal(t, 2, res.Summary[0].ScrapedRows)
	assert.Equal(t, 1, res.Summary[0].ScoredRows)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Rows[0].ScrapedID)
}

// Scenario: 500g vs 250g peanut butter under default thresholds. The
// composite lands well under the 0.90 true threshold (cosine ≈ 0.747, the
// size tokens diverge), so both modes must reject.
func TestScenarioPeanutButter(t *testing.T) {
	master := []model.MasterRecord{
		masterRec(0, "Acme", "Peanut Butter", "500g"),
		masterRec(1, "Acme", "Peanut Butter", "250g"),
	}
	scraped := []model.ScrapedRecord{
		scrapedRec(0, "acme", "Peanut Butter", "500", "g"),
	}

	res, err := Run(master, scraped, model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.Equal(t, "acme peanut butter 500 g", row.ScrapedCanon)

	// the 500g row wins: its glued size token is closer to "500 g"
	assert.Equal(t, 0, row.True.BestMasterID)
	assert.Greater(t, row.BestChar, 0.9)
	assert.InDelta(t, 0.747, row.BestCosine, 0.001)
	assert.InDelta(t, 0.5, row.BestJaccard, 1e-9)

	assert.InDelta(t, 0.802, row.True.BestScore, 0.003)
	require.NotNil(t, row.True.Margin)
	assert.Greater(t, *row.True.Margin, 0.0)
	assert.Less(t, *row.True.Margin, 0.05)

	assert.Equal(t, model.RejectedAmbiguous, row.True.Verdict)
	assert.Equal(t, model.RejectedAmbiguous, row.Variant.Verdict)
	assert.InDelta(t, 0.768, row.Variant.BestScore, 0.003)

	require.Len(t, res.Summary, 1)
	assert.Equal(t, 0.0, res.Summary[0].TrueAcceptRate)
	assert.Equal(t, 1, res.Summary[0].ScoredRows)
}

// Scenario: k_eff == 1 leaves no runner-up, so the margin condition is
// auto-satisfied and the verdict rides on the threshold alone.
func TestScenarioSingleCandidate(t *testing.T) {
	master := []model.MasterRecord{
		masterRec(0, "Acme", "Cola", "1l"),
		masterRec(1, "Acme", "Water", "500ml"),
	}
	scraped := []model.ScrapedRecord{
		scrapedRec(0, "acme", "cola", "1l", ""),
	}
	opt := model.DefaultOptions()
	opt.TopK = 1

	res, err := Run(master, scraped, opt)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.Nil(t, row.True.SecondScore)
	assert.Nil(t, row.True.Margin)
	assert.Nil(t, row.True.SecondMasterID)
	assert.Equal(t, 0, row.True.BestMasterID)
	assert.InDelta(t, 1.0, row.True.BestScore, 1e-9)
	assert.Equal(t, model.Accepted, row.True.Verdict)
	assert.Equal(t, model.Accepted, row.Variant.Verdict)
}

// Scenario: two masters equidistant from the query. Even with the best
// score over the threshold the near-tied runner-up forces rejection.
func TestScenarioNearTieRejected(t *testing.T) {
	master := []model.MasterRecord{
		masterRec(0, "Acme", "Juice Orange", "1l"),
		masterRec(1, "Acme", "Juice Apple", "1l"),
	}
	scraped := []model.ScrapedRecord{
		scrapedRec(0, "acme", "Juice", "1l", ""),
	}
	opt := model.DefaultOptions()
	opt.TrueThreshold = 0.80 // best ≈ 0.846 clears it
	opt.TrueMargin = 0.05

	res, err := Run(master, scraped, opt)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.InDelta(t, 0.846, row.True.BestScore, 0.002)
	require.NotNil(t, row.True.SecondScore)
	assert.InDelta(t, row.True.BestScore, *row.True.SecondScore, 0.001)
	require.NotNil(t, row.True.Margin)
	assert.InDelta(t, 0.0, *row.True.Margin, 0.001)
	assert.Equal(t, model.RejectedAmbiguous, row.True.Verdict)
}

func TestScenarioCleanAccept(t *testing.T) {
	master := []model.MasterRecord{
		masterRec(0, "Acme", "Cola", "1l"),
		masterRec(1, "Acme", "Water", "500ml"),
	}
	scraped := []model.ScrapedRecord{
		scrapedRec(0, "acme", "cola", "1l", ""),
	}

	res, err := Run(master, scraped, model.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]

	assert.Equal(t, model.Accepted, row.True.Verdict)
	assert.Equal(t, model.Accepted, row.Variant.Verdict)
	assert.InDelta(t, 1.0, row.True.BestScore, 1e-9)
	assert.Equal(t, 0, row.True.BestMasterID)
	require.NotNil(t, row.True.SecondMasterID)
	assert.Equal(t, 1, *row.True.SecondMasterID)
	assert.Equal(t, "Cola", row.True.BestName)
	require.NotNil(t, row.True.SecondName)
	assert.Equal(t, "Water", *row.True.SecondName)

	require.Len(t, res.Summary, 1)
	assert.Equal(t, 1.0, res.Summary[0].TrueAcceptRate)
	assert.Equal(t, 1.0, res.Summary[0].VariantAcceptRate)
}

func TestModeIndependence(t *testing.T) {
	blk := []masterEntry{
		{rec: masterRec(10, "b", "lexical twin", "")},
		{rec: masterRec(11, "b", "vector twin", "")},
	}
	// candidate 0 wins on character overlap, candidate 1 on cosine
	cands := []model.Candidate{
		{MasterPos: 0, Char: 1.0, Jaccard: 1.0, Cosine: 0.0, TrueScore: 0.75, VariantScore: 0.50},
		{MasterPos: 1, Char: 0.4, Jaccard: 0.4, Cosine: 1.0, TrueScore: 0.55, VariantScore: 0.70},
	}

	trueDec, _ := decide(cands, blk, trueScoreOf, 0.70, 0.10)
	variantDec, _ := decide(cands, blk, variantScoreOf, 0.70, 0.10)

	assert.Equal(t, 10, trueDec.BestMasterID)
	assert.Equal(t, 11, variantDec.BestMasterID)
	assert.Equal(t, model.Accepted, trueDec.Verdict)
	assert.Equal(t, model.Accepted, variantDec.Verdict)
}

func TestMarginMonotonicity(t *testing.T) {
	blk := []masterEntry{
		{rec: masterRec(0, "b", "first", "")},
		{rec: masterRec(1, "b", "second", "")},
	}
	second := model.Candidate{MasterPos: 1, TrueScore: 0.80}

	accepted := func(bestScore float64) bool {
		cands := []model.Candidate{
			{MasterPos: 0, TrueScore: bestScore},
			second,
		}
		dec, _ := decide(cands, blk, trueScoreOf, 0.85, 0.05)
		return dec.Verdict == model.Accepted
	}

	// widening the gap over a fixed runner-up never loses an acceptance
	prev := false
	for _, best := range []float64{0.82, 0.85, 0.88, 0.95, 1.0} {
		got := accepted(best)
		if prev {
			assert.True(t, got, "acceptance regressed at best=%v", best)
		}
		prev = got
	}
	assert.False(t, accepted(0.84)) // under threshold
	assert.False(t, accepted(0.841))
	assert.True(t, accepted(0.85)) // threshold and margin met exactly
}

func TestBrandSelectionTopN(t *testing.T) {
	master := []model.MasterRecord{
		masterRec(0, "Acme", "Cola", "1l"),
		masterRec(1, "Acme", "Water", "500ml"),
		masterRec(2, "Bravo", "Soap", ""),
		masterRec(3, "Bravo", "Gel", ""),
		masterRec(4, "Delta", "Chips", ""),
		masterRec(5, "Delta", "Nuts", ""),
	}
	scraped := []model.ScrapedRecord{
		scrapedRec(0, "acme", "cola", "1l", ""),
		scrapedRec(1, "bravo", "soap", "", ""),
		scrapedRec(2, "bravo", "gel", "", ""),
		scrapedRec(3, "bravo", "shampoo", "", ""),
		scrapedRec(4, "delta", "chips", "", ""),
		scrapedRec(5, "delta", "nuts", "", ""),
		scrapedRec(6, "echo", "unknown", "", ""), // not in master: excluded
	}
	opt := model.DefaultOptions()
	opt.TopBrands = 2

	res, err := Run(master, scraped, opt)
	require.NoError(t, err)

	require.Len(t, res.Summary, 2)
	// sorted by scraped volume descending
	assert.Equal(t, "bravo", res.Summary[0].BrandKey)
	assert.Equal(t, 3, res.Summary[0].ScrapedRows)
	assert.Equal(t, "delta", res.Summary[1].BrandKey)
}

func TestRunDeterministic(t *testing.T) {
	master := []model.MasterRecord{
		masterRec(0, "Acme", "Peanut Butter", "500g"),
		masterRec(1, "Acme", "Peanut Butter", "250g"),
		masterRec(2, "Acme", "Chocolate Spread", "400g"),
		masterRec(3, "Bravo", "Orange Juice", "1l"),
		masterRec(4, "Bravo", "Apple Juice", "1l"),
	}
	scraped := []model.ScrapedRecord{
		scrapedRec(0, "acme", "peanut butter", "500", "g"),
		scrapedRec(1, "acme", "choc spread", "400", "g"),
		scrapedRec(2, "bravo", "orange juice", "1", "l"),
		scrapedRec(3, "bravo", "juice", "", ""),
	}

	first, err := Run(master, scraped, model.DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Run(master, scraped, model.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
