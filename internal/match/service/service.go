package service

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"match-service/internal/match/model"
)

const degenerateNote = "insufficient rows for matching"

// Run is the whole engine. Builds canons, blocks both catalogs by brand,
// retrieves and scores candidates per block, decides both modes per scraped
// record and aggregates the block summaries. Blocks share no state, so they
// are processed concurrently; output order is fixed afterwards (rows in
// brand-selection order, summary by scraped rows descending).
func Run(master []model.MasterRecord, scraped []model.ScrapedRecord, opt model.Options) (model.Result, error) {
	if err := opt.Validate(); err != nil {
		return model.Result{}, err
	}

	masterBy := partitionMaster(buildMasterEntries(master))
	scrapedBy := partitionScraped(buildScrapedEntries(scraped))
	brands := selectBrands(masterBy, scrapedBy, opt)

	type blockOut struct {
		rows    []model.ResultRow
		summary model.BlockSummary
	}
	outs := make([]blockOut, len(brands))

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())
	for i, key := range brands {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			rows, sum := matchBlock(key, masterBy[key], scrapedBy[key], opt)
			outs[i] = blockOut{rows: rows, summary: sum}
		}(i, key)
	}
	wg.Wait()

	res := model.Result{Opts: opt}
	for _, o := range outs {
		res.Rows = append(res.Rows, o.rows...)
		res.Summary = append(res.Summary, o.summary)
	}
	sort.SliceStable(res.Summary, func(i, j int) bool {
		return res.Summary[i].ScrapedRows > res.Summary[j].ScrapedRows
	})
	return res, nil
}

// matchBlock runs retrieval, scoring and both decisions for one brand block.
// Degenerate blocks (under 2 master rows or no scraped rows) are skipped but
// still reported.
func matchBlock(key string, masterBlk []masterEntry, scrapedBlk []scrapedEntry, opt model.Options) ([]model.ResultRow, model.BlockSummary) {
	sum := model.BlockSummary{
		BrandKey:    key,
		MasterRows:  len(masterBlk),
		ScrapedRows: len(scrapedBlk),
	}
	if len(masterBlk) < 2 || len(scrapedBlk) == 0 {
		sum.Note = degenerateNote
		return nil, sum
	}

	texts := make([]string, len(masterBlk))
	for i, m := range masterBlk {
		texts[i] = m.canon
	}
	ix := buildIndex(texts)

	var rows []model.ResultRow
	trueAccepted, variantAccepted := 0, 0

	for _, s := range scrapedBlk {
		if s.canon == "" {
			continue // nothing to compare; reflected in scoredRows only
		}

		hits := ix.query(s.canon, opt.TopK)
		cands := make([]model.Candidate, len(hits))
		for i, h := range hits {
			cands[i] = scoreCandidate(s.canon, texts[h.pos], h.pos, h.cosine, opt)
		}

		trueDec, trueBest := decide(cands, masterBlk, trueScoreOf, opt.TrueThreshold, opt.TrueMargin)
		variantDec, _ := decide(cands, masterBlk, variantScoreOf, opt.VariantThreshold, opt.VariantMargin)
		if trueDec.Verdict == model.Accepted {
			trueAccepted++
		}
		if variantDec.Verdict == model.Accepted {
			variantAccepted++
		}

		rows = append(rows, model.ResultRow{
			ScrapedID:    s.rec.ID,
			BrandKey:     key,
			Store:        s.rec.Store,
			Category:     s.rec.Category,
			ItemName:     s.rec.ItemName,
			ApproxSize:   s.rec.ApproxSize,
			ScrapedCanon: s.canon,
			True:         trueDec,
			Variant:      variantDec,
			BestChar:     round3(trueBest.Char),
			BestJaccard:  round3(trueBest.Jaccard),
			BestCosine:   round3(trueBest.Cosine),
		})
	}

	sum.ScoredRows = len(rows)
	if len(rows) > 0 {
		sum.TrueAcceptRate = round3(float64(trueAccepted) / float64(len(rows)))
		sum.VariantAcceptRate = round3(float64(variantAccepted) / float64(len(rows)))
	}
	return rows, sum
}

func trueScoreOf(c model.Candidate) float64    { return c.TrueScore }
func variantScoreOf(c model.Candidate) float64 { return c.VariantScore }

// decide ranks the candidate set under one mode's composite score and
// applies the threshold+margin rule: accepted iff the best score clears the
// threshold and there is either no runner-up or a wide enough gap to it.
// Pure function of the candidates and configuration.
func decide(cands []model.Candidate, masterBlk []masterEntry, score func(model.Candidate) float64, threshold, margin float64) (model.ModeDecision, model.Candidate) {
	ranked := make([]model.Candidate, len(cands))
	copy(ranked, cands)
	// stable: ties keep retrieval order (cosine desc, master position asc)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})

	best := ranked[0]
	bestRec := masterBlk[best.MasterPos].rec
	dec := model.ModeDecision{
		BestScore:    round3(score(best)),
		BestMasterID: bestRec.ID,
		BestName:     bestRec.Name,
		BestSize:     bestRec.Size,
	}

	accepted := score(best) >= threshold
	if len(ranked) > 1 {
		second := ranked[1]
		secondRec := masterBlk[second.MasterPos].rec
		m := score(best) - score(second)

		secondScore := round3(score(second))
		marginR := round3(m)
		dec.SecondScore = &secondScore
		dec.Margin = &marginR
		dec.SecondMasterID = &secondRec.ID
		dec.SecondName = &secondRec.Name
		dec.SecondSize = secondRec.Size

		accepted = accepted && m >= margin
	}

	if accepted {
		dec.Verdict = model.Accepted
	} else {
		dec.Verdict = model.RejectedAmbiguous
	}
	return dec, best
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
