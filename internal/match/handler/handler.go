package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"match-service/internal/config"
	"match-service/internal/fileio"
	"match-service/internal/match/model"
	matchSvc "match-service/internal/match/service"
)

// Match returns an http.HandlerFunc so the router can mount it as
// r.Post("/match", matchHnd.Match(cfg, logger)).
func Match(cfg config.Config, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		reqID := r.Header.Get("X-Request-ID")
		log := logger
		if reqID != "" {
			log = logger.With().Str("req_id", reqID).Logger()
		}

		defer r.Body.Close()
		if err := r.ParseMultipartForm(int64(cfg.MaxUploadMB) << 20); err != nil {
			http.Error(w, "bad multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}

		masterFile, masterHdr, err := r.FormFile("master")
		if err != nil {
			http.Error(w, "missing master: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer masterFile.Close()

		scrapedFile, scrapedHdr, err := r.FormFile("scraped")
		if err != nil {
			http.Error(w, "missing scraped: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer scrapedFile.Close()

		// Read both catalogs (encoding-aware CSV, XLS/XLSX inside fileio)
		masterMaps, err := fileio.ReadAnyMaps(masterFile, masterHdr.Filename, atoi(r.FormValue("m_header_row"), 1))
		if err != nil {
			http.Error(w, "failed to read master: "+err.Error(), http.StatusBadRequest)
			return
		}
		scrapedMaps, err := fileio.ReadAnyMaps(scrapedFile, scrapedHdr.Filename, atoi(r.FormValue("s_header_row"), 1))
		if err != nil {
			http.Error(w, "failed to read scraped: "+err.Error(), http.StatusBadRequest)
			return
		}

		mm := masterMapping{
			Brand:     formOr(r, "m_brand", "brand"),
			Name:      formOr(r, "m_name", "name"),
			Size:      formOr(r, "m_size", "size"),
			HeaderRow: atoi(r.FormValue("m_header_row"), 1),
		}
		sm := scrapedMapping{
			Brand:     formOr(r, "s_brand", "brand"),
			ItemName:  formOr(r, "s_item_name", "item_name"),
			Size:      formOr(r, "s_size", "approx_item_size"),
			Unit:      formOr(r, "s_unit", "base_unit"),
			Store:     formOr(r, "s_store", "store"),
			Category:  formOr(r, "s_category", "category"),
			HeaderRow: atoi(r.FormValue("s_header_row"), 1),
		}

		def := model.DefaultOptions()
		def.TopK = cfg.TopK
		def.TopBrands = cfg.TopBrands
		opt := model.Options{
			TopK:             atoi(r.FormValue("top_k"), def.TopK),
			TopBrands:        atoi(r.FormValue("top_brands"), def.TopBrands),
			Brands:           parseBrands(r.FormValue("brands")),
			TrueWeights:      parseWeights(r.FormValue("true_weights"), def.TrueWeights),
			VariantWeights:   parseWeights(r.FormValue("variant_weights"), def.VariantWeights),
			TrueThreshold:    toFloat(r.FormValue("true_threshold"), def.TrueThreshold),
			TrueMargin:       toFloat(r.FormValue("true_margin"), def.TrueMargin),
			VariantThreshold: toFloat(r.FormValue("variant_threshold"), def.VariantThreshold),
			VariantMargin:    toFloat(r.FormValue("variant_margin"), def.VariantMargin),
		}

		masterRecs := toMasterRecords(masterMaps, mm)
		scrapedRecs := toScrapedRecords(scrapedMaps, sm)

		res, err := matchSvc.Run(masterRecs, scrapedRecs, opt)
		if err != nil {
			// configuration error, refused before any block ran
			http.Error(w, "bad options: "+err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Error().Err(err).Msg("write json")
			return
		}

		log.Info().
			Int("masterRows", len(masterRecs)).
			Int("scrapedRows", len(scrapedRecs)).
			Int("blocks", len(res.Summary)).
			Int("decisions", len(res.Rows)).
			Dur("elapsed", time.Since(start)).
			Msg("match done")
	}
}

func formOr(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}
