// Package analyzer runs the full pipeline for one request: vision
// extraction per image, response normalization, best-analysis selection,
// trend and keyword enrichment, sold-price stats, and history recording.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grailmeter/grail-meter/apimodels"
	"github.com/grailmeter/grail-meter/internal/ebay"
	"github.com/grailmeter/grail-meter/internal/history"
	"github.com/grailmeter/grail-meter/internal/llm"
	"github.com/grailmeter/grail-meter/internal/normalizer"
	"github.com/grailmeter/grail-meter/internal/trends"
)

// ErrNoAnalysis is returned when the vision model produced nothing usable
// for any uploaded image.
var ErrNoAnalysis = errors.New("vision analysis failed for every image")

const maxKeywords = 5

// Upload is one image from a multipart request.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// TrendSource provides search-interest data for a term.
type TrendSource interface {
	InterestOverTime(ctx context.Context, term string) ([]apimodels.TrendPoint, error)
	RelatedQueries(ctx context.Context, term string) ([]apimodels.Keyword, error)
}

// PriceSource provides sold-listing samples for a query.
type PriceSource interface {
	SoldListings(ctx context.Context, query string) ([]ebay.Listing, error)
}

type Analyzer struct {
	vision  llm.Provider
	trends  TrendSource
	prices  PriceSource
	history history.Store
}

func New(vision llm.Provider, trendSource TrendSource, priceSource PriceSource, store history.Store) *Analyzer {
	return &Analyzer{
		vision:  vision,
		trends:  trendSource,
		prices:  priceSource,
		history: store,
	}
}

// Analyze runs the pipeline over the uploaded images and assembles the
// merged response. External failures degrade the response rather than
// failing it; only a total vision failure returns an error.
func (a *Analyzer) Analyze(ctx context.Context, uploads []Upload) (*apimodels.AnalyzeResponse, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no images supplied", ErrNoAnalysis)
	}

	start := time.Now()
	best, degradedReasons, err := a.extractBest(ctx, uploads)
	if err != nil {
		return nil, err
	}

	analysis := toAnalysis(best)
	resp := &apimodels.AnalyzeResponse{
		Message:         "Analysis completed successfully",
		Analysis:        analysis,
		TrendData:       []apimodels.TrendPoint{},
		Keywords:        []apimodels.Keyword{},
		DegradedReasons: degradedReasons,
	}

	if analysis.Brand == "Unknown" || analysis.Brand == "" {
		resp.Message = "Analysis completed but no brand detected"
		resp.DegradedReasons = append(resp.DegradedReasons, "no brand detected; trend lookup skipped")
		resp.Degraded = true
		return resp, nil
	}

	brand := cleanBrand(analysis.Brand)
	terms := trends.CandidateTerms(brand, analysis.Category)

	trendData, matchedTerm := a.fetchTrends(ctx, terms)
	if matchedTerm == "" {
		trendData = trends.Synthetic(time.Now())
		resp.DegradedReasons = append(resp.DegradedReasons, "trend service returned no data; synthetic series generated")
		matchedTerm = strings.TrimSpace(brand + " " + analysis.Category)
	}
	resp.TrendData = trendData

	resp.Keywords = a.fetchKeywords(ctx, matchedTerm, analysis.SEOKeywords, resp)

	if stats := a.fetchPriceStats(ctx, matchedTerm); stats != nil {
		resp.Analysis.EstimatedRetailRange = stats
	} else {
		resp.DegradedReasons = append(resp.DegradedReasons, "sold-listing price data unavailable")
	}

	resp.Degraded = len(resp.DegradedReasons) > 0

	a.record(ctx, matchedTerm, resp)

	slog.Info("analysis pipeline completed",
		"brand", resp.Analysis.Brand,
		"category", resp.Analysis.Category,
		"degraded", resp.Degraded,
		"duration", time.Since(start),
	)
	return resp, nil
}

// extractBest runs vision + normalization for every image and picks the
// analysis with the most informative fields.
func (a *Analyzer) extractBest(ctx context.Context, uploads []Upload) (map[string]any, []string, error) {
	var (
		candidates []map[string]any
		fallbacks  []normalizer.Result
		reasons    []string
		failures   int
	)

	for _, up := range uploads {
		raw, err := a.vision.AnalyzeImage(ctx, up.Data, up.MimeType)
		if err != nil {
			slog.Error("vision analysis failed", "file", up.Filename, "error", err)
			failures++
			continue
		}
		slog.Debug("raw vision analysis", "file", up.Filename, "length", len(raw))

		res := normalizer.Normalize(raw)
		if res.Fallback {
			slog.Warn("vision response unparseable", "file", up.Filename, "reason", res.Reason)
			fallbacks = append(fallbacks, res)
			continue
		}
		candidates = append(candidates, res.Object)
	}

	if failures == len(uploads) {
		return nil, nil, ErrNoAnalysis
	}

	if len(candidates) == 0 {
		// Every reachable completion was unparseable; serve the fixed
		// fallback object and say so.
		reasons = append(reasons, "vision response could not be parsed: "+fallbacks[0].Reason)
		return fallbacks[0].Object, reasons, nil
	}

	best := candidates[0]
	bestScore := informativeFields(best)
	for _, c := range candidates[1:] {
		if score := informativeFields(c); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, reasons, nil
}

func (a *Analyzer) fetchTrends(ctx context.Context, terms []string) ([]apimodels.TrendPoint, string) {
	for _, term := range terms {
		points, err := a.trends.InterestOverTime(ctx, term)
		if err != nil {
			slog.Warn("interest over time failed", "term", term, "error", err)
			continue
		}
		if len(points) > 0 {
			return points, term
		}
	}
	return nil, ""
}

func (a *Analyzer) fetchKeywords(ctx context.Context, term string, modelKeywords []apimodels.Keyword, resp *apimodels.AnalyzeResponse) []apimodels.Keyword {
	related, err := a.trends.RelatedQueries(ctx, term)
	if err != nil {
		slog.Warn("related queries failed", "term", term, "error", err)
	}
	if len(related) > 0 {
		if len(related) > maxKeywords {
			related = related[:maxKeywords]
		}
		resp.Analysis.SEOKeywords = related
		return related
	}

	resp.DegradedReasons = append(resp.DegradedReasons, "related queries unavailable; using model-generated keywords")
	if modelKeywords == nil {
		return []apimodels.Keyword{}
	}
	return modelKeywords
}

func (a *Analyzer) fetchPriceStats(ctx context.Context, query string) *apimodels.PriceStats {
	listings, err := a.prices.SoldListings(ctx, query)
	if err != nil {
		slog.Warn("sold listings scrape failed", "query", query, "error", err)
		return nil
	}
	return ebay.PriceStats(listings)
}

// record persists the search; failures are logged and never surface to the
// client.
func (a *Analyzer) record(ctx context.Context, term string, resp *apimodels.AnalyzeResponse) {
	if a.history == nil {
		return
	}

	metrics := map[string]any{
		"trend_points": len(resp.TrendData),
		"keywords":     len(resp.Keywords),
	}
	if resp.Analysis.EstimatedRetailRange != nil {
		metrics["price_low"] = resp.Analysis.EstimatedRetailRange.Low
		metrics["price_high"] = resp.Analysis.EstimatedRetailRange.High
		metrics["price_average"] = resp.Analysis.EstimatedRetailRange.Average
	}

	rec := apimodels.SearchRecord{
		ProductTitle: term,
		Category:     resp.Analysis.Category,
		Details: map[string]any{
			"brand":     resp.Analysis.Brand,
			"condition": resp.Analysis.Condition,
			"degraded":  resp.Degraded,
		},
		MarketMetrics: metrics,
	}
	if err := a.history.Save(ctx, rec); err != nil {
		slog.Error("failed to record search history", "error", err)
	}
}

// toAnalysis maps the normalizer's generic object onto the wire schema,
// tolerating the model's drift in seo_keywords shape and condition typing.
func toAnalysis(obj map[string]any) apimodels.Analysis {
	analysis := apimodels.Analysis{
		Brand:       stringField(obj, "brand", "Unknown"),
		Category:    stringField(obj, "category", "Unknown"),
		Condition:   conditionField(obj),
		SEOKeywords: keywordList(obj["seo_keywords"]),
	}
	return analysis
}

func stringField(obj map[string]any, key, fallback string) string {
	if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return fallback
}

func conditionField(obj map[string]any) int {
	n, ok := obj["condition"].(float64)
	if !ok {
		return 0
	}
	cond := int(n)
	if cond < 0 {
		return 0
	}
	if cond > 10 {
		return 10
	}
	return cond
}

// keywordList accepts both shapes the model produces: a list of
// {keyword, volume} objects and a list of bare strings.
func keywordList(v any) []apimodels.Keyword {
	list, ok := v.([]any)
	if !ok {
		return []apimodels.Keyword{}
	}

	keywords := make([]apimodels.Keyword, 0, len(list))
	for _, item := range list {
		switch kw := item.(type) {
		case string:
			if kw != "" {
				keywords = append(keywords, apimodels.Keyword{Keyword: kw})
			}
		case map[string]any:
			keyword, _ := kw["keyword"].(string)
			if keyword == "" {
				continue
			}
			volume, _ := kw["volume"].(float64)
			keywords = append(keywords, apimodels.Keyword{Keyword: keyword, Volume: int(volume)})
		}
	}
	return keywords
}

// informativeFields counts fields carrying real information, mirroring the
// "most non-Unknown values" best-pick rule.
func informativeFields(obj map[string]any) int {
	n := 0
	for _, v := range obj {
		if s, ok := v.(string); ok && s == "Unknown" {
			continue
		}
		n++
	}
	return n
}

// cleanBrand strips Armani Exchange style prefixes that poison trend
// searches.
func cleanBrand(brand string) string {
	brand = strings.ReplaceAll(brand, "A|X ", "")
	brand = strings.ReplaceAll(brand, "A/X ", "")
	return strings.TrimSpace(brand)
}
