package apimodels

// AnalyzeResponse is the merged payload returned by POST /analyze and
// POST /upload.
type AnalyzeResponse struct {
	// Human-readable outcome summary
	Message string `json:"message"`

	// Best analysis extracted from the uploaded image(s)
	Analysis Analysis `json:"analysis"`

	// Interest-over-time series for the detected brand/category
	TrendData []TrendPoint `json:"trend_data"`

	// Keyword suggestions, from related queries or the vision model
	Keywords []Keyword `json:"keywords"`

	// True when any part of the response fell back to defaults or
	// synthetic data instead of real upstream results
	Degraded bool `json:"degraded"`

	// One entry per degraded part, empty when Degraded is false
	DegradedReasons []string `json:"degraded_reasons,omitempty"`
}

// Analysis is the normalized result of one vision-model extraction.
type Analysis struct {
	Brand     string `json:"brand"`
	Category  string `json:"category"`
	Condition int    `json:"condition"`

	SEOKeywords []Keyword `json:"seo_keywords"`

	// Present when eBay sold listings produced a usable price sample
	EstimatedRetailRange *PriceStats `json:"estimated_retail_range,omitempty"`
}

// Keyword pairs a search term with its relative volume.
type Keyword struct {
	Keyword string `json:"keyword"`
	Volume  int    `json:"volume"`
}

// TrendPoint is one month of search interest.
type TrendPoint struct {
	// YYYY-MM-DD
	Date   string `json:"date"`
	Volume int    `json:"volume"`

	// Set when the point was generated locally because the trend
	// service returned nothing
	Synthetic bool `json:"synthetic,omitempty"`
}

// PriceStats summarizes sold-listing prices for an item.
type PriceStats struct {
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
	Average float64 `json:"average"`
	Samples int     `json:"samples"`
}

// HistoryResponse is the payload returned by GET /history.
type HistoryResponse struct {
	Searches []SearchRecord `json:"searches"`
}

// SearchRecord is one persisted analysis, as stored in search history.
type SearchRecord struct {
	ID            int64          `json:"id,omitempty"`
	ProductTitle  string         `json:"product_title"`
	Category      string         `json:"category"`
	Details       map[string]any `json:"details,omitempty"`
	MarketMetrics map[string]any `json:"market_metrics,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
}
