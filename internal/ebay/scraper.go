// Package ebay pulls sold-listing prices from eBay search result pages to
// give the analysis a retail price signal.
package ebay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/grailmeter/grail-meter/apimodels"
	"github.com/grailmeter/grail-meter/internal/config"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// priceRegexp captures the first numeric price value in a listing's price
// text, which may read "$45.00", "$30.00 to $55.00" or carry a currency code.
var priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// Listing is one sold item scraped from a results page.
type Listing struct {
	Title string
	Price float64
}

type Scraper struct {
	cfg        *config.EbayConfig
	httpClient *http.Client
}

func NewScraper(cfg *config.EbayConfig) *Scraper {
	return &Scraper{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SoldListings searches completed+sold listings for query and returns up to
// MaxResults parsed entries.
func (s *Scraper) SoldListings(ctx context.Context, query string) ([]Listing, error) {
	searchURL := fmt.Sprintf("%s/sch/i.html?%s", s.cfg.BaseURL, url.Values{
		"_nkw":        {query},
		"LH_Sold":     {"1"},
		"LH_Complete": {"1"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ebay returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	listings := parseListings(doc, s.cfg.MaxResults)
	slog.Debug("sold listings scraped", "query", query, "count", len(listings))
	return listings, nil
}

// PriceStats reduces listings to a low/high/average summary. Returns nil
// when there is no usable sample.
func PriceStats(listings []Listing) *apimodels.PriceStats {
	prices := make([]float64, 0, len(listings))
	for _, l := range listings {
		if l.Price > 0 {
			prices = append(prices, l.Price)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	sort.Float64s(prices)

	var sum float64
	for _, p := range prices {
		sum += p
	}

	return &apimodels.PriceStats{
		Low:     prices[0],
		High:    prices[len(prices)-1],
		Average: sum / float64(len(prices)),
		Samples: len(prices),
	}
}

func parseListings(doc *goquery.Document, limit int) []Listing {
	listings := make([]Listing, 0, limit)

	doc.Find(".s-item").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find(".s-item__title").Text())
		// eBay injects a hidden template card at the top of every page.
		if title == "" || strings.EqualFold(title, "Shop on eBay") {
			return true
		}

		priceText := strings.TrimSpace(sel.Find(".s-item__price").Text())
		price := parsePrice(priceText)
		if price <= 0 {
			return true
		}

		listings = append(listings, Listing{Title: title, Price: price})
		return limit <= 0 || len(listings) < limit
	})

	return listings
}

func parsePrice(raw string) float64 {
	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}
	return price
}
