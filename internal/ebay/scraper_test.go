package ebay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"

	"github.com/grailmeter/grail-meter/internal/config"
)

const resultsPage = `<html><body><ul>
<li class="s-item">
  <div class="s-item__title">Shop on eBay</div>
  <span class="s-item__price">$20.00</span>
</li>
<li class="s-item">
  <div class="s-item__title">Nike Tech Fleece Hoodie Mens L</div>
  <span class="s-item__price">$45.00</span>
</li>
<li class="s-item">
  <div class="s-item__title">Nike Hoodie Vintage</div>
  <span class="s-item__price">$30.00 to $55.00</span>
</li>
<li class="s-item">
  <div class="s-item__title">Nike Hoodie No Price</div>
  <span class="s-item__price">Free</span>
</li>
<li class="s-item">
  <div class="s-item__title">Nike Hoodie XL</div>
  <span class="s-item__price">$1,250.50</span>
</li>
</ul></body></html>`

func TestParseListings(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsPage))
	assert.NoError(t, err)

	listings := parseListings(doc, 20)

	assert.Len(t, listings, 3, "template card and priceless rows are dropped")
	assert.Equal(t, "Nike Tech Fleece Hoodie Mens L", listings[0].Title)
	assert.Equal(t, 45.0, listings[0].Price)
	assert.Equal(t, 30.0, listings[1].Price, "range prices take the low bound")
	assert.Equal(t, 1250.50, listings[2].Price)
}

func TestParseListingsLimit(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsPage))
	assert.NoError(t, err)

	listings := parseListings(doc, 2)
	assert.Len(t, listings, 2)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"$45.00", 45},
		{"$30.00 to $55.00", 30},
		{"USD 99", 99},
		{"$1,250.50", 1250.50},
		{"Free", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parsePrice(tt.raw), "parsePrice(%q)", tt.raw)
	}
}

func TestPriceStats(t *testing.T) {
	stats := PriceStats([]Listing{
		{Title: "a", Price: 40},
		{Title: "b", Price: 60},
		{Title: "c", Price: 0},
		{Title: "d", Price: 50},
	})

	assert.NotNil(t, stats)
	assert.Equal(t, 40.0, stats.Low)
	assert.Equal(t, 60.0, stats.High)
	assert.Equal(t, 50.0, stats.Average)
	assert.Equal(t, 3, stats.Samples)
}

func TestPriceStatsEmpty(t *testing.T) {
	assert.Nil(t, PriceStats(nil))
	assert.Nil(t, PriceStats([]Listing{{Title: "zero", Price: 0}}))
}

func TestSoldListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nike hoodie", r.URL.Query().Get("_nkw"))
		assert.Equal(t, "1", r.URL.Query().Get("LH_Sold"))
		fmt.Fprint(w, resultsPage)
	}))
	defer srv.Close()

	s := NewScraper(&config.EbayConfig{
		BaseURL:    srv.URL,
		MaxResults: 20,
		Timeout:    5 * time.Second,
	})

	listings, err := s.SoldListings(context.Background(), "nike hoodie")
	assert.NoError(t, err)
	assert.Len(t, listings, 3)
}

func TestSoldListingsBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewScraper(&config.EbayConfig{
		BaseURL:    srv.URL,
		MaxResults: 20,
		Timeout:    5 * time.Second,
	})

	_, err := s.SoldListings(context.Background(), "nike hoodie")
	assert.Error(t, err)
}
