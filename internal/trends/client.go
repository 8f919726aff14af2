// Package trends fetches search-interest data from Google Trends' widget
// API: an explore call hands out per-widget tokens, which unlock the
// interest-over-time and related-searches endpoints.
package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grailmeter/grail-meter/apimodels"
	"github.com/grailmeter/grail-meter/internal/config"
)

const (
	widgetTimeseries     = "TIMESERIES"
	widgetRelatedQueries = "RELATED_QUERIES"

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Client struct {
	cfg        *config.TrendsConfig
	httpClient *http.Client
}

func NewClient(cfg *config.TrendsConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type exploreResponse struct {
	Widgets []widget `json:"widgets"`
}

type timelineResponse struct {
	Default struct {
		TimelineData []struct {
			Time    string `json:"time"`
			Value   []int  `json:"value"`
			HasData []bool `json:"hasData"`
		} `json:"timelineData"`
	} `json:"default"`
}

type relatedResponse struct {
	Default struct {
		RankedList []struct {
			RankedKeyword []struct {
				Query string `json:"query"`
				Value int    `json:"value"`
			} `json:"rankedKeyword"`
		} `json:"rankedList"`
	} `json:"default"`
}

// InterestOverTime returns the monthly search-interest series for term.
// An empty series with a nil error means the service had no data.
func (c *Client) InterestOverTime(ctx context.Context, term string) ([]apimodels.TrendPoint, error) {
	w, err := c.exploreWidget(ctx, term, widgetTimeseries)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.cfg.Endpoint+"/widgetdata/multiline", url.Values{
		"hl":    {"en-US"},
		"tz":    {"360"},
		"req":   {string(w.Request)},
		"token": {w.Token},
	})
	if err != nil {
		return nil, fmt.Errorf("interest over time for %q: %w", term, err)
	}

	var tl timelineResponse
	if err := json.Unmarshal(body, &tl); err != nil {
		return nil, fmt.Errorf("decode timeline for %q: %w", term, err)
	}

	points := make([]apimodels.TrendPoint, 0, len(tl.Default.TimelineData))
	for _, row := range tl.Default.TimelineData {
		if len(row.Value) == 0 {
			continue
		}
		if len(row.HasData) > 0 && !row.HasData[0] {
			continue
		}
		secs, err := strconv.ParseInt(row.Time, 10, 64)
		if err != nil {
			slog.Warn("skipping trend point with bad timestamp", "time", row.Time)
			continue
		}
		points = append(points, apimodels.TrendPoint{
			Date:   time.Unix(secs, 0).UTC().Format("2006-01-02"),
			Volume: row.Value[0],
		})
	}

	slog.Debug("interest over time fetched", "term", term, "points", len(points))
	return points, nil
}

// RelatedQueries returns top related search terms for term, best first.
func (c *Client) RelatedQueries(ctx context.Context, term string) ([]apimodels.Keyword, error) {
	w, err := c.exploreWidget(ctx, term, widgetRelatedQueries)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.cfg.Endpoint+"/widgetdata/relatedsearches", url.Values{
		"hl":    {"en-US"},
		"tz":    {"360"},
		"req":   {string(w.Request)},
		"token": {w.Token},
	})
	if err != nil {
		return nil, fmt.Errorf("related queries for %q: %w", term, err)
	}

	var rel relatedResponse
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("decode related queries for %q: %w", term, err)
	}

	if len(rel.Default.RankedList) == 0 {
		return nil, nil
	}

	ranked := rel.Default.RankedList[0].RankedKeyword
	keywords := make([]apimodels.Keyword, 0, len(ranked))
	for _, rk := range ranked {
		if rk.Query == "" {
			continue
		}
		keywords = append(keywords, apimodels.Keyword{Keyword: rk.Query, Volume: rk.Value})
	}

	slog.Debug("related queries fetched", "term", term, "keywords", len(keywords))
	return keywords, nil
}

// exploreWidget performs the explore call and picks out the widget carrying
// the token for the requested data endpoint.
func (c *Client) exploreWidget(ctx context.Context, term, widgetID string) (*widget, error) {
	req := fmt.Sprintf(`{"comparisonItem":[{"keyword":%q,"time":%q,"geo":%q}],"category":0,"property":""}`,
		term, c.cfg.Timeframe, c.cfg.Geo)

	body, err := c.get(ctx, c.cfg.Endpoint+"/explore", url.Values{
		"hl":  {"en-US"},
		"tz":  {"360"},
		"req": {req},
	})
	if err != nil {
		return nil, fmt.Errorf("explore %q: %w", term, err)
	}

	var explore exploreResponse
	if err := json.Unmarshal(body, &explore); err != nil {
		return nil, fmt.Errorf("decode explore for %q: %w", term, err)
	}

	for i := range explore.Widgets {
		if explore.Widgets[i].ID == widgetID {
			return &explore.Widgets[i], nil
		}
	}
	return nil, fmt.Errorf("explore response for %q has no %s widget", term, widgetID)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return stripXSSIPrefix(body), nil
}

// stripXSSIPrefix drops the anti-XSSI garbage (")]}',") Google prepends to
// every widget API response, leaving the JSON payload.
func stripXSSIPrefix(body []byte) []byte {
	s := string(body)
	if i := strings.IndexAny(s, "{["); i > 0 {
		return body[i:]
	}
	return body
}

// CandidateTerms builds the ordered search terms to try for a brand and
// category: the combined term first, then each part on its own. Unknown or
// empty parts are skipped.
func CandidateTerms(brand, category string) []string {
	brand = strings.TrimSpace(brand)
	category = strings.TrimSpace(category)

	var terms []string
	if brand != "" && brand != "Unknown" && category != "" && category != "Unknown" {
		terms = append(terms, brand+" "+category)
	}
	if brand != "" && brand != "Unknown" {
		terms = append(terms, brand)
	}
	if category != "" && category != "Unknown" {
		terms = append(terms, category)
	}
	return terms
}
