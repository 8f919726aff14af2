package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailmeter/grail-meter/apimodels"
	"github.com/grailmeter/grail-meter/internal/ebay"
	"github.com/grailmeter/grail-meter/internal/history"
)

type fakeVision struct {
	responses map[string]string
	err       error
}

func (f *fakeVision) AnalyzeImage(_ context.Context, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, resp := range f.responses {
		return resp, nil
	}
	return "", errors.New("no canned response")
}

type seqVision struct {
	responses []string
	calls     int
}

func (f *seqVision) AnalyzeImage(_ context.Context, _ []byte, _ string) (string, error) {
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

type fakeTrends struct {
	points  map[string][]apimodels.TrendPoint
	related map[string][]apimodels.Keyword
	iotErr  error
	queries []string
}

func (f *fakeTrends) InterestOverTime(_ context.Context, term string) ([]apimodels.TrendPoint, error) {
	f.queries = append(f.queries, term)
	if f.iotErr != nil {
		return nil, f.iotErr
	}
	return f.points[term], nil
}

func (f *fakeTrends) RelatedQueries(_ context.Context, term string) ([]apimodels.Keyword, error) {
	return f.related[term], nil
}

type fakePrices struct {
	listings []ebay.Listing
	err      error
}

func (f *fakePrices) SoldListings(_ context.Context, _ string) ([]ebay.Listing, error) {
	return f.listings, f.err
}

const goodCompletion = `{"brand":"Nike","category":"mens hoodie","condition":8,"seo_keywords":[{"keyword":"nike hoodie","volume":100}]}`

func upload() []Upload {
	return []Upload{{Filename: "front.jpg", MimeType: "image/jpeg", Data: []byte{0xff, 0xd8}}}
}

func TestAnalyzeHappyPath(t *testing.T) {
	trendsFake := &fakeTrends{
		points: map[string][]apimodels.TrendPoint{
			"Nike mens hoodie": {{Date: "2025-01-01", Volume: 60}},
		},
		related: map[string][]apimodels.Keyword{
			"Nike mens hoodie": {
				{Keyword: "nike tech fleece", Volume: 100},
				{Keyword: "nike hoodie mens", Volume: 90},
			},
		},
	}
	pricesFake := &fakePrices{listings: []ebay.Listing{{Title: "sold", Price: 45}, {Title: "sold", Price: 55}}}
	store := history.NewMemoryStore()

	a := New(&fakeVision{responses: map[string]string{"x": goodCompletion}}, trendsFake, pricesFake, store)

	resp, err := a.Analyze(context.Background(), upload())
	assert.NoError(t, err)

	assert.Equal(t, "Analysis completed successfully", resp.Message)
	assert.Equal(t, "Nike", resp.Analysis.Brand)
	assert.Equal(t, 8, resp.Analysis.Condition)
	assert.False(t, resp.Degraded)
	assert.Empty(t, resp.DegradedReasons)

	assert.Len(t, resp.TrendData, 1)
	assert.False(t, resp.TrendData[0].Synthetic)

	assert.Equal(t, "nike tech fleece", resp.Keywords[0].Keyword)
	assert.Equal(t, resp.Keywords, resp.Analysis.SEOKeywords, "related queries replace model keywords")

	assert.NotNil(t, resp.Analysis.EstimatedRetailRange)
	assert.Equal(t, 45.0, resp.Analysis.EstimatedRetailRange.Low)
	assert.Equal(t, 55.0, resp.Analysis.EstimatedRetailRange.High)

	records, err := store.Recent(context.Background(), 1)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "Nike mens hoodie", records[0].ProductTitle)
}

func TestAnalyzeSyntheticTrendFallback(t *testing.T) {
	trendsFake := &fakeTrends{} // no data for any term
	a := New(&fakeVision{responses: map[string]string{"x": goodCompletion}}, trendsFake, &fakePrices{}, history.NewMemoryStore())

	resp, err := a.Analyze(context.Background(), upload())
	assert.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.TrendData)
	for _, p := range resp.TrendData {
		assert.True(t, p.Synthetic)
	}
	// All candidate terms were tried before falling back.
	assert.Equal(t, []string{"Nike mens hoodie", "Nike", "mens hoodie"}, trendsFake.queries)
	// Model keywords survive when related queries are empty.
	assert.Equal(t, "nike hoodie", resp.Keywords[0].Keyword)
}

func TestAnalyzeTrendTermFallthrough(t *testing.T) {
	trendsFake := &fakeTrends{
		points: map[string][]apimodels.TrendPoint{
			"Nike": {{Date: "2025-01-01", Volume: 40}},
		},
	}
	a := New(&fakeVision{responses: map[string]string{"x": goodCompletion}}, trendsFake, &fakePrices{}, history.NewMemoryStore())

	resp, err := a.Analyze(context.Background(), upload())
	assert.NoError(t, err)

	assert.Len(t, resp.TrendData, 1)
	assert.Equal(t, 40, resp.TrendData[0].Volume)
	assert.Equal(t, []string{"Nike mens hoodie", "Nike"}, trendsFake.queries, "stops at the first term with data")
}

func TestAnalyzeNoBrandSkipsEnrichment(t *testing.T) {
	completion := `{"brand":"Unknown","category":"mens hoodie","condition":5,"seo_keywords":[]}`
	trendsFake := &fakeTrends{}
	a := New(&fakeVision{responses: map[string]string{"x": completion}}, trendsFake, &fakePrices{}, history.NewMemoryStore())

	resp, err := a.Analyze(context.Background(), upload())
	assert.NoError(t, err)

	assert.Equal(t, "Analysis completed but no brand detected", resp.Message)
	assert.True(t, resp.Degraded)
	assert.Empty(t, resp.TrendData)
	assert.Empty(t, resp.Keywords)
	assert.Empty(t, trendsFake.queries, "no trend lookup without a brand")
}

func TestAnalyzeUnparseableCompletion(t *testing.T) {
	a := New(&fakeVision{responses: map[string]string{"x": "the model rambled with no json"}}, &fakeTrends{}, &fakePrices{}, history.NewMemoryStore())

	resp, err := a.Analyze(context.Background(), upload())
	assert.NoError(t, err, "parse failures degrade, they do not error")

	assert.True(t, resp.Degraded)
	assert.Equal(t, "Unknown", resp.Analysis.Brand)
	assert.Equal(t, 0, resp.Analysis.Condition)
}

func TestAnalyzeTotalVisionFailure(t *testing.T) {
	a := New(&fakeVision{err: errors.New("boom")}, &fakeTrends{}, &fakePrices{}, history.NewMemoryStore())

	_, err := a.Analyze(context.Background(), upload())
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestAnalyzeNoUploads(t *testing.T) {
	a := New(&fakeVision{}, &fakeTrends{}, &fakePrices{}, history.NewMemoryStore())

	_, err := a.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestAnalyzePicksMostInformative(t *testing.T) {
	vision := &seqVision{responses: []string{
		`{"brand":"Unknown","category":"Unknown","condition":0,"seo_keywords":[]}`,
		goodCompletion,
	}}
	trendsFake := &fakeTrends{
		points: map[string][]apimodels.TrendPoint{
			"Nike mens hoodie": {{Date: "2025-01-01", Volume: 60}},
		},
	}
	a := New(vision, trendsFake, &fakePrices{}, history.NewMemoryStore())

	uploads := []Upload{
		{Filename: "blurry.jpg", MimeType: "image/jpeg", Data: []byte{1}},
		{Filename: "clear.jpg", MimeType: "image/jpeg", Data: []byte{2}},
	}

	resp, err := a.Analyze(context.Background(), uploads)
	assert.NoError(t, err)
	assert.Equal(t, "Nike", resp.Analysis.Brand)
}

func TestKeywordListShapes(t *testing.T) {
	objects := keywordList([]any{
		map[string]any{"keyword": "nike hoodie", "volume": float64(100)},
		map[string]any{"keyword": "", "volume": float64(50)},
		"nike tech fleece",
		float64(3),
	})

	assert.Len(t, objects, 2)
	assert.Equal(t, apimodels.Keyword{Keyword: "nike hoodie", Volume: 100}, objects[0])
	assert.Equal(t, apimodels.Keyword{Keyword: "nike tech fleece"}, objects[1])

	assert.Empty(t, keywordList("not a list"))
	assert.Empty(t, keywordList(nil))
}

func TestCleanBrand(t *testing.T) {
	tests := []struct{ in, want string }{
		{"A|X Armani Exchange", "Armani Exchange"},
		{"A/X Armani Exchange", "Armani Exchange"},
		{"  Nike ", "Nike"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanBrand(tt.in))
	}
}

func TestConditionClamped(t *testing.T) {
	assert.Equal(t, 10, conditionField(map[string]any{"condition": float64(15)}))
	assert.Equal(t, 0, conditionField(map[string]any{"condition": float64(-2)}))
	assert.Equal(t, 0, conditionField(map[string]any{"condition": "great"}))
	assert.Equal(t, 7, conditionField(map[string]any{"condition": float64(7)}))
}
