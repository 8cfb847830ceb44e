package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/platform/gemini"
)

// fakeVerdictCache holds verdicts in a map keyed by HS code.
type fakeVerdictCache struct {
	verdicts map[string]domain.CodeVerdict
	sets     []domain.CodeVerdict
	err      error
}

func (f *fakeVerdictCache) Set(_ context.Context, v domain.CodeVerdict) error {
	f.sets = append(f.sets, v)
	return nil
}

func (f *fakeVerdictCache) Get(_ context.Context, check domain.CodeCheck) (domain.CodeVerdict, error) {
	v, ok := f.verdicts[check.HSCode]
	if !ok {
		return domain.CodeVerdict{}, domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeVerdictCache) GetBatch(_ context.Context, checks []domain.CodeCheck) ([]domain.CodeVerdict, []domain.CodeCheck, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	var hits []domain.CodeVerdict
	var misses []domain.CodeCheck
	for _, c := range checks {
		if v, ok := f.verdicts[c.HSCode]; ok {
			hits = append(hits, v)
		} else {
			misses = append(misses, c)
		}
	}
	return hits, misses, nil
}

// geminiStub starts a generateContent endpoint that always answers with body
// and counts requests.
func geminiStub(t *testing.T, body string) (*gemini.Client, *int) {
	t.Helper()
	calls := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		resp := map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": body}}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return gemini.NewClient(srv.URL, "gemini-1.5-flash", "k", 5*time.Second, 1), calls
}

func TestClassifyCodesFreshPairs(t *testing.T) {
	client, calls := geminiStub(t, `[
		{"hs_code":"61091000","description":"Cotton T-Shirts","is_correct":true,"reason":"knitted apparel"},
		{"hs_code":"84713000","description":"Basmati Rice","is_correct":false,"reason":"chapter 84 is machinery","suggested_category":"Ch 10 cereals"}
	]`)
	cache := &fakeVerdictCache{verdicts: map[string]domain.CodeVerdict{}}
	c := NewClassifier(client, cache, testLogger())

	verdicts, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
		{HSCode: "84713000", Description: "Basmati Rice"},
	})
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].IsCorrect)
	assert.False(t, verdicts[1].IsCorrect)
	assert.Equal(t, 1, *calls)
	// Fresh verdicts are written back to the cache.
	assert.Len(t, cache.sets, 2)
}

func TestClassifyCodesCacheHitsSkipModel(t *testing.T) {
	client, calls := geminiStub(t, `[]`)
	cache := &fakeVerdictCache{verdicts: map[string]domain.CodeVerdict{
		"61091000": {HSCode: "61091000", Description: "Cotton T-Shirts", IsCorrect: true},
	}}
	c := NewClassifier(client, cache, testLogger())

	verdicts, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
	})
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.True(t, verdicts[0].IsCorrect)
	assert.Zero(t, *calls)
	assert.Empty(t, cache.sets)
}

func TestClassifyCodesPartialCacheHit(t *testing.T) {
	client, calls := geminiStub(t, `[{"hs_code":"10063020","description":"Basmati Rice","is_correct":true,"reason":"cereals"}]`)
	cache := &fakeVerdictCache{verdicts: map[string]domain.CodeVerdict{
		"61091000": {HSCode: "61091000", IsCorrect: true},
	}}
	c := NewClassifier(client, cache, testLogger())

	verdicts, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
		{HSCode: "10063020", Description: "Basmati Rice"},
	})
	require.NoError(t, err)
	assert.Len(t, verdicts, 2)
	assert.Equal(t, 1, *calls)
	assert.Len(t, cache.sets, 1)
}

func TestClassifyCodesCacheFailureDegrades(t *testing.T) {
	client, calls := geminiStub(t, `[{"hs_code":"61091000","description":"Cotton T-Shirts","is_correct":true,"reason":"ok"}]`)
	cache := &fakeVerdictCache{err: context.DeadlineExceeded}
	c := NewClassifier(client, cache, testLogger())

	verdicts, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
	})
	require.NoError(t, err)
	assert.Len(t, verdicts, 1)
	assert.Equal(t, 1, *calls)
}

func TestClassifyCodesMalformedResponse(t *testing.T) {
	client, _ := geminiStub(t, `the code looks fine to me`)
	c := NewClassifier(client, nil, testLogger())

	_, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
	})
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestClassifyCodesMissingHSCode(t *testing.T) {
	client, _ := geminiStub(t, `[{"description":"Cotton T-Shirts","is_correct":true}]`)
	c := NewClassifier(client, nil, testLogger())

	_, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
	})
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestClassifyCodesFencedResponse(t *testing.T) {
	client, _ := geminiStub(t, "```json\n[{\"hs_code\":\"61091000\",\"description\":\"Cotton T-Shirts\",\"is_correct\":true,\"reason\":\"ok\"}]\n```")
	c := NewClassifier(client, nil, testLogger())

	verdicts, err := c.ClassifyCodes(context.Background(), []domain.CodeCheck{
		{HSCode: "61091000", Description: "Cotton T-Shirts"},
	})
	require.NoError(t, err)
	assert.Len(t, verdicts, 1)
}

func TestClassifyCodesEmptyInput(t *testing.T) {
	client, calls := geminiStub(t, `[]`)
	c := NewClassifier(client, nil, testLogger())

	verdicts, err := c.ClassifyCodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, verdicts)
	assert.Zero(t, *calls)
}
