package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var parleysTrip = RouteSummary{
	Origin:      "Salt Lake City, UT",
	Destination: "Park City, UT",
	Rating:      "hazardous",
	Score:       75,
	HazardCount: 1,
	SafeCount:   1,
	DistanceKm:  45.87,
	DurationMin: 32,
	Hazards: []HazardNote{
		{Name: "I-80 at Parleys Summit", Condition: "snow", DistanceKm: 0.045},
	},
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
			return
		}
		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1736928000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestAdvisor_Advise(t *testing.T) {
	server := chatServer(t, http.StatusOK, `{
		"headline": "Snow on Parleys Summit",
		"details": "The camera at I-80 at Parleys Summit shows snow. Carry chains.",
		"recommendation": "proceed_with_caution",
		"condensed_summary": "Snow at Parleys Summit, carry chains."
	}`)
	defer server.Close()

	advisor := NewAdvisor("test-key", "gpt-4o-mini", server.URL+"/v1")
	advisor.(*openAIAdvisor).now = func() time.Time { return time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC) }

	advisory, err := advisor.Advise(context.Background(), parleysTrip)
	require.NoError(t, err)
	assert.Equal(t, "Snow on Parleys Summit", advisory.Headline)
	assert.Equal(t, "proceed_with_caution", advisory.Recommendation)
	assert.Equal(t, "Snow at Parleys Summit, carry chains.", advisory.CondensedSummary)
	assert.Equal(t, 2025, advisory.GeneratedAt.Year())
}

func TestAdvisor_FillsInvalidFields(t *testing.T) {
	server := chatServer(t, http.StatusOK, `{"headline": "Trip", "details": "Go.", "recommendation": "yolo", "condensed_summary": ""}`)
	defer server.Close()

	advisory, err := NewAdvisor("test-key", "gpt-4o-mini", server.URL+"/v1").Advise(context.Background(), parleysTrip)
	require.NoError(t, err)
	assert.Equal(t, "delay_travel", advisory.Recommendation)
	assert.Equal(t, CondensedSummary(parleysTrip), advisory.CondensedSummary)
}

func TestAdvisor_Errors(t *testing.T) {
	_, err := NewAdvisor("", "gpt-4o-mini", "").Advise(context.Background(), parleysTrip)
	assert.Error(t, err, "missing API key")
	assert.Error(t, NewAdvisor("", "gpt-4o-mini", "").HealthCheck(context.Background()))

	server := chatServer(t, http.StatusUnauthorized, "")
	defer server.Close()
	_, err = NewAdvisor("test-key", "gpt-4o-mini", server.URL+"/v1").Advise(context.Background(), parleysTrip)
	assert.ErrorContains(t, err, "OpenAI API error")

	garbage := chatServer(t, http.StatusOK, "not json")
	defer garbage.Close()
	_, err = NewAdvisor("test-key", "gpt-4o-mini", garbage.URL+"/v1").Advise(context.Background(), parleysTrip)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestCondensedSummary(t *testing.T) {
	assert.Equal(t, "Hazards at 1 camera incl. I-80 at Parleys Summit (snow).", CondensedSummary(parleysTrip))

	unknown := RouteSummary{Rating: "unknown", Degraded: true}
	assert.Equal(t, "No camera coverage, conditions unknown; straight-line estimate only.", CondensedSummary(unknown))

	caution := RouteSummary{Rating: "caution", CautionCount: 4, SafeCount: 6}
	assert.Equal(t, "Marginal conditions at 4 of 10 cameras.", CondensedSummary(caution))
}

func TestContentHasher(t *testing.T) {
	h := NewContentHasher()
	base := h.HashSummary(parleysTrip)
	assert.Len(t, base, 64)

	same := parleysTrip
	same.Origin = "angels  camp, ca"
	same.DistanceKm = 32.2
	assert.Equal(t, base, h.HashSummary(same), "case, spacing and sub-km distance do not matter")

	reordered := parleysTrip
	reordered.Hazards = []HazardNote{{Name: "I-80 at Lambs Canyon", Condition: "ice"}, parleysTrip.Hazards[0]}
	swapped := reordered
	swapped.Hazards = []HazardNote{reordered.Hazards[1], reordered.Hazards[0]}
	assert.Equal(t, h.HashSummary(reordered), h.HashSummary(swapped))

	worse := parleysTrip
	worse.HazardCount = 2
	assert.NotEqual(t, base, h.HashSummary(worse))
}

type mockAdvisor struct {
	mock.Mock
}

func (m *mockAdvisor) Advise(ctx context.Context, summary RouteSummary) (Advisory, error) {
	args := m.Called(ctx, summary)
	return args.Get(0).(Advisory), args.Error(1)
}

func (m *mockAdvisor) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type memoryCache struct {
	entries map[string]Advisory
	setErr  error
}

func (c *memoryCache) SetAdvisory(hash string, a Advisory, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[hash] = a
	return nil
}

func (c *memoryCache) GetAdvisory(hash string) (Advisory, bool, error) {
	a, ok := c.entries[hash]
	return a, ok, nil
}

func TestCachedAdvisor(t *testing.T) {
	inner := &mockAdvisor{}
	expected := Advisory{Headline: "Snow on Parleys Summit", Recommendation: "delay_travel"}
	inner.On("Advise", mock.Anything, parleysTrip).Return(expected, nil).Once()
	inner.On("HealthCheck", mock.Anything).Return(nil)

	cached := NewCachedAdvisor(inner, &memoryCache{entries: map[string]Advisory{}}, 0)

	first, err := cached.Advise(context.Background(), parleysTrip)
	require.NoError(t, err)
	second, err := cached.Advise(context.Background(), parleysTrip)
	require.NoError(t, err)

	assert.Equal(t, expected, first)
	assert.Equal(t, expected, second)
	inner.AssertNumberOfCalls(t, "Advise", 1)
	assert.NoError(t, cached.HealthCheck(context.Background()))
}

func TestCachedAdvisor_Failures(t *testing.T) {
	inner := &mockAdvisor{}
	inner.On("Advise", mock.Anything, mock.Anything).Return(Advisory{}, errors.New("rate limited")).Once()
	inner.On("Advise", mock.Anything, mock.Anything).Return(Advisory{Headline: "ok"}, nil)

	cache := &memoryCache{entries: map[string]Advisory{}, setErr: errors.New("full")}
	cached := NewCachedAdvisor(inner, cache, time.Minute)

	_, err := cached.Advise(context.Background(), parleysTrip)
	assert.Error(t, err)

	advisory, err := cached.Advise(context.Background(), parleysTrip)
	require.NoError(t, err, "cache write failure is not fatal")
	assert.Equal(t, "ok", advisory.Headline)
	assert.Empty(t, cache.entries)
}
