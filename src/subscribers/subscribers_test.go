package subscribers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ir-stock-service/src/helpers"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
	"ir-stock-service/src/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterValid(t *testing.T) {
	in := []models.MSubscriber{
		{Email: "ok@example.com"},
		{Email: ""},
		{Email: "no-at.example.com"},
		{Email: "two@@example.com"},
		{Email: "spaces in@example.com"},
		{Email: "nodot@example"},
		{Email: "  padded@example.org  "},
	}

	out := FilterValid(in)
	require.Len(t, out, 2)
	assert.Equal(t, "ok@example.com", out[0].Email)
	assert.Equal(t, "padded@example.org", out[1].Email)
}

// -----------------------------------------------------------------------------

func TestStrapiSource_Pagination(t *testing.T) {
	pages := map[string]string{
		"1": `{"data":[{"id":1,"attributes":{"email":"a@example.com","firstName":"Ann"}},{"id":2,"attributes":{"email":"bad"}}],"meta":{"pagination":{"page":1,"pageCount":2}}}`,
		"2": `{"data":[{"id":3,"email":"c@example.com","lastName":"Cole","company":"Acme"}],"meta":{"pagination":{"page":2,"pageCount":2}}}`,
	}
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/api/investor-subscribers", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("filters[optIn][$eq]"))
		assert.Equal(t, "25", r.URL.Query().Get("pagination[pageSize]"))
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("pagination[page]")]))
	}))
	defer srv.Close()

	log := logger.Discard("strapi-test")
	src := NewStrapiSource(&models.MStrapiConfig{
		APIURL:     srv.URL + "/",
		APIToken:   "tok",
		Collection: "investor-subscribers",
		OptInField: "optIn",
		PageSize:   25,
	}, network.NewHTTPManager(&models.MNetworkConfig{RequestTimeout: 5}, log), log)

	subs, err := src.FetchSubscribers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, requests)
	require.Len(t, subs, 3)
	assert.Equal(t, "Ann", subs[0].FirstName)
	assert.Equal(t, models.MSubscriber{Email: "c@example.com", LastName: "Cole", Company: "Acme"}, subs[2])
}

func TestStrapiSource_MissingURL(t *testing.T) {
	src := NewStrapiSource(&models.MStrapiConfig{Collection: "x"}, nil, nil)
	_, err := src.FetchSubscribers(context.Background())
	assert.True(t, helpers.IsConfigurationError(err))
}

// -----------------------------------------------------------------------------

type pagedLister struct {
	members []models.MSubscriber
	calls   int
}

func (p *pagedLister) ListMembers(ctx context.Context, offset, count int) ([]models.MSubscriber, int, error) {
	p.calls++
	end := offset + count
	if end > len(p.members) {
		end = len(p.members)
	}
	return p.members[offset:end], len(p.members), nil
}

func TestAudienceSource_PagesUntilTotal(t *testing.T) {
	lister := &pagedLister{}
	for i := 0; i < 5; i++ {
		lister.members = append(lister.members, models.MSubscriber{Email: fmt.Sprintf("m%d@example.com", i)})
	}

	subs, err := NewAudienceSource(lister, 2, nil).FetchSubscribers(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 5)
	assert.Equal(t, 3, lister.calls)
}

// -----------------------------------------------------------------------------

type stubSource struct {
	name  string
	subs  []models.MSubscriber
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchSubscribers(ctx context.Context) ([]models.MSubscriber, error) {
	s.calls++
	return s.subs, s.err
}

func noSleepPolicy() helpers.RetryPolicy {
	return helpers.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func TestResolver(t *testing.T) {
	valid := []models.MSubscriber{{Email: "x@example.com"}}

	tests := []struct {
		name           string
		primary        *stubSource
		fallback       *stubSource
		expectedSource string
		expectedCount  int
		expectErr      bool
		primaryCalls   int
		fallbackCalls  int
	}{
		{
			name:           "primary wins",
			primary:        &stubSource{name: "strapi", subs: valid},
			fallback:       &stubSource{name: "mailchimp", subs: valid},
			expectedSource: "strapi",
			expectedCount:  1,
			primaryCalls:   1,
		},
		{
			name:           "empty primary falls back",
			primary:        &stubSource{name: "strapi"},
			fallback:       &stubSource{name: "mailchimp", subs: valid},
			expectedSource: "mailchimp",
			expectedCount:  1,
			primaryCalls:   1,
			fallbackCalls:  1,
		},
		{
			name:           "only invalid primary emails fall back",
			primary:        &stubSource{name: "strapi", subs: []models.MSubscriber{{Email: "nope"}}},
			fallback:       &stubSource{name: "mailchimp", subs: valid},
			expectedSource: "mailchimp",
			expectedCount:  1,
			primaryCalls:   1,
			fallbackCalls:  1,
		},
		{
			name:           "failing primary is retried then falls back",
			primary:        &stubSource{name: "strapi", err: errors.New("502")},
			fallback:       &stubSource{name: "mailchimp", subs: valid},
			expectedSource: "mailchimp",
			expectedCount:  1,
			primaryCalls:   3,
			fallbackCalls:  1,
		},
		{
			name:           "both empty",
			primary:        &stubSource{name: "strapi"},
			fallback:       &stubSource{name: "mailchimp"},
			expectedSource: "mailchimp",
			primaryCalls:   1,
			fallbackCalls:  1,
		},
		{
			name:           "fallback error propagates",
			primary:        &stubSource{name: "strapi"},
			fallback:       &stubSource{name: "mailchimp", err: errors.New("down")},
			expectedSource: "mailchimp",
			expectErr:      true,
			primaryCalls:   1,
			fallbackCalls:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.primary, tt.fallback, noSleepPolicy(), nil)
			subs, source, err := r.Resolve(context.Background())

			if tt.expectErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedSource, source)
			assert.Len(t, subs, tt.expectedCount)
			assert.Equal(t, tt.primaryCalls, tt.primary.calls)
			assert.Equal(t, tt.fallbackCalls, tt.fallback.calls)
		})
	}
}
