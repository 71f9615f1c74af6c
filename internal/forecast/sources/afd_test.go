package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

func newAFDServer(t *testing.T, graph func(base string) []map[string]string, products map[string]string) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch {
		case r.URL.Path == "/products/types/afd/locations/mpx":
			w.Header().Set("Content-Type", "application/ld+json")
			json.NewEncoder(w).Encode(map[string]interface{}{"@graph": graph(srv.URL)})
		case strings.HasPrefix(r.URL.Path, "/products/"):
			id := strings.TrimPrefix(r.URL.Path, "/products/")
			text, ok := products[id]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"productText": text})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAFDSourcePicksNewestIssuance(t *testing.T) {
	srv := newAFDServer(t, func(base string) []map[string]string {
		return []map[string]string{
			{"@id": base + "/products/old", "issuanceTime": "2024-05-01T06:00:00+00:00"},
			{"@id": base + "/products/new", "issuanceTime": "2024-05-01T12:00:00+00:00"},
			{"@id": base + "/products/mid", "issuanceTime": "2024-05-01T09:00:00+00:00"},
		}
	}, map[string]string{
		"old": "OLD AFD",
		"new": "TEST AFD",
		"mid": "MID AFD",
	})

	src := NewAFDSource(srv.Client(), "test-agent", "mpx").
		WithListingURL(srv.URL + "/products/types/afd/locations/mpx")

	doc, err := src.Fetch(context.Background())

	assert.Equal(t, nil, err)
	assert.Equal(t, forecast.SourceAFD, doc.SourceID)
	assert.Equal(t, "2024-05-01T12:00:00+00:00", doc.Marker)
	assert.Equal(t, "TEST AFD", doc.Body)
	assert.Equal(t, "AFD", doc.Label)
	assert.Equal(t, true, strings.Contains(doc.URL, "site=MPX"))
}

func TestAFDSourceEmptyGraph(t *testing.T) {
	srv := newAFDServer(t, func(string) []map[string]string { return nil }, nil)

	src := NewAFDSource(srv.Client(), "test-agent", "MPX").
		WithListingURL(srv.URL + "/products/types/afd/locations/mpx")

	_, err := src.Fetch(context.Background())

	var fetchErr *forecast.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	assert.Equal(t, forecast.SourceAFD, fetchErr.Source)
}

func TestAFDSourceEmptyProductText(t *testing.T) {
	srv := newAFDServer(t, func(base string) []map[string]string {
		return []map[string]string{
			{"@id": base + "/products/blank", "issuanceTime": "2024-05-01T12:00:00+00:00"},
		}
	}, map[string]string{"blank": "   "})

	src := NewAFDSource(srv.Client(), "test-agent", "MPX").
		WithListingURL(srv.URL + "/products/types/afd/locations/mpx")

	_, err := src.Fetch(context.Background())

	var fetchErr *forecast.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestAFDSourceNon2xxCarriesStatusAndSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("upstream maintenance"))
	}))
	defer srv.Close()

	src := NewAFDSource(srv.Client(), "test-agent", "MPX").WithListingURL(srv.URL)

	_, err := src.Fetch(context.Background())

	var fetchErr *forecast.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Equal(t, "upstream maintenance", fetchErr.Snippet)
}

func TestAFDSourceDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewAFDSource(srv.Client(), "test-agent", "MPX").WithListingURL(srv.URL)

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	assert.Equal(t, 1, calls)
}

func TestNewestItemSkipsIncompleteItems(t *testing.T) {
	items := []afdItem{
		{ID: "", IssuanceTime: "2024-05-02T00:00:00+00:00"},
		{ID: "a", IssuanceTime: "2024-05-01T00:00:00+00:00"},
		{ID: "b", IssuanceTime: ""},
	}

	got, ok := newestItem(items)

	assert.Equal(t, true, ok)
	assert.Equal(t, "a", got.ID)
}
