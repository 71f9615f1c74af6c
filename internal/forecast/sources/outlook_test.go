package sources

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

const outlookPage = `<html><body>
<h1>Day 1 Convective Outlook</h1>
<pre>SPC AC 011630

   Day 1 Convective Outlook
</pre>
<p>map</p>
<pre>...SUMMARY...
Severe storms possible.
</pre>
</body></html>`

func TestExtractPreformattedConcatenatesInOrder(t *testing.T) {
	got, err := ExtractPreformatted([]byte(outlookPage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "SPC AC 011630\n\n   Day 1 Convective Outlook\n" + "...SUMMARY...\nSevere storms possible.\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractPreformattedNoPre(t *testing.T) {
	if _, err := ExtractPreformatted([]byte("<html><body><p>nothing</p></body></html>")); err == nil {
		t.Fatal("expected error for page without <pre>")
	}
}

func TestOutlookSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(outlookPage))
	}))
	defer srv.Close()

	day, ok := LookupOutlookDay("day1")
	if !ok {
		t.Fatal("day1 not registered")
	}
	day.URL = srv.URL

	doc, err := NewOutlookSource(srv.Client(), "test-agent", day).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.SourceID != forecast.SourceOutlookDay1 {
		t.Fatalf("expected %s, got %s", forecast.SourceOutlookDay1, doc.SourceID)
	}
	if doc.Marker != "" {
		t.Fatalf("outlook documents carry no marker, got %q", doc.Marker)
	}
	if doc.Label != "Day 1" {
		t.Fatalf("unexpected label %q", doc.Label)
	}
}

func TestOutlookSourceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	day := OutlookDay{Key: "day3", ID: forecast.SourceOutlookDay3, Label: "Day 3", URL: srv.URL}

	_, err := NewOutlookSource(srv.Client(), "", day).Fetch(context.Background())

	var fetchErr *forecast.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", fetchErr.StatusCode)
	}
}

func TestLookupOutlookDayUnknown(t *testing.T) {
	if _, ok := LookupOutlookDay("day9"); ok {
		t.Fatal("day9 should not be registered")
	}
}

func TestOutlookSourceRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><pre>"))
		w.Write(bytes.Repeat([]byte("x"), maxBodyBytes))
		w.Write([]byte("</pre></body></html>"))
	}))
	defer srv.Close()

	day, _ := LookupOutlookDay("day2")
	day.URL = srv.URL

	_, err := NewOutlookSource(srv.Client(), "test-agent", day).Fetch(context.Background())

	var fetchErr *forecast.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if !errors.Is(err, errBodyTooLarge) {
		t.Fatalf("expected body too large, got %v", err)
	}
	if fetchErr.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 on the error, got %d", fetchErr.StatusCode)
	}
}
