package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

// OutlookDay describes one SPC convective outlook page.
type OutlookDay struct {
	Key   string
	ID    forecast.SourceID
	Label string
	URL   string
}

// OutlookDays lists the supported SPC outlook pages in ascending day order.
var OutlookDays = []OutlookDay{
	{Key: "day1", ID: forecast.SourceOutlookDay1, Label: "Day 1", URL: "https://www.spc.noaa.gov/products/outlook/day1otlk.html"},
	{Key: "day2", ID: forecast.SourceOutlookDay2, Label: "Day 2", URL: "https://www.spc.noaa.gov/products/outlook/day2otlk.html"},
	{Key: "day3", ID: forecast.SourceOutlookDay3, Label: "Day 3", URL: "https://www.spc.noaa.gov/products/outlook/day3otlk.html"},
	{Key: "day4-8", ID: forecast.SourceOutlookDay4, Label: "Day 4-8", URL: "https://www.spc.noaa.gov/products/exper/day4-8/"},
}

// LookupOutlookDay returns the outlook registered under key.
func LookupOutlookDay(key string) (OutlookDay, bool) {
	for _, d := range OutlookDays {
		if d.Key == key {
			return d, true
		}
	}
	return OutlookDay{}, false
}

// OutlookSource fetches one SPC outlook page. The pages carry no reliable
// issuance marker, so documents are returned without one.
type OutlookSource struct {
	day     OutlookDay
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewOutlookSource creates a source for day.
func NewOutlookSource(client *http.Client, userAgent string, day OutlookDay) *OutlookSource {
	return &OutlookSource{
		day: day,
		httpCfg: HTTPClientConfig{
			Client:    client,
			UserAgent: userAgent,
		},
		circuit: newBreaker(string(day.ID)),
		now:     time.Now,
	}
}

func (s *OutlookSource) ID() forecast.SourceID {
	return s.day.ID
}

func (s *OutlookSource) Label() string {
	return s.day.Label
}

// Fetch downloads the page and returns the text of every <pre> block concatenated
// in document order.
func (s *OutlookSource) Fetch(ctx context.Context) (forecast.Document, error) {
	raw, err := getBody(ctx, s.httpCfg, s.circuit, s.ID(), s.day.URL, "text/html")
	if err != nil {
		return forecast.Document{}, err
	}

	text, err := ExtractPreformatted(raw)
	if err != nil {
		return forecast.Document{}, &forecast.FetchError{Source: s.ID(), URL: s.day.URL, Err: err}
	}

	return forecast.Document{
		SourceID:  s.ID(),
		Label:     s.Label(),
		Body:      text,
		URL:       s.day.URL,
		FetchedAt: s.now().UTC(),
	}, nil
}

// ExtractPreformatted concatenates the text of all <pre> elements verbatim.
func ExtractPreformatted(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	doc.Find("pre").Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(sel.Text())
	})

	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("page has no preformatted text")
	}
	return b.String(), nil
}
