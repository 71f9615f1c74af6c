package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

const (
	afdListingURL = "https://api.weather.gov/products/types/afd/locations/%s"
	afdProductURL = "https://forecast.weather.gov/product.php?site=%s&issuedby=%s&product=AFD&format=ci&version=1&glossary=1"
	afdAccept     = "application/ld+json"
)

// AFDSource fetches the latest Area Forecast Discussion for one forecast office
// from api.weather.gov. The listing and the product are two sequential requests.
type AFDSource struct {
	office     string
	listingURL string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
	now        func() time.Time
}

// NewAFDSource creates an AFD source for office (e.g. "MPX").
func NewAFDSource(client *http.Client, userAgent, office string) *AFDSource {
	office = strings.ToUpper(strings.TrimSpace(office))
	return &AFDSource{
		office:     office,
		listingURL: fmt.Sprintf(afdListingURL, strings.ToLower(office)),
		httpCfg: HTTPClientConfig{
			Client:    client,
			UserAgent: userAgent,
		},
		circuit: newBreaker("afd"),
		now:     time.Now,
	}
}

// AFDProductURL returns the public product page for office.
func AFDProductURL(office string) string {
	office = strings.ToUpper(strings.TrimSpace(office))
	return fmt.Sprintf(afdProductURL, office, office)
}

// WithListingURL points the source at a different listing endpoint.
func (s *AFDSource) WithListingURL(u string) *AFDSource {
	s.listingURL = u
	return s
}

func (s *AFDSource) ID() forecast.SourceID {
	return forecast.SourceAFD
}

func (s *AFDSource) Label() string {
	return "AFD"
}

type afdListing struct {
	Graph []afdItem `json:"@graph"`
}

type afdItem struct {
	ID           string `json:"@id"`
	IssuanceTime string `json:"issuanceTime"`
}

type afdProduct struct {
	ProductText string `json:"productText"`
}

// Fetch returns the newest AFD. The listing is not guaranteed to be ordered, so the
// item with the greatest issuanceTime wins.
func (s *AFDSource) Fetch(ctx context.Context) (forecast.Document, error) {
	raw, err := getBody(ctx, s.httpCfg, s.circuit, s.ID(), s.listingURL, afdAccept)
	if err != nil {
		return forecast.Document{}, err
	}

	var listing afdListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return forecast.Document{}, s.shapeError(s.listingURL, fmt.Errorf("decode listing: %w", err))
	}

	latest, ok := newestItem(listing.Graph)
	if !ok {
		return forecast.Document{}, s.shapeError(s.listingURL, errors.New("listing has no usable @graph items"))
	}

	raw, err = getBody(ctx, s.httpCfg, s.circuit, s.ID(), latest.ID, afdAccept)
	if err != nil {
		return forecast.Document{}, err
	}

	var product afdProduct
	if err := json.Unmarshal(raw, &product); err != nil {
		return forecast.Document{}, s.shapeError(latest.ID, fmt.Errorf("decode product: %w", err))
	}
	if strings.TrimSpace(product.ProductText) == "" {
		return forecast.Document{}, s.shapeError(latest.ID, errors.New("productText is empty"))
	}

	return forecast.Document{
		SourceID:  s.ID(),
		Label:     s.Label(),
		Marker:    latest.IssuanceTime,
		Body:      product.ProductText,
		URL:       AFDProductURL(s.office),
		FetchedAt: s.now().UTC(),
	}, nil
}

func (s *AFDSource) shapeError(url string, err error) error {
	return &forecast.FetchError{Source: s.ID(), URL: url, Err: err}
}

// newestItem picks the item with the greatest issuanceTime, skipping items that
// lack an @id or an issuanceTime.
func newestItem(items []afdItem) (afdItem, bool) {
	var (
		best  afdItem
		found bool
	)
	for _, it := range items {
		if it.ID == "" || it.IssuanceTime == "" {
			continue
		}
		if !found || it.IssuanceTime > best.IssuanceTime {
			best = it
			found = true
		}
	}
	return best, found
}
