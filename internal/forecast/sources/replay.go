package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/i474232898/forecast-digest/internal/common"
	"github.com/i474232898/forecast-digest/internal/forecast"
)

// markerLayout matches the shape of api.weather.gov issuanceTime values.
const markerLayout = "2006-01-02T15:04:05-07:00"

// CachePath returns the replay cache file for source under dir.
func CachePath(dir string, source forecast.SourceID) string {
	return filepath.Join(dir, string(source)+".txt")
}

// MarkerPath returns the file holding the marker of the cached document for source.
func MarkerPath(dir string, source forecast.SourceID) string {
	return filepath.Join(dir, string(source)+".marker")
}

// FileSource replays a previously cached fetch from disk.
type FileSource struct {
	id         forecast.SourceID
	label      string
	path       string
	markerPath string
	withMarker bool
	url        string
}

// NewFileSource creates a replay source reading CachePath(dir, id). When withMarker
// is set the document carries the marker saved next to the cache by CachingSource;
// a hand-placed file without one is marked with its modification time.
func NewFileSource(dir string, id forecast.SourceID, label string, withMarker bool) *FileSource {
	return &FileSource{
		id:         id,
		label:      label,
		path:       CachePath(dir, id),
		markerPath: MarkerPath(dir, id),
		withMarker: withMarker,
	}
}

// WithURL sets the link attached to replayed documents.
func (s *FileSource) WithURL(u string) *FileSource {
	s.url = u
	return s
}

func (s *FileSource) ID() forecast.SourceID {
	return s.id
}

func (s *FileSource) Label() string {
	return s.label
}

func (s *FileSource) Fetch(ctx context.Context) (forecast.Document, error) {
	if err := ctx.Err(); err != nil {
		return forecast.Document{}, &forecast.FetchError{Source: s.id, URL: s.path, Err: err}
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return forecast.Document{}, &forecast.FetchError{Source: s.id, URL: s.path, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return forecast.Document{}, &forecast.FetchError{Source: s.id, URL: s.path, Err: err}
	}
	if strings.TrimSpace(string(data)) == "" {
		return forecast.Document{}, &forecast.FetchError{Source: s.id, URL: s.path, Err: errors.New("cached file is empty")}
	}

	doc := forecast.Document{
		SourceID:  s.id,
		Label:     s.label,
		Body:      string(data),
		URL:       s.url,
		FetchedAt: info.ModTime().UTC(),
	}
	if s.withMarker {
		marker, err := s.storedMarker()
		if err != nil {
			return forecast.Document{}, &forecast.FetchError{Source: s.id, URL: s.markerPath, Err: err}
		}
		if marker == "" {
			marker = ReplayMarker(info.ModTime())
		}
		doc.Marker = marker
	}
	return doc, nil
}

func (s *FileSource) storedMarker() (string, error) {
	data, err := os.ReadFile(s.markerPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// CachingSource wraps a live source and stores every successful fetch in the
// replay cache together with its marker. Cache failures are logged and never
// fail the fetch.
type CachingSource struct {
	forecast.Source
	dir    string
	logger *slog.Logger
}

// NewCachingSource wraps src so its bodies land in dir.
func NewCachingSource(src forecast.Source, dir string, logger *slog.Logger) *CachingSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingSource{Source: src, dir: dir, logger: logger}
}

func (s *CachingSource) Fetch(ctx context.Context) (forecast.Document, error) {
	doc, err := s.Source.Fetch(ctx)
	if err != nil {
		return doc, err
	}

	path := CachePath(s.dir, s.ID())
	if werr := common.WriteFileAtomic(path, []byte(doc.Body)); werr != nil {
		s.logger.Warn("failed to cache fetched document", "source", s.ID(), "path", path, "error", werr)
		return doc, nil
	}

	// The body is written first: a body paired with an older marker replays as
	// already seen, never the other way round.
	markerPath := MarkerPath(s.dir, s.ID())
	var werr error
	if doc.Marker != "" {
		werr = common.WriteFileAtomic(markerPath, []byte(doc.Marker))
	} else if rerr := os.Remove(markerPath); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
		werr = rerr
	}
	if werr != nil {
		s.logger.Warn("failed to cache document marker", "source", s.ID(), "path", markerPath, "error", werr)
	}
	return doc, nil
}

// ReplayMarker formats t the way replayed documents are marked.
func ReplayMarker(t time.Time) string {
	return t.UTC().Format(markerLayout)
}

// Describe returns a short human readable description of a source, used in logs.
func Describe(src forecast.Source) string {
	switch s := src.(type) {
	case *CachingSource:
		return fmt.Sprintf("%s (live, cached)", s.ID())
	case *FileSource:
		return fmt.Sprintf("%s (replay %s)", s.ID(), s.path)
	default:
		return string(src.ID())
	}
}
