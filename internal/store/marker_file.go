package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/i474232898/forecast-digest/internal/common"
	"github.com/i474232898/forecast-digest/internal/forecast"
)

// FileMarkerStore keeps one small text file per source holding its last marker.
type FileMarkerStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileMarkerStore creates a store rooted at dir. The directory is created on first save.
func NewFileMarkerStore(dir string) *FileMarkerStore {
	return &FileMarkerStore{dir: dir}
}

// Path returns the marker file for source, e.g. data/last_afd_timestamp.txt.
func (s *FileMarkerStore) Path(source forecast.SourceID) string {
	return filepath.Join(s.dir, fmt.Sprintf("last_%s_timestamp.txt", source))
}

func (s *FileMarkerStore) Load(_ context.Context, source forecast.SourceID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(source)
}

// Save writes marker unless it would move the stored marker backwards.
func (s *FileMarkerStore) Save(_ context.Context, source forecast.SourceID, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(source)
	if err != nil {
		return err
	}
	if current != "" && marker < current {
		return fmt.Errorf("%w: %s < %s", forecast.ErrMarkerRegression, marker, current)
	}
	return common.WriteFileAtomic(s.Path(source), []byte(marker))
}

func (s *FileMarkerStore) Reset(_ context.Context, source forecast.SourceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(source)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileMarkerStore) read(source forecast.SourceID) (string, error) {
	data, err := os.ReadFile(s.Path(source))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
