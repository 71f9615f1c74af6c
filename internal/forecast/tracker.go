package forecast

import (
	"context"
	"fmt"
	"strings"
)

// IsNew reports whether a candidate marker is newer than the stored one.
// Markers compare as plain strings; the NWS issuanceTime format orders correctly.
// A missing stored marker or a missing candidate marker is always new.
func IsNew(candidate, stored string) bool {
	if stored == "" || candidate == "" {
		return true
	}
	return candidate > stored
}

// Tracker gates runs on the last processed marker of a source.
type Tracker struct {
	store MarkerStore
}

// NewTracker creates a Tracker backed by store.
func NewTracker(store MarkerStore) *Tracker {
	return &Tracker{store: store}
}

// Check loads the stored marker for doc's source and reports whether doc is new.
func (t *Tracker) Check(ctx context.Context, doc Document) (bool, string, error) {
	stored, err := t.store.Load(ctx, doc.SourceID)
	if err != nil {
		return false, "", fmt.Errorf("load marker for %s: %w", doc.SourceID, err)
	}
	stored = strings.TrimSpace(stored)
	return IsNew(doc.Marker, stored), stored, nil
}

// Commit records marker as processed. Documents without a marker leave nothing to record.
func (t *Tracker) Commit(ctx context.Context, source SourceID, marker string) error {
	if marker == "" {
		return nil
	}
	if err := t.store.Save(ctx, source, marker); err != nil {
		return fmt.Errorf("save marker for %s: %w", source, err)
	}
	return nil
}

// Stored returns the current marker for source, or "" when none is recorded.
func (t *Tracker) Stored(ctx context.Context, source SourceID) (string, error) {
	return t.store.Load(ctx, source)
}

// Reset forgets the marker for source so the next run is treated as new.
func (t *Tracker) Reset(ctx context.Context, source SourceID) error {
	return t.store.Reset(ctx, source)
}
