package forecast

import (
	"context"
	"time"
)

// Source abstracts an upstream text product (AFD listing, SPC outlook page, replay file).
type Source interface {
	ID() SourceID
	Label() string
	Fetch(ctx context.Context) (Document, error)
}

// MarkerStore persists the last processed marker per source.
// Load returns "" when nothing has been stored yet.
type MarkerStore interface {
	Load(ctx context.Context, source SourceID) (string, error)
	Save(ctx context.Context, source SourceID, marker string) error
	Reset(ctx context.Context, source SourceID) error
}

// Summarizer turns an aggregated payload into Markdown summary text.
type Summarizer interface {
	Summarize(ctx context.Context, payload Payload) (string, error)
}

// Notifier delivers a finished message to the messaging channel.
type Notifier interface {
	Notify(ctx context.Context, message string) (Receipt, error)
}

// HistoryStore is the contract the in-memory and SQLite run histories satisfy.
type HistoryStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	LatestRun(ctx context.Context) (RunRecord, error)
	RunsBetween(ctx context.Context, from, to time.Time) ([]RunRecord, error)
}
