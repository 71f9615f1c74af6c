package forecast

import (
	"time"
)

// Placeholder is the body used for a secondary slot whose fetch failed.
const Placeholder = "Not available"

// SourceID identifies an upstream text product.
type SourceID string

const (
	SourceAFD         SourceID = "afd"
	SourceOutlookDay1 SourceID = "spc_day1"
	SourceOutlookDay2 SourceID = "spc_day2"
	SourceOutlookDay3 SourceID = "spc_day3"
	SourceOutlookDay4 SourceID = "spc_day4-8"
)

// Document is one fetched text product. Marker is empty when the
// upstream carries no issuance marker.
type Document struct {
	SourceID  SourceID  `json:"sourceId"`
	Label     string    `json:"label"`
	Marker    string    `json:"marker,omitempty"`
	Body      string    `json:"body"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"` // always UTC
}

// Payload is the combined input for one summarization call.
// Secondary keeps insertion order: outlooks in ascending day order.
type Payload struct {
	Primary   Document
	Secondary []Document
}

// SecondaryResult is the outcome of fetching one supplementary source.
type SecondaryResult struct {
	SourceID SourceID
	Label    string
	Document Document
	Err      error
}

// Receipt describes a delivered message.
type Receipt struct {
	StatusCode int       `json:"statusCode"`
	MessageID  int64     `json:"messageId,omitempty"`
	SentAt     time.Time `json:"sentAt"`
}

// State is a Run Controller state.
type State string

const (
	StateFetchPrimary     State = "FETCH_PRIMARY"
	StateCheckNew         State = "CHECK_NEW"
	StateFetchSecondaries State = "FETCH_SECONDARIES"
	StateAggregate        State = "AGGREGATE"
	StateSummarize        State = "SUMMARIZE"
	StateNotify           State = "NOTIFY"
	StateCommit           State = "COMMIT"
	StateDone             State = "DONE"
	StateDoneNoChange     State = "DONE_NO_CHANGE"
	StateDoneWithError    State = "DONE_WITH_ERROR"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateDoneNoChange || s == StateDoneWithError
}

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	State      State     `json:"state"`
	FailedAt   State     `json:"failedAt,omitempty"`
	SourceID   SourceID  `json:"sourceId"`
	Marker     string    `json:"marker,omitempty"`
	Notified   bool      `json:"notified"`
	MessageID  int64     `json:"messageId,omitempty"`
	Error      string    `json:"error,omitempty"`
}
