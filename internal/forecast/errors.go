package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPrimary is returned by Combine when the primary document has no body.
	ErrNoPrimary = errors.New("primary document is missing")
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrMarkerRegression is returned by marker stores asked to move a marker backwards.
	ErrMarkerRegression = errors.New("marker is older than the stored marker")
)

// FetchError reports a transport, status or shape failure on a source read.
type FetchError struct {
	Source     SourceID
	URL        string
	StatusCode int
	Snippet    string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s", e.Source)
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" [body: %q]", e.Snippet)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// SummarizationError reports a failed or empty completion.
type SummarizationError struct {
	Provider string
	Err      error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize via %s: %v", e.Provider, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// DeliveryError reports a failed message delivery.
type DeliveryError struct {
	StatusCode int
	Snippet    string
	Err        error
}

func (e *DeliveryError) Error() string {
	msg := "deliver message"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" [body: %q]", e.Snippet)
	}
	return msg
}

func (e *DeliveryError) Unwrap() error { return e.Err }
