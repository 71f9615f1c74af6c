package forecast

import "strings"

// Combine builds the summarization payload from the primary document and the
// secondary fetch results. Failed secondary slots are replaced by a Placeholder
// document so that one missing outlook never aborts a run. Order is preserved.
func Combine(primary Document, secondaries []SecondaryResult) (Payload, error) {
	if strings.TrimSpace(primary.Body) == "" {
		return Payload{}, ErrNoPrimary
	}

	docs := make([]Document, 0, len(secondaries))
	for _, r := range secondaries {
		if r.Err != nil || strings.TrimSpace(r.Document.Body) == "" {
			docs = append(docs, Document{
				SourceID: r.SourceID,
				Label:    r.Label,
				Body:     Placeholder,
			})
			continue
		}

		doc := r.Document
		if doc.Label == "" {
			doc.Label = r.Label
		}
		docs = append(docs, doc)
	}

	return Payload{
		Primary:   primary,
		Secondary: docs,
	}, nil
}
