package domain

import "time"

// AuditCode classifies a recoverable anomaly recorded during a run.
type AuditCode string

const (
	AuditUnclassifiable   AuditCode = "event.unclassifiable"
	AuditUnpriced         AuditCode = "event.unpriced"
	AuditDuplicateSkipped AuditCode = "event.duplicate_skipped"
	AuditAssetAborted     AuditCode = "asset.aborted"
)

// AuditNote is one audit-trail entry. Recoverable anomalies are
// collected here and surfaced alongside the statements rather than
// dropped silently.
type AuditNote struct {
	Code    AuditCode `json:"code"`
	EventID string    `json:"event_id,omitempty"`
	Asset   string    `json:"asset,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AuditTrail is an append-only list of notes for one run.
type AuditTrail struct {
	notes []AuditNote
}

// Add appends a note.
func (t *AuditTrail) Add(note AuditNote) {
	t.notes = append(t.notes, note)
}

// Notes returns the collected notes in insertion order.
func (t *AuditTrail) Notes() []AuditNote {
	return t.notes
}

// HasCode reports whether any note carries the given code.
func (t *AuditTrail) HasCode(code AuditCode) bool {
	for _, n := range t.notes {
		if n.Code == code {
			return true
		}
	}
	return false
}
