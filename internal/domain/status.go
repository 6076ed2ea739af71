package domain

import (
	"slices"
	"strings"
)

// QuoteStatus is the lifecycle status of a quote.
type QuoteStatus string

// Quote statuses in the order they are presented on the board.
const (
	StatusDraft       QuoteStatus = "draft"
	StatusSent        QuoteStatus = "sent"
	StatusNegotiating QuoteStatus = "negotiating"
	StatusApproved    QuoteStatus = "approved"
	StatusRejected    QuoteStatus = "rejected"
	StatusExpired     QuoteStatus = "expired"
)

var quoteStatuses = []QuoteStatus{
	StatusDraft,
	StatusSent,
	StatusNegotiating,
	StatusApproved,
	StatusRejected,
	StatusExpired,
}

var statusLabels = map[QuoteStatus]string{
	StatusDraft:       "Draft",
	StatusSent:        "Sent",
	StatusNegotiating: "Negotiating",
	StatusApproved:    "Approved",
	StatusRejected:    "Rejected",
	StatusExpired:     "Expired",
}

// QuoteStatuses returns every status in board order.
func QuoteStatuses() []QuoteStatus {
	return slices.Clone(quoteStatuses)
}

// ParseQuoteStatus accepts wire values and display labels case-insensitively.
func ParseQuoteStatus(raw string) (QuoteStatus, error) {
	status := QuoteStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// Valid reports whether s belongs to the closed status set.
func (s QuoteStatus) Valid() bool {
	return slices.Contains(quoteStatuses, s)
}

// BoardStatus returns the column a quote with status s is shown under.
// Values outside the closed set are shown as drafts.
func (s QuoteStatus) BoardStatus() QuoteStatus {
	if s.Valid() {
		return s
	}
	return StatusDraft
}

// Terminal reports whether s ends the negotiation.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// Label returns the human-readable status name.
func (s QuoteStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}
