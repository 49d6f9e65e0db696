// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies where a raw payment event was observed.
type SourceType string

// Source type constants.
const (
	SourceEmail SourceType = "email"
	SourceBank  SourceType = "bank"
	SourceSMS   SourceType = "sms"
)

// Valid reports whether the source type is one of the known values.
func (s SourceType) Valid() bool {
	switch s {
	case SourceEmail, SourceBank, SourceSMS:
		return true
	}
	return false
}

// RawEvent represents a single observed payment-like occurrence from any
// source. Events are immutable once created; the detection pipeline never
// mutates them.
type RawEvent struct {
	OccurredAt     time.Time
	Extra          map[string]string
	UserID         string
	SourceRecordID string
	RawMerchantText string
	Currency       string
	SourceType     SourceType
	Amount         *decimal.Decimal // nil when the source text did not parse
}

// Ref returns the evidence key identifying this event across scans.
func (e RawEvent) Ref() SourceRef {
	return SourceRef{SourceType: e.SourceType, SourceRecordID: e.SourceRecordID}
}

// SourceRef identifies one piece of source evidence backing a detection.
// The pair is unique within a source type and is the set-union key when
// merging evidence from repeated or overlapping scans.
type SourceRef struct {
	SourceType     SourceType `json:"source_type"`
	SourceRecordID string     `json:"source_record_id"`
}
