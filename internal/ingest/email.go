package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
)

// emailRecord is one AI-extracted receipt as produced by the email scanner
// collaborator. Fields beyond message_id are best-effort: the extractor
// frequently fails to parse an amount or date out of marketing-heavy HTML.
type emailRecord struct {
	MessageID            string   `json:"message_id"`
	Merchant             string   `json:"merchant"`
	Amount               *float64 `json:"amount"`
	Currency             string   `json:"currency"`
	ChargedAt            string   `json:"charged_at"`
	Category             string   `json:"category,omitempty"`
	CycleHint            string   `json:"cycle_hint,omitempty"`
	ExtractionConfidence *float64 `json:"extraction_confidence,omitempty"`
}

// EmailImporter reads a JSON dump of AI-extracted email receipts. The
// extraction hints (category, cycle, confidence) are carried through as
// auxiliary signal only; the detector always does its own classification.
type EmailImporter struct{}

// NewEmailImporter creates an email extraction importer.
func NewEmailImporter() *EmailImporter {
	return &EmailImporter{}
}

// SourceType identifies events from this importer as email-sourced.
func (p *EmailImporter) SourceType() model.SourceType {
	return model.SourceEmail
}

// dateLayouts are the formats the email extractor is known to emit.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Import decodes extraction records into raw events. Records without a
// message id cannot form evidence and are dropped here with a warning;
// everything else passes through for the pipeline to judge.
func (p *EmailImporter) Import(_ context.Context, r io.Reader, userID string) ([]model.RawEvent, error) {
	var records []emailRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode email extraction file: %w", err)
	}

	events := make([]model.RawEvent, 0, len(records))
	dropped := 0

	for _, rec := range records {
		if rec.MessageID == "" {
			dropped++
			continue
		}

		e := model.RawEvent{
			UserID:          userID,
			SourceType:      model.SourceEmail,
			SourceRecordID:  rec.MessageID,
			RawMerchantText: rec.Merchant,
			Currency:        rec.Currency,
			OccurredAt:      parseChargedAt(rec.ChargedAt),
		}

		if rec.Amount != nil {
			amount := decimal.NewFromFloat(*rec.Amount)
			e.Amount = &amount
		}

		extra := make(map[string]string)
		if rec.Category != "" {
			extra["category_hint"] = rec.Category
		}
		if rec.CycleHint != "" {
			extra["cycle_hint"] = rec.CycleHint
		}
		if rec.ExtractionConfidence != nil {
			extra["extraction_confidence"] = strconv.FormatFloat(*rec.ExtractionConfidence, 'f', -1, 64)
		}
		if len(extra) > 0 {
			e.Extra = extra
		}

		events = append(events, e)
	}

	if dropped > 0 {
		slog.Warn("Dropped extraction records without message id", "count", dropped)
	}

	slog.Info("Parsed email extraction file",
		"events", len(events),
		"dropped", dropped)

	return events, nil
}

// parseChargedAt tries each known layout and returns the zero time when none
// match; the pipeline skips zero-dated events with a reason.
func parseChargedAt(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
