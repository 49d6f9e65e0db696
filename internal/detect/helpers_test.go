package detect

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
)

// amt returns a decimal pointer for test event construction.
func amt(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

// day parses a YYYY-MM-DD date for test fixtures.
func day(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts
}

// bankEvent builds a bank-sourced raw event.
func bankEvent(id, merchant, date string, amount *decimal.Decimal, currency string) model.RawEvent {
	return model.RawEvent{
		SourceType:      model.SourceBank,
		SourceRecordID:  id,
		RawMerchantText: merchant,
		OccurredAt:      day(date),
		Amount:          amount,
		Currency:        currency,
	}
}

// emailEvent builds an email-sourced raw event.
func emailEvent(id, merchant, date string, amount *decimal.Decimal, currency string) model.RawEvent {
	e := bankEvent(id, merchant, date, amount, currency)
	e.SourceType = model.SourceEmail
	return e
}

// candidate runs a slice of events through grouping and scoring, requiring
// that they form exactly one group.
func candidate(cfg Config, events ...model.RawEvent) scoredGroup {
	groups := GroupEvents(events, cfg)
	if len(groups) != 1 {
		panic("candidate fixture split into multiple groups")
	}
	cycle, confidence := EvaluateGroup(groups[0], cfg)
	return scoredGroup{group: groups[0], cycle: cycle, confidence: confidence}
}
