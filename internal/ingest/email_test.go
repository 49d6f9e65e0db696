package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subhound/subhound/internal/model"
)

func TestEmailImporter_Import(t *testing.T) {
	input := `[
		{
			"message_id": "msg-1",
			"merchant": "Netflix India",
			"amount": 649.0,
			"currency": "INR",
			"charged_at": "2025-01-15",
			"category": "entertainment",
			"cycle_hint": "monthly",
			"extraction_confidence": 0.92
		},
		{
			"message_id": "msg-2",
			"merchant": "Spotify",
			"charged_at": "2025-01-20T08:30:00Z"
		},
		{
			"merchant": "No Message ID Corp",
			"amount": 10.0,
			"currency": "USD",
			"charged_at": "2025-01-21"
		}
	]`

	events, err := NewEmailImporter().Import(context.Background(), strings.NewReader(input), "alice")
	require.NoError(t, err)
	require.Len(t, events, 2, "record without message id is dropped")

	e := events[0]
	assert.Equal(t, "alice", e.UserID)
	assert.Equal(t, model.SourceEmail, e.SourceType)
	assert.Equal(t, "msg-1", e.SourceRecordID)
	assert.Equal(t, "Netflix India", e.RawMerchantText)
	assert.Equal(t, "INR", e.Currency)
	require.NotNil(t, e.Amount)
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(649)))
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), e.OccurredAt)
	assert.Equal(t, "entertainment", e.Extra["category_hint"])
	assert.Equal(t, "monthly", e.Extra["cycle_hint"])
	assert.Equal(t, "0.92", e.Extra["extraction_confidence"])

	// Partial extraction passes through; the pipeline judges usability.
	e = events[1]
	assert.Equal(t, "msg-2", e.SourceRecordID)
	assert.Nil(t, e.Amount)
	assert.Empty(t, e.Currency)
	assert.Nil(t, e.Extra)
}

func TestEmailImporter_Import_BadJSON(t *testing.T) {
	_, err := NewEmailImporter().Import(context.Background(), strings.NewReader("{not json"), "alice")
	assert.Error(t, err)
}

func TestEmailImporter_Import_EmptyList(t *testing.T) {
	events, err := NewEmailImporter().Import(context.Background(), strings.NewReader("[]"), "alice")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseChargedAt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{
			name: "rfc3339",
			in:   "2025-01-15T10:30:00Z",
			want: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name: "datetime without zone",
			in:   "2025-01-15 10:30:00",
			want: time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name: "date only",
			in:   "2025-01-15",
			want: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "garbage yields zero time",
			in:   "mid January maybe",
			want: time.Time{},
		},
		{
			name: "empty yields zero time",
			in:   "",
			want: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseChargedAt(tt.in))
		})
	}
}
