package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
)

// SaveRawEvents inserts raw events, ignoring ones already present. The
// (source_type, source_record_id) primary key makes re-importing the same
// scan a no-op. Returns the number of newly inserted rows.
func (s *SQLiteStorage) SaveRawEvents(ctx context.Context, events []model.RawEvent) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO raw_events
			(source_type, source_record_id, user_id, raw_merchant_text, amount, currency, occurred_at, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, e := range events {
		var amount sql.NullString
		if e.Amount != nil {
			amount = sql.NullString{String: e.Amount.String(), Valid: true}
		}

		var extra sql.NullString
		if len(e.Extra) > 0 {
			data, err := json.Marshal(e.Extra)
			if err != nil {
				return 0, fmt.Errorf("failed to marshal extra payload for %s: %w", e.SourceRecordID, err)
			}
			extra = sql.NullString{String: string(data), Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			string(e.SourceType), e.SourceRecordID, e.UserID,
			e.RawMerchantText, amount, e.Currency,
			e.OccurredAt.UTC(), extra)
		if err != nil {
			return 0, fmt.Errorf("failed to insert raw event %s: %w", e.SourceRecordID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit raw events: %w", err)
	}

	return inserted, nil
}

// GetRawEvents returns all stored events for a user ordered by occurrence.
func (s *SQLiteStorage) GetRawEvents(ctx context.Context, userID string) ([]model.RawEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_type, source_record_id, user_id, raw_merchant_text, amount, currency, occurred_at, extra
		FROM raw_events
		WHERE user_id = ?
		ORDER BY occurred_at ASC, source_type ASC, source_record_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.RawEvent
	for rows.Next() {
		var (
			e          model.RawEvent
			sourceType string
			amount     sql.NullString
			extra      sql.NullString
			occurredAt time.Time
		)
		if err := rows.Scan(&sourceType, &e.SourceRecordID, &e.UserID,
			&e.RawMerchantText, &amount, &e.Currency, &occurredAt, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan raw event: %w", err)
		}
		e.SourceType = model.SourceType(sourceType)
		e.OccurredAt = occurredAt

		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt amount %q for event %s: %w", amount.String, e.SourceRecordID, err)
			}
			e.Amount = &d
		}
		if extra.Valid {
			if err := json.Unmarshal([]byte(extra.String), &e.Extra); err != nil {
				return nil, fmt.Errorf("corrupt extra payload for event %s: %w", e.SourceRecordID, err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// CountRawEvents returns how many events are stored for a user.
func (s *SQLiteStorage) CountRawEvents(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raw_events WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw events: %w", err)
	}
	return count, nil
}
