package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/detect"
	"github.com/subhound/subhound/internal/model"
)

// GetDetections returns every detection for a user, of any status, with its
// evidence sources attached.
func (s *SQLiteStorage) GetDetections(ctx context.Context, userID string) ([]model.Detection, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, amount, currency, billing_cycle, confidence, status, created_at, updated_at
		FROM detections
		WHERE user_id = ?
		ORDER BY name ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var detections []model.Detection
	index := make(map[string]int)

	for rows.Next() {
		var (
			d          model.Detection
			amount     string
			cycle      string
			status     string
			createdAt  time.Time
			updatedAt  time.Time
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Name, &amount, &d.Currency,
			&cycle, &d.Confidence, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}

		d.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q for detection %s: %w", amount, d.ID, err)
		}
		d.BillingCycle = model.BillingCycle(cycle)
		d.Status = model.DetectionStatus(status)
		d.CreatedAt = createdAt
		d.UpdatedAt = updatedAt

		index[d.ID] = len(detections)
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := s.db.QueryContext(ctx, `
		SELECT ds.detection_id, ds.source_type, ds.source_record_id
		FROM detection_sources ds
		JOIN detections d ON d.id = ds.detection_id
		WHERE d.user_id = ?
		ORDER BY ds.detection_id, ds.source_type, ds.source_record_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection sources: %w", err)
	}
	defer func() { _ = srcRows.Close() }()

	for srcRows.Next() {
		var detectionID, sourceType, recordID string
		if err := srcRows.Scan(&detectionID, &sourceType, &recordID); err != nil {
			return nil, fmt.Errorf("failed to scan detection source: %w", err)
		}
		if i, ok := index[detectionID]; ok {
			detections[i].Sources = append(detections[i].Sources, model.SourceRef{
				SourceType:     model.SourceType(sourceType),
				SourceRecordID: recordID,
			})
		}
	}

	return detections, srcRows.Err()
}

// ApplyRun persists a detection run's upserts in one transaction. Creates are
// assigned a fresh id; updates rewrite the mutable fields and union in any
// new sources; skips touch nothing. All-or-nothing: a partial write never
// leaves sources merged without the matching confidence update.
func (s *SQLiteStorage) ApplyRun(ctx context.Context, userID string, result *detect.RunResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: nil run result", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range result.Upserts {
		switch u.Action {
		case detect.ActionCreate:
			id := uuid.NewString()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO detections (id, user_id, name, amount, currency, billing_cycle, confidence, status)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, userID, u.Detection.Name, u.Detection.Amount.String(),
				u.Detection.Currency, string(u.Detection.BillingCycle),
				u.Detection.Confidence, string(u.Detection.Status))
			if err != nil {
				return fmt.Errorf("failed to insert detection %q: %w", u.Detection.Name, err)
			}
			if err := insertSources(ctx, tx, id, u.Detection.Sources); err != nil {
				return err
			}

		case detect.ActionUpdate:
			if u.Detection.ID == "" {
				return fmt.Errorf("%w: update without detection id", ErrInvalidInput)
			}
			_, err := tx.ExecContext(ctx, `
				UPDATE detections
				SET name = ?, amount = ?, currency = ?, billing_cycle = ?, confidence = ?, status = ?,
				    updated_at = CURRENT_TIMESTAMP
				WHERE id = ? AND user_id = ?`,
				u.Detection.Name, u.Detection.Amount.String(), u.Detection.Currency,
				string(u.Detection.BillingCycle), u.Detection.Confidence,
				string(u.Detection.Status), u.Detection.ID, userID)
			if err != nil {
				return fmt.Errorf("failed to update detection %s: %w", u.Detection.ID, err)
			}
			if err := insertSources(ctx, tx, u.Detection.ID, u.Detection.Sources); err != nil {
				return err
			}

		case detect.ActionSkip:
			// Nothing to persist.
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detection run: %w", err)
	}
	return nil
}

func insertSources(ctx context.Context, tx *sql.Tx, detectionID string, sources []model.SourceRef) error {
	for _, ref := range sources {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO detection_sources (detection_id, source_type, source_record_id)
			VALUES (?, ?, ?)`,
			detectionID, string(ref.SourceType), ref.SourceRecordID)
		if err != nil {
			return fmt.Errorf("failed to insert source for detection %s: %w", detectionID, err)
		}
	}
	return nil
}
