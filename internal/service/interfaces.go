// Package service defines the interfaces between the detection core and its
// collaborators. The detection pipeline itself is pure; everything with side
// effects lives behind these contracts.
package service

import (
	"context"
	"io"

	"github.com/subhound/subhound/internal/detect"
	"github.com/subhound/subhound/internal/model"
)

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Raw event operations. SaveRawEvents is idempotent: re-importing the
	// same source records inserts nothing new and reports how many rows were
	// actually added.
	SaveRawEvents(ctx context.Context, events []model.RawEvent) (int, error)
	GetRawEvents(ctx context.Context, userID string) ([]model.RawEvent, error)
	CountRawEvents(ctx context.Context, userID string) (int, error)

	// Detection operations.
	GetDetections(ctx context.Context, userID string) ([]model.Detection, error)

	// ApplyRun persists a detection run's upsert list in a single
	// transaction: either every create/update lands or none do, so sources
	// are never merged without the matching confidence update.
	ApplyRun(ctx context.Context, userID string, result *detect.RunResult) error

	Migrate(ctx context.Context) error
	Close() error
}

// EventImporter converts an external export (bank file, email extraction
// dump) into raw events for one user.
type EventImporter interface {
	SourceType() model.SourceType
	Import(ctx context.Context, r io.Reader, userID string) ([]model.RawEvent, error)
}
