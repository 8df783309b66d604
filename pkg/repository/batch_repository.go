// Copyright 2025 Certen Protocol
//
// BatchRepository is the storage port the use-case orchestrators
// depend on. Its concrete implementation (pkg/store/postgres) is an
// external collaborator; this package only describes the contract
// (spec §4.4), grounded on the teacher's pkg/database/repository_batch.go
// method surface.

package repository

import (
	"context"
	"math/big"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
)

// Filters narrows a paginated batch listing.
type Filters struct {
	Status         *batch.Status
	OrderingMethod *batch.OrderingMethod
	DateFrom       *time.Time
	DateTo         *time.Time
}

// Page is a paginated slice of batches.
type Page struct {
	Items []*batch.Batch
	Total int
	Page  int
	Limit int
	Pages int
}

// Statistics aggregates batch outcomes over a date range (spec §4.4).
type Statistics struct {
	TotalBatches          int
	CompletedBatches      int
	AverageCommitments    float64
	AverageRevealRate     float64
	TotalMEVExtracted     *big.Int
	TotalSavingsGenerated *big.Int
}

// BatchRepository abstracts durable storage and queries over batches.
type BatchRepository interface {
	Save(ctx context.Context, b *batch.Batch) error
	FindByID(ctx context.Context, id batch.BatchId) (*batch.Batch, error)
	FindByIDOrThrow(ctx context.Context, id batch.BatchId) (*batch.Batch, error)
	Delete(ctx context.Context, id batch.BatchId) error

	// GetCurrentActiveBatch returns the unique non-terminal batch whose
	// [startTime, endTime) contains now; when several exist, the one
	// with the latest startTime; nil when none exists.
	GetCurrentActiveBatch(ctx context.Context, now time.Time) (*batch.Batch, error)

	FindByStatus(ctx context.Context, status batch.Status) ([]*batch.Batch, error)
	FindRecent(ctx context.Context, limit int) ([]*batch.Batch, error)
	FindInDateRange(ctx context.Context, from, to time.Time) ([]*batch.Batch, error)
	FindAllPaginated(ctx context.Context, page, limit int, filters Filters) (Page, error)
	Statistics(ctx context.Context, from, to time.Time) (Statistics, error)

	Exists(ctx context.Context, id batch.BatchId) (bool, error)
	CountByStatus(ctx context.Context, status batch.Status) (int, error)
	FindExpired(ctx context.Context, now time.Time) ([]*batch.Batch, error)
}
