// Copyright 2025 Certen Protocol
//
// CreateBatch opens a new commit-reveal round: constructs the aggregate,
// mirrors its creation on-chain, and persists it. Follows the same
// skeleton as the rest of the package, minus the per-batch-id lock
// (there is no existing aggregate to serialize access against yet).

package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/bridge"
	"github.com/certen/fair-sequencer/pkg/events"
	"github.com/certen/fair-sequencer/pkg/repository"
)

// CreateBatchInput is the request to the use-case.
type CreateBatchInput struct {
	StartTime          time.Time
	EndTime            time.Time
	OrderingMethod     batch.OrderingMethod
	CommitmentDuration time.Duration
	RevealDuration     time.Duration
}

// CreateBatch is the use-case orchestrator for opening a new batch.
type CreateBatch struct {
	repo   repository.BatchRepository
	bridge bridge.BlockchainBridge
	events *events.Dispatcher
	clock  func() time.Time
	logger *log.Logger
}

func NewCreateBatch(repo repository.BatchRepository, br bridge.BlockchainBridge, disp *events.Dispatcher, logger *log.Logger) *CreateBatch {
	if logger == nil {
		logger = log.New(log.Writer(), "[CreateBatch] ", log.LstdFlags)
	}
	if disp == nil {
		disp = events.New(logger)
	}
	return &CreateBatch{repo: repo, bridge: br, events: disp, clock: time.Now, logger: logger}
}

func (uc *CreateBatch) Execute(ctx context.Context, in CreateBatchInput) Result[CreateBatchOutput] {
	now := uc.clock()

	existing, err := uc.repo.GetCurrentActiveBatch(ctx, now)
	if err != nil {
		return Fail[CreateBatchOutput](CodeDatabase, fmt.Sprintf("failed to check for active batch: %v", err))
	}
	if existing != nil {
		return Fail[CreateBatchOutput](CodeDomain, fmt.Sprintf("batch %s is already active", existing.ID()))
	}

	b, err := batch.NewBatch(in.StartTime, in.EndTime, in.OrderingMethod, in.CommitmentDuration, in.RevealDuration, now)
	if err != nil {
		return Fail[CreateBatchOutput](CodeValidation, err.Error())
	}

	receipt, err := uc.bridge.CreateNewBatch(ctx, b)
	if err != nil {
		uc.logger.Printf("bridge CreateNewBatch failed, discarding batch %s: %v", b.ID(), err)
		return Fail[CreateBatchOutput](CodeBlockchainConnection, err.Error())
	}

	if err := uc.repo.Save(ctx, b); err != nil {
		uc.logger.Printf("PERSISTENCE_AFTER_COMMIT: batch %s created on-chain (tx %s) but failed to persist: %v", b.ID(), receipt.Hash, err)
		return Fail[CreateBatchOutput](CodePersistenceAfterCommit, fmt.Sprintf("on-chain batch creation succeeded (tx %s) but persistence failed: %v; reconcile via bridge queries", receipt.Hash, err))
	}
	uc.events.Drain(b)

	return Ok(CreateBatchOutput{
		BatchID:            b.ID().String(),
		CommitmentPhaseEnd: b.CommitmentPhaseEnd(),
		RevealPhaseEnd:     b.RevealPhaseEnd(),
		TxHash:             receipt.Hash,
		GasUsed:            receipt.GasUsed,
	})
}
