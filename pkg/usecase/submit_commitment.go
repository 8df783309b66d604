// Copyright 2025 Certen Protocol
//
// SubmitCommitment orchestrates a user's commitment submission: load
// the active batch, record the commitment, mirror it on-chain, persist.
// Follows the skeleton in spec §4.3.

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

// SubmitCommitmentInput is the request to the use-case.
type SubmitCommitmentInput struct {
	UserAddress    string
	CommitmentHash string
	Nonce          string
}

// SubmitCommitment is the use-case orchestrator for committing a
// transaction (spec §4.3, named use-case "SubmitCommitment").
type SubmitCommitment struct {
	repo   repository.BatchRepository
	bridge bridge.BlockchainBridge
	events *events.Dispatcher
	clock  func() time.Time
	locks  *keyedMutex
	logger *log.Logger
}

// NewSubmitCommitment constructs the use-case, defaulting the clock to
// time.Now and the logger to a teacher-style prefixed stdlib logger.
func NewSubmitCommitment(repo repository.BatchRepository, br bridge.BlockchainBridge, disp *events.Dispatcher, logger *log.Logger) *SubmitCommitment {
	if logger == nil {
		logger = log.New(log.Writer(), "[SubmitCommitment] ", log.LstdFlags)
	}
	if disp == nil {
		disp = events.New(logger)
	}
	return &SubmitCommitment{repo: repo, bridge: br, events: disp, clock: time.Now, locks: newKeyedMutex(), logger: logger}
}

// Execute runs the use-case.
func (uc *SubmitCommitment) Execute(ctx context.Context, in SubmitCommitmentInput) Result[SubmitCommitmentOutput] {
	now := uc.clock()

	if len(in.Nonce) > 0 && len(in.Nonce) < 10 {
		return Fail[SubmitCommitmentOutput](CodeValidation, "nonce must be at least 10 characters")
	}

	active, err := uc.repo.GetCurrentActiveBatch(ctx, now)
	if err != nil {
		return Fail[SubmitCommitmentOutput](CodeDatabase, fmt.Sprintf("failed to load active batch: %v", err))
	}
	if active == nil {
		return Fail[SubmitCommitmentOutput](CodeNoActiveBatch, "no active batch")
	}

	unlock := uc.locks.lock(active.ID().String())
	defer unlock()

	// Re-load under lock to read-your-writes against the latest save.
	b, err := uc.repo.FindByID(ctx, active.ID())
	if err != nil {
		return Fail[SubmitCommitmentOutput](CodeDatabase, fmt.Sprintf("failed to reload batch: %v", err))
	}
	if b == nil {
		return Fail[SubmitCommitmentOutput](CodeBatchNotFound, "batch not found")
	}

	c, err := batch.NewCommitment(in.CommitmentHash, in.UserAddress, now, in.Nonce, now)
	if err != nil {
		return Fail[SubmitCommitmentOutput](CodeValidation, err.Error())
	}

	if err := b.AddCommitment(c, now); err != nil {
		return Fail[SubmitCommitmentOutput](CodeDomain, err.Error())
	}

	receipt, err := uc.bridge.SubmitCommitment(ctx, b.ID(), c)
	if err != nil {
		uc.logger.Printf("bridge SubmitCommitment failed, discarding in-memory mutation for batch %s: %v", b.ID(), err)
		return Fail[SubmitCommitmentOutput](CodeBlockchainConnection, err.Error())
	}

	if err := uc.repo.Save(ctx, b); err != nil {
		uc.logger.Printf("PERSISTENCE_AFTER_COMMIT: batch %s committed on-chain (tx %s) but failed to persist: %v", b.ID(), receipt.Hash, err)
		return Fail[SubmitCommitmentOutput](CodePersistenceAfterCommit, fmt.Sprintf("on-chain commitment succeeded (tx %s) but persistence failed: %v; reconcile via bridge queries", receipt.Hash, err))
	}
	uc.events.Drain(b)

	return Ok(SubmitCommitmentOutput{
		BatchID:        b.ID().String(),
		CommitmentHash: c.Hash,
		TxHash:         receipt.Hash,
		GasUsed:        receipt.GasUsed,
	})
}
