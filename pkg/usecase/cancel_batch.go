// Copyright 2025 Certen Protocol
//
// CancelBatch aborts a non-terminal batch, e.g. after an operator or
// monitoring alert detects a sequencer-level fault (spec §4.1/§4.3
// addition; no direct teacher analogue, grounded on the shared
// orchestrator skeleton of SubmitCommitment/RevealTransaction).

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

// CancelBatchInput is the request to the use-case.
type CancelBatchInput struct {
	BatchID string
	Reason  string
}

// CancelBatch is the use-case orchestrator for batch cancellation.
type CancelBatch struct {
	repo   repository.BatchRepository
	bridge bridge.BlockchainBridge
	events *events.Dispatcher
	clock  func() time.Time
	locks  *keyedMutex
	logger *log.Logger
}

func NewCancelBatch(repo repository.BatchRepository, br bridge.BlockchainBridge, disp *events.Dispatcher, logger *log.Logger) *CancelBatch {
	if logger == nil {
		logger = log.New(log.Writer(), "[CancelBatch] ", log.LstdFlags)
	}
	if disp == nil {
		disp = events.New(logger)
	}
	return &CancelBatch{repo: repo, bridge: br, events: disp, clock: time.Now, locks: newKeyedMutex(), logger: logger}
}

func (uc *CancelBatch) Execute(ctx context.Context, in CancelBatchInput) Result[CancelBatchOutput] {
	now := uc.clock()

	id, err := batch.ParseBatchId(in.BatchID)
	if err != nil {
		return Fail[CancelBatchOutput](CodeValidation, err.Error())
	}
	if in.Reason == "" {
		return Fail[CancelBatchOutput](CodeValidation, "reason must not be empty")
	}

	unlock := uc.locks.lock(id.String())
	defer unlock()

	b, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[CancelBatchOutput](CodeDatabase, fmt.Sprintf("failed to load batch: %v", err))
	}
	if b == nil {
		return Fail[CancelBatchOutput](CodeBatchNotFound, "batch not found")
	}

	if err := b.Cancel(in.Reason, now); err != nil {
		return Fail[CancelBatchOutput](CodeDomain, err.Error())
	}

	var txHash string
	if data, err := uc.bridge.GetBatchData(ctx, b.ID()); err != nil {
		uc.logger.Printf("bridge mirror check failed for batch %s cancellation: %v", b.ID(), err)
	} else if hash, ok := data["txHash"].(string); ok {
		txHash = hash
	}

	if err := uc.repo.Save(ctx, b); err != nil {
		return Fail[CancelBatchOutput](CodeDatabase, fmt.Sprintf("failed to persist batch: %v", err))
	}
	uc.events.Drain(b)

	return Ok(CancelBatchOutput{BatchID: b.ID().String(), TxHash: txHash})
}
