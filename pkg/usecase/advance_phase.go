// Copyright 2025 Certen Protocol
//
// AdvanceBatchPhase drives the deadline-driven COMMITMENT_PHASE ->
// REVEAL_PHASE -> EXECUTION_PHASE transitions. Spec §5 notes this may
// be invoked by an external ticker; the core performs no background
// scheduling itself.

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

// Target selects which transition to attempt.
type Target string

const (
	TargetReveal    Target = "REVEAL_PHASE"
	TargetExecution Target = "EXECUTION_PHASE"
)

// AdvanceBatchPhaseInput is the request to the use-case.
type AdvanceBatchPhaseInput struct {
	BatchID string
	Target  Target
}

// AdvanceBatchPhase is the use-case orchestrator for phase transitions
// (spec §4.3).
type AdvanceBatchPhase struct {
	repo   repository.BatchRepository
	bridge bridge.BlockchainBridge
	events *events.Dispatcher
	clock  func() time.Time
	locks  *keyedMutex
	logger *log.Logger
}

func NewAdvanceBatchPhase(repo repository.BatchRepository, br bridge.BlockchainBridge, disp *events.Dispatcher, logger *log.Logger) *AdvanceBatchPhase {
	if logger == nil {
		logger = log.New(log.Writer(), "[AdvanceBatchPhase] ", log.LstdFlags)
	}
	if disp == nil {
		disp = events.New(logger)
	}
	return &AdvanceBatchPhase{repo: repo, bridge: br, events: disp, clock: time.Now, locks: newKeyedMutex(), logger: logger}
}

func (uc *AdvanceBatchPhase) Execute(ctx context.Context, in AdvanceBatchPhaseInput) Result[AdvanceBatchPhaseOutput] {
	now := uc.clock()

	id, err := batch.ParseBatchId(in.BatchID)
	if err != nil {
		return Fail[AdvanceBatchPhaseOutput](CodeValidation, err.Error())
	}

	unlock := uc.locks.lock(id.String())
	defer unlock()

	b, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[AdvanceBatchPhaseOutput](CodeDatabase, fmt.Sprintf("failed to load batch: %v", err))
	}
	if b == nil {
		return Fail[AdvanceBatchPhaseOutput](CodeBatchNotFound, "batch not found")
	}

	from := b.Status()
	switch in.Target {
	case TargetReveal:
		err = b.AdvanceToReveal(now)
	case TargetExecution:
		err = b.AdvanceToExec(now)
	default:
		return Fail[AdvanceBatchPhaseOutput](CodeValidation, fmt.Sprintf("unknown target phase %q", in.Target))
	}
	if err != nil {
		return Fail[AdvanceBatchPhaseOutput](CodeDomain, err.Error())
	}

	// Best-effort on-chain mirror via GetBatchData; no dedicated bridge
	// method exists for a pure phase transition, so failures here are
	// logged but do not block the authoritative off-chain transition
	// (spec §4.3 step 4 applies to mutations with a concrete bridge
	// call; phase advancement is locally deadline-driven per spec §5).
	if _, err := uc.bridge.GetBatchData(ctx, b.ID()); err != nil {
		uc.logger.Printf("bridge mirror check failed for batch %s phase advance: %v", b.ID(), err)
	}

	if err := uc.repo.Save(ctx, b); err != nil {
		return Fail[AdvanceBatchPhaseOutput](CodeDatabase, fmt.Sprintf("failed to persist batch: %v", err))
	}
	uc.events.Drain(b)

	return Ok(AdvanceBatchPhaseOutput{BatchID: b.ID().String(), From: from, To: b.Status()})
}
