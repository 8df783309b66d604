// Copyright 2025 Certen Protocol

package usecase

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/bridge"
	"github.com/certen/fair-sequencer/pkg/commitment"
	"github.com/certen/fair-sequencer/pkg/events"
	"github.com/certen/fair-sequencer/pkg/repository"
)

// RevealTransactionInput is the request to the use-case.
type RevealTransactionInput struct {
	BatchID        string
	CommitmentHash string
	UserAddress    string
	Nonce          string
	To             string
	Value          *big.Int
	Data           []byte
	GasLimit       uint64
	GasPrice       *big.Int
	TxNonce        uint64
}

// RevealTransaction is the use-case orchestrator for revealing a
// transaction against its commitment (spec §4.3).
type RevealTransaction struct {
	repo   repository.BatchRepository
	bridge bridge.BlockchainBridge
	events *events.Dispatcher
	clock  func() time.Time
	locks  *keyedMutex
	logger *log.Logger
}

func NewRevealTransaction(repo repository.BatchRepository, br bridge.BlockchainBridge, disp *events.Dispatcher, logger *log.Logger) *RevealTransaction {
	if logger == nil {
		logger = log.New(log.Writer(), "[RevealTransaction] ", log.LstdFlags)
	}
	if disp == nil {
		disp = events.New(logger)
	}
	return &RevealTransaction{repo: repo, bridge: br, events: disp, clock: time.Now, locks: newKeyedMutex(), logger: logger}
}

func (uc *RevealTransaction) Execute(ctx context.Context, in RevealTransactionInput) Result[RevealTransactionOutput] {
	now := uc.clock()

	if len(in.Nonce) < 10 {
		return Fail[RevealTransactionOutput](CodeValidation, "nonce must be at least 10 characters")
	}

	id, err := batch.ParseBatchId(in.BatchID)
	if err != nil {
		return Fail[RevealTransactionOutput](CodeValidation, err.Error())
	}

	tx, err := batch.NewTransactionData(in.To, in.Value, in.Data, in.GasLimit, in.GasPrice, in.TxNonce)
	if err != nil {
		return Fail[RevealTransactionOutput](CodeValidation, err.Error())
	}

	unlock := uc.locks.lock(id.String())
	defer unlock()

	b, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return Fail[RevealTransactionOutput](CodeDatabase, fmt.Sprintf("failed to load batch: %v", err))
	}
	if b == nil {
		return Fail[RevealTransactionOutput](CodeBatchNotFound, "batch not found")
	}

	if err := b.RevealTransaction(in.CommitmentHash, tx, in.UserAddress, in.Nonce, commitment.HashOf, now); err != nil {
		return Fail[RevealTransactionOutput](CodeDomain, err.Error())
	}

	reveal := b.Reveals()[strings.ToLower(in.CommitmentHash)]
	receipt, err := uc.bridge.RevealTransaction(ctx, b.ID(), reveal)
	if err != nil {
		uc.logger.Printf("bridge RevealTransaction failed, discarding in-memory mutation for batch %s: %v", b.ID(), err)
		return Fail[RevealTransactionOutput](CodeBlockchainConnection, err.Error())
	}

	if err := uc.repo.Save(ctx, b); err != nil {
		uc.logger.Printf("PERSISTENCE_AFTER_COMMIT: batch %s reveal committed on-chain (tx %s) but failed to persist: %v", b.ID(), receipt.Hash, err)
		return Fail[RevealTransactionOutput](CodePersistenceAfterCommit, fmt.Sprintf("on-chain reveal succeeded (tx %s) but persistence failed: %v; reconcile via bridge queries", receipt.Hash, err))
	}
	uc.events.Drain(b)

	return Ok(RevealTransactionOutput{
		BatchID:        b.ID().String(),
		CommitmentHash: reveal.CommitmentHash,
		TxHash:         receipt.Hash,
		GasUsed:        receipt.GasUsed,
	})
}
