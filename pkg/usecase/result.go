// Copyright 2025 Certen Protocol
//
// Result is the uniform success/failure envelope every use-case
// returns across the orchestrator boundary (spec §4.3/§7): aggregate
// methods never throw, and neither do use-cases.

package usecase

import (
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
)

// Code identifies the class of failure for API-layer status mapping.
type Code string

const (
	CodeOK                    Code = "OK"
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeNoActiveBatch         Code = "NO_ACTIVE_BATCH"
	CodeBatchNotFound         Code = "BATCH_NOT_FOUND"
	CodeDomain                Code = "DOMAIN_ERROR"
	CodeBlockchainConnection  Code = "BLOCKCHAIN_CONNECTION_ERROR"
	CodeContractInteraction   Code = "CONTRACT_INTERACTION_ERROR"
	CodeDatabase              Code = "DATABASE_ERROR"
	CodePersistenceAfterCommit Code = "PERSISTENCE_AFTER_COMMIT"
)

// Result[T] is {ok, value} on success or {error, code, message} on
// failure; never both.
type Result[T any] struct {
	OK      bool
	Value   T
	Code    Code
	Message string
}

func Ok[T any](value T) Result[T] {
	return Result[T]{OK: true, Value: value}
}

func Fail[T any](code Code, message string) Result[T] {
	return Result[T]{OK: false, Code: code, Message: message}
}

// CreateBatchOutput is the success payload of CreateBatch.
type CreateBatchOutput struct {
	BatchID            string
	CommitmentPhaseEnd time.Time
	RevealPhaseEnd     time.Time
	TxHash             string
	GasUsed            uint64
}

// SubmitCommitmentOutput is the success payload of SubmitCommitment.
type SubmitCommitmentOutput struct {
	BatchID        string
	CommitmentHash string
	TxHash         string
	GasUsed        uint64
}

// RevealTransactionOutput is the success payload of RevealTransaction.
type RevealTransactionOutput struct {
	BatchID        string
	CommitmentHash string
	TxHash         string
	GasUsed        uint64
}

// AdvanceBatchPhaseOutput is the success payload of AdvanceBatchPhase.
type AdvanceBatchPhaseOutput struct {
	BatchID string
	From    batch.Status
	To      batch.Status
	TxHash  string
}

// FinalizeBatchOutput is the success payload of FinalizeBatch.
type FinalizeBatchOutput struct {
	BatchID      string
	TotalTx      int
	TxHash       string
	GasUsed      uint64
	MerkleRoot   string
}

// CancelBatchOutput is the success payload of CancelBatch.
type CancelBatchOutput struct {
	BatchID string
	TxHash  string
}
