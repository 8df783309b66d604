// Copyright 2025 Certen Protocol
//
// Value types for the commit-reveal batch auction: identifiers,
// commitments, transaction payloads and MEV metrics. All constructors
// validate their inputs and return errors instead of panicking.

package batch

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BatchId is the globally unique identifier of a batch.
type BatchId struct {
	value uuid.UUID
}

// NewBatchId generates a fresh version-4 batch identifier.
func NewBatchId() BatchId {
	return BatchId{value: uuid.New()}
}

// ParseBatchId parses an existing UUID string into a BatchId.
func ParseBatchId(s string) (BatchId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return BatchId{}, fmt.Errorf("invalid batch id %q: %w", s, err)
	}
	return BatchId{value: id}, nil
}

func (b BatchId) String() string    { return b.value.String() }
func (b BatchId) UUID() uuid.UUID   { return b.value }
func (b BatchId) IsZero() bool      { return b.value == uuid.Nil }
func (b BatchId) Equal(o BatchId) bool { return b.value == o.value }

// OrderingMethod selects the rule used to derive an order over revealed
// transactions. The coordinator never computes an ordering itself; it
// only records which rule an externally supplied ordering claims to
// follow.
type OrderingMethod string

const (
	OrderingCommitReveal        OrderingMethod = "commit-reveal"
	OrderingThresholdDecryption OrderingMethod = "threshold-decryption"
	OrderingTimeBased           OrderingMethod = "time-based"
)

func (m OrderingMethod) Valid() bool {
	switch m {
	case OrderingCommitReveal, OrderingThresholdDecryption, OrderingTimeBased:
		return true
	}
	return false
}

// Status is the batch aggregate's lifecycle phase.
type Status string

const (
	StatusCommitmentPhase Status = "COMMITMENT_PHASE"
	StatusRevealPhase     Status = "REVEAL_PHASE"
	StatusExecutionPhase  Status = "EXECUTION_PHASE"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

func (s Status) isTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Commitment is a binding but opaque commitment to a transaction,
// published during the commitment phase.
type Commitment struct {
	Hash        string    // 32-byte digest, "0x"-prefixed hex, 66 chars
	UserAddress string    // 20-byte EVM address, hex
	Timestamp   time.Time
	Nonce       string    // optional off-chain nonce, >= 10 chars when present
}

// NewCommitment validates and constructs a Commitment.
func NewCommitment(hash, userAddress string, timestamp time.Time, nonce string, now time.Time) (Commitment, error) {
	if !isCommitmentHash(hash) {
		return Commitment{}, fmt.Errorf("%w: commitment hash must be 0x-prefixed 32-byte hex", ErrInvalidCommitment)
	}
	if !common.IsHexAddress(userAddress) {
		return Commitment{}, fmt.Errorf("%w: invalid user address %q", ErrInvalidCommitment, userAddress)
	}
	if timestamp.After(now) {
		return Commitment{}, fmt.Errorf("%w: commitment timestamp is in the future", ErrInvalidCommitment)
	}
	if nonce != "" && len(nonce) < 10 {
		return Commitment{}, fmt.Errorf("%w: nonce must be at least 10 characters", ErrInvalidCommitment)
	}
	return Commitment{
		Hash:        strings.ToLower(hash),
		UserAddress: common.HexToAddress(userAddress).Hex(),
		Timestamp:   timestamp,
		Nonce:       nonce,
	}, nil
}

// IsExpired reports whether the commitment has outlived ttl as of now.
// Defined the conventional way (timestamp + ttl < now); see DESIGN.md
// for why this does not preserve the source's inverted predicate.
func (c Commitment) IsExpired(ttl time.Duration, now time.Time) bool {
	return c.Timestamp.Add(ttl).Before(now)
}

func isCommitmentHash(h string) bool {
	if len(h) != 66 || !strings.HasPrefix(h, "0x") {
		return false
	}
	for _, r := range h[2:] {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// TransactionData is the payload hidden behind a commitment until reveal.
type TransactionData struct {
	To       string   // recipient address, hex
	Value    *big.Int // non-negative wei amount
	Data     []byte   // arbitrary calldata
	GasLimit uint64   // positive
	GasPrice *big.Int // positive, wei
	Nonce    uint64   // non-negative (zero-valued is a legal nonce)
}

// uint256Max mirrors the 256-bit ceiling every numeric field must respect.
var uint256Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// NewTransactionData validates and constructs a TransactionData.
func NewTransactionData(to string, value *big.Int, data []byte, gasLimit uint64, gasPrice *big.Int, nonce uint64) (TransactionData, error) {
	if !common.IsHexAddress(to) {
		return TransactionData{}, fmt.Errorf("%w: invalid recipient address %q", ErrInvalidCommitment, to)
	}
	if value == nil || value.Sign() < 0 || value.Cmp(uint256Max) > 0 {
		return TransactionData{}, fmt.Errorf("%w: value must be a non-negative 256-bit integer", ErrInvalidCommitment)
	}
	if gasLimit == 0 {
		return TransactionData{}, fmt.Errorf("%w: gasLimit must be positive", ErrInvalidCommitment)
	}
	if gasPrice == nil || gasPrice.Sign() <= 0 || gasPrice.Cmp(uint256Max) > 0 {
		return TransactionData{}, fmt.Errorf("%w: gasPrice must be a positive 256-bit integer", ErrInvalidCommitment)
	}
	return TransactionData{
		To:       common.HexToAddress(to).Hex(),
		Value:    new(big.Int).Set(value),
		Data:     append([]byte(nil), data...),
		GasLimit: gasLimit,
		GasPrice: new(big.Int).Set(gasPrice),
		Nonce:    nonce,
	}, nil
}

// RevealedTransaction is a transaction payload revealed against a
// previously-published commitment.
type RevealedTransaction struct {
	CommitmentHash  string
	TransactionData TransactionData
	UserAddress     string
	RevealedAt      time.Time
	Nonce           string
}

// MEVMetrics summarizes the economic outcome of a batch, supplied
// externally at finalization time.
type MEVMetrics struct {
	ExtractedValue         *big.Int
	SavingsGenerated       *big.Int
	TotalTransactions      int
	SuccessfulTransactions int
	AverageGasPrice        *big.Int
	TotalGasUsed           *big.Int
	// OrderingMerkleRoot is an optional auditable digest over the
	// finalized ordering; see pkg/merkle. Never required for any
	// invariant.
	OrderingMerkleRoot string
}

// NewMEVMetrics validates and constructs MEVMetrics.
func NewMEVMetrics(extracted, savings *big.Int, total, successful int, avgGasPrice, totalGasUsed *big.Int) (MEVMetrics, error) {
	if extracted == nil || extracted.Sign() < 0 {
		return MEVMetrics{}, fmt.Errorf("%w: extractedValue must be non-negative", ErrInvalidCommitment)
	}
	if savings == nil || savings.Sign() < 0 {
		return MEVMetrics{}, fmt.Errorf("%w: savingsGenerated must be non-negative", ErrInvalidCommitment)
	}
	if total < 0 || successful < 0 {
		return MEVMetrics{}, fmt.Errorf("%w: transaction counts must be non-negative", ErrInvalidCommitment)
	}
	if successful > total {
		return MEVMetrics{}, fmt.Errorf("%w: successfulTransactions cannot exceed totalTransactions", ErrInvalidCommitment)
	}
	if avgGasPrice == nil || avgGasPrice.Sign() < 0 {
		return MEVMetrics{}, fmt.Errorf("%w: averageGasPrice must be non-negative", ErrInvalidCommitment)
	}
	if totalGasUsed == nil || totalGasUsed.Sign() < 0 {
		return MEVMetrics{}, fmt.Errorf("%w: totalGasUsed must be non-negative", ErrInvalidCommitment)
	}
	return MEVMetrics{
		ExtractedValue:         new(big.Int).Set(extracted),
		SavingsGenerated:       new(big.Int).Set(savings),
		TotalTransactions:      total,
		SuccessfulTransactions: successful,
		AverageGasPrice:        new(big.Int).Set(avgGasPrice),
		TotalGasUsed:           new(big.Int).Set(totalGasUsed),
	}, nil
}
