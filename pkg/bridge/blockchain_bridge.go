// Copyright 2025 Certen Protocol
//
// BlockchainBridge is the port the use-case orchestrators call to
// mirror aggregate mutations on the protocol contract (spec §4.5). Its
// concrete implementation (pkg/chain) is an external collaborator;
// this package only describes the contract, grounded on the teacher's
// pkg/anchor/anchor_manager.go facade and pkg/anchor/event_watcher.go
// subscription lifecycle.

package bridge

import (
	"context"
	"math/big"

	"github.com/certen/fair-sequencer/pkg/batch"
)

// TxReceipt is the outcome of a state-changing bridge call.
type TxReceipt struct {
	Hash        string
	BlockNumber uint64
	GasUsed     uint64
	Status      uint64
}

// ChainEvent is a decoded contract event delivered to subscribers.
type ChainEvent struct {
	BlockNumber     uint64
	TransactionHash string
	LogIndex        uint
	Args            map[string]interface{}
	Event           string
}

// ChainEventHandler receives decoded chain events.
type ChainEventHandler func(ChainEvent)

// BlockchainBridge abstracts the on-chain commit-reveal protocol
// contract (spec §4.5/§6).
type BlockchainBridge interface {
	SubmitCommitment(ctx context.Context, batchID batch.BatchId, c batch.Commitment) (TxReceipt, error)
	RevealTransaction(ctx context.Context, batchID batch.BatchId, r batch.RevealedTransaction) (TxReceipt, error)
	CreateNewBatch(ctx context.Context, b *batch.Batch) (TxReceipt, error)
	FinalizeBatch(ctx context.Context, batchID batch.BatchId, ordering []string, metrics batch.MEVMetrics) (TxReceipt, error)

	GetBatchData(ctx context.Context, batchID batch.BatchId) (map[string]interface{}, error)
	GetCurrentActiveBatchID(ctx context.Context) (batch.BatchId, error)
	GetCommitmentHash(ctx context.Context, batchID batch.BatchId, userAddress string) (string, error)

	OnCommitmentSubmitted(handler ChainEventHandler)
	OnTransactionRevealed(handler ChainEventHandler)
	OnBatchFinalized(handler ChainEventHandler)

	StartEventListening(ctx context.Context) error
	StopEventListening() error
}

// weiPerEth mirrors the teacher's ethToWei/weiToEth utilities (spec §8
// property 6: round-trip law for the numeric utilities).
var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// EthToWei converts a decimal ETH amount (as a string, e.g. "1.5") to
// wei. It fails on malformed input rather than silently truncating.
func EthToWei(eth string) (*big.Int, error) {
	f, ok := new(big.Float).SetPrec(256).SetString(eth)
	if !ok {
		return nil, errInvalidEthAmount(eth)
	}
	wei := new(big.Float).Mul(f, new(big.Float).SetInt(weiPerEth))
	result, _ := wei.Int(nil)
	return result, nil
}

// WeiToEth converts a wei amount back to a decimal ETH string.
func WeiToEth(wei *big.Int) string {
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, new(big.Float).SetInt(weiPerEth))
	return f.Text('f', 18)
}

type invalidEthAmountError string

func (e invalidEthAmountError) Error() string { return "invalid ETH amount: " + string(e) }

func errInvalidEthAmount(s string) error { return invalidEthAmountError(s) }
