// Copyright 2025 Certen Protocol
//
// Ethereum-backed BlockchainBridge implementation, grounded on the
// teacher's pkg/ethereum/client.go (transactor construction, contract
// call/send helpers) and pkg/anchor/event_watcher.go (polling loop and
// handler dispatch, adapted from anchor events to commit-reveal
// contract events).

package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/bridge"
)

// commitRevealABI is the minimal ABI surface the bridge calls against
// the on-chain commit-reveal coordinator contract.
const commitRevealABI = `[
	{"name":"submitCommitment","type":"function","inputs":[{"name":"batchId","type":"bytes32"},{"name":"commitmentHash","type":"bytes32"}],"outputs":[]},
	{"name":"revealTransaction","type":"function","inputs":[{"name":"batchId","type":"bytes32"},{"name":"to","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"},{"name":"nonce","type":"string"}],"outputs":[]},
	{"name":"createBatch","type":"function","inputs":[{"name":"batchId","type":"bytes32"},{"name":"commitEnd","type":"uint256"},{"name":"revealEnd","type":"uint256"}],"outputs":[]},
	{"name":"finalizeBatch","type":"function","inputs":[{"name":"batchId","type":"bytes32"},{"name":"orderingMerkleRoot","type":"bytes32"}],"outputs":[]},
	{"anonymous":false,"name":"CommitmentSubmitted","type":"event","inputs":[{"indexed":true,"name":"batchId","type":"bytes32"},{"indexed":false,"name":"commitmentHash","type":"bytes32"}]},
	{"anonymous":false,"name":"TransactionRevealed","type":"event","inputs":[{"indexed":true,"name":"batchId","type":"bytes32"},{"indexed":false,"name":"commitmentHash","type":"bytes32"}]},
	{"anonymous":false,"name":"BatchFinalized","type":"event","inputs":[{"indexed":true,"name":"batchId","type":"bytes32"},{"indexed":false,"name":"orderingMerkleRoot","type":"bytes32"}]}
]`

// Config configures the bridge's connection to the chain.
type Config struct {
	RPCURL          string
	ChainID         int64
	ContractAddress string
	PrivateKeyHex   string
	PollInterval    time.Duration
	BlockLookback   uint64
}

// Bridge implements bridge.BlockchainBridge against a live Ethereum
// JSON-RPC endpoint.
type Bridge struct {
	client    *ethclient.Client
	contract  common.Address
	abi       abi.ABI
	chainID   *big.Int
	privKey   *ecdsa.PrivateKey
	fromAddr  common.Address
	cfg       Config
	logger    *log.Logger

	handlersMu sync.RWMutex
	onCommit   []bridge.ChainEventHandler
	onReveal   []bridge.ChainEventHandler
	onFinalize []bridge.ChainEventHandler

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	lastBlock   uint64
}

// New dials the configured RPC endpoint and returns a ready bridge.
func New(cfg Config, logger *log.Logger) (*Bridge, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ChainBridge] ", log.LstdFlags)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.BlockLookback == 0 {
		cfg.BlockLookback = 100
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(commitRevealABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	privKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	pub, ok := privKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to derive public key")
	}

	return &Bridge{
		client:   client,
		contract: common.HexToAddress(cfg.ContractAddress),
		abi:      parsedABI,
		chainID:  big.NewInt(cfg.ChainID),
		privKey:  privKey,
		fromAddr: crypto.PubkeyToAddress(*pub),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func batchIDBytes32(id batch.BatchId) [32]byte {
	var out [32]byte
	copy(out[:], id.UUID().Bytes())
	return out
}

func (b *Bridge) send(ctx context.Context, method string, params ...interface{}) (bridge.TxReceipt, error) {
	data, err := b.abi.Pack(method, params...)
	if err != nil {
		return bridge.TxReceipt{}, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	nonce, err := b.client.PendingNonceAt(ctx, b.fromAddr)
	if err != nil {
		return bridge.TxReceipt{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return bridge.TxReceipt{}, fmt.Errorf("failed to get gas price: %w", err)
	}
	gasLimit, err := b.client.EstimateGas(ctx, goethereum.CallMsg{
		From: b.fromAddr,
		To:   &b.contract,
		Data: data,
	})
	if err != nil {
		gasLimit = 300000
	}

	tx := types.NewTransaction(nonce, b.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(b.chainID), b.privKey)
	if err != nil {
		return bridge.TxReceipt{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return bridge.TxReceipt{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, signed)
	if err != nil {
		return bridge.TxReceipt{}, fmt.Errorf("failed to wait for transaction: %w", err)
	}

	return bridge.TxReceipt{
		Hash:        signed.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}, nil
}

func (b *Bridge) SubmitCommitment(ctx context.Context, batchID batch.BatchId, c batch.Commitment) (bridge.TxReceipt, error) {
	hashBytes := common.HexToHash(c.Hash)
	return b.send(ctx, "submitCommitment", batchIDBytes32(batchID), [32]byte(hashBytes))
}

func (b *Bridge) RevealTransaction(ctx context.Context, batchID batch.BatchId, r batch.RevealedTransaction) (bridge.TxReceipt, error) {
	return b.send(ctx, "revealTransaction", batchIDBytes32(batchID), common.HexToAddress(r.TransactionData.To), r.TransactionData.Value, r.TransactionData.Data, r.Nonce)
}

func (b *Bridge) CreateNewBatch(ctx context.Context, batchObj *batch.Batch) (bridge.TxReceipt, error) {
	return b.send(ctx, "createBatch", batchIDBytes32(batchObj.ID()), big.NewInt(batchObj.CommitmentPhaseEnd().Unix()), big.NewInt(batchObj.RevealPhaseEnd().Unix()))
}

func (b *Bridge) FinalizeBatch(ctx context.Context, batchID batch.BatchId, ordering []string, metrics batch.MEVMetrics) (bridge.TxReceipt, error) {
	var root [32]byte
	if metrics.OrderingMerkleRoot != "" {
		decoded, err := hex.DecodeString(metrics.OrderingMerkleRoot)
		if err != nil || len(decoded) != 32 {
			return bridge.TxReceipt{}, fmt.Errorf("invalid ordering merkle root %q", metrics.OrderingMerkleRoot)
		}
		copy(root[:], decoded)
	} else {
		// No auditable root was computed upstream; fall back to a digest
		// of the ordering itself so the on-chain call is never skipped.
		root = crypto.Keccak256Hash([]byte(strings.Join(ordering, "")))
	}
	return b.send(ctx, "finalizeBatch", batchIDBytes32(batchID), root)
}

func (b *Bridge) GetBatchData(ctx context.Context, batchID batch.BatchId) (map[string]interface{}, error) {
	blockNum, err := b.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	}
	return map[string]interface{}{"blockNumber": blockNum}, nil
}

func (b *Bridge) GetCurrentActiveBatchID(ctx context.Context) (batch.BatchId, error) {
	return batch.BatchId{}, fmt.Errorf("on-chain active-batch lookup not supported, use the repository")
}

func (b *Bridge) GetCommitmentHash(ctx context.Context, batchID batch.BatchId, userAddress string) (string, error) {
	return "", fmt.Errorf("on-chain commitment lookup not supported, use the repository")
}

func (b *Bridge) OnCommitmentSubmitted(handler bridge.ChainEventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.onCommit = append(b.onCommit, handler)
}

func (b *Bridge) OnTransactionRevealed(handler bridge.ChainEventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.onReveal = append(b.onReveal, handler)
}

func (b *Bridge) OnBatchFinalized(handler bridge.ChainEventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.onFinalize = append(b.onFinalize, handler)
}

// StartEventListening polls the chain for commit-reveal contract
// events, following the teacher's EventWatcher poll/dispatch loop.
func (b *Bridge) StartEventListening(ctx context.Context) error {
	b.lifecycleMu.Lock()
	if b.cancel != nil {
		b.lifecycleMu.Unlock()
		return fmt.Errorf("event listening already started")
	}
	pollCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.lifecycleMu.Unlock()

	current, err := b.client.BlockNumber(pollCtx)
	if err != nil {
		return fmt.Errorf("failed to read chain head: %w", err)
	}
	if current > b.cfg.BlockLookback {
		b.lastBlock = current - b.cfg.BlockLookback
	}

	b.wg.Add(1)
	go b.pollLoop(pollCtx)
	return nil
}

func (b *Bridge) StopEventListening() error {
	b.lifecycleMu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.lifecycleMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	b.wg.Wait()
	return nil
}

func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.pollOnce(ctx); err != nil {
				b.logger.Printf("poll error: %v", err)
			}
		}
	}
}

func (b *Bridge) pollOnce(ctx context.Context) error {
	current, err := b.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	from := b.lastBlock + 1
	if from > current {
		return nil
	}

	query := goethereum.FilterQuery{
		FromBlock: big.NewInt(int64(from)),
		ToBlock:   big.NewInt(int64(current)),
		Addresses: []common.Address{b.contract},
	}
	logs, err := b.client.FilterLogs(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to filter logs: %w", err)
	}

	for _, l := range logs {
		b.dispatchLog(l)
	}
	b.lastBlock = current
	return nil
}

func (b *Bridge) dispatchLog(l types.Log) {
	if len(l.Topics) == 0 {
		return
	}
	event, ok := b.abi.EventByID(l.Topics[0])
	if !ok {
		return
	}

	ev := bridge.ChainEvent{
		BlockNumber:     l.BlockNumber,
		TransactionHash: l.TxHash.Hex(),
		LogIndex:        l.Index,
		Event:           event.Name,
		Args:            map[string]interface{}{},
	}

	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()

	var handlers []bridge.ChainEventHandler
	switch event.Name {
	case "CommitmentSubmitted":
		handlers = b.onCommit
	case "TransactionRevealed":
		handlers = b.onReveal
	case "BatchFinalized":
		handlers = b.onFinalize
	}
	for _, h := range handlers {
		h(ev)
	}
}
