// Copyright 2025 Certen Protocol
//
// Postgres-backed BatchRepository, grounded on the teacher's
// pkg/database/client.go connection pooling and pkg/database's
// repository_batch.go query/scan style. The aggregate's commitments,
// reveals, final ordering and metrics are stored together in a single
// jsonb state column (mirroring the teacher's merkle-path-as-json pattern in AddTransaction)
// since a commit-reveal batch's shape is a single aggregate snapshot,
// not a normalized row-per-field model.

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/repository"
)

// Store implements repository.BatchRepository against PostgreSQL.
type Store struct {
	db *sql.DB
}

// Config configures the connection pool.
type Config struct {
	DatabaseURL string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open establishes the connection pool and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// row is the jsonb-friendly persistence shape of a Batch snapshot.
type row struct {
	Commitments   map[string]commitmentRow `json:"commitments"`
	Reveals       map[string]revealRow     `json:"reveals"`
	FinalOrdering []string                 `json:"final_ordering"`
	Metrics       *metricsRow              `json:"metrics,omitempty"`
}

type commitmentRow struct {
	Hash        string    `json:"hash"`
	UserAddress string    `json:"user_address"`
	Timestamp   time.Time `json:"timestamp"`
	Nonce       string    `json:"nonce"`
}

type transactionRow struct {
	To       string   `json:"to"`
	Value    string   `json:"value"`
	Data     []byte   `json:"data"`
	GasLimit uint64   `json:"gas_limit"`
	GasPrice string   `json:"gas_price"`
	Nonce    uint64   `json:"nonce"`
}

type revealRow struct {
	CommitmentHash string         `json:"commitment_hash"`
	Transaction    transactionRow `json:"transaction"`
	UserAddress    string         `json:"user_address"`
	RevealedAt     time.Time      `json:"revealed_at"`
	Nonce          string         `json:"nonce"`
}

type metricsRow struct {
	ExtractedValue         string `json:"extracted_value"`
	SavingsGenerated       string `json:"savings_generated"`
	TotalTransactions      int    `json:"total_transactions"`
	SuccessfulTransactions int    `json:"successful_transactions"`
	AverageGasPrice        string `json:"average_gas_price"`
	TotalGasUsed           string `json:"total_gas_used"`
	OrderingMerkleRoot     string `json:"ordering_merkle_root"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

func toRow(b *batch.Batch) row {
	r := row{
		Commitments:   make(map[string]commitmentRow, b.CommitmentCount()),
		Reveals:       make(map[string]revealRow, b.RevealedCount()),
		FinalOrdering: b.FinalOrdering(),
	}
	for k, c := range b.Commitments() {
		r.Commitments[k] = commitmentRow{Hash: c.Hash, UserAddress: c.UserAddress, Timestamp: c.Timestamp, Nonce: c.Nonce}
	}
	for k, rv := range b.Reveals() {
		r.Reveals[k] = revealRow{
			CommitmentHash: rv.CommitmentHash,
			Transaction: transactionRow{
				To:       rv.TransactionData.To,
				Value:    bigString(rv.TransactionData.Value),
				Data:     rv.TransactionData.Data,
				GasLimit: rv.TransactionData.GasLimit,
				GasPrice: bigString(rv.TransactionData.GasPrice),
				Nonce:    rv.TransactionData.Nonce,
			},
			UserAddress: rv.UserAddress,
			RevealedAt:  rv.RevealedAt,
			Nonce:       rv.Nonce,
		}
	}
	if m := b.Metrics(); m != nil {
		r.Metrics = &metricsRow{
			ExtractedValue:         bigString(m.ExtractedValue),
			SavingsGenerated:       bigString(m.SavingsGenerated),
			TotalTransactions:      m.TotalTransactions,
			SuccessfulTransactions: m.SuccessfulTransactions,
			AverageGasPrice:        bigString(m.AverageGasPrice),
			TotalGasUsed:           bigString(m.TotalGasUsed),
			OrderingMerkleRoot:     m.OrderingMerkleRoot,
		}
	}
	return r
}

func fromRow(
	id batch.BatchId,
	startTime, endTime time.Time,
	orderingMethod batch.OrderingMethod,
	commitmentPhaseEnd, revealPhaseEnd time.Time,
	status batch.Status,
	r row,
	createdAt, updatedAt time.Time,
) *batch.Batch {
	commitments := make(map[string]batch.Commitment, len(r.Commitments))
	for k, c := range r.Commitments {
		commitments[k] = batch.Commitment{Hash: c.Hash, UserAddress: c.UserAddress, Timestamp: c.Timestamp, Nonce: c.Nonce}
	}
	reveals := make(map[string]batch.RevealedTransaction, len(r.Reveals))
	for k, rv := range r.Reveals {
		reveals[k] = batch.RevealedTransaction{
			CommitmentHash: rv.CommitmentHash,
			TransactionData: batch.TransactionData{
				To:       rv.Transaction.To,
				Value:    parseBig(rv.Transaction.Value),
				Data:     rv.Transaction.Data,
				GasLimit: rv.Transaction.GasLimit,
				GasPrice: parseBig(rv.Transaction.GasPrice),
				Nonce:    rv.Transaction.Nonce,
			},
			UserAddress: rv.UserAddress,
			RevealedAt:  rv.RevealedAt,
			Nonce:       rv.Nonce,
		}
	}
	var metrics *batch.MEVMetrics
	if r.Metrics != nil {
		metrics = &batch.MEVMetrics{
			ExtractedValue:         parseBig(r.Metrics.ExtractedValue),
			SavingsGenerated:       parseBig(r.Metrics.SavingsGenerated),
			TotalTransactions:      r.Metrics.TotalTransactions,
			SuccessfulTransactions: r.Metrics.SuccessfulTransactions,
			AverageGasPrice:        parseBig(r.Metrics.AverageGasPrice),
			TotalGasUsed:           parseBig(r.Metrics.TotalGasUsed),
			OrderingMerkleRoot:     r.Metrics.OrderingMerkleRoot,
		}
	}
	return batch.Rehydrate(id, startTime, endTime, orderingMethod, commitmentPhaseEnd, revealPhaseEnd, status, commitments, reveals, r.FinalOrdering, metrics, createdAt, updatedAt)
}

const upsertQuery = `
	INSERT INTO batches (
		id, start_time, end_time, ordering_method, commitment_phase_end,
		reveal_phase_end, status, state, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		state = EXCLUDED.state,
		updated_at = EXCLUDED.updated_at`

func (s *Store) Save(ctx context.Context, b *batch.Batch) error {
	stateJSON, err := json.Marshal(toRow(b))
	if err != nil {
		return fmt.Errorf("failed to serialize batch state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertQuery,
		b.ID().UUID(), b.StartTime(), b.EndTime(), b.OrderingMethod(),
		b.CommitmentPhaseEnd(), b.RevealPhaseEnd(), b.Status(), stateJSON,
		b.CreatedAt(), b.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}
	return nil
}

const selectColumns = `id, start_time, end_time, ordering_method, commitment_phase_end, reveal_phase_end, status, state, created_at, updated_at`

func (s *Store) scanBatch(row interface {
	Scan(dest ...interface{}) error
}) (*batch.Batch, error) {
	var (
		id                                 uuid.UUID
		startTime, endTime                 time.Time
		orderingMethod                     batch.OrderingMethod
		commitmentPhaseEnd, revealPhaseEnd time.Time
		status                             batch.Status
		stateJSON                          []byte
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(&id, &startTime, &endTime, &orderingMethod, &commitmentPhaseEnd, &revealPhaseEnd, &status, &stateJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	batchID, err := batch.ParseBatchId(id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored batch id: %w", err)
	}

	var r row
	if err := json.Unmarshal(stateJSON, &r); err != nil {
		return nil, fmt.Errorf("failed to deserialize batch state: %w", err)
	}

	return fromRow(batchID, startTime, endTime, orderingMethod, commitmentPhaseEnd, revealPhaseEnd, status, r, createdAt, updatedAt), nil
}

func (s *Store) FindByID(ctx context.Context, id batch.BatchId) (*batch.Batch, error) {
	query := `SELECT ` + selectColumns + ` FROM batches WHERE id = $1`
	b, err := s.scanBatch(s.db.QueryRowContext(ctx, query, id.UUID()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find batch: %w", err)
	}
	return b, nil
}

func (s *Store) FindByIDOrThrow(ctx context.Context, id batch.BatchId) (*batch.Batch, error) {
	b, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, repository.ErrBatchNotFound
	}
	return b, nil
}

func (s *Store) Delete(ctx context.Context, id batch.BatchId) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, id.UUID())
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}

func (s *Store) GetCurrentActiveBatch(ctx context.Context, now time.Time) (*batch.Batch, error) {
	query := `SELECT ` + selectColumns + ` FROM batches
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') AND start_time <= $1 AND end_time > $1
		ORDER BY start_time DESC LIMIT 1`
	b, err := s.scanBatch(s.db.QueryRowContext(ctx, query, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active batch: %w", err)
	}
	return b, nil
}

func (s *Store) queryMany(ctx context.Context, query string, args ...interface{}) ([]*batch.Batch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var out []*batch.Batch
	for rows.Next() {
		b, err := s.scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) FindByStatus(ctx context.Context, status batch.Status) ([]*batch.Batch, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM batches WHERE status = $1 ORDER BY start_time DESC`, status)
}

func (s *Store) FindRecent(ctx context.Context, limit int) ([]*batch.Batch, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM batches ORDER BY created_at DESC LIMIT $1`, limit)
}

func (s *Store) FindInDateRange(ctx context.Context, from, to time.Time) ([]*batch.Batch, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM batches WHERE start_time >= $1 AND start_time < $2 ORDER BY start_time ASC`, from, to)
}

func (s *Store) FindAllPaginated(ctx context.Context, page, limit int, filters repository.Filters) (repository.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	where := "WHERE 1=1"
	var args []interface{}
	argN := 1
	if filters.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, *filters.Status)
		argN++
	}
	if filters.OrderingMethod != nil {
		where += fmt.Sprintf(" AND ordering_method = $%d", argN)
		args = append(args, *filters.OrderingMethod)
		argN++
	}
	if filters.DateFrom != nil {
		where += fmt.Sprintf(" AND start_time >= $%d", argN)
		args = append(args, *filters.DateFrom)
		argN++
	}
	if filters.DateTo != nil {
		where += fmt.Sprintf(" AND start_time < $%d", argN)
		args = append(args, *filters.DateTo)
		argN++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM batches ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return repository.Page{}, fmt.Errorf("failed to count batches: %w", err)
	}

	offset := (page - 1) * limit
	listQuery := fmt.Sprintf(`SELECT %s FROM batches %s ORDER BY start_time DESC LIMIT $%d OFFSET $%d`, selectColumns, where, argN, argN+1)
	items, err := s.queryMany(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return repository.Page{}, err
	}

	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return repository.Page{Items: items, Total: total, Page: page, Limit: limit, Pages: pages}, nil
}

func (s *Store) findByCreatedAtRange(ctx context.Context, from, to time.Time) ([]*batch.Batch, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM batches WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC`, from, to)
}

// Statistics aggregates over batches by creation time, not by their
// scheduled start_time: a batch counts toward the range in which it
// was created, even when its scheduled window lies in another range.
func (s *Store) Statistics(ctx context.Context, from, to time.Time) (repository.Statistics, error) {
	batches, err := s.findByCreatedAtRange(ctx, from, to)
	if err != nil {
		return repository.Statistics{}, err
	}

	stats := repository.Statistics{TotalMEVExtracted: big.NewInt(0), TotalSavingsGenerated: big.NewInt(0)}
	var totalCommitments, totalRevealRate float64
	for _, b := range batches {
		stats.TotalBatches++
		totalCommitments += float64(b.CommitmentCount())
		totalRevealRate += b.RevealRate()
		if b.Status() == batch.StatusCompleted {
			stats.CompletedBatches++
			if m := b.Metrics(); m != nil {
				stats.TotalMEVExtracted.Add(stats.TotalMEVExtracted, m.ExtractedValue)
				stats.TotalSavingsGenerated.Add(stats.TotalSavingsGenerated, m.SavingsGenerated)
			}
		}
	}
	if stats.TotalBatches > 0 {
		stats.AverageCommitments = totalCommitments / float64(stats.TotalBatches)
		stats.AverageRevealRate = totalRevealRate / float64(stats.TotalBatches)
	}
	return stats, nil
}

func (s *Store) Exists(ctx context.Context, id batch.BatchId) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM batches WHERE id = $1)`, id.UUID()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check batch existence: %w", err)
	}
	return exists, nil
}

func (s *Store) CountByStatus(ctx context.Context, status batch.Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM batches WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count batches by status: %w", err)
	}
	return count, nil
}

func (s *Store) FindExpired(ctx context.Context, now time.Time) ([]*batch.Batch, error) {
	return s.queryMany(ctx, `SELECT `+selectColumns+` FROM batches WHERE status NOT IN ('COMPLETED', 'CANCELLED') AND end_time <= $1`, now)
}
