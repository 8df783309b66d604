// Copyright 2025 Certen Protocol
//
// Request/response bodies and handlers for the batch lifecycle
// endpoints, following the teacher's decode-validate-dispatch shape in
// pkg/server/batch_handlers.go.

package server

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/certen/fair-sequencer/pkg/batch"
	"github.com/certen/fair-sequencer/pkg/commitment"
	"github.com/certen/fair-sequencer/pkg/usecase"
)

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeAudited decodes the request body like decodeJSON, additionally
// logging a canonical (sorted-key) rendering of it. The commitment and
// reveal endpoints carry the payload the commit-reveal binding is
// computed over, so a reproducible log line for each one matters more
// here than on the other routes.
func (s *Server) decodeAudited(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if canon, err := commitment.CanonicalizeJSON(raw); err == nil {
		s.logger.Printf("%s %s body=%s", r.Method, r.URL.Path, canon)
	}
	return json.Unmarshal(raw, dst)
}

// POST /api/v1/batches — open a new batch.
type createBatchRequest struct {
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	OrderingMethod     string            `json:"ordering_method"`
	CommitmentDuration string            `json:"commitment_duration,omitempty"`
	RevealDuration     string            `json:"reveal_duration,omitempty"`
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported")
		return
	}

	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	var commitmentDur, revealDur time.Duration
	if req.CommitmentDuration != "" {
		d, err := time.ParseDuration(req.CommitmentDuration)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid commitment_duration: "+err.Error())
			return
		}
		commitmentDur = d
	}
	if req.RevealDuration != "" {
		d, err := time.ParseDuration(req.RevealDuration)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid reveal_duration: "+err.Error())
			return
		}
		revealDur = d
	}

	res := s.createBatch.Execute(r.Context(), usecase.CreateBatchInput{
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		OrderingMethod:     batch.OrderingMethod(req.OrderingMethod),
		CommitmentDuration: commitmentDur,
		RevealDuration:     revealDur,
	})
	writeResult(w, res)
}

// POST /api/v1/batches/commitments — submit a commitment.
type submitCommitmentRequest struct {
	UserAddress    string `json:"user_address"`
	CommitmentHash string `json:"commitment_hash"`
	Nonce          string `json:"nonce,omitempty"`
}

func (s *Server) handleSubmitCommitment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported")
		return
	}

	var req submitCommitmentRequest
	if err := s.decodeAudited(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	res := s.submitCommitment.Execute(r.Context(), usecase.SubmitCommitmentInput{
		UserAddress:    req.UserAddress,
		CommitmentHash: req.CommitmentHash,
		Nonce:          req.Nonce,
	})
	writeResult(w, res)
}

// POST /api/v1/batches/reveals — reveal a transaction.
type revealTransactionRequest struct {
	BatchID        string `json:"batch_id"`
	CommitmentHash string `json:"commitment_hash"`
	UserAddress    string `json:"user_address"`
	Nonce          string `json:"nonce"`
	To             string `json:"to"`
	Value          string `json:"value"`
	Data           []byte `json:"data,omitempty"`
	GasLimit       uint64 `json:"gas_limit"`
	GasPrice       string `json:"gas_price"`
	TxNonce        uint64 `json:"tx_nonce"`
}

func (s *Server) handleRevealTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported")
		return
	}

	var req revealTransactionRequest
	if err := s.decodeAudited(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid value: not a base-10 integer")
		return
	}
	gasPrice, ok := new(big.Int).SetString(req.GasPrice, 10)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid gas_price: not a base-10 integer")
		return
	}

	res := s.revealTransaction.Execute(r.Context(), usecase.RevealTransactionInput{
		BatchID:        req.BatchID,
		CommitmentHash: req.CommitmentHash,
		UserAddress:    req.UserAddress,
		Nonce:          req.Nonce,
		To:             req.To,
		Value:          value,
		Data:           req.Data,
		GasLimit:       req.GasLimit,
		GasPrice:       gasPrice,
		TxNonce:        req.TxNonce,
	})
	writeResult(w, res)
}

// POST /api/v1/batches/advance — drive a phase transition.
type advancePhaseRequest struct {
	BatchID string `json:"batch_id"`
	Target  string `json:"target"`
}

func (s *Server) handleAdvancePhase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported")
		return
	}

	var req advancePhaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	res := s.advancePhase.Execute(r.Context(), usecase.AdvanceBatchPhaseInput{
		BatchID: req.BatchID,
		Target:  usecase.Target(req.Target),
	})
	writeResult(w, res)
}

// POST /api/v1/batches/finalize — record the final ordering and metrics.
type finalizeBatchRequest struct {
	BatchID  string   `json:"batch_id"`
	Ordering []string `json:"ordering"`
	Metrics  struct {
		ExtractedValue         string `json:"extracted_value"`
		SavingsGenerated       string `json:"savings_generated"`
		TotalTransactions      int    `json:"total_transactions"`
		SuccessfulTransactions int    `json:"successful_transactions"`
		AverageGasPrice        string `json:"average_gas_price"`
		TotalGasUsed           string `json:"total_gas_used"`
	} `json:"metrics"`
}

func (s *Server) handleFinalizeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported")
		return
	}

	var req finalizeBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	parseBig := func(s string) *big.Int {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return big.NewInt(0)
		}
		return v
	}

	metrics, err := batch.NewMEVMetrics(
		parseBig(req.Metrics.ExtractedValue),
		parseBig(req.Metrics.SavingsGenerated),
		req.Metrics.TotalTransactions,
		req.Metrics.SuccessfulTransactions,
		parseBig(req.Metrics.AverageGasPrice),
		parseBig(req.Metrics.TotalGasUsed),
	)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), err.Error())
		return
	}

	res := s.finalizeBatch.Execute(r.Context(), usecase.FinalizeBatchInput{
		BatchID:  req.BatchID,
		Ordering: req.Ordering,
		Metrics:  metrics,
	})
	writeResult(w, res)
}

// POST /api/v1/batches/cancel — administratively abort a batch.
type cancelBatchRequest struct {
	BatchID string `json:"batch_id"`
	Reason  string `json:"reason"`
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported")
		return
	}

	var req cancelBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, string(usecase.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	res := s.cancelBatch.Execute(r.Context(), usecase.CancelBatchInput{
		BatchID: req.BatchID,
		Reason:  req.Reason,
	})
	writeResult(w, res)
}
