package handlers

import (
	"encoding/json"
	"net/http"

	"cohort-bank/customer"
	"cohort-bank/logger"
	"cohort-bank/models"

	"go.uber.org/zap"
)

// Handler contains the HTTP handlers for the operator API of one customer
type Handler struct {
	Customer *customer.Customer
}

// NewHandler creates and returns a new Handler instance
func NewHandler(c *customer.Customer) *Handler {
	return &Handler{Customer: c}
}

// statusFor maps an error kind to the HTTP status reported to the operator
func statusFor(err error) int {
	switch models.KindOf(err) {
	case models.KindNotInitialized:
		return http.StatusServiceUnavailable
	case models.KindInvalidAmount, models.KindMalformed:
		return http.StatusBadRequest
	case models.KindRecipientUnknown:
		return http.StatusNotFound
	case models.KindNoReply, models.KindPeerFailure, models.KindCommitFailed, models.KindRollbackFailed:
		return http.StatusBadGateway
	}
	return http.StatusConflict
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), models.ErrorResponse{Error: err.Error(), Kind: models.KindOf(err)})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Logger.Error("Failed to decode request", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request payload", Kind: models.KindMalformed})
		return false
	}
	return true
}

// GetBalance handles GET requests for the current balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Customer.Balance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BalanceResponse{Balance: balance})
}

// GetCohort handles GET requests for the enrolled cohort, the customer included
func (h *Handler) GetCohort(w http.ResponseWriter, r *http.Request) {
	cohort, err := h.Customer.Cohort()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cohort)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req models.AmountRequest
	if !decode(w, r, &req) {
		return
	}
	balance, err := h.Customer.Deposit(req.Amount)
	if err != nil {
		logger.Logger.Warn("Deposit failed", zap.Int64("amount", req.Amount), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BalanceResponse{Message: "Deposit applied", Balance: balance})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req models.AmountRequest
	if !decode(w, r, &req) {
		return
	}
	balance, err := h.Customer.Withdraw(req.Amount)
	if err != nil {
		logger.Logger.Warn("Withdrawal failed", zap.Int64("amount", req.Amount), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BalanceResponse{Message: "Withdrawal applied", Balance: balance})
}

// Transfer handles POST requests moving funds to a cohort peer.
// With "lost" set the message is never sent
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if !decode(w, r, &req) {
		return
	}
	send, message := h.Customer.Transfer, "Transfer delivered"
	if req.Lost {
		send, message = h.Customer.EmulateLostTransfer, "Transfer lost in flight"
	}
	balance, err := send(r.Context(), req.Amount, req.Recipient, req.Label)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.BalanceResponse{Message: message, Balance: balance})
}

// Checkpoint handles POST requests starting a cohort checkpoint
func (h *Handler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Customer.Checkpoint(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.CheckpointResponse{Message: "Checkpoint permanent", Checkpoint: cp})
}

// Rollback handles POST requests rolling the cohort back to the last checkpoint.
// A rollback that restored locally but lost some peers still carries the snapshot
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Customer.Rollback(r.Context())
	if err != nil {
		if cp != nil {
			writeJSON(w, statusFor(err), models.CheckpointResponse{Checkpoint: cp, Error: err.Error(), Kind: models.KindOf(err)})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CheckpointResponse{Message: "Rolled back", Checkpoint: cp})
}

// GetLatestCheckpoint handles GET requests for the last persisted snapshot
func (h *Handler) GetLatestCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Customer.LatestCheckpoint()
	if err != nil {
		logger.Logger.Error("Failed to read latest checkpoint", zap.Error(err))
		writeError(w, err)
		return
	}
	if cp == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "no checkpoint"})
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// GetCheckpoints handles GET requests for the snapshot history, oldest first
func (h *Handler) GetCheckpoints(w http.ResponseWriter, r *http.Request) {
	cps, err := h.Customer.Checkpoints()
	if err != nil {
		logger.Logger.Error("Failed to list checkpoints", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cps)
}

func (h *Handler) GetLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.Customer.Labels()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Customer.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
