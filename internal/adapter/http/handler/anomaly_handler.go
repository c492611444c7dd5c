package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vblaha/saldo/internal/adapter/http/dto"
	"github.com/vblaha/saldo/internal/anomaly"
	"github.com/vblaha/saldo/internal/domain"
)

// AnomalyService defines the behavior needed by AnomalyHandler.
type AnomalyService interface {
	CheckTransaction(ctx context.Context, in anomaly.CheckInput) ([]domain.Anomaly, error)
	CheckBatch(ctx context.Context, inputs []anomaly.CheckInput) (*anomaly.BatchResult, error)
}

// AnomalyHandler handles out-of-band anomaly evaluation requests, for
// screening imports before they are proposed or booked.
type AnomalyHandler struct {
	detector AnomalyService
}

// NewAnomalyHandler creates a new AnomalyHandler.
func NewAnomalyHandler(detector AnomalyService) *AnomalyHandler {
	return &AnomalyHandler{detector: detector}
}

// Check evaluates a single transaction.
func (h *AnomalyHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req dto.AnomalyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	anomalies, err := h.detector.CheckTransaction(r.Context(), req.ToInput())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AnomalyCheckResponse{
		Anomalies: dto.AnomaliesFromDomain(anomalies),
	})
}

// CheckBatch evaluates a batch, including the leading-digit distribution
// check across the batch's amounts.
func (h *AnomalyHandler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.AnomalyBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.detector.CheckBatch(r.Context(), req.ToInputs())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check batch", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BatchFromResult(result))
}
