package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/vblaha/saldo/internal/adapter/http/dto"
	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/masking"
	"github.com/vblaha/saldo/internal/usecase"
)

// AuditService defines the behavior needed by AuditHandler.
type AuditService interface {
	Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
	VerifyChain(ctx context.Context) (*usecase.ChainReport, error)
}

// AuditHandler handles audit trail HTTP requests.
type AuditHandler struct {
	auditUC AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditUC AuditService) *AuditHandler {
	return &AuditHandler{auditUC: auditUC}
}

// Query returns audit entries matching the filter parameters, in chain
// order.
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
	filter := domain.AuditFilter{
		ActorRef: r.URL.Query().Get("actor"),
		Action:   domain.ActionKind(r.URL.Query().Get("action")),
		Risk:     domain.RiskLevel(r.URL.Query().Get("risk")),
		Limit:    parseIntQuery(r, "limit", 100),
		Offset:   parseIntQuery(r, "offset", 0),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp", err.Error())
			return
		}
		filter.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp", err.Error())
			return
		}
		filter.To = &t
	}

	entries, err := h.auditUC.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query audit trail", err.Error())
		return
	}

	privilege := masking.ParsePrivilege(r.URL.Query().Get("privilege"))
	writeJSON(w, http.StatusOK, dto.AuditEntriesFromDomain(entries, privilege))
}

// VerifyChain walks the full chain and reports the first break, if any.
func (h *AuditHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	report, err := h.auditUC.VerifyChain(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to verify audit chain", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ChainReportFromUseCase(report))
}
