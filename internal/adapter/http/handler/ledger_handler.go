package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vblaha/saldo/internal/adapter/http/dto"
	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/masking"
	"github.com/vblaha/saldo/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	Book(ctx context.Context, t *domain.Transaction, actor domain.Actor) (*usecase.BookingResult, error)
	Propose(ctx context.Context, t *domain.Transaction, actor domain.Actor) (*domain.Transaction, error)
	Approve(ctx context.Context, proposalID string, actor domain.Actor) (*usecase.BookingResult, error)
	Reject(ctx context.Context, proposalID string, actor domain.Actor, reason string) error
	Storno(ctx context.Context, id int64, actor domain.Actor, reason string) (*usecase.BookingResult, error)
	TrialBalance(ctx context.Context) (*domain.TrialBalance, error)
	VerifyIntegrity(ctx context.Context, cursor *usecase.IntegrityCursor) (*usecase.IntegrityReport, error)
	Export(ctx context.Context, id int64, p masking.Privilege, actor domain.Actor) (*usecase.ExportView, error)
	GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	GetProposal(ctx context.Context, proposalID string) (*domain.Transaction, error)
	ListOpenProposals(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
}

// LedgerHandler handles booking-related HTTP requests.
type LedgerHandler struct {
	ledgerUC LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC}
}

// Book books a transaction directly.
func (h *LedgerHandler) Book(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing actor", err.Error())
		return
	}

	var req dto.BookTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	t, err := req.ToDomain()
	if err != nil {
		writeError(w, mapDomainError(err), "invalid transaction", err.Error())
		return
	}

	result, err := h.ledgerUC.Book(r.Context(), t, actor)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to book transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.BookingFromResult(result))
}

// Get retrieves a booked transaction by id.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", err.Error())
		return
	}

	t, err := h.ledgerUC.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// Propose stores a transaction for review.
func (h *LedgerHandler) Propose(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing actor", err.Error())
		return
	}

	var req dto.BookTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	t, err := req.ToDomain()
	if err != nil {
		writeError(w, mapDomainError(err), "invalid transaction", err.Error())
		return
	}

	proposed, err := h.ledgerUC.Propose(r.Context(), t, actor)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to propose transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(proposed))
}

// GetProposal retrieves a proposal by id.
func (h *LedgerHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	proposalID := chi.URLParam(r, "id")

	t, err := h.ledgerUC.GetProposal(r.Context(), proposalID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get proposal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// ListProposals lists open proposals.
func (h *LedgerHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	proposals, err := h.ledgerUC.ListOpenProposals(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list proposals", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(proposals))
}

// Approve books a pending proposal.
func (h *LedgerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing actor", err.Error())
		return
	}

	proposalID := chi.URLParam(r, "id")

	result, err := h.ledgerUC.Approve(r.Context(), proposalID, actor)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to approve proposal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BookingFromResult(result))
}

// Reject closes a pending proposal without booking.
func (h *LedgerHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing actor", err.Error())
		return
	}

	proposalID := chi.URLParam(r, "id")

	// The reason is optional, an empty body rejects without one.
	var req dto.RejectProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.ledgerUC.Reject(r.Context(), proposalID, actor, req.Reason); err != nil {
		writeError(w, mapDomainError(err), "failed to reject proposal", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// Storno books the full reversal of a booked transaction.
func (h *LedgerHandler) Storno(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing actor", err.Error())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", err.Error())
		return
	}

	var req dto.StornoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.ledgerUC.Storno(r.Context(), id, actor, req.Reason)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reverse transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.BookingFromResult(result))
}

// TrialBalance returns the per-konto totals.
func (h *LedgerHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.ledgerUC.TrialBalance(r.Context())
	if err != nil {
		var integrityErr *domain.IntegrityError
		if errors.As(err, &integrityErr) && tb != nil {
			// The caller still gets the numbers; the violation rides along.
			writeJSON(w, http.StatusOK, dto.TrialBalanceFromDomain(tb))
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute trial balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TrialBalanceFromDomain(tb))
}

// VerifyIntegrity runs one page of the resumable ledger verification.
func (h *LedgerHandler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	cursor, err := decodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cursor", err.Error())
		return
	}

	report, err := h.ledgerUC.VerifyIntegrity(r.Context(), cursor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to verify integrity", err.Error())
		return
	}

	resp := &dto.IntegrityResponse{
		Complete:   report.Complete,
		Valid:      report.Valid,
		Checked:    report.Checked,
		Violations: report.Violations,
	}
	if report.Cursor != nil {
		resp.NextCursor = encodeCursor(report.Cursor)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Export returns a transaction rendered for the caller's privilege level.
func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing actor", err.Error())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id", err.Error())
		return
	}

	privilege := masking.ParsePrivilege(r.URL.Query().Get("privilege"))

	view, err := h.ledgerUC.Export(r.Context(), id, privilege, actor)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to export transaction", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ExportFromView(view))
}
