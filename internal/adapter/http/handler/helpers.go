package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vblaha/saldo/internal/adapter/http/dto"
	"github.com/vblaha/saldo/internal/domain"
	"github.com/vblaha/saldo/internal/usecase"
)

// Actor headers. Exactly one identifies the caller; X-Actor-User wins when
// both are present.
const (
	ActorUserHeader   = "X-Actor-User"
	ActorSystemHeader = "X-Actor-System"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	var balErr *domain.BalanceError
	if errors.As(err, &balErr) {
		return http.StatusUnprocessableEntity
	}

	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProposalClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAlreadyReversed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotBooked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTooFewEntries),
		errors.Is(err, domain.ErrOneSided),
		errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrEmptyKonto),
		errors.Is(err, domain.ErrInvalidSide),
		errors.Is(err, domain.ErrEmptyDescription):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// actorFromRequest builds the acting identity from the actor headers.
func actorFromRequest(r *http.Request) (domain.Actor, error) {
	if user := r.Header.Get(ActorUserHeader); user != "" {
		return domain.Human{UserID: user}, nil
	}
	if system := r.Header.Get(ActorSystemHeader); system != "" {
		return domain.AutomatedSystem{Name: system}, nil
	}
	return nil, errors.New("missing actor header")
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// encodeCursor renders an integrity cursor as an opaque resumption token.
func encodeCursor(c *usecase.IntegrityCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor parses a resumption token. An empty token starts a new scan.
func decodeCursor(token string) (*usecase.IntegrityCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c usecase.IntegrityCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
