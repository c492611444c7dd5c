package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(srv *httptest.Server) *apiClient {
	return &apiClient{
		baseURL: srv.URL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestVerifyLedgerFollowsCursor(t *testing.T) {
	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/integrity" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)

		w.Header().Set("Content-Type", "application/json")
		if cursor == "" {
			w.Write([]byte(`{"complete":false,"valid":true,"checked":100,"next_cursor":"100"}`))
			return
		}
		w.Write([]byte(`{"complete":true,"valid":true,"checked":142}`))
	}))
	defer srv.Close()

	if err := verifyLedger(testClient(srv)); err != nil {
		t.Fatalf("verifyLedger() error = %v", err)
	}

	if len(cursors) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(cursors))
	}
	if cursors[0] != "" || cursors[1] != "100" {
		t.Errorf("unexpected cursor sequence %v", cursors)
	}
}

func TestVerifyLedgerReportsViolations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"complete":true,"valid":false,"checked":10,"violations":["transaction 7: stored fingerprint mismatch"]}`))
	}))
	defer srv.Close()

	if err := verifyLedger(testClient(srv)); err == nil {
		t.Fatal("expected error for failed integrity check, got nil")
	}
}

func TestVerifyAuditBrokenChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/audit/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid":false,"entries_checked":40,"first_break_seq":13}`))
	}))
	defer srv.Close()

	err := verifyAudit(testClient(srv))
	if err == nil {
		t.Fatal("expected error for broken chain, got nil")
	}
}

func TestPrintTrialBalanceUnbalanced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kontos":[{"konto":"2800","debit":"100.00","credit":"0.00","net":"100.00"}],"total_debit":"100.00","total_credit":"0.00","balanced":false}`))
	}))
	defer srv.Close()

	if err := printTrialBalance(testClient(srv)); err == nil {
		t.Fatal("expected error for unbalanced trial balance, got nil")
	}
}

func TestGetJSONNon200Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	var out map[string]any
	if err := testClient(srv).getJSON("/api/v1/trial-balance", &out); err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}
