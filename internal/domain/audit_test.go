package domain

import (
	"testing"
	"time"
)

func TestAuditEntry_ComputeFingerprint(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	entry := &AuditEntry{
		Seq:             1,
		Actor:           Human{UserID: "ana.k"},
		Action:          ActionBooking,
		Module:          "ledger",
		Details:         "booked transaction 1",
		Risk:            RiskLow,
		At:              at,
		PrevFingerprint: GenesisFingerprint,
	}

	first := entry.ComputeFingerprint()
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	if first != entry.ComputeFingerprint() {
		t.Fatal("fingerprint must be deterministic")
	}

	entry.Details = "booked transaction 2"
	if entry.ComputeFingerprint() == first {
		t.Fatal("changing a field must change the fingerprint")
	}

	entry.Details = "booked transaction 1"
	entry.PrevFingerprint = first
	if entry.ComputeFingerprint() == first {
		t.Fatal("changing the chain link must change the fingerprint")
	}
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		name   string
		action ActionKind
		actor  Actor
		want   RiskLevel
	}{
		{"human booking", ActionBooking, Human{UserID: "ana.k"}, RiskLow},
		{"automated booking", ActionBooking, AutomatedSystem{Name: "ocr-ingest"}, RiskMedium},
		{"human approval", ActionApproval, Human{UserID: "ana.k"}, RiskLow},
		{"automated correction", ActionCorrection, AutomatedSystem{Name: "batch"}, RiskMedium},
		{"automated proposal", ActionAutomatedProposal, AutomatedSystem{Name: "suggester"}, RiskMedium},
		{"export", ActionExport, Human{UserID: "ana.k"}, RiskMedium},
		{"rejection", ActionRejection, Human{UserID: "ana.k"}, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyRisk(tt.action, tt.actor); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParseActorRef(t *testing.T) {
	human, err := ParseActorRef("human:ana.k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h, ok := human.(Human); !ok || h.UserID != "ana.k" {
		t.Fatalf("expected Human ana.k, got %#v", human)
	}

	system, err := ParseActorRef("system:ocr-ingest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, ok := system.(AutomatedSystem); !ok || s.Name != "ocr-ingest" {
		t.Fatalf("expected AutomatedSystem ocr-ingest, got %#v", system)
	}

	if _, err := ParseActorRef("ana.k"); err == nil {
		t.Fatal("expected error for ref without kind")
	}
	if _, err := ParseActorRef("robot:r2"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAuditFilter_Matches(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	entry := &AuditEntry{
		Actor:  Human{UserID: "ana.k"},
		Action: ActionBooking,
		Risk:   RiskLow,
		At:     at,
	}

	if !(AuditFilter{}).Matches(entry) {
		t.Fatal("empty filter must match")
	}
	if !(AuditFilter{ActorRef: "human:ana.k", Action: ActionBooking, Risk: RiskLow}).Matches(entry) {
		t.Fatal("matching filter must match")
	}
	if (AuditFilter{ActorRef: "system:ocr-ingest"}).Matches(entry) {
		t.Fatal("actor mismatch must not match")
	}

	before := at.Add(-time.Hour)
	after := at.Add(time.Hour)
	if !(AuditFilter{From: &before, To: &after}).Matches(entry) {
		t.Fatal("entry inside time range must match")
	}
	if (AuditFilter{From: &after}).Matches(entry) {
		t.Fatal("entry before From must not match")
	}
}
