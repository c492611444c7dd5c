package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionKind classifies an audited ledger action.
type ActionKind string

const (
	ActionBooking           ActionKind = "booking"
	ActionProposal          ActionKind = "proposal"
	ActionApproval          ActionKind = "approval"
	ActionRejection         ActionKind = "rejection"
	ActionCorrection        ActionKind = "correction"
	ActionAutomatedProposal ActionKind = "automated-proposal"
	ActionExport            ActionKind = "export"
	ActionVerification      ActionKind = "verification"
)

// RiskLevel is the risk classification assigned to an audit entry.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// GenesisFingerprint is the previous-fingerprint value of the first chain
// entry: 64 hex zeros.
var GenesisFingerprint = strings.Repeat("0", 64)

// AuditEntry is one append-only record of the tamper-evident trail. Each
// entry commits to its predecessor's fingerprint, so any out-of-band edit,
// insertion or deletion breaks chain verification.
type AuditEntry struct {
	ID              string // uuid
	Seq             int64
	Actor           Actor
	Action          ActionKind
	Module          string
	Details         string
	Risk            RiskLevel
	At              time.Time
	Fingerprint     string
	PrevFingerprint string
}

// ComputeFingerprint returns the SHA-256 hex digest over the entry's own
// fields plus the previous entry's fingerprint.
func (e *AuditEntry) ComputeFingerprint() string {
	fields := strings.Join([]string{
		strconv.FormatInt(e.Seq, 10),
		e.Actor.Ref(),
		string(e.Action),
		e.Module,
		e.Details,
		string(e.Risk),
		e.At.UTC().Format(time.RFC3339Nano),
		e.PrevFingerprint,
	}, "|")

	sum := sha256.Sum256([]byte(fields))
	return hex.EncodeToString(sum[:])
}

// ClassifyRisk derives the default risk level for an action. Automated
// actors classify one step above humans for state-changing actions.
func ClassifyRisk(action ActionKind, actor Actor) RiskLevel {
	switch action {
	case ActionBooking, ActionApproval, ActionCorrection:
		if IsAutomated(actor) {
			return RiskMedium
		}
		return RiskLow
	case ActionAutomatedProposal:
		return RiskMedium
	case ActionExport:
		return RiskMedium
	case ActionRejection, ActionVerification:
		return RiskLow
	default:
		return RiskLow
	}
}

// AuditFilter selects audit entries in a read-only, order-preserving query.
// Zero-valued fields match everything.
type AuditFilter struct {
	ActorRef string
	Action   ActionKind
	Risk     RiskLevel
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Matches reports whether an entry passes all set filter fields.
func (f AuditFilter) Matches(e *AuditEntry) bool {
	if f.ActorRef != "" && e.Actor.Ref() != f.ActorRef {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Risk != "" && e.Risk != f.Risk {
		return false
	}
	if f.From != nil && e.At.Before(*f.From) {
		return false
	}
	if f.To != nil && e.At.After(*f.To) {
		return false
	}
	return true
}

// ParseActorRef reconstructs an Actor from its "kind:name" reference, the
// form audit persistence stores.
func ParseActorRef(ref string) (Actor, error) {
	kind, name, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, fmt.Errorf("malformed actor ref %q", ref)
	}

	switch kind {
	case "human":
		return Human{UserID: name}, nil
	case "system":
		return AutomatedSystem{Name: name}, nil
	default:
		return nil, fmt.Errorf("unknown actor kind %q", kind)
	}
}
