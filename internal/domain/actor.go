package domain

import "fmt"

// Actor identifies who performed a ledger-affecting action. It is a sealed
// tagged variant: every mutating operation is attributed either to a named
// human or to a named automated system, never to a bare string.
type Actor interface {
	// Ref returns a stable "kind:name" reference used in audit records.
	Ref() string
	isActor()
}

// Human is a named human user.
type Human struct {
	UserID string
}

func (h Human) Ref() string { return fmt.Sprintf("human:%s", h.UserID) }
func (Human) isActor()      {}

// AutomatedSystem is a named automated component (e.g. a booking proposer).
type AutomatedSystem struct {
	Name string
}

func (s AutomatedSystem) Ref() string { return fmt.Sprintf("system:%s", s.Name) }
func (AutomatedSystem) isActor()      {}

// IsAutomated reports whether the actor is an automated system.
func IsAutomated(a Actor) bool {
	_, ok := a.(AutomatedSystem)
	return ok
}
