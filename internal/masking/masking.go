// Package masking redacts identifying fields on records about to leave the
// trust boundary: exports and low-privilege audit views. The data used
// internally for balance and anomaly checks is never masked.
package masking

import "strings"

// Privilege is the audience level a record is rendered for.
type Privilege string

const (
	// PrivilegeFull sees records unredacted.
	PrivilegeFull Privilege = "full"
	// PrivilegeRestricted sees tax ids, bank accounts and person names
	// redacted.
	PrivilegeRestricted Privilege = "restricted"
)

// ParsePrivilege maps a caller-supplied string to a privilege level,
// defaulting to restricted for anything unknown.
func ParsePrivilege(s string) Privilege {
	if strings.EqualFold(s, string(PrivilegeFull)) {
		return PrivilegeFull
	}
	return PrivilegeRestricted
}

// TaxID keeps only the last 3 digits of a tax identifier.
func TaxID(id string) string {
	if len(id) <= 3 {
		return id
	}
	return strings.Repeat("*", len(id)-3) + id[len(id)-3:]
}

// BankAccount keeps the first 4 and last 4 characters of an account number
// and replaces the middle. Short values are fully starred.
func BankAccount(iban string) string {
	if len(iban) <= 8 {
		return strings.Repeat("*", len(iban))
	}
	return iban[:4] + strings.Repeat("*", len(iban)-8) + iban[len(iban)-4:]
}

// PersonName collapses a person's name to initials: "Ana Kovač" -> "A.K.".
func PersonName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	for _, f := range fields {
		r := []rune(f)
		b.WriteRune(r[0])
		b.WriteByte('.')
	}
	return b.String()
}

// Record is the masked projection of counterparty identity data.
type Record struct {
	Name  string
	TaxID string
	IBAN  string
}

// ForExport applies field-level redaction when the audience privilege is
// restricted; full-privilege audiences get the record unchanged. The masking
// is deterministic: the same input always yields the same redacted output.
func ForExport(rec Record, p Privilege) Record {
	if p == PrivilegeFull {
		return rec
	}

	return Record{
		Name:  PersonName(rec.Name),
		TaxID: TaxID(rec.TaxID),
		IBAN:  BankAccount(rec.IBAN),
	}
}
