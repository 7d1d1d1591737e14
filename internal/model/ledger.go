package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a ledger entry by what caused it.
type EntryKind string

const (
	KindEarned   EntryKind = "earned"
	KindRedeemed EntryKind = "redeemed"
	KindExpired  EntryKind = "expired"
	KindAdjusted EntryKind = "adjusted"
	KindBonus    EntryKind = "bonus"
)

var entryKinds = map[EntryKind]struct{}{
	KindEarned:   {},
	KindRedeemed: {},
	KindExpired:  {},
	KindAdjusted: {},
	KindBonus:    {},
}

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	_, ok := entryKinds[k]
	return ok
}

// ParseEntryKind converts a string into an EntryKind.
func ParseEntryKind(s string) (EntryKind, error) {
	k := EntryKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
	return k, nil
}

// CountsTowardLifetime reports whether a credit of this kind increases
// lifetime points. Compensating credits (adjusted) restore balance only.
func (k EntryKind) CountsTowardLifetime() bool {
	return k == KindEarned || k == KindBonus
}

// Reference links a ledger entry to the record that caused it. IDs are
// strings because booking references come from the PMS in its own format.
type Reference struct {
	ID   string `json:"id"`
	Type string `json:"type"` // "booking", "redemption", "ledger_entry"
}

// LedgerEntry is one immutable point-affecting event. Entries are
// append-only: once written they are never updated or deleted.
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	Amount        int64      `json:"amount"` // positive = credit, negative = debit
	Kind          EntryKind  `json:"kind"`
	Description   string     `json:"description"`
	ReferenceID   *string    `json:"reference_id,omitempty"`
	ReferenceType *string    `json:"reference_type,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HistoryFilter narrows a ledger history query. Filtering is keyed by the
// kind enum so the repository can stay fully parameterized.
type HistoryFilter struct {
	Kinds []EntryKind
	Page  int
	Limit int
}
