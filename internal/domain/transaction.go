package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionPosted   TransactionStatus = "posted"
	TransactionArchived TransactionStatus = "archived"
)

// Transaction is a set of balanced entries that move value among accounts.
type Transaction struct {
	ID          uuid.UUID
	InstanceID  uuid.UUID
	Status      TransactionStatus
	EffectiveAt int64 // unix seconds
	PostedAt    *int64
	Metadata    map[string]string
	Entries     []Entry
	LockVersion int64
}

// LegalTransition reports whether a transaction may move from one status to
// another. pending->posted and pending->archived are the only moves;
// posted and archived are terminal. A same-status pair (from == to) is
// reported legal.
func LegalTransition(from, to TransactionStatus) bool {
	if from == to {
		return true
	}
	if from == TransactionPending && (to == TransactionPosted || to == TransactionArchived) {
		return true
	}
	return false
}

// AccountInfo is the minimal account projection the validator needs. The
// store layer fetches these and passes them in; the validator itself never
// touches the database, keeping it side-effect-free per spec.
type AccountInfo struct {
	Address    string
	InstanceID uuid.UUID
	Currency   string
	NormalSide NormalSide
}

// AccountNotFoundError names every entry address the validator could not
// resolve against the supplied account set.
type AccountNotFoundError struct {
	Addresses []string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account(s) not found: %s", strings.Join(e.Addresses, ", "))
}

func (e *AccountNotFoundError) Unwrap() error { return ErrAccountNotFound }

// Validate enforces: >=2 entries, every entry's account resolvable and in
// the same instance, entry currency matching account currency, and
// per-currency debit=credit balance. It never mutates state; the caller
// (the store layer) supplies the AccountInfo for every referenced account
// after a read-only fetch.
func Validate(instanceID uuid.UUID, entries []EntryLike, accounts map[string]AccountInfo) error {
	if len(entries) < 2 {
		return ErrTooFewEntries
	}

	var missing []string
	for _, e := range entries {
		if _, ok := accounts[e.AccountRef()]; !ok {
			missing = append(missing, e.AccountRef())
		}
	}
	if len(missing) > 0 {
		return &AccountNotFoundError{Addresses: missing}
	}

	for _, e := range entries {
		info := accounts[e.AccountRef()]
		if info.InstanceID != instanceID {
			return ErrCrossInstance
		}
		if info.Currency != e.CurrencyCode() {
			return ErrCurrencyMismatch
		}
	}

	sums := map[string]struct{ Debit, Credit int64 }{}
	for _, e := range entries {
		s := sums[e.CurrencyCode()]
		if e.EntryType() == EntryDebit {
			s.Debit += e.Amount()
		} else {
			s.Credit += e.Amount()
		}
		sums[e.CurrencyCode()] = s
	}
	for _, s := range sums {
		if s.Debit != s.Credit {
			return ErrUnbalancedByCurrency
		}
	}

	return nil
}

// ValidateTransition enforces a legal status transition, kept distinct from
// Validate since update_transaction may keep entries unchanged while only
// restatusing.
func ValidateTransition(from, to TransactionStatus) error {
	if !LegalTransition(from, to) {
		return ErrIllegalTransition
	}
	return nil
}
