package domain

import "github.com/google/uuid"

// EntryLike is the capability-typed abstraction §9 calls for: the
// transaction validator operates against this interface so the same code works
// over persisted Entry rows and resolved in-flight entries derived from a
// command payload, without a shared concrete type.
type EntryLike interface {
	AccountRef() string // account address (pre-resolution) or account id string (persisted)
	EntryType() EntryType
	Amount() int64
	CurrencyCode() string
}

// Entry belongs to one transaction and one account. Immutable once the
// owning transaction is posted.
type Entry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Type          EntryType
	AmountValue   int64
	Currency      string
}

func (e Entry) AccountRef() string   { return e.AccountID.String() }
func (e Entry) EntryType() EntryType { return e.Type }
func (e Entry) Amount() int64        { return e.AmountValue }
func (e Entry) CurrencyCode() string { return e.Currency }

// EntryDraft is one line of a TransactionPayload as submitted: a signed
// amount (minor units) against an account address. It does not yet know
// debit/credit polarity — that depends on the target account's normal side
// and is resolved by SignToEntryType.
type EntryDraft struct {
	AccountAddress string `json:"account_address"`
	SignedAmount   int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// ResolvedEntry is an EntryDraft after sign-to-entry-type translation: it
// carries a concrete EntryType and unsigned amount, and is what the
// transaction validator and CreateTransaction worker operate on before an
// Entry row exists.
type ResolvedEntry struct {
	AccountAddress string
	Type           EntryType
	AmountValue    int64
	Currency       string
}

func (r ResolvedEntry) AccountRef() string   { return r.AccountAddress }
func (r ResolvedEntry) EntryType() EntryType { return r.Type }
func (r ResolvedEntry) Amount() int64        { return r.AmountValue }
func (r ResolvedEntry) CurrencyCode() string { return r.Currency }

// SignToEntryType translates a signed amount into a debit/credit entry type
// given the owning account's polarity. A positive amount on a debit-normal
// account is a debit; mirrored for credit-normal accounts.
func SignToEntryType(side NormalSide, signedAmount int64) EntryType {
	positive := signedAmount >= 0
	if side == NormalDebit {
		if positive {
			return EntryDebit
		}
		return EntryCredit
	}
	if positive {
		return EntryCredit
	}
	return EntryDebit
}

// Resolve translates a draft into a ResolvedEntry given its account's
// normal side.
func (d EntryDraft) Resolve(side NormalSide) ResolvedEntry {
	amount := d.SignedAmount
	if amount < 0 {
		amount = -amount
	}
	return ResolvedEntry{
		AccountAddress: d.AccountAddress,
		Type:           SignToEntryType(side, d.SignedAmount),
		AmountValue:    amount,
		Currency:       d.Currency,
	}
}
