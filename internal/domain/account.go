package domain

import "github.com/google/uuid"

type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

type NormalSide string

const (
	NormalDebit  NormalSide = "debit"
	NormalCredit NormalSide = "credit"
)

// NormalSideForType derives an account's polarity from its type.
// asset/expense accounts grow with debits; liability/equity/revenue grow
// with credits.
func NormalSideForType(t AccountType) NormalSide {
	switch t {
	case AccountAsset, AccountExpense:
		return NormalDebit
	default:
		return NormalCredit
	}
}

type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Balance holds one of the posted/pending views of an account. Amount is the
// signed balance in the account's own polarity: positive means "more of
// what this account normally holds".
type Balance struct {
	Debit  int64
	Credit int64
	Amount int64
}

// Account is a named, typed, currency-scoped ledger slot.
type Account struct {
	ID            uuid.UUID
	InstanceID    uuid.UUID
	Address       string
	Name          string
	Type          AccountType
	NormalSide    NormalSide
	Currency      string
	AllowNegative bool
	Posted        Balance
	Pending       Balance
	Available     int64
	LockVersion   int64
}

// Transition identifies which balance-mutation rule apply_entry should use.
type Transition string

const (
	TransitionPosted          Transition = "posted"
	TransitionPending         Transition = "pending"
	TransitionPendingToPosted Transition = "pending_to_posted"
	TransitionPendingToArchived Transition = "pending_to_archived"
)

// signedEffect returns the signed contribution of one entry against an
// account's own polarity: +amount when the entry grows the account's normal
// balance, -amount when it shrinks it.
func signedEffect(side NormalSide, entryType EntryType, amount int64) int64 {
	grows := (side == NormalDebit && entryType == EntryDebit) || (side == NormalCredit && entryType == EntryCredit)
	if grows {
		return amount
	}
	return -amount
}

func addToBalance(b Balance, entryType EntryType, side NormalSide, amount int64) Balance {
	delta := signedEffect(side, entryType, amount)
	out := b
	if entryType == EntryDebit {
		out.Debit += amount
	} else {
		out.Credit += amount
	}
	out.Amount += delta
	return out
}

func subtractFromBalance(b Balance, entryType EntryType, side NormalSide, amount int64) Balance {
	delta := signedEffect(side, entryType, amount)
	out := b
	if entryType == EntryDebit {
		out.Debit -= amount
	} else {
		out.Credit -= amount
	}
	out.Amount -= delta
	return out
}

func recomputeAvailable(b Balance, pending Balance) int64 {
	held := pending.Amount
	if held > 0 {
		held = 0
	}
	return b.Amount + held
}

// ApplyEntry computes the account state that results from applying a single
// entry under the given transition. It is pure: callers own persisting the
// result and reloading rows under OCC. Returns ErrNegativeAvailable when the
// resulting state violates allow_negative=false.
func ApplyEntry(acc Account, entryType EntryType, amount int64, transition Transition) (Account, error) {
	out := acc

	switch transition {
	case TransitionPosted:
		out.Posted = addToBalance(out.Posted, entryType, out.NormalSide, amount)
	case TransitionPending:
		out.Pending = addToBalance(out.Pending, entryType, out.NormalSide, amount)
	case TransitionPendingToPosted:
		out.Pending = subtractFromBalance(out.Pending, entryType, out.NormalSide, amount)
		out.Posted = addToBalance(out.Posted, entryType, out.NormalSide, amount)
	case TransitionPendingToArchived:
		out.Pending = subtractFromBalance(out.Pending, entryType, out.NormalSide, amount)
	default:
		out.Posted = addToBalance(out.Posted, entryType, out.NormalSide, amount)
	}

	out.Available = recomputeAvailable(out.Posted, out.Pending)

	if !out.AllowNegative && out.Available < 0 {
		return acc, ErrNegativeAvailable
	}
	return out, nil
}
