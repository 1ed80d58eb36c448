package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debitNormalAccount() Account {
	return Account{
		NormalSide:    NormalDebit,
		Currency:      "EUR",
		AllowNegative: false,
	}
}

func creditNormalAccount() Account {
	return Account{
		NormalSide:    NormalCredit,
		Currency:      "EUR",
		AllowNegative: false,
	}
}

func TestApplyEntryPostedDebitNormal(t *testing.T) {
	acc := debitNormalAccount()

	out, err := ApplyEntry(acc, EntryDebit, 100_000, TransitionPosted)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), out.Posted.Debit)
	assert.Equal(t, int64(0), out.Posted.Credit)
	assert.Equal(t, int64(100_000), out.Posted.Amount)
	assert.Equal(t, int64(100_000), out.Available)

	out2, err := ApplyEntry(out, EntryCredit, 30_000, TransitionPosted)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000), out2.Posted.Credit)
	assert.Equal(t, int64(70_000), out2.Posted.Amount)
	assert.Equal(t, int64(70_000), out2.Available)
}

func TestApplyEntryPostedCreditNormalMirrors(t *testing.T) {
	acc := creditNormalAccount()

	out, err := ApplyEntry(acc, EntryCredit, 100_000, TransitionPosted)
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), out.Posted.Credit)
	assert.Equal(t, int64(100_000), out.Posted.Amount)
	assert.Equal(t, int64(100_000), out.Available)
}

func TestApplyEntryPendingDoesNotIncreaseAvailable(t *testing.T) {
	acc := debitNormalAccount()
	acc.AllowNegative = true
	acc.Posted = Balance{Debit: 100_000, Amount: 100_000}
	acc.Available = 100_000

	// A pending debit (hold that would increase available) must not raise it.
	out, err := ApplyEntry(acc, EntryDebit, 50_000, TransitionPending)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), out.Pending.Amount)
	assert.Equal(t, int64(100_000), out.Available, "pending debit hold must not increase available")
}

func TestApplyEntryPendingReducesAvailable(t *testing.T) {
	acc := debitNormalAccount()
	acc.AllowNegative = true
	acc.Posted = Balance{Debit: 100_000, Amount: 100_000}
	acc.Available = 100_000

	out, err := ApplyEntry(acc, EntryCredit, 20_000, TransitionPending)
	require.NoError(t, err)
	assert.Equal(t, int64(-20_000), out.Pending.Amount)
	assert.Equal(t, int64(80_000), out.Available)
}

func TestApplyEntryPendingToPostedMovesHold(t *testing.T) {
	acc := debitNormalAccount()
	acc.AllowNegative = true
	acc.Posted = Balance{Debit: 100_000, Amount: 100_000}
	acc.Pending = Balance{Credit: 20_000, Amount: -20_000}
	acc.Available = 80_000

	out, err := ApplyEntry(acc, EntryCredit, 20_000, TransitionPendingToPosted)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Pending.Amount)
	assert.Equal(t, int64(80_000), out.Posted.Amount)
	assert.Equal(t, int64(80_000), out.Available)
}

func TestApplyEntryPendingToArchivedReversesHoldOnly(t *testing.T) {
	acc := debitNormalAccount()
	acc.AllowNegative = true
	acc.Posted = Balance{Debit: 100_000, Amount: 100_000}
	acc.Pending = Balance{Credit: 20_000, Amount: -20_000}
	acc.Available = 80_000

	out, err := ApplyEntry(acc, EntryCredit, 20_000, TransitionPendingToArchived)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.Pending.Amount)
	assert.Equal(t, int64(100_000), out.Posted.Amount, "posted balance must not move on archive")
	assert.Equal(t, int64(100_000), out.Available)
}

func TestApplyEntryNegativeAvailableRejected(t *testing.T) {
	acc := debitNormalAccount() // AllowNegative: false

	_, err := ApplyEntry(acc, EntryCredit, 1, TransitionPosted)
	assert.ErrorIs(t, err, ErrNegativeAvailable)
}

func TestSignToEntryType(t *testing.T) {
	assert.Equal(t, EntryDebit, SignToEntryType(NormalDebit, 100))
	assert.Equal(t, EntryCredit, SignToEntryType(NormalDebit, -100))
	assert.Equal(t, EntryCredit, SignToEntryType(NormalCredit, 100))
	assert.Equal(t, EntryDebit, SignToEntryType(NormalCredit, -100))
}
