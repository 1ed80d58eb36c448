package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testAccounts(instanceID uuid.UUID) map[string]AccountInfo {
	return map[string]AccountInfo{
		"cash": {
			Address:    "cash",
			InstanceID: instanceID,
			Currency:   "EUR",
			NormalSide: NormalDebit,
		},
		"revenue": {
			Address:    "revenue",
			InstanceID: instanceID,
			Currency:   "EUR",
			NormalSide: NormalCredit,
		},
	}
}

func balancedEntries() []EntryLike {
	return []EntryLike{
		ResolvedEntry{AccountAddress: "cash", Type: EntryDebit, AmountValue: 10_000, Currency: "EUR"},
		ResolvedEntry{AccountAddress: "revenue", Type: EntryCredit, AmountValue: 10_000, Currency: "EUR"},
	}
}

func TestValidateAcceptsBalancedEntries(t *testing.T) {
	instanceID := uuid.New()
	err := Validate(instanceID, balancedEntries(), testAccounts(instanceID))
	assert.NoError(t, err)
}

func TestValidateRejectsTooFewEntries(t *testing.T) {
	instanceID := uuid.New()
	entries := []EntryLike{
		ResolvedEntry{AccountAddress: "cash", Type: EntryDebit, AmountValue: 10_000, Currency: "EUR"},
	}
	err := Validate(instanceID, entries, testAccounts(instanceID))
	assert.ErrorIs(t, err, ErrTooFewEntries)
}

func TestValidateRejectsUnbalancedByCurrency(t *testing.T) {
	instanceID := uuid.New()
	entries := []EntryLike{
		ResolvedEntry{AccountAddress: "cash", Type: EntryDebit, AmountValue: 10_000, Currency: "EUR"},
		ResolvedEntry{AccountAddress: "revenue", Type: EntryCredit, AmountValue: 9_000, Currency: "EUR"},
	}
	err := Validate(instanceID, entries, testAccounts(instanceID))
	assert.ErrorIs(t, err, ErrUnbalancedByCurrency)
}

func TestValidateRejectsCurrencyMismatch(t *testing.T) {
	instanceID := uuid.New()
	entries := []EntryLike{
		ResolvedEntry{AccountAddress: "cash", Type: EntryDebit, AmountValue: 10_000, Currency: "USD"},
		ResolvedEntry{AccountAddress: "revenue", Type: EntryCredit, AmountValue: 10_000, Currency: "USD"},
	}
	err := Validate(instanceID, entries, testAccounts(instanceID))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestValidateRejectsCrossInstance(t *testing.T) {
	instanceID := uuid.New()
	accounts := testAccounts(instanceID)
	other := accounts["revenue"]
	other.InstanceID = uuid.New()
	accounts["revenue"] = other

	err := Validate(instanceID, balancedEntries(), accounts)
	assert.ErrorIs(t, err, ErrCrossInstance)
}

func TestValidateRejectsAccountNotFound(t *testing.T) {
	instanceID := uuid.New()
	entries := []EntryLike{
		ResolvedEntry{AccountAddress: "cash", Type: EntryDebit, AmountValue: 10_000, Currency: "EUR"},
		ResolvedEntry{AccountAddress: "missing", Type: EntryCredit, AmountValue: 10_000, Currency: "EUR"},
	}
	err := Validate(instanceID, entries, testAccounts(instanceID))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	var notFound *AccountNotFoundError
	if assert.ErrorAs(t, err, &notFound) {
		assert.Equal(t, []string{"missing"}, notFound.Addresses)
	}
}

func TestValidateSumsPerCurrencyIndependently(t *testing.T) {
	instanceID := uuid.New()
	accounts := testAccounts(instanceID)
	accounts["cash_usd"] = AccountInfo{Address: "cash_usd", InstanceID: instanceID, Currency: "USD", NormalSide: NormalDebit}
	accounts["revenue_usd"] = AccountInfo{Address: "revenue_usd", InstanceID: instanceID, Currency: "USD", NormalSide: NormalCredit}

	entries := []EntryLike{
		ResolvedEntry{AccountAddress: "cash", Type: EntryDebit, AmountValue: 10_000, Currency: "EUR"},
		ResolvedEntry{AccountAddress: "revenue", Type: EntryCredit, AmountValue: 10_000, Currency: "EUR"},
		ResolvedEntry{AccountAddress: "cash_usd", Type: EntryDebit, AmountValue: 5_000, Currency: "USD"},
		ResolvedEntry{AccountAddress: "revenue_usd", Type: EntryCredit, AmountValue: 5_000, Currency: "USD"},
	}
	err := Validate(instanceID, entries, accounts)
	assert.NoError(t, err)
}

func TestLegalTransition(t *testing.T) {
	assert.True(t, LegalTransition(TransactionPending, TransactionPosted))
	assert.True(t, LegalTransition(TransactionPending, TransactionArchived))
	assert.True(t, LegalTransition(TransactionPosted, TransactionPosted))
	assert.False(t, LegalTransition(TransactionPosted, TransactionArchived))
	assert.False(t, LegalTransition(TransactionArchived, TransactionPosted))
	assert.False(t, LegalTransition(TransactionPosted, TransactionPending))
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(TransactionPending, TransactionPosted))
	assert.ErrorIs(t, ValidateTransition(TransactionPosted, TransactionArchived), ErrIllegalTransition)
}
