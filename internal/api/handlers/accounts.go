package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-api/internal/domain"
)

type balanceView struct {
	Debit  int64 `json:"debit"`
	Credit int64 `json:"credit"`
	Amount int64 `json:"amount"`
}

type accountSnapshot struct {
	Address       string      `json:"address"`
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	NormalSide    string      `json:"normal_side"`
	Currency      string      `json:"currency"`
	AllowNegative bool        `json:"allow_negative"`
	Posted        balanceView `json:"posted"`
	Pending       balanceView `json:"pending"`
	Available     int64       `json:"available"`
}

type entrySnapshot struct {
	AccountID uuid.UUID `json:"account_id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
}

type transactionSnapshot struct {
	ID          uuid.UUID        `json:"id"`
	Status      string           `json:"status"`
	EffectiveAt int64            `json:"effective_at"`
	PostedAt    *int64           `json:"posted_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Entries     []entrySnapshot  `json:"entries"`
}

func toTransactionSnapshot(txn domain.Transaction) transactionSnapshot {
	entries := make([]entrySnapshot, len(txn.Entries))
	for i, e := range txn.Entries {
		entries[i] = entrySnapshot{
			AccountID: e.AccountID,
			Type:      string(e.Type),
			Amount:    e.AmountValue,
			Currency:  e.Currency,
		}
	}
	return transactionSnapshot{
		ID:          txn.ID,
		Status:      string(txn.Status),
		EffectiveAt: txn.EffectiveAt,
		PostedAt:    txn.PostedAt,
		Metadata:    txn.Metadata,
		Entries:     entries,
	}
}

func toAccountSnapshot(acc domain.Account) accountSnapshot {
	return accountSnapshot{
		Address:       acc.Address,
		Name:          acc.Name,
		Type:          string(acc.Type),
		NormalSide:    string(acc.NormalSide),
		Currency:      acc.Currency,
		AllowNegative: acc.AllowNegative,
		Posted:        balanceView{Debit: acc.Posted.Debit, Credit: acc.Posted.Credit, Amount: acc.Posted.Amount},
		Pending:       balanceView{Debit: acc.Pending.Debit, Credit: acc.Pending.Credit, Amount: acc.Pending.Amount},
		Available:     acc.Available,
	}
}

// MakeGetAccountHandler serves GET /v1/instances/:address/accounts/:account_address.
func MakeGetAccountHandler(deps HandlerDependencies) gin.HandlerFunc {
	store := deps.GetStore()

	return func(c *gin.Context) {
		instance, err := store.GetInstanceByAddress(c.Request.Context(), c.Param("address"))
		if err != nil {
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}

		acc, err := store.GetAccountByAddress(c.Request.Context(), instance.ID, c.Param("account_address"))
		if err != nil {
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, toAccountSnapshot(acc))
	}
}

// MakeGetBalanceHistoryHandler serves
// GET /v1/instances/:address/accounts/:account_address/balance-history,
// paged via ?limit=&offset=.
func MakeGetBalanceHistoryHandler(deps HandlerDependencies) gin.HandlerFunc {
	store := deps.GetStore()

	return func(c *gin.Context) {
		instance, err := store.GetInstanceByAddress(c.Request.Context(), c.Param("address"))
		if err != nil {
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}

		acc, err := store.GetAccountByAddress(c.Request.Context(), instance.ID, c.Param("account_address"))
		if err != nil {
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}

		limit := queryInt(c, "limit", 50)
		offset := queryInt(c, "offset", 0)

		history, err := store.ListBalanceHistory(c.Request.Context(), acc.ID, limit, offset)
		if err != nil {
			status := httpStatusForErr(err)
			c.JSON(status, gin.H{"code": errorCode(status, err), "message": err.Error()})
			return
		}

		entries := make([]gin.H, len(history))
		for i, e := range history {
			entries[i] = gin.H{
				"posted":         balanceView{Debit: e.Posted.Debit, Credit: e.Posted.Credit, Amount: e.Posted.Amount},
				"pending":        balanceView{Debit: e.Pending.Debit, Credit: e.Pending.Credit, Amount: e.Pending.Amount},
				"available":      e.Available,
				"transaction_id": e.TransactionID.String(),
				"inserted_at":    e.InsertedAt,
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"account_address": acc.Address,
			"entries":         entries,
			"limit":           limit,
			"offset":          offset,
		})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
