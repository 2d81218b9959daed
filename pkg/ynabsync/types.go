package ynabsync

import (
	"github.com/bcaldwell/cardsync/pkg/cardimporter"
	"github.com/google/uuid"
)

// importIDNamespace scopes the name based uuids used as import ids.
var importIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://api.ynab.com/v1/transactions/import_id"))

// Transaction is the body of a single transaction in a create request.
type Transaction struct {
	AccountID  string  `json:"account_id"`
	Date       string  `json:"date"`
	Amount     int64   `json:"amount"`
	PayeeName  string  `json:"payee_name,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	Memo       string  `json:"memo,omitempty"`
	Cleared    string  `json:"cleared"`
	Approved   bool    `json:"approved"`
	ImportID   string  `json:"import_id,omitempty"`
}

type transactionsRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// {"data":{"transaction_ids":["..."],"duplicate_import_ids":["..."],"transactions":[...],"server_knowledge":1}}
type CreateTransactionsResponse struct {
	Data struct {
		TransactionIDs     []string `json:"transaction_ids"`
		DuplicateImportIDs []string `json:"duplicate_import_ids"`
	} `json:"data"`
}

// {"error":{"id":"400","name":"bad_request","detail":"..."}}
type errorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// ImportID derives a stable import id from a fingerprint so the ledger itself
// refuses a transaction sent twice.
func ImportID(fingerprint string) string {
	return uuid.NewSHA1(importIDNamespace, []byte(fingerprint)).String()
}

func NewTransaction(e cardimporter.Expense, importID string) Transaction {
	return Transaction{
		AccountID:  e.AccountID,
		Date:       e.Date,
		Amount:     e.Amount.IntPart(),
		PayeeName:  e.PayeeName,
		CategoryID: e.CategoryID,
		Memo:       e.Memo,
		Cleared:    e.Cleared,
		ImportID:   importID,
	}
}
