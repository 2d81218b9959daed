package cardimporter

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ClearedStatus = "uncleared"

	// milliunitMultiplier converts a charge into the ledger's outflow milliunits.
	milliunitMultiplier = -1000
)

// Cardholder identifies whose card a workbook belongs to and which ledger
// account receives its expenses. Key is the flag written into fingerprints.
type Cardholder struct {
	Name      string
	Key       string
	AccountID string
	Workbook  string
}

// Expense is a card charge normalized into the ledger's transaction shape.
type Expense struct {
	AccountID  string
	Date       string
	PayeeName  string
	CategoryID *string
	Amount     decimal.Decimal
	Memo       string
	Cleared    string
}

// IsUUID reports whether s is a canonical 36 character UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
