package cardimporter

import (
	"strings"

	"github.com/bcaldwell/cardsync/pkg/spreadsheet"
	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

var (
	payeeReplacer  = strings.NewReplacer("/", "", "\\", "")
	amountReplacer = strings.NewReplacer(",", "", " ", "", "\u00a0", "")
)

type Mapper struct {
	categories CategoryMap
}

func NewMapper(categories CategoryMap) *Mapper {
	if categories == nil {
		categories = CategoryMap{}
	}
	return &Mapper{categories: categories}
}

// Map turns one spreadsheet row into an expense on the cardholder's account.
// Rows that cannot be mapped give nil; the reason is logged when it is not just
// a missing field.
func (m *Mapper) Map(row spreadsheet.RawRow, holder Cardholder) *Expense {
	if !IsUUID(holder.AccountID) {
		klog.Warningf("Cardholder %s has no valid account id, dropping %s row %d\n", holder.Name, row.Sheet, row.Row)
		return nil
	}

	rawDate := row.Get(spreadsheet.ColumnDate)
	payee := strings.TrimSpace(payeeReplacer.Replace(row.Get(spreadsheet.ColumnMerchant)))
	billed := row.Get(spreadsheet.ColumnBilledAmount)
	original := row.Get(spreadsheet.ColumnOriginalAmount)

	if rawDate == "" || payee == "" || (billed == "" && original == "") {
		return nil
	}

	date := NormalizeDate(rawDate)
	if date == "" {
		klog.Warningf("Dropping %s row %d: unparseable date %q\n", row.Sheet, row.Row, rawDate)
		return nil
	}

	rawAmount := billed
	if rawAmount == "" {
		rawAmount = original
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		klog.Warningf("Dropping %s row %d: unparseable amount %q: %v\n", row.Sheet, row.Row, rawAmount, err)
		return nil
	}

	return &Expense{
		AccountID:  holder.AccountID,
		Date:       date,
		PayeeName:  payee,
		CategoryID: m.categories.Lookup(row.Get(spreadsheet.ColumnCategory)),
		Amount:     toMilliunits(amount),
		Memo:       original,
		Cleared:    ClearedStatus,
	}
}

// MapRows maps rows in order, dropping those Map rejects.
func (m *Mapper) MapRows(rows []spreadsheet.RawRow, holder Cardholder) []Expense {
	expenses := make([]Expense, 0, len(rows))
	for _, row := range rows {
		if e := m.Map(row, holder); e != nil {
			expenses = append(expenses, *e)
		}
	}

	klog.Infof("Mapped %d of %d rows for %s\n", len(expenses), len(rows), holder.Name)
	return expenses
}

// toMilliunits flips the sign and scales to milliunits. Halves round up, so
// -0.5 becomes 0 and 0.5 becomes 1.
func toMilliunits(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(milliunitMultiplier)).Add(decimal.New(5, -1)).Floor()
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(amountReplacer.Replace(s))
}
