package cardimporter

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"k8s.io/klog"
)

// MaxExpenseAgeYears is how far back an expense date may be before it is
// rejected as stale.
const MaxExpenseAgeYears = 5

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid expense: " + e.Reason
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validator checks expenses against the ledger's acceptance rules. Now is the
// clock used for the future and staleness checks; dates compare as calendar
// days in its location.
type Validator struct {
	Now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{Now: time.Now}
}

func (v *Validator) Validate(e Expense) error {
	if !IsUUID(e.AccountID) {
		return invalid("account id %q is not a uuid", e.AccountID)
	}

	if !isoDate.MatchString(e.Date) {
		return invalid("date %q is not YYYY-MM-DD", e.Date)
	}

	now := v.Now()
	date, err := time.ParseInLocation(dateLayout, e.Date, now.Location())
	if err != nil {
		return invalid("date %q is not a calendar date", e.Date)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.After(today) {
		return invalid("date %s is in the future", e.Date)
	}
	if date.Before(today.AddDate(-MaxExpenseAgeYears, 0, 0)) {
		return invalid("date %s is more than %d years old", e.Date, MaxExpenseAgeYears)
	}

	if !e.Amount.IsInteger() {
		return invalid("amount %s is not a whole number of milliunits", e.Amount)
	}

	if !utf8.ValidString(e.PayeeName) {
		return invalid("payee name is not valid text")
	}
	if e.CategoryID != nil && !utf8.ValidString(*e.CategoryID) {
		return invalid("category id is not valid text")
	}

	return nil
}

// ValidateExpenses keeps the expenses that pass Validate, in order, and logs
// each rejection.
func (v *Validator) ValidateExpenses(expenses []Expense) []Expense {
	valid := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if err := v.Validate(e); err != nil {
			klog.Warningf("Dropping expense %s %s %s: %v\n", e.Date, e.PayeeName, e.Amount, err)
			continue
		}
		valid = append(valid, e)
	}

	return valid
}
