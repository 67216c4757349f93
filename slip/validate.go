/*
validate.go - Save validation for the header/detail aggregate

PURPOSE:
  Checks a slip against the accounting-consistency rules before any
  network call is made. Validation short-circuits: it returns the FIRST
  violation only, never an aggregate of all errors - the UI surfaces one
  toast at a time and keeps the user in edit mode.

CHECK ORDER:
  1. Header exists
  2. Header description non-empty
  3. Detail list non-empty
  4. Per line, in list order:
     a. account code present
     b. management item 1 value present when its slot demands one
     c. management item 2 value present when its slot demands one
     d. nonzero debit or credit amount
     e. currency present
     f. home currency: exchange rate exactly 1 and raw == converted;
        other currencies: exchange rate positive
     g. department present
     h. counterparty present
  5. Total debit sum equals total credit sum (double-entry balance)

  The balance comparison is exact decimal equality, not float equality.

SIDE EFFECTS:
  None. The caller decides how to surface the returned message.

SEE ALSO:
  - messages.go: the message catalog
  - assemble.go: runs only after validation passes
*/
package slip

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Validate checks the aggregate and returns nil, or the first violation
// as a *ValidationError whose Message is ready for the UI.
func Validate(h *Header, lines []DetailLine) error {
	if h == nil {
		return &ValidationError{Message: MsgHeaderRequired}
	}
	if h.Description == "" {
		return &ValidationError{Message: MsgDescriptionRequired}
	}
	if len(lines) == 0 {
		return &ValidationError{Message: MsgDetailRequired}
	}

	debitTotal := decimal.Zero
	creditTotal := decimal.Zero

	for i, l := range lines {
		row := i + 1

		if l.AccountCode == "" {
			return &ValidationError{Row: row, Message: RowAccountRequired(row)}
		}
		if l.Mgmt1.Required() && l.Mgmt1.Value == "" {
			return &ValidationError{Row: row, Message: RowMgmt1Required(row)}
		}
		if l.Mgmt2.Required() && l.Mgmt2.Value == "" {
			return &ValidationError{Row: row, Message: RowMgmt2Required(row)}
		}
		if !l.DebitAmount.IsPositive() && !l.CreditAmount.IsPositive() {
			return &ValidationError{Row: row, Message: RowAmountRequired(row)}
		}
		if l.CurrencyCode == "" {
			return &ValidationError{Row: row, Message: RowCurrencyRequired(row)}
		}
		if l.CurrencyCode == HomeCurrency {
			if !l.ExchangeRate.Equal(one) || !l.RawAmount().Equal(l.ConvertedAmount) {
				return &ValidationError{Row: row, Message: RowHomeCurrencyRule(row)}
			}
		} else if !l.ExchangeRate.IsPositive() {
			return &ValidationError{Row: row, Message: RowRateRequired(row)}
		}
		if l.DeptCode == "" {
			return &ValidationError{Row: row, Message: RowDeptRequired(row)}
		}
		if l.PartnerCode == "" {
			return &ValidationError{Row: row, Message: RowPartnerRequired(row)}
		}

		debitTotal = debitTotal.Add(l.DebitAmount)
		creditTotal = creditTotal.Add(l.CreditAmount)
	}

	if !debitTotal.Equal(creditTotal) {
		return &ValidationError{Message: MsgBalanceMismatch}
	}

	return nil
}
