package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the read-only view of a user's finances the agents reason over.
// Accounts and transactions come straight from the data store; the aggregate
// fields are derived here and nowhere else.
type Snapshot struct {
	Profile      *Profile
	Accounts     []BankAccount
	Transactions []Transaction
	FetchedAt    time.Time

	MonthlyIncome  decimal.Decimal
	MonthlyExpense decimal.Decimal
	CategoryTotals map[string]decimal.Decimal
	SavingsRate    float64
}

// BuildSnapshot derives aggregates from raw store data. Transactions outside
// the 30-day window still contribute to category totals but not to the
// monthly income/expense figures.
func BuildSnapshot(profile *Profile, accounts []BankAccount, txs []Transaction, now time.Time) *Snapshot {
	s := &Snapshot{
		Profile:        profile,
		Accounts:       accounts,
		Transactions:   txs,
		FetchedAt:      now,
		MonthlyIncome:  decimal.Zero,
		MonthlyExpense: decimal.Zero,
		CategoryTotals: make(map[string]decimal.Decimal),
	}

	monthStart := now.AddDate(0, 0, -30)

	for _, tx := range txs {
		if tx.Type == TransactionExpense {
			total := s.CategoryTotals[tx.Category]
			s.CategoryTotals[tx.Category] = total.Add(tx.Amount)
		}

		if tx.Date.Before(monthStart) {
			continue
		}

		switch tx.Type {
		case TransactionIncome:
			s.MonthlyIncome = s.MonthlyIncome.Add(tx.Amount)
		case TransactionExpense:
			s.MonthlyExpense = s.MonthlyExpense.Add(tx.Amount)
		}
	}

	if s.MonthlyIncome.IsPositive() {
		saved := s.MonthlyIncome.Sub(s.MonthlyExpense)
		rate, _ := saved.Div(s.MonthlyIncome).Float64()
		if rate < 0 {
			rate = 0
		}
		s.SavingsRate = rate
	}

	return s
}

// TotalBalance sums balances across all linked accounts
func (s *Snapshot) TotalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.Accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// TopExpenseCategory returns the category with the largest expense total,
// empty when there are no expenses.
func (s *Snapshot) TopExpenseCategory() (string, decimal.Decimal) {
	var topName string
	top := decimal.Zero
	for name, total := range s.CategoryTotals {
		if total.GreaterThan(top) || (total.Equal(top) && topName == "") {
			topName = name
			top = total
		}
	}
	return topName, top
}
