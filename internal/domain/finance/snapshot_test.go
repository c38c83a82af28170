package finance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func expense(amount int64, category string, date time.Time) Transaction {
	return Transaction{
		ID:       uuid.New(),
		Type:     TransactionExpense,
		Amount:   decimal.NewFromInt(amount),
		Category: category,
		Date:     date,
	}
}

func income(amount int64, date time.Time) Transaction {
	return Transaction{
		ID:     uuid.New(),
		Type:   TransactionIncome,
		Amount: decimal.NewFromInt(amount),
		Date:   date,
	}
}

func TestBuildSnapshot_MonthlyAggregates(t *testing.T) {
	now := time.Now()
	s := BuildSnapshot(nil, nil, []Transaction{
		income(50000, now.AddDate(0, 0, -1)),
		expense(10000, "rent", now.AddDate(0, 0, -2)),
		expense(5000, "food", now.AddDate(0, 0, -3)),
	}, now)

	assert.Equal(t, "50000", s.MonthlyIncome.String())
	assert.Equal(t, "15000", s.MonthlyExpense.String())
	assert.InDelta(t, 0.7, s.SavingsRate, 0.0001)
}

func TestBuildSnapshot_OldTransactionsCountForCategoriesOnly(t *testing.T) {
	now := time.Now()
	s := BuildSnapshot(nil, nil, []Transaction{
		expense(3000, "food", now.AddDate(0, 0, -5)),
		expense(9000, "food", now.AddDate(0, 0, -45)), // outside the 30-day window
	}, now)

	assert.Equal(t, "3000", s.MonthlyExpense.String())
	assert.Equal(t, "12000", s.CategoryTotals["food"].String())
}

func TestBuildSnapshot_SavingsRateClampedAtZero(t *testing.T) {
	now := time.Now()
	s := BuildSnapshot(nil, nil, []Transaction{
		income(10000, now),
		expense(15000, "rent", now),
	}, now)

	assert.Equal(t, 0.0, s.SavingsRate)
}

func TestBuildSnapshot_NoIncomeMeansZeroRate(t *testing.T) {
	now := time.Now()
	s := BuildSnapshot(nil, nil, []Transaction{expense(500, "food", now)}, now)

	assert.Equal(t, 0.0, s.SavingsRate)
}

func TestSnapshot_TotalBalance(t *testing.T) {
	s := &Snapshot{Accounts: []BankAccount{
		{ID: uuid.New(), Balance: decimal.NewFromInt(12000)},
		{ID: uuid.New(), Balance: decimal.NewFromInt(8000)},
	}}

	assert.Equal(t, "20000", s.TotalBalance().String())

	empty := &Snapshot{}
	assert.True(t, empty.TotalBalance().IsZero())
}

func TestSnapshot_TopExpenseCategory(t *testing.T) {
	now := time.Now()
	s := BuildSnapshot(nil, nil, []Transaction{
		expense(3000, "food", now),
		expense(9000, "rent", now),
		expense(1000, "transport", now),
	}, now)

	name, total := s.TopExpenseCategory()
	assert.Equal(t, "rent", name)
	assert.Equal(t, "9000", total.String())
}

func TestSnapshot_TopExpenseCategoryEmpty(t *testing.T) {
	s := BuildSnapshot(nil, nil, nil, time.Now())

	name, total := s.TopExpenseCategory()
	assert.Equal(t, "", name)
	assert.True(t, total.IsZero())
}
