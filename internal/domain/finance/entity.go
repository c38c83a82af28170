package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

// Valid checks if transaction type is valid
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionTransfer:
		return true
	}
	return false
}

// String returns string representation
func (t TransactionType) String() string {
	return string(t)
}

// Transaction is one ledger entry fetched from the data store.
// The agent core never mutates transactions; it only derives aggregates.
type Transaction struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	AccountID uuid.UUID       `db:"account_id"`
	Amount    decimal.Decimal `db:"amount"`
	Type      TransactionType `db:"type"`
	Category  string          `db:"category"`
	Date      time.Time       `db:"date"`
	CreatedAt time.Time       `db:"created_at"`
}

// BankAccount is a linked account with its current balance
type BankAccount struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	Name      string          `db:"name"`
	Balance   decimal.Decimal `db:"balance"`
	Currency  string          `db:"currency"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Profile holds the user's stored preferences and goals
type Profile struct {
	UserID        uuid.UUID       `db:"user_id"`
	DisplayName   string          `db:"display_name"`
	Currency      string          `db:"currency"`
	MonthlyBudget decimal.Decimal `db:"monthly_budget"`
	SavingsGoal   decimal.Decimal `db:"savings_goal"`
	RiskTolerance string          `db:"risk_tolerance"` // conservative, moderate, aggressive
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
