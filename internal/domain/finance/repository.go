package finance

import (
	"context"

	"github.com/google/uuid"
)

// Store is the external data store contract the agent core consumes. Every
// call may fail independently; callers treat failures as "no data", never as
// fatal. GetUserData returns (nil, nil) for a user with no profile document.
type Store interface {
	GetUserData(ctx context.Context, userID uuid.UUID) (*Profile, error)
	GetUserTransactions(ctx context.Context, userID uuid.UUID) ([]Transaction, error)
	GetUserBankAccounts(ctx context.Context, userID uuid.UUID) ([]BankAccount, error)
	StoreUserData(ctx context.Context, userID uuid.UUID, patch map[string]interface{}) error
}
