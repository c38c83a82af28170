package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"kitakita/internal/domain/finance"
	"kitakita/pkg/errors"
)

// Compile-time check that we implement the interface
var _ finance.Store = (*UserDataRepository)(nil)

// UserDataRepository implements finance.Store using sqlx. Per the store
// contract, a user with no profile row yields (nil, nil), not an error.
type UserDataRepository struct {
	db DBTX
}

// NewUserDataRepository creates a new user data repository
func NewUserDataRepository(db DBTX) *UserDataRepository {
	return &UserDataRepository{db: db}
}

// GetUserData retrieves the user's profile document
func (r *UserDataRepository) GetUserData(ctx context.Context, userID uuid.UUID) (*finance.Profile, error) {
	var p finance.Profile

	query := `
		SELECT user_id, display_name, currency, monthly_budget, savings_goal,
			   risk_tolerance, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1`

	err := r.db.GetContext(ctx, &p, query, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user profile")
	}

	return &p, nil
}

// GetUserTransactions retrieves the user's recent ledger entries, newest first
func (r *UserDataRepository) GetUserTransactions(ctx context.Context, userID uuid.UUID) ([]finance.Transaction, error) {
	var txs []finance.Transaction

	query := `
		SELECT id, user_id, account_id, amount, type, category, date, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT 500`

	if err := r.db.SelectContext(ctx, &txs, query, userID); err != nil {
		return nil, errors.Wrap(err, "get user transactions")
	}

	return txs, nil
}

// GetUserBankAccounts retrieves the user's linked accounts
func (r *UserDataRepository) GetUserBankAccounts(ctx context.Context, userID uuid.UUID) ([]finance.BankAccount, error) {
	var accounts []finance.BankAccount

	query := `
		SELECT id, user_id, name, balance, currency, created_at, updated_at
		FROM bank_accounts
		WHERE user_id = $1
		ORDER BY created_at`

	if err := r.db.SelectContext(ctx, &accounts, query, userID); err != nil {
		return nil, errors.Wrap(err, "get user bank accounts")
	}

	return accounts, nil
}

// ListActiveUserIDs returns users with ledger activity in the last 30 days.
// Used by the insight refresher to decide whose dashboards to keep warm.
func (r *UserDataRepository) ListActiveUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	query := `
		SELECT DISTINCT user_id
		FROM transactions
		WHERE created_at > NOW() - INTERVAL '30 days'`

	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, errors.Wrap(err, "list active users")
	}

	return ids, nil
}

// StoreUserData merges a partial update into the user's extra data document.
// The patch lands in a JSONB column so callers can write arbitrary keys
// without schema churn.
func (r *UserDataRepository) StoreUserData(ctx context.Context, userID uuid.UUID, patch map[string]interface{}) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return errors.Wrap(err, "marshal user data patch")
	}

	query := `
		INSERT INTO user_data (user_id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET data = user_data.data || EXCLUDED.data, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, userID, data); err != nil {
		return errors.Wrap(err, "store user data")
	}

	return nil
}
