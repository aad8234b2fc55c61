package accounts

import (
	"context"

	"portal/internal/domain"
)

// AccountRepositoryInterface — only the methods the accounts service uses
type AccountRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, a *domain.Account) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateStatus(ctx context.Context, id int64, status domain.AccountStatus) error
	UpdateRole(ctx context.Context, id int64, role domain.Role) error
	List(ctx context.Context, organizationID *int64) ([]domain.Account, error)
}

// SessionInvalidator severs an account's credentials after a password or
// status change. Implemented by the session orchestrator.
type SessionInvalidator interface {
	InvalidateAccount(ctx context.Context, accountID int64) error
}
