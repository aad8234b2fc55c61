package accounts

import (
	"context"
	"errors"
	"strings"

	"portal/internal/domain"
	"portal/internal/modules/session"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service contains the account management business logic: registration,
// profile updates, and the admin surface. Anything that touches
// credentials routes through the session invalidator so stale tokens
// cannot outlive the change.
type Service struct {
	accounts    AccountRepositoryInterface
	invalidator SessionInvalidator
}

func NewService(accounts AccountRepositoryInterface, invalidator SessionInvalidator) *Service {
	return &Service{accounts: accounts, invalidator: invalidator}
}

// Register creates an account. The very first account of the store
// becomes super_admin; everyone after that starts as a regular user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	count, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		role = domain.RoleSuperAdmin
	}

	account := &domain.Account{
		Email:        email,
		PasswordHash: string(passwordHash),
		Name:         req.Name,
		Role:         role,
		Status:       domain.StatusActive,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// The unique index is the last line of defense against a
		// concurrent registration with the same email.
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return nil, ErrEmailAlreadyExists
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	account.PasswordHash = ""
	return account, nil
}

func (s *Service) GetProfile(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.PasswordHash = ""
	return account, nil
}

func (s *Service) UpdateProfile(ctx context.Context, accountID int64, req UpdateProfileRequest) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if req.Name != "" {
		account.Name = req.Name
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}

	account.PasswordHash = ""
	return account, nil
}

// ChangePassword verifies the current secret, installs the new digest
// and severs every outstanding credential of the account. The caller
// must log in again with the new password.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, req ChangePasswordRequest) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdatePassword(ctx, accountID, string(newHash)); err != nil {
		return err
	}

	return s.invalidator.InvalidateAccount(ctx, accountID)
}

// List returns the accounts the caller may see: all of them for a
// super admin, the caller's organization for an admin.
func (s *Service) List(ctx context.Context, callerID int64) ([]domain.Account, error) {
	caller, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	var scope *int64
	if caller.Role == domain.RoleAdmin {
		if caller.OrganizationID == nil {
			return nil, ErrForbidden
		}
		scope = caller.OrganizationID
	}

	accounts, err := s.accounts.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].PasswordHash = ""
	}
	return accounts, nil
}

// SetStatus changes an account's status. Leaving active severs the
// account's credentials immediately; the access token it may still hold
// dies at the status gate on its next check.
func (s *Service) SetStatus(ctx context.Context, callerID, targetID int64, status domain.AccountStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	caller, target, err := s.callerAndTarget(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if !session.CanManageAccount(caller, target) {
		return ErrForbidden
	}

	if err := s.accounts.UpdateStatus(ctx, targetID, status); err != nil {
		return err
	}

	if status != domain.StatusActive {
		return s.invalidator.InvalidateAccount(ctx, targetID)
	}
	return nil
}

// SetRole changes an account's role. Super admin only: role escalation
// is never an organization-scoped decision.
func (s *Service) SetRole(ctx context.Context, callerID, targetID int64, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	caller, _, err := s.callerAndTarget(ctx, callerID, targetID)
	if err != nil {
		return err
	}
	if caller.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}

	return s.accounts.UpdateRole(ctx, targetID, role)
}

func (s *Service) callerAndTarget(ctx context.Context, callerID, targetID int64) (*domain.Account, *domain.Account, error) {
	caller, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAccountNotFound
		}
		return nil, nil, err
	}
	return caller, target, nil
}
