package repository

import (
	"context"
	"strings"
	"time"

	"portal/internal/domain"

	"gorm.io/gorm"
)

// AccountRepository provides DB access for accounts.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) DB() *gorm.DB {
	return r.db
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	tx := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&a)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	tx := r.db.WithContext(ctx).First(&a, id)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &a, nil
}

func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	tx := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count)
	if tx.Error != nil {
		return false, tx.Error
	}
	return count > 0, nil
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	tx := r.db.WithContext(ctx).Model(&domain.Account{}).Count(&count)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return count, nil
}

func (r *AccountRepository) Update(ctx context.Context, a *domain.Account) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

// UpdateStatus changes the account status and stamps status_changed_at.
// Accounts are never physically deleted; deactivation is soft state only.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status domain.AccountStatus) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            status,
			"status_changed_at": now,
		}).Error
}

func (r *AccountRepository) UpdateRole(ctx context.Context, id int64, role domain.Role) error {
	return r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("role", role).Error
}

// List returns accounts, optionally scoped to one organization.
func (r *AccountRepository) List(ctx context.Context, organizationID *int64) ([]domain.Account, error) {
	var accounts []domain.Account
	q := r.db.WithContext(ctx).Order("id")
	if organizationID != nil {
		q = q.Where("organization_id = ?", *organizationID)
	}
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
