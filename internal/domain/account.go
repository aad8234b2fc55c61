package domain

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleRank orders roles for minimum-role checks.
var roleRank = map[Role]int{
	RoleUser:       0,
	RoleAdmin:      1,
	RoleSuperAdmin: 2,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

type AccountStatus string

const (
	StatusActive      AccountStatus = "active"
	StatusDisabled    AccountStatus = "disabled"
	StatusDeactivated AccountStatus = "deactivated"
)

func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusDisabled || s == StatusDeactivated
}

type Account struct {
	ID              int64         `json:"id" gorm:"primaryKey"`
	Email           string        `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash    string        `json:"-" gorm:"not null"`
	Name            string        `json:"name"`
	Role            Role          `json:"role" gorm:"index;not null"`
	Status          AccountStatus `json:"status" gorm:"index;not null;default:active"`
	StatusChangedAt *time.Time    `json:"status_changed_at,omitempty"`
	OrganizationID  *int64        `json:"organization_id,omitempty" gorm:"index"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}
