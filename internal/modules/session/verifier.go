package session

import (
	"context"
	"errors"
	"strings"

	"portal/internal/domain"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Verifier validates an identifier/secret pair against stored digests.
// No side effects on success; it only returns the account.
type Verifier struct {
	accounts AccountReader
}

func NewVerifier(accounts AccountReader) *Verifier {
	return &Verifier{accounts: accounts}
}

// Verify normalizes the identifier, checks account status, then the
// digest. Unknown identifier and wrong secret produce the same error.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*domain.Account, error) {
	account, err := v.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Status gate before the digest check: a disabled account fails the
	// same way regardless of credential correctness.
	if !account.IsActive() {
		return nil, ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}
