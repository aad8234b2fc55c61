package accounts

import "errors"

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrWrongPassword      = errors.New("wrong password")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidStatus      = errors.New("invalid account status")
	ErrInvalidRole        = errors.New("invalid role")
)
