package users

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrWrongCredentials = errors.New("incorrect email or password")
	ErrAccountInactive  = errors.New("account is deactivated")
	ErrAccountLocked    = errors.New("account is temporarily locked")
	ErrPasswordTooShort = errors.New("password does not meet minimum length")
	ErrLastAdmin        = errors.New("cannot deactivate the last active admin")
)
