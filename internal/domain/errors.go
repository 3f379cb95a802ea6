package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrBattleUnavailable = errors.New("battle unavailable")
	ErrSquadNotEligible  = errors.New("squad not eligible")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrLockHeld          = errors.New("lock already held")
)
