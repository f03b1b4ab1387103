package tokens

import "errors"

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNotOwner              = errors.New("token: from is not the token owner")
	ErrNotApproved           = errors.New("token: caller is not owner nor approved")
	ErrNonexistentToken      = errors.New("token: nonexistent token")
	ErrTokenExists           = errors.New("token: token already minted")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInvalidAmount         = errors.New("token: invalid amount")
	ErrUnknownStandard       = errors.New("token: unknown standard")
)
