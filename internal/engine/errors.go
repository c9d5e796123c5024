package engine

import "errors"

// Error is a rejected operation with a stable numeric code. Codes are
// part of the external contract and never reused.
type Error struct {
	ErrCode int
	Msg     string
}

func (e *Error) Error() string { return e.Msg }

// Rejection sentinels. Handlers wrap these with fmt.Errorf("...: %w")
// for context; callers match with errors.Is and map via Code.
var (
	ErrOwnerOnly           = &Error{100, "caller is not the protocol owner"}
	ErrNotFound            = &Error{101, "entity not found"}
	ErrInvalidAmount       = &Error{102, "amount out of range"}
	ErrInsufficientBalance = &Error{103, "insufficient balance"}
	ErrInvalidWeight       = &Error{104, "weight out of range"}
	ErrFundInactive        = &Error{105, "fund is not active"}
	ErrRebalanceNotNeeded  = &Error{106, "rebalance interval has not elapsed"}
	ErrUnauthorized        = &Error{107, "caller is not authorized"}
	ErrInvalidToken        = &Error{108, "token metadata invalid"}
)

// Code extracts the numeric rejection code, or 0 for non-ledger errors.
func Code(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.ErrCode
	}
	return 0
}
