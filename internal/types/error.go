package types

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	MathOverflow           ErrorCode = "MATH_OVERFLOW"
	InsufficientAmount     ErrorCode = "INSUFFICIENT_AMOUNT"
	NoShares               ErrorCode = "NO_SHARES"
	NoUnstakePending       ErrorCode = "NO_UNSTAKE_PENDING"
	UnstakeAlreadyPending  ErrorCode = "UNSTAKE_ALREADY_PENDING"
	UnstakeNotReady        ErrorCode = "UNSTAKE_NOT_READY"
	InsufficientFundValue  ErrorCode = "INSUFFICIENT_FUND_VALUE"
	InsufficientFunds      ErrorCode = "INSUFFICIENT_FUNDS"
	RegistryFull           ErrorCode = "REGISTRY_FULL"
	InvalidRegistryIndex   ErrorCode = "INVALID_REGISTRY_INDEX"
	UserNotInRegistry      ErrorCode = "USER_NOT_IN_REGISTRY"
	EmptyNavHistory        ErrorCode = "EMPTY_NAV_HISTORY"
	UnauthorizedAccess     ErrorCode = "UNAUTHORIZED_ACCESS"
	UpdateTooFrequent      ErrorCode = "UPDATE_TOO_FREQUENT"
	FundNotInitialized     ErrorCode = "FUND_NOT_INITIALIZED"
	FundAlreadyInitialized ErrorCode = "FUND_ALREADY_INITIALIZED"
	BadRequest             ErrorCode = "BAD_REQUEST"
	NotFound               ErrorCode = "NOT_FOUND"
	RequestTimeout         ErrorCode = "REQUEST_TIMEOUT"
	TooManyRequests        ErrorCode = "TOO_MANY_REQUESTS"
	InternalServiceError   ErrorCode = "INTERNAL_SERVICE_ERROR"
)

func (e ErrorCode) String() string {
	return string(e)
}

// Error is the error type returned by every fund operation. Two errors are
// considered equal by errors.Is when their codes match, so annotated copies
// produced by Wrapf still match the package sentinels.
type Error struct {
	Err        error
	StatusCode int
	ErrorCode  ErrorCode
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.ErrorCode == e.ErrorCode
}

// Wrapf returns a copy of e carrying additional context in its message.
func (e *Error) Wrapf(format string, args ...any) *Error {
	return &Error{
		Err:        fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), e.Err),
		StatusCode: e.StatusCode,
		ErrorCode:  e.ErrorCode,
	}
}

func NewError(statusCode int, errorCode ErrorCode, err error) *Error {
	return &Error{
		Err:        err,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
	}
}

func NewErrorWithMsg(statusCode int, errorCode ErrorCode, msg string) *Error {
	return &Error{
		Err:        errors.New(msg),
		StatusCode: statusCode,
		ErrorCode:  errorCode,
	}
}

func NewInternalServiceError(err error) *Error {
	return &Error{
		Err:        err,
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  InternalServiceError,
	}
}

func NewBadRequestError(err error) *Error {
	return &Error{
		Err:        err,
		StatusCode: http.StatusBadRequest,
		ErrorCode:  BadRequest,
	}
}

// AsError converts any error into *Error, treating unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternalServiceError(err)
}

var (
	ErrMathOverflow           = NewErrorWithMsg(http.StatusUnprocessableEntity, MathOverflow, "math operation resulted in overflow")
	ErrInsufficientAmount     = NewErrorWithMsg(http.StatusBadRequest, InsufficientAmount, "insufficient amount")
	ErrNoShares               = NewErrorWithMsg(http.StatusConflict, NoShares, "no shares owned")
	ErrNoUnstakePending       = NewErrorWithMsg(http.StatusConflict, NoUnstakePending, "no unstake request pending")
	ErrUnstakeAlreadyPending  = NewErrorWithMsg(http.StatusConflict, UnstakeAlreadyPending, "unstake request already pending for this user")
	ErrUnstakeNotReady        = NewErrorWithMsg(http.StatusConflict, UnstakeNotReady, "unstake not ready, maturity period not complete")
	ErrInsufficientFundValue  = NewErrorWithMsg(http.StatusConflict, InsufficientFundValue, "insufficient fund value")
	ErrInsufficientFunds      = NewErrorWithMsg(http.StatusConflict, InsufficientFunds, "insufficient funds in holding account")
	ErrRegistryFull           = NewErrorWithMsg(http.StatusConflict, RegistryFull, "registry is full, cannot add more users")
	ErrInvalidRegistryIndex   = NewErrorWithMsg(http.StatusBadRequest, InvalidRegistryIndex, "invalid registry index")
	ErrUserNotInRegistry      = NewErrorWithMsg(http.StatusConflict, UserNotInRegistry, "user not found in registry")
	ErrEmptyNavHistory        = NewErrorWithMsg(http.StatusConflict, EmptyNavHistory, "nav history is empty")
	ErrUnauthorizedAccess     = NewErrorWithMsg(http.StatusForbidden, UnauthorizedAccess, "signer is not the fund authority")
	ErrUpdateTooFrequent      = NewErrorWithMsg(http.StatusTooManyRequests, UpdateTooFrequent, "valuation update too frequent")
	ErrFundNotInitialized     = NewErrorWithMsg(http.StatusConflict, FundNotInitialized, "fund is not initialized")
	ErrFundAlreadyInitialized = NewErrorWithMsg(http.StatusConflict, FundAlreadyInitialized, "fund is already initialized")
	ErrTooManyRequests        = NewErrorWithMsg(http.StatusTooManyRequests, TooManyRequests, "rate limit exceeded")
)
