package policy

import "errors"

var (
	ErrRuleNotFound        = errors.New("category rule not found")
	ErrLimitNotFound       = errors.New("spending limit not found")
	ErrNegativeThreshold   = errors.New("threshold must not be negative")
	ErrInvalidLimitAmount  = errors.New("limit amount must be greater than zero")
	ErrInvalidMaxPurchase  = errors.New("max single purchase must be greater than zero")
	ErrInvalidExpiration   = errors.New("request expiration hours must be greater than zero")
	ErrPauseReasonRequired = errors.New("pause reason is required")
	ErrInvalidPeriod       = errors.New("invalid limit period")
	ErrInvalidRestriction  = errors.New("invalid category restriction")
)
