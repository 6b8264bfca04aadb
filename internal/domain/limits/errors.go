package limits

import "errors"

var (
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrInvalidPeriod = errors.New("invalid limit period")
)
