package approval

import (
	"errors"
	"fmt"
)

var (
	ErrRequestNotFound     = errors.New("spending request not found")
	ErrNotPending          = errors.New("request is no longer pending")
	ErrNotRequestOwner     = errors.New("only the requesting child may cancel")
	ErrApprovalNotRequired = errors.New("spending does not require approval")
	ErrApprovalRequired    = errors.New("spending requires approval")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrDescriptionRequired = errors.New("description is required")

	// ErrSpendingBlocked is the sentinel every BlockedError unwraps to.
	ErrSpendingBlocked = errors.New("spending blocked by policy")
)

// BlockedError carries the user-facing reason a policy rule denied the
// spend. Expected in normal operation, surfaced verbatim to the child.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return e.Reason
}

func (e *BlockedError) Unwrap() error {
	return ErrSpendingBlocked
}

// TransientError marks a storage or ledger timeout. Safe to retry with
// backoff; the engine itself never retries to avoid double effects.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
