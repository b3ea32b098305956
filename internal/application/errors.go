package application

import (
	"errors"
	"fmt"

	"github.com/RaikyD/merch-pickup-service/internal/repository"
)

// Pickup workflow outcomes. Every one of them ends the current attempt and
// needs an operator action (re-scan, re-type or cancel).
var (
	ErrMissingInput        = errors.New("missing input")
	ErrInvalidCode         = errors.New("invalid order code")
	ErrAlreadyReleased     = errors.New("order already released")
	ErrMismatch            = errors.New("identity code mismatch")
	ErrIdentityNotVerified = errors.New("identity not verified")
	ErrStaleScan           = errors.New("scan superseded by a newer attempt")

	// ErrNoActiveSession means the caller skipped lookup; it is a contract
	// violation, not an operator mistake.
	ErrNoActiveSession = errors.New("no active verification session")

	ErrSessionNotFound    = errors.New("session not found")
	ErrOrderAlreadyExists = repository.ErrOrderAlreadyExists
)

// MismatchError carries the owner code so the operator can correct a typo.
type MismatchError struct {
	Entered  string
	Expected string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("identity code %q does not match order owner %q", e.Entered, e.Expected)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}
