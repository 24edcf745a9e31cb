package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"trainingtracker/internal/models"
	"trainingtracker/internal/utils"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrPersistence      = errors.New("persistence failure")
	ErrIneligible       = errors.New("not eligible to start a quiz attempt")
	ErrAttemptGraded    = errors.New("attempt has already been graded")
	ErrAlreadySubmitted = errors.New("answers have already been submitted for this attempt")
	ErrModuleInactive   = errors.New("module is not open for training")
)

// DenialReason explains why a quiz attempt may not start
type DenialReason string

const (
	ReasonAlreadyPassed  DenialReason = "already_passed"
	ReasonCooldown       DenialReason = "cooldown"
	ReasonAttemptPending DenialReason = "attempt_pending"
	ReasonQuizLocked     DenialReason = "quiz_locked"
	ReasonModuleInactive DenialReason = "module_inactive"
)

// IneligibleError is a business rule denial, not a system failure.
// errors.Is(err, ErrIneligible) matches it, as does ErrModuleInactive for module_inactive.
type IneligibleError struct {
	Reason     DenialReason
	RetryAfter *time.Time
}

func (e *IneligibleError) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("%v: %s (retry after %s)", ErrIneligible, e.Reason, e.RetryAfter.Format(time.RFC3339))
	}
	return fmt.Sprintf("%v: %s", ErrIneligible, e.Reason)
}

func (e *IneligibleError) Is(target error) bool {
	return target == ErrIneligible || (target == ErrModuleInactive && e.Reason == ReasonModuleInactive)
}

// persistenceError logs the underlying datastore failure and hides it from callers
func persistenceError(op string, err error) error {
	log.Printf("%s: %v", op, err)
	return fmt.Errorf("%s: %w", op, ErrPersistence)
}

func validateIdentity(id models.Identity) error {
	return utils.ValidateID("user_id", id.UserID)
}
