package service

import (
	"context"
	"time"

	"trainingtracker/internal/repository"
)

// Policy holds the configured defaults for quiz retakes
type Policy struct {
	AllowPassedRetake bool
	// StaleAttemptAfter is how long an ungraded attempt may block new attempts
	// before it is forfeited. Zero disables recovery.
	StaleAttemptAfter time.Duration
}

// PolicyService resolves the retake policy, letting the settings table override configuration
type PolicyService struct {
	settings *repository.SettingsRepository
	defaults Policy
}

// NewPolicyService creates a new policy service
func NewPolicyService(settings *repository.SettingsRepository, defaults Policy) *PolicyService {
	return &PolicyService{settings: settings, defaults: defaults}
}

// AllowPassedRetake reports whether a learner who passed may start another attempt
func (s *PolicyService) AllowPassedRetake(ctx context.Context) (bool, error) {
	allowed, err := s.settings.AllowPassedRetake(ctx, s.defaults.AllowPassedRetake)
	if err != nil {
		return false, persistenceError("load retake policy", err)
	}
	return allowed, nil
}

// SetAllowPassedRetake stores a runtime override of the retake policy
func (s *PolicyService) SetAllowPassedRetake(ctx context.Context, allowed bool) error {
	if err := s.settings.SetAllowPassedRetake(ctx, allowed); err != nil {
		return persistenceError("store retake policy", err)
	}
	return nil
}

// StaleAttemptAfter returns the configured forfeit bound
func (s *PolicyService) StaleAttemptAfter() time.Duration {
	return s.defaults.StaleAttemptAfter
}
