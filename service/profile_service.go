package service

import (
	"context"
	"fmt"

	"casino/models"
	log "github.com/sirupsen/logrus"
)

type profileService struct {
	uowFactory  UnitOfWorkFactory
	demoBalance int64
}

// NewProfileService creates a new profile service. New profiles start
// with demoBalance cents in the practice wallet.
func NewProfileService(uowFactory UnitOfWorkFactory, demoBalance int64) ProfileService {
	return &profileService{
		uowFactory:  uowFactory,
		demoBalance: demoBalance,
	}
}

// GetOrCreateProfile retrieves an existing profile or creates a new one
// with the default demo balance.
func (s *profileService) GetOrCreateProfile(ctx context.Context, email, username string) (*models.Profile, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	profile, err := uow.ProfileRepository().GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if profile == nil {
		profile, err = uow.ProfileRepository().Create(ctx, email, username, s.demoBalance)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		log.WithFields(log.Fields{
			"userID": profile.ID,
			"email":  email,
		}).Info("Created new profile")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return profile, nil
}
