package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
	"github.com/dukex/blockflow/pkg/secrets"
)

// Encrypter seals a plaintext variable for storage.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Environment manages the per-user variables blocks read their secrets from.
type Environment struct {
	persistence persistence.Persistence
	encrypter   Encrypter
}

// NewEnvironment creates the service. Without an encrypter variables are stored as given.
func NewEnvironment(persistence persistence.Persistence, encrypter Encrypter) *Environment {
	return &Environment{persistence: persistence, encrypter: encrypter}
}

// Save merges variables into the user's environment, encrypting plain values.
func (s *Environment) Save(ctx context.Context, userID string, variables map[string]string) (*models.Environment, error) {
	if userID == "" {
		return nil, NewValidationError("SaveEnvironment", "EMPTY_USER_ID", "", ErrEmptyUserID)
	}

	env, err := s.persistence.EnvironmentByUser(ctx, userID)
	if persistence.IsEnvironmentNotFound(err) {
		env, err = &models.Environment{UserID: userID}, nil
	}

	if err != nil {
		return nil, err
	}

	if env.Variables == nil {
		env.Variables = map[string]string{}
	}

	for name, value := range variables {
		if s.encrypter != nil && !strings.HasPrefix(value, secrets.EncryptedPrefix) {
			sealed, err := s.encrypter.Encrypt(value)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt variable %s: %w", name, err)
			}

			value = sealed
		}

		env.Variables[name] = value
	}

	if err := s.persistence.SaveEnvironment(ctx, env); err != nil {
		return nil, err
	}

	return env, nil
}

// Names lists the variable names of a user without their values.
func (s *Environment) Names(ctx context.Context, userID string) ([]string, error) {
	env, err := s.persistence.EnvironmentByUser(ctx, userID)
	if persistence.IsEnvironmentNotFound(err) {
		return []string{}, nil
	}

	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(env.Variables))
	for name := range env.Variables {
		names = append(names, name)
	}

	return names, nil
}
