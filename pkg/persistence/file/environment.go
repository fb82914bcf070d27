package file

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
)

func (fp *Persistence) EnvironmentByUser(_ context.Context, userID string) (*models.Environment, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	var env models.Environment

	err := fp.read(environmentsDir, userID, &env)
	if isNotExist(err) {
		return nil, fmt.Errorf("user %s: %w", userID, persistence.ErrEnvironmentNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read environment of user %s: %w", userID, err)
	}

	return &env, nil
}

func (fp *Persistence) SaveEnvironment(_ context.Context, env *models.Environment) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	env.UpdatedAt = time.Now().UTC()

	if err := fp.write(environmentsDir, env.UserID, env); err != nil {
		return fmt.Errorf("failed to save environment of user %s: %w", env.UserID, err)
	}

	return nil
}
