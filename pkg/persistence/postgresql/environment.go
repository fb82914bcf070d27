package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/blockflow/pkg/models"
	"github.com/dukex/blockflow/pkg/persistence"
)

func (p *Persistence) EnvironmentByUser(ctx context.Context, userID string) (*models.Environment, error) {
	var (
		env       = models.Environment{UserID: userID}
		variables []byte
	)

	err := p.db.QueryRowContext(ctx,
		`SELECT variables, updated_at FROM environments WHERE user_id = $1`, userID,
	).Scan(&variables, &env.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, persistence.ErrEnvironmentNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query environment of user %s: %w", userID, err)
	}

	if err := json.Unmarshal(variables, &env.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment of user %s: %w", userID, err)
	}

	return &env, nil
}

func (p *Persistence) SaveEnvironment(ctx context.Context, env *models.Environment) error {
	variables, err := json.Marshal(env.Variables)
	if err != nil {
		return fmt.Errorf("failed to marshal environment of user %s: %w", env.UserID, err)
	}

	env.UpdatedAt = time.Now().UTC()

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO environments (user_id, variables, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET variables = EXCLUDED.variables, updated_at = EXCLUDED.updated_at
	`, env.UserID, string(variables), env.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save environment of user %s: %w", env.UserID, err)
	}

	return nil
}
