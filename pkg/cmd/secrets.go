package cmd

import (
	"github.com/dukex/blockflow/pkg/secrets"
)

// NewSecretStore returns a secretbox store for key, or a pass-through store when key is empty.
func NewSecretStore(key string) (secrets.Store, *secrets.SecretboxStore, error) {
	if key == "" {
		return secrets.MapStore{}, nil, nil
	}

	store, err := secrets.NewSecretboxStore(key)
	if err != nil {
		return nil, nil, err
	}

	return store, store, nil
}
