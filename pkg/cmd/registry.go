// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/dukex/blockflow/pkg/registry"
)

// NewRegistry registers the built-in blocks, then any plugins found under
// pluginsPath. Plugins replace built-ins of the same type.
func NewRegistry(log *slog.Logger, pluginsPath string, opts registry.BuiltinOptions) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	reg.RegisterDefaultBlocks(opts)

	if pluginsPath == "" {
		return reg, nil
	}

	if _, err := os.Stat(pluginsPath); os.IsNotExist(err) {
		log.Debug("Plugins path does not exist", "path", pluginsPath)

		return reg, nil
	}

	plugins, err := reg.LoadBlockPlugins(pluginsPath)
	if err != nil {
		return nil, err
	}

	for _, plugin := range plugins {
		reg.RegisterBlock(plugin)
	}

	return reg, nil
}
