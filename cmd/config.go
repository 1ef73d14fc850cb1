package main

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/tuneflow/internal/formatter"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the default configuration file to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("%s\n", formatter.Success("wrote "+path))
}

// ConfigShow prints the resolved configuration as TOML with the API key redacted.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	cfg := *r.config
	if cfg.YouTube.APIKey != "" {
		cfg.YouTube.APIKey = "********"
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := r.config.Validate(); err != nil {
		r.writePlain("%s\n\n", formatter.Warning(err.Error()))
	}
	return r.writePlain("%s", data)
}
