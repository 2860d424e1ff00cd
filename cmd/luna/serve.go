package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lunacore/luna/internal/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides the config file's server.port)."`
}

func (c *ServeCmd) Run(cli *CLI, ctx context.Context) error {
	appCfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Port != 0 {
		appCfg.Server.Port = c.Port
	}

	o, err := buildOrchestrator(appCfg)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	srv, err := server.New(server.Config{
		Address:      appCfg.Server.Address(),
		Orchestrator: o,
		Name:         appCfg.Name,
	})
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	slog.Info("listening", "address", appCfg.Server.Address())
	return srv.ListenAndServe(ctx)
}
