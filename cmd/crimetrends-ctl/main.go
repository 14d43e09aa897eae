// Command crimetrends-ctl manages deployments, blocks and flow runs
package main

import (
	"context"
	"os"

	"crimetrends/internal/app"
	"crimetrends/internal/modkit/module"
	"crimetrends/internal/platform/logger"
	odomain "crimetrends/internal/services/orchestrator/domain"
	orchmod "crimetrends/internal/services/orchestrator/module"
)

// appBackend serves the commands from an opened app
type appBackend struct {
	a *app.App
	odomain.DeployPort
	odomain.QueryPort
}

func (b appBackend) MakeGCPBlocks(ctx context.Context) error { return b.a.Blocks.MakeGCPBlocks(ctx) }

func (b appBackend) Close() error {
	b.a.Close()
	return nil
}

func openApp(ctx context.Context) (backend, error) {
	a, err := app.Open(ctx, app.Options{Name: "crimetrends-ctl", SkipLake: true})
	if err != nil {
		return nil, err
	}
	p := module.MustPortsOf[orchmod.Ports](a.Orch)
	return appBackend{a: a, DeployPort: p.Deploy, QueryPort: p.Query}, nil
}

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		logger.Get().Error().Err(err).Msg("crimetrends-ctl failed")
		os.Exit(1)
	}
}
