// Package command provides CLI command definitions for wspool-probe.
package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wspool-go/internal/cli/repl"
	"github.com/yndnr/wspool-go/internal/infra/buildinfo"
	"github.com/yndnr/wspool-go/internal/probe"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Drive the connection pool interactively",
		Description: "Opens a prompt over a live connection pool. Connections are " +
			"created, opened, exercised and closed one command at a time; type " +
			"help at the prompt for the command list.",
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}

	mgr := probe.NewPool(cfg, log, nil)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Probe.CloseTimeout)
		defer cancel()
		if err := mgr.Shutdown(ctx); err != nil {
			log.Warn("pool shutdown finished with stragglers", "error", err)
		}
	}()

	if err := mgr.ConfigureSecureEndpoint(cfg.TLS.CAFile, cfg.TLS.CertFile, cfg.TLS.KeyFile); err != nil {
		return fmt.Errorf("configure endpoint: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "wspool-probe %s interactive shell, server %s\n",
		buildinfo.Get().Version, cfg.Probe.Server)
	fmt.Fprintln(c.App.Writer, "Type help for commands, exit to leave.")

	sh := probe.NewShell(mgr, cfg.Probe.Server, log)
	return repl.New(sh).Run()
}
