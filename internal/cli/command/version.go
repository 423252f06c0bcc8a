// Package command provides CLI command definitions for wspool-probe.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wspool-go/internal/cli/output"
	"github.com/yndnr/wspool-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Action: versionAction,
	}
}

func versionAction(c *cli.Context) error {
	format := output.Format(c.String("output"))
	if format == output.FormatTable {
		fmt.Fprintf(c.App.Writer, "wspool-probe %s\n", buildinfo.String())
		return nil
	}
	return output.NewFormatter(format, false).Format(c.App.Writer, buildinfo.Get())
}
