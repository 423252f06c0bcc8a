// Package command provides CLI command definitions for wspool-probe.
package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/wspool-go/internal/config"
	"github.com/yndnr/wspool-go/internal/infra/buildinfo"
)

// App creates the CLI application.
//
// A bare invocation runs the probe, so
//
//	wspool-probe --server wss://broker:8090/wspool/ hello world
//
// behaves like the explicit run command with the same arguments.
func App() *cli.App {
	return &cli.App{
		Name:      "wspool-probe",
		Usage:     "exercise a pool of secure WebSocket connections",
		ArgsUsage: "[MESSAGE...]",
		Version:   buildinfo.String(),
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			RunCommand(),
			ShellCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Action: runAction,
	}
}

// globalFlags returns the global CLI flags. Defaults mirror the
// configuration defaults; only flags the user actually set override
// the other configuration sources.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"WSPOOL_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "wss:// URL every connection dials",
			Value:   config.DefaultServer,
		},
		&cli.IntFlag{
			Name:    "connections",
			Aliases: []string{"n"},
			Usage:   "Number of connections to create",
			Value:   config.DefaultConnections,
		},
		&cli.StringFlag{
			Name:  "ca",
			Usage: "CA bundle PEM file",
			Value: config.DefaultCAFile,
		},
		&cli.StringFlag{
			Name:  "cert",
			Usage: "Client certificate PEM file",
			Value: config.DefaultCertFile,
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "Client private key PEM file",
			Value: config.DefaultKeyFile,
		},
		&cli.BoolFlag{
			Name:  "watch-certs",
			Usage: "Reload the client certificate when its files change",
		},
		&cli.DurationFlag{
			Name:  "handshake-wait",
			Usage: "How long to wait for handshakes to settle",
			Value: config.DefaultHandshakeWait,
		},
		&cli.DurationFlag{
			Name:  "linger",
			Usage: "How long to keep connections up after sending",
			Value: config.DefaultLinger,
		},
		&cli.DurationFlag{
			Name:  "close-timeout",
			Usage: "Bound on closing all connections",
			Value: config.DefaultCloseTimeout,
		},
		&cli.Float64Flag{
			Name:  "send-rate",
			Usage: "Barrage pacing in messages per second (0 = unpaced)",
		},
		&cli.IntFlag{
			Name:  "repeat",
			Usage: "Extra barrage rounds of the messages (0 = none)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: config.DefaultLogLevel,
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
			Value: config.DefaultLogFormat,
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Listen address for the Prometheus /metrics endpoint",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Report format: table, json, yaml",
			Value:   config.DefaultOutputFormat,
		},
	}
}
