// Package command provides CLI command definitions for wspool-probe.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wspool-go/internal/cli/output"
	"github.com/yndnr/wspool-go/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective probe configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the configuration after all sources merge",
				Action: configShowAction,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration and exit",
				Action: configValidateAction,
			},
		},
	}
}

// configView mirrors ProbeConfig with durations rendered as strings,
// so the output round-trips through a config file.
type configView struct {
	Probe struct {
		Server        string  `json:"server" yaml:"server"`
		Connections   int     `json:"connections" yaml:"connections"`
		HandshakeWait string  `json:"handshake_wait" yaml:"handshake_wait"`
		Linger        string  `json:"linger" yaml:"linger"`
		CloseTimeout  string  `json:"close_timeout" yaml:"close_timeout"`
		SendRate      float64 `json:"send_rate" yaml:"send_rate"`
		Repeat        int     `json:"repeat" yaml:"repeat"`
	} `json:"probe" yaml:"probe"`
	TLS struct {
		CAFile   string `json:"ca_file" yaml:"ca_file"`
		CertFile string `json:"cert_file" yaml:"cert_file"`
		KeyFile  string `json:"key_file" yaml:"key_file"`
		Watch    bool   `json:"watch" yaml:"watch"`
	} `json:"tls" yaml:"tls"`
	Log struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"log" yaml:"log"`
	Metrics struct {
		Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	} `json:"metrics" yaml:"metrics"`
	Output struct {
		Format string `json:"format" yaml:"format"`
	} `json:"output" yaml:"output"`
}

func newConfigView(cfg *config.ProbeConfig) *configView {
	v := &configView{}
	v.Probe.Server = cfg.Probe.Server
	v.Probe.Connections = cfg.Probe.Connections
	v.Probe.HandshakeWait = cfg.Probe.HandshakeWait.String()
	v.Probe.Linger = cfg.Probe.Linger.String()
	v.Probe.CloseTimeout = cfg.Probe.CloseTimeout.String()
	v.Probe.SendRate = cfg.Probe.SendRate
	v.Probe.Repeat = cfg.Probe.Repeat
	v.TLS.CAFile = cfg.TLS.CAFile
	v.TLS.CertFile = cfg.TLS.CertFile
	v.TLS.KeyFile = cfg.TLS.KeyFile
	v.TLS.Watch = cfg.TLS.Watch
	v.Log.Level = cfg.Log.Level
	v.Log.Format = cfg.Log.Format
	v.Metrics.Addr = cfg.Metrics.Addr
	v.Output.Format = cfg.Output.Format
	return v
}

func configShowAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	format := output.Format(cfg.Output.Format)
	if format == output.FormatTable {
		// Nested sections read better as YAML on a terminal.
		format = output.FormatYAML
	}
	return output.NewFormatter(format, false).Format(c.App.Writer, newConfigView(cfg))
}

func configValidateAction(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "✓ configuration is valid")
	return nil
}
