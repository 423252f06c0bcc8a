// Package command provides CLI command definitions for wspool-probe.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/wspool-go/internal/config"
	"github.com/yndnr/wspool-go/internal/infra/confloader"
	"github.com/yndnr/wspool-go/internal/infra/pathexpand"
	"github.com/yndnr/wspool-go/internal/telemetry/logger"
)

// setup assembles the effective configuration and the process logger.
func setup(c *cli.Context) (*config.ProbeConfig, logger.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	log, err := initLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// loadConfig merges all configuration sources: defaults, then the
// config file, then environment variables, then explicitly set flags.
func loadConfig(c *cli.Context) (*config.ProbeConfig, error) {
	cfg := config.Default()

	loader := confloader.NewLoader()
	if path := c.String("config"); path != "" {
		if err := loader.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, err
	}
	if overrides := flagOverrides(c); len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := expandTLSPaths(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// flagOverrides maps explicitly set CLI flags onto configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	set := func(flagName, key string, value any) {
		if c.IsSet(flagName) {
			m[key] = value
		}
	}

	set("server", "probe.server", c.String("server"))
	set("connections", "probe.connections", c.Int("connections"))
	set("handshake-wait", "probe.handshake_wait", c.Duration("handshake-wait"))
	set("linger", "probe.linger", c.Duration("linger"))
	set("close-timeout", "probe.close_timeout", c.Duration("close-timeout"))
	set("send-rate", "probe.send_rate", c.Float64("send-rate"))
	set("repeat", "probe.repeat", c.Int("repeat"))
	set("ca", "tls.ca_file", c.String("ca"))
	set("cert", "tls.cert_file", c.String("cert"))
	set("key", "tls.key_file", c.String("key"))
	set("watch-certs", "tls.watch", c.Bool("watch-certs"))
	set("log-level", "log.level", c.String("log-level"))
	set("log-format", "log.format", c.String("log-format"))
	set("metrics-addr", "metrics.addr", c.String("metrics-addr"))
	set("output", "output.format", c.String("output"))
	return m
}

// expandTLSPaths applies shell-style tilde expansion to the TLS file
// paths, so ~/certs/ca.pem works from flags and config files alike.
func expandTLSPaths(cfg *config.ProbeConfig) error {
	for _, p := range []*string{&cfg.TLS.CAFile, &cfg.TLS.CertFile, &cfg.TLS.KeyFile} {
		expanded, err := pathexpand.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// initLogger builds the process logger and installs it as the
// default. Logs go to stderr so the report and progress output own
// stdout.
func initLogger(cfg *config.ProbeConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}
