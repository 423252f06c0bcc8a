// Package config defines the probe configuration structure.
package config

import (
	"errors"
	"net"
	"net/url"
)

// Verify validates the configuration.
func Verify(cfg *ProbeConfig) error {
	if err := verifyProbe(&cfg.Probe); err != nil {
		return err
	}
	if err := verifyTLS(&cfg.TLS); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	return verifyOutput(&cfg.Output)
}

func verifyProbe(cfg *ProbeSection) error {
	if cfg.Server == "" {
		return errors.New("probe.server is required")
	}
	u, err := url.Parse(cfg.Server)
	if err != nil {
		return errors.New("probe.server is not a valid URL: " + err.Error())
	}
	if u.Scheme != "wss" {
		return errors.New("probe.server must use the wss:// scheme")
	}
	if u.Host == "" {
		return errors.New("probe.server is missing a host")
	}

	if cfg.Connections < 1 {
		return errors.New("probe.connections must be at least 1")
	}
	if cfg.HandshakeWait < 0 {
		return errors.New("probe.handshake_wait must not be negative")
	}
	if cfg.Linger < 0 {
		return errors.New("probe.linger must not be negative")
	}
	if cfg.CloseTimeout <= 0 {
		return errors.New("probe.close_timeout must be positive")
	}
	if cfg.SendRate < 0 {
		return errors.New("probe.send_rate must not be negative")
	}
	if cfg.Repeat < 0 {
		return errors.New("probe.repeat must not be negative")
	}
	return nil
}

func verifyTLS(cfg *TLSSection) error {
	// File readability is checked when the endpoint is configured;
	// here we only require the paths to be set.
	if cfg.CAFile == "" {
		return errors.New("tls.ca_file is required")
	}
	if cfg.CertFile == "" {
		return errors.New("tls.cert_file is required")
	}
	if cfg.KeyFile == "" {
		return errors.New("tls.key_file is required")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "text", "json":
	default:
		return errors.New("log.format must be one of: text, json")
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return errors.New("metrics.addr must be a host:port address: " + err.Error())
	}
	return nil
}

func verifyOutput(cfg *OutputSection) error {
	switch cfg.Format {
	case "table", "json", "yaml":
		return nil
	default:
		return errors.New("output.format must be one of: table, json, yaml")
	}
}
