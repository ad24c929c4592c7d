package routeros

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mikro-fleet/monitor/internal/model"
)

const defaultTimeout = 10 * time.Second

// Config defines one RouterOS API connection profile. The secret must
// already be decrypted by the registry before it reaches this package.
type Config struct {
	Address   string
	Username  string
	Password  string
	UseTLS    bool
	VerifyTLS bool
	Timeout   time.Duration
}

// ConfigForDevice builds a connection profile from a registry device record.
func ConfigForDevice(device model.Device) Config {
	return Config{
		Address:  device.APIAddress(),
		Username: strings.TrimSpace(device.Username),
		Password: device.Secret,
		Timeout:  defaultTimeout,
	}
}

func normalizeConfig(cfg Config) (Config, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Address == "" {
		return Config{}, &ValidationError{Field: "address", Reason: "is required"}
	}
	if cfg.Username == "" {
		return Config{}, &ValidationError{Field: "username", Reason: "is required"}
	}

	address, err := withDefaultPort(cfg.Address, cfg.UseTLS)
	if err != nil {
		return Config{}, err
	}
	cfg.Address = address
	return cfg, nil
}

func withDefaultPort(host string, useTLS bool) (string, error) {
	port := 8728
	if useTLS {
		port = 8729
	}

	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}

	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	}
	if strings.TrimSpace(host) == "" {
		return "", &ValidationError{Field: "address", Reason: "host is empty"}
	}

	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
