// Package config loads config.yaml into a common.Config, applies
// environment-variable overrides field by field, and validates the
// result before any listener starts (spec §6, §7 ConfigInvalid).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"proxygateway/common"
	apperrors "proxygateway/errors"
	"proxygateway/sscrypto"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "./config.yaml"

// Load reads path (if it exists), applies env overrides, validates,
// and returns the resulting configuration. A missing file is not an
// error — defaults plus env overrides are sufficient to start.
func Load(path string) (*common.Config, error) {
	cfg := defaultConfig()

	if err := loadFromFile(path, cfg); err != nil {
		return nil, apperrors.New(apperrors.KindConfigInvalid, "load config file", err)
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, apperrors.New(apperrors.KindConfigInvalid, "apply env overrides", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, apperrors.New(apperrors.KindConfigInvalid, "validate config", err)
	}

	return cfg, nil
}

func defaultConfig() *common.Config {
	return &common.Config{
		Server: common.ServerConfig{
			Host:           "0.0.0.0",
			LogLevel:       "info",
			MaxConnections: 1000,
		},
		Dashboard: common.DashboardConfig{
			Port: 8080,
		},
	}
}

func loadFromFile(path string, cfg *common.Config) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadFromEnv walks Config's nested protocol blocks and overrides any
// field whose env tag names a set environment variable.
func loadFromEnv(cfg *common.Config) error {
	val := reflect.ValueOf(cfg).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if field.Kind() != reflect.Struct {
			continue
		}
		fieldType := typ.Field(i).Type

		for j := 0; j < field.NumField(); j++ {
			nested := field.Field(j)
			nestedType := fieldType.Field(j)

			envKey := nestedType.Tag.Get("env")
			if envKey == "" {
				continue
			}
			envVal, set := os.LookupEnv(envKey)
			if !set {
				continue
			}

			switch nested.Kind() {
			case reflect.String:
				nested.SetString(envVal)
			case reflect.Int:
				n, err := strconv.Atoi(envVal)
				if err != nil {
					return fmt.Errorf("invalid integer for %s: %w", envKey, err)
				}
				nested.SetInt(int64(n))
			case reflect.Bool:
				nested.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
			default:
				return fmt.Errorf("unsupported field type for %s: %s", envKey, nested.Kind())
			}
		}
	}

	return nil
}

// Validate rejects configurations an enabled listener could not
// possibly start from: out-of-range ports, missing credentials,
// unsupported Shadowsocks methods.
func Validate(cfg *common.Config) error {
	if cfg.Shadowsocks.Enabled {
		if err := validatePort(cfg.Shadowsocks.Port); err != nil {
			return fmt.Errorf("shadowsocks.port: %w", err)
		}
		if cfg.Shadowsocks.Password == "" {
			return fmt.Errorf("shadowsocks.password must not be empty")
		}
		if !sscrypto.Supported(sscrypto.Method(cfg.Shadowsocks.Method)) {
			return fmt.Errorf("shadowsocks.method %q is not supported", cfg.Shadowsocks.Method)
		}
	}

	if cfg.Socks5.Enabled {
		if err := validatePort(cfg.Socks5.Port); err != nil {
			return fmt.Errorf("socks5.port: %w", err)
		}
		if (cfg.Socks5.Username == "") != (cfg.Socks5.Password == "") {
			return fmt.Errorf("socks5.username and socks5.password must be set together")
		}
	}

	if cfg.HTTP.Enabled {
		if err := validatePort(cfg.HTTP.Port); err != nil {
			return fmt.Errorf("http.port: %w", err)
		}
		if (cfg.HTTP.Username == "") != (cfg.HTTP.Password == "") {
			return fmt.Errorf("http.username and http.password must be set together")
		}
	}

	if cfg.VMess.Enabled {
		if err := validatePort(cfg.VMess.Port); err != nil {
			return fmt.Errorf("vmess.port: %w", err)
		}
		if cfg.VMess.UUID == "" {
			return fmt.Errorf("vmess.uuid must not be empty")
		}
		if cfg.VMess.TLS && (cfg.VMess.CertFile == "" || cfg.VMess.KeyFile == "") {
			return fmt.Errorf("vmess.tls requires cert_file and key_file")
		}
	}

	if cfg.Trojan.Enabled {
		if err := validatePort(cfg.Trojan.Port); err != nil {
			return fmt.Errorf("trojan.port: %w", err)
		}
		if cfg.Trojan.Password == "" {
			return fmt.Errorf("trojan.password must not be empty")
		}
		if cfg.Trojan.CertFile == "" || cfg.Trojan.KeyFile == "" {
			return fmt.Errorf("trojan requires cert_file and key_file")
		}
	}

	if cfg.Dashboard.Enabled {
		if err := validatePort(cfg.Dashboard.Port); err != nil {
			return fmt.Errorf("dashboard.port: %w", err)
		}
	}

	return nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	return nil
}

// Save writes cfg to path as YAML, creating the parent directory if
// needed.
func Save(cfg *common.Config, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
