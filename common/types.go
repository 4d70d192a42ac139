// Package common holds the types shared across every listener and the
// supervisor: the protocol tag enumeration, the generic Server
// interface, and the per-protocol configuration structs decoded from
// config.yaml.
package common

import (
	"net"
	"strconv"
	"time"
)

// ProtocolTag identifies a listener kind; it keys both configuration
// and the stats collector's per-protocol counters.
type ProtocolTag string

const (
	ProtocolShadowsocks ProtocolTag = "shadowsocks"
	ProtocolSocks5      ProtocolTag = "socks5"
	ProtocolHTTP        ProtocolTag = "http"
	ProtocolVMess       ProtocolTag = "vmess"
	ProtocolTrojan      ProtocolTag = "trojan"
)

// Server is the interface every listener implements. The supervisor
// holds a map of these and never depends on a concrete type.
type Server interface {
	Start() error
	Stop() error
	GetPort() int
	GetProtocol() ProtocolTag
}

// Endpoint is a (host, port) pair. Host is exactly one of an IPv4
// literal, an IPv6 literal, or a DNS name no longer than 255 bytes.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	if e.Host == "" {
		return ""
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// ShadowsocksConfig is the shadowsocks: block of config.yaml.
type ShadowsocksConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SHADOWSOCKS_ENABLED"`
	Port     int    `yaml:"port" env:"SHADOWSOCKS_PORT"`
	Method   string `yaml:"method" env:"SHADOWSOCKS_METHOD"`
	Password string `yaml:"password" env:"SHADOWSOCKS_PASSWORD"`
	Timeout  int    `yaml:"timeout" env:"SHADOWSOCKS_TIMEOUT"`
}

// Socks5Config is the socks5: block of config.yaml.
type Socks5Config struct {
	Enabled  bool   `yaml:"enabled" env:"SOCKS5_ENABLED"`
	Port     int    `yaml:"port" env:"SOCKS5_PORT"`
	Username string `yaml:"username" env:"SOCKS5_USERNAME"`
	Password string `yaml:"password" env:"SOCKS5_PASSWORD"`
	Timeout  int    `yaml:"timeout" env:"SOCKS5_TIMEOUT"`
}

// HTTPConfig is the http: block of config.yaml.
type HTTPConfig struct {
	Enabled  bool   `yaml:"enabled" env:"HTTP_ENABLED"`
	Port     int    `yaml:"port" env:"HTTP_PORT"`
	Username string `yaml:"username" env:"HTTP_USERNAME"`
	Password string `yaml:"password" env:"HTTP_PASSWORD"`
	Timeout  int    `yaml:"timeout" env:"HTTP_TIMEOUT"`
}

// VMessConfig is the vmess: block of config.yaml. The listener built
// from it is a TLS-terminating accept-loop stub only — see
// proxy/vmess.
type VMessConfig struct {
	Enabled  bool   `yaml:"enabled" env:"VMESS_ENABLED"`
	Port     int    `yaml:"port" env:"VMESS_PORT"`
	UUID     string `yaml:"uuid" env:"VMESS_UUID"`
	AlterID  int    `yaml:"alter_id" env:"VMESS_ALTER_ID"`
	TLS      bool   `yaml:"tls" env:"VMESS_TLS"`
	CertFile string `yaml:"cert_file" env:"VMESS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"VMESS_KEY_FILE"`
}

// TrojanConfig is the trojan: block of config.yaml. The listener built
// from it is a TLS-terminating accept-loop stub only — see
// proxy/trojan.
type TrojanConfig struct {
	Enabled  bool   `yaml:"enabled" env:"TROJAN_ENABLED"`
	Port     int    `yaml:"port" env:"TROJAN_PORT"`
	Password string `yaml:"password" env:"TROJAN_PASSWORD"`
	CertFile string `yaml:"cert_file" env:"TROJAN_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"TROJAN_KEY_FILE"`
}

// DashboardConfig is the dashboard: block of config.yaml.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled" env:"DASHBOARD_ENABLED"`
	Port    int  `yaml:"port" env:"DASHBOARD_PORT"`
}

// ServerConfig is the server: block of config.yaml.
type ServerConfig struct {
	Host           string `yaml:"host" env:"SERVER_HOST"`
	LogLevel       string `yaml:"log_level" env:"SERVER_LOG_LEVEL"`
	LogFile        string `yaml:"log_file" env:"SERVER_LOG_FILE"`
	MaxConnections int    `yaml:"max_connections" env:"SERVER_MAX_CONNECTIONS"`
}

// Config is the parsed form of config.yaml (spec §6).
type Config struct {
	Server       ServerConfig      `yaml:"server"`
	Shadowsocks  ShadowsocksConfig `yaml:"shadowsocks"`
	Socks5       Socks5Config      `yaml:"socks5"`
	HTTP         HTTPConfig        `yaml:"http"`
	VMess        VMessConfig       `yaml:"vmess"`
	Trojan       TrojanConfig      `yaml:"trojan"`
	Dashboard    DashboardConfig   `yaml:"dashboard"`
}

// IdleTimeout resolves a protocol's configured timeout (seconds),
// falling back to the 300s default from spec §4.4.
func IdleTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
