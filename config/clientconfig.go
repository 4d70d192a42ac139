package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"proxygateway/common"
)

// clashProxy is one entry in a Clash-compatible client configuration's
// proxies: list. Fields are a superset across protocols; omitempty
// drops the ones a given protocol doesn't use.
type clashProxy struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Cipher   string `yaml:"cipher,omitempty"`
	Password string `yaml:"password,omitempty"`
	UUID     string `yaml:"uuid,omitempty"`
	AlterID  int    `yaml:"alterId,omitempty"`
	TLS      bool   `yaml:"tls,omitempty"`
	SNI      string `yaml:"sni,omitempty"`
	Username string `yaml:"username,omitempty"`
	UDP      bool   `yaml:"udp,omitempty"`
}

type clashProxyGroup struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Proxies []string `yaml:"proxies"`
}

type clashConfig struct {
	Port        int               `yaml:"port"`
	SocksPort   int               `yaml:"socks-port"`
	AllowLAN    bool              `yaml:"allow-lan"`
	Mode        string            `yaml:"mode"`
	LogLevel    string            `yaml:"log-level"`
	Proxies     []clashProxy      `yaml:"proxies"`
	ProxyGroups []clashProxyGroup `yaml:"proxy-groups"`
	Rules       []string          `yaml:"rules"`
}

// GenerateClientConfig builds a Clash-compatible client document
// containing one proxy entry per enabled protocol and a single
// "select" group listing them all plus DIRECT. serverHost is the
// address clients should dial; the caller fills in a placeholder when
// it isn't known ahead of time. vmess/trojan, being stubs, are
// included only so a client can be pointed at them once implemented.
func GenerateClientConfig(cfg *common.Config, serverHost string) ([]byte, error) {
	if serverHost == "" {
		serverHost = "your-server-ip"
	}

	var proxies []clashProxy

	if cfg.Shadowsocks.Enabled {
		proxies = append(proxies, clashProxy{
			Name:     "shadowsocks",
			Type:     "ss",
			Server:   serverHost,
			Port:     cfg.Shadowsocks.Port,
			Cipher:   cfg.Shadowsocks.Method,
			Password: cfg.Shadowsocks.Password,
			UDP:      true,
		})
	}

	if cfg.Socks5.Enabled {
		proxies = append(proxies, clashProxy{
			Name:     "socks5",
			Type:     "socks5",
			Server:   serverHost,
			Port:     cfg.Socks5.Port,
			Username: cfg.Socks5.Username,
			Password: cfg.Socks5.Password,
		})
	}

	if cfg.HTTP.Enabled {
		proxies = append(proxies, clashProxy{
			Name:     "http",
			Type:     "http",
			Server:   serverHost,
			Port:     cfg.HTTP.Port,
			Username: cfg.HTTP.Username,
			Password: cfg.HTTP.Password,
		})
	}

	if cfg.VMess.Enabled {
		proxies = append(proxies, clashProxy{
			Name:    "vmess",
			Type:    "vmess",
			Server:  serverHost,
			Port:    cfg.VMess.Port,
			UUID:    cfg.VMess.UUID,
			AlterID: cfg.VMess.AlterID,
			Cipher:  "auto",
			TLS:     cfg.VMess.TLS,
		})
	}

	if cfg.Trojan.Enabled {
		proxies = append(proxies, clashProxy{
			Name:     "trojan",
			Type:     "trojan",
			Server:   serverHost,
			Port:     cfg.Trojan.Port,
			Password: cfg.Trojan.Password,
			SNI:      "your-domain.com",
			UDP:      true,
		})
	}

	names := make([]string, 0, len(proxies)+1)
	for _, p := range proxies {
		names = append(names, p.Name)
	}
	names = append(names, "DIRECT")

	doc := clashConfig{
		Port:      7890,
		SocksPort: 7891,
		AllowLAN:  true,
		Mode:      "rule",
		LogLevel:  "info",
		Proxies:   proxies,
		ProxyGroups: []clashProxyGroup{
			{Name: "select", Type: "select", Proxies: names},
		},
		Rules: []string{"MATCH,select"},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal client config: %w", err)
	}
	return out, nil
}
