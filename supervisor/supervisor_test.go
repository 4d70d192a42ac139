package supervisor

import (
	"testing"

	"proxygateway/common"
	"proxygateway/logger"
	"proxygateway/sscrypto"
	"proxygateway/stats"
)

func TestSupervisorStartsOnlyEnabledListeners(t *testing.T) {
	sup := NewSupervisor(logger.New(), stats.New())

	cfg := &common.Config{
		Shadowsocks: common.ShadowsocksConfig{
			Enabled:  true,
			Port:     19100,
			Method:   string(sscrypto.MethodAES128GCM),
			Password: "secret",
		},
		Socks5: common.Socks5Config{
			Enabled: true,
			Port:    19101,
		},
	}

	if err := sup.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sup.Stop()

	status := sup.Status()
	if len(status) != 2 {
		t.Fatalf("got %d listeners, want 2", len(status))
	}

	seen := map[common.ProtocolTag]bool{}
	for _, h := range status {
		seen[h.Protocol] = true
	}
	if !seen[common.ProtocolShadowsocks] || !seen[common.ProtocolSocks5] {
		t.Fatalf("missing expected protocols in status: %+v", status)
	}
}

func TestSupervisorStopIsIdempotent(t *testing.T) {
	sup := NewSupervisor(logger.New(), stats.New())
	cfg := &common.Config{
		Socks5: common.Socks5Config{Enabled: true, Port: 19102},
	}

	if err := sup.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sup.Stop()
	sup.Stop()

	if len(sup.Status()) != 0 {
		t.Fatal("expected no listeners after Stop")
	}
}
