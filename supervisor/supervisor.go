// Package supervisor implements the Listener Supervisor (spec §4.8):
// it builds one listener per enabled protocol block from a loaded
// configuration, launches them, and tears them all down on shutdown.
// It lives outside package proxy so it can import the individual
// listener packages (which themselves import proxy for BaseServer)
// without an import cycle.
package supervisor

import (
	"fmt"
	"sync"

	"proxygateway/common"
	"proxygateway/logger"
	"proxygateway/proxy/httpproxy"
	"proxygateway/proxy/shadowsocks"
	"proxygateway/proxy/socks5"
	"proxygateway/proxy/trojan"
	"proxygateway/proxy/vmess"
	"proxygateway/stats"
)

// ListenerHandle is the supervisor's record of one running listener:
// the protocol it serves, its bound port, and the common.Server
// driving it.
type ListenerHandle struct {
	Protocol common.ProtocolTag
	Port     int
	server   common.Server
}

// Supervisor constructs and tracks every enabled listener from a
// configuration (spec §4.8). It holds no database — servers exist only
// in memory for the lifetime of the process.
type Supervisor struct {
	log       *logger.Logger
	collector *stats.Collector

	mu      sync.RWMutex
	servers map[common.ProtocolTag]*ListenerHandle
}

// NewSupervisor returns an empty Supervisor. Call Start to build and
// launch listeners from a configuration.
func NewSupervisor(log *logger.Logger, collector *stats.Collector) *Supervisor {
	return &Supervisor{
		log:       log,
		collector: collector,
		servers:   make(map[common.ProtocolTag]*ListenerHandle),
	}
}

// Start constructs a listener for every enabled protocol block in cfg,
// registers it, and launches it. If any listener fails to start, Start
// stops everything it already launched and returns the error.
func (sup *Supervisor) Start(cfg *common.Config) error {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	if cfg.Shadowsocks.Enabled {
		srv, err := shadowsocks.New(sup.log, cfg.Shadowsocks, sup.collector)
		if err != nil {
			return fmt.Errorf("supervisor: build shadowsocks listener: %w", err)
		}
		if err := sup.launchLocked(common.ProtocolShadowsocks, cfg.Shadowsocks.Port, srv); err != nil {
			return err
		}
	}

	if cfg.Socks5.Enabled {
		srv := socks5.New(sup.log, cfg.Socks5, sup.collector)
		if err := sup.launchLocked(common.ProtocolSocks5, cfg.Socks5.Port, srv); err != nil {
			return err
		}
	}

	if cfg.HTTP.Enabled {
		srv := httpproxy.New(sup.log, cfg.HTTP, sup.collector)
		if err := sup.launchLocked(common.ProtocolHTTP, cfg.HTTP.Port, srv); err != nil {
			return err
		}
	}

	if cfg.VMess.Enabled {
		srv := vmess.New(sup.log, cfg.VMess)
		if err := sup.launchLocked(common.ProtocolVMess, cfg.VMess.Port, srv); err != nil {
			return err
		}
	}

	if cfg.Trojan.Enabled {
		srv := trojan.New(sup.log, cfg.Trojan)
		if err := sup.launchLocked(common.ProtocolTrojan, cfg.Trojan.Port, srv); err != nil {
			return err
		}
	}

	return nil
}

func (sup *Supervisor) launchLocked(tag common.ProtocolTag, port int, server common.Server) error {
	if err := server.Start(); err != nil {
		sup.log.ErrorWithFields("listener failed to start", logger.Fields{"protocol": tag, "port": port, "error": err})
		sup.stopAllLocked()
		return fmt.Errorf("supervisor: start %s listener: %w", tag, err)
	}
	sup.servers[tag] = &ListenerHandle{Protocol: tag, Port: port, server: server}
	sup.log.WithFields("listener started", logger.Fields{"protocol": tag, "port": port})
	return nil
}

// Stop calls Stop on every registered listener, in no particular
// order, and clears the registry. Each listener's own Stop is
// idempotent, so calling Stop twice is harmless.
func (sup *Supervisor) Stop() {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.stopAllLocked()
}

func (sup *Supervisor) stopAllLocked() {
	for tag, handle := range sup.servers {
		if err := handle.server.Stop(); err != nil {
			sup.log.ErrorWithFields("listener failed to stop", logger.Fields{"protocol": tag, "port": handle.Port, "error": err})
		}
	}
	sup.servers = make(map[common.ProtocolTag]*ListenerHandle)
}

// Status returns a snapshot of every registered listener's tag and
// port, for the stats API's /api/servers endpoint.
func (sup *Supervisor) Status() []ListenerHandle {
	sup.mu.RLock()
	defer sup.mu.RUnlock()

	out := make([]ListenerHandle, 0, len(sup.servers))
	for _, handle := range sup.servers {
		out = append(out, *handle)
	}
	return out
}
