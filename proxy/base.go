// Package proxy holds BaseServer, the fields every listener in
// proxy/shadowsocks, proxy/socks5, proxy/httpproxy, proxy/vmess, and
// proxy/trojan embeds. The listeners that build on it live in their
// own subpackages; the Listener Supervisor that wires them together
// lives in proxygateway/supervisor, outside this package, to avoid an
// import cycle (each listener imports proxy for BaseServer).
package proxy

import (
	"fmt"
	"net"

	"proxygateway/common"
	"proxygateway/logger"
)

// BaseServer holds the fields common to every listener: its protocol
// tag, bound port, accept socket, and running flag. It does not
// implement an accept loop itself — each listener's own Start defines
// how it reads from a connection before handing off to relay, so
// there is nothing generic to share there.
type BaseServer struct {
	Logger   *logger.Logger
	Protocol common.ProtocolTag
	Port     int
	Listener net.Listener
	Running  bool
}

// NewBaseServer constructs a BaseServer for protocol bound to port.
func NewBaseServer(log *logger.Logger, protocol common.ProtocolTag, port int) *BaseServer {
	return &BaseServer{
		Logger:   log,
		Protocol: protocol,
		Port:     port,
	}
}

// Listen opens the TCP listener and marks the server running. Callers
// start their own accept loop goroutine afterward.
func (s *BaseServer) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return nil, err
	}
	s.Listener = ln
	s.Running = true
	return ln, nil
}

// Stop closes the listener. Idempotent: stopping an already-stopped
// server is a no-op.
func (s *BaseServer) Stop() error {
	if !s.Running {
		return nil
	}
	s.Running = false
	if s.Listener == nil {
		return nil
	}
	return s.Listener.Close()
}

// GetPort implements common.Server.
func (s *BaseServer) GetPort() int {
	return s.Port
}

// GetProtocol implements common.Server.
func (s *BaseServer) GetProtocol() common.ProtocolTag {
	return s.Protocol
}
