// Package vmess is a stub listener (spec §4.13, Non-goal 3): it
// accepts connections on its configured port, terminating TLS when
// vmess.tls is set, but
// does not parse the VMess header or relay traffic. It exists so the
// supervisor and the stats API can report a vmess entry consistently
// with the other protocols once the real codec is implemented.
package vmess

import (
	"crypto/tls"
	"fmt"
	"net"

	"proxygateway/common"
	apperrors "proxygateway/errors"
	"proxygateway/logger"
)

// Server is the VMess stub listener.
type Server struct {
	log    *logger.Logger
	port   int
	config common.VMessConfig
	ln     net.Listener
	running bool
}

// New returns a Server for cfg.
func New(log *logger.Logger, cfg common.VMessConfig) *Server {
	return &Server{log: log, port: cfg.Port, config: cfg}
}

// Start binds the listener, wrapping it in TLS if configured, and
// accepts connections without handling them.
func (s *Server) Start() error {
	if s.running {
		return fmt.Errorf("vmess: already running")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return apperrors.New(apperrors.KindBindFailed, "vmess listen", err)
	}

	if s.config.TLS {
		cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
		if err != nil {
			ln.Close()
			return apperrors.New(apperrors.KindConfigInvalid, "vmess tls certificate", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	s.ln = ln
	s.running = true
	s.log.WithFields("vmess stub listener started", logger.Fields{"port": s.port, "implemented": false})

	go s.acceptLoop(ln)
	return nil
}

// acceptLoop accepts and immediately closes every connection: there is
// no header codec behind this stub yet.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.running {
				s.log.ErrorWithFields("vmess accept failed", logger.Fields{"error": err})
			}
			return
		}
		conn.Close()
	}
}

// Stop closes the listener.
func (s *Server) Stop() error {
	if !s.running {
		return nil
	}
	s.running = false
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// GetPort implements common.Server.
func (s *Server) GetPort() int { return s.port }

// GetProtocol implements common.Server.
func (s *Server) GetProtocol() common.ProtocolTag { return common.ProtocolVMess }
