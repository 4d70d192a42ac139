// Package trojan is a stub listener (spec §4.13, Non-goal 3): it
// terminates TLS and accepts connections on its configured port, but
// does not parse the Trojan header or relay traffic. It exists so the
// supervisor and the stats API can report a trojan entry consistently
// with the other protocols once the real codec is implemented.
package trojan

import (
	"crypto/tls"
	"fmt"
	"net"

	"proxygateway/common"
	apperrors "proxygateway/errors"
	"proxygateway/logger"
)

// Server is the Trojan stub listener.
type Server struct {
	log     *logger.Logger
	port    int
	config  common.TrojanConfig
	ln      net.Listener
	running bool
}

// New returns a Server for cfg.
func New(log *logger.Logger, cfg common.TrojanConfig) *Server {
	return &Server{log: log, port: cfg.Port, config: cfg}
}

// Start binds a TLS listener using the configured certificate and
// accepts connections without handling them.
func (s *Server) Start() error {
	if s.running {
		return fmt.Errorf("trojan: already running")
	}

	cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
	if err != nil {
		return apperrors.New(apperrors.KindConfigInvalid, "trojan tls certificate", err)
	}

	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.port), &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return apperrors.New(apperrors.KindBindFailed, "trojan listen", err)
	}

	s.ln = ln
	s.running = true
	s.log.WithFields("trojan stub listener started", logger.Fields{"port": s.port, "implemented": false})

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
				s.log.ErrorWithFields("trojan accept failed", logger.Fields{"error": err})
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
func (s *Server) GetProtocol() common.ProtocolTag { return common.ProtocolTrojan }
