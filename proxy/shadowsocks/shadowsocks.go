// Package shadowsocks implements the Shadowsocks listener (spec §4.3):
// accept a connection, read its 16-or-32-byte IV/salt, build a Session
// from sscrypto, decrypt the address header with netaddr, dial the
// target, and hand the rest of the connection to relay.
package shadowsocks

import (
	"fmt"
	"io"
	"net"

	"proxygateway/common"
	apperrors "proxygateway/errors"
	"proxygateway/logger"
	"proxygateway/netaddr"
	"proxygateway/proxy"
	"proxygateway/relay"
	"proxygateway/sscrypto"
	"proxygateway/stats"
)

// Server is the Shadowsocks listener.
type Server struct {
	*proxy.BaseServer
	profile   *sscrypto.Profile
	timeout   int
	collector *stats.Collector
}

// New validates cfg's method, derives the key from cfg's password, and
// returns a Server ready to Start. It does not bind a socket yet.
func New(log *logger.Logger, cfg common.ShadowsocksConfig, collector *stats.Collector) (*Server, error) {
	profile, err := sscrypto.NewProfile(sscrypto.Method(cfg.Method), cfg.Password)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfigInvalid, "shadowsocks profile", err)
	}

	return &Server{
		BaseServer: proxy.NewBaseServer(log, common.ProtocolShadowsocks, cfg.Port),
		profile:    profile,
		timeout:    cfg.Timeout,
		collector:  collector,
	}, nil
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	if s.Running {
		return fmt.Errorf("shadowsocks: already running")
	}
	ln, err := s.Listen()
	if err != nil {
		return apperrors.New(apperrors.KindBindFailed, "shadowsocks listen", err)
	}

	s.Logger.WithFields("shadowsocks listener started", logger.Fields{"port": s.Port, "method": s.profile.Method})
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.Running {
				s.Logger.ErrorWithFields("shadowsocks accept failed", logger.Fields{"error": err})
			}
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	ivLen := sscrypto.IVLen(s.profile.Method)
	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(conn, iv); err != nil {
		return
	}

	session, err := sscrypto.NewSession(s.profile, iv)
	if err != nil {
		return
	}

	chunk := make([]byte, 16*1024)
	n, err := conn.Read(chunk)
	if err != nil || n == 0 {
		return
	}

	plain, err := session.Open(chunk[:n])
	if err != nil {
		// ErrDecryptFail or truncated header: close silently per §7.
		return
	}

	target, consumed, err := netaddr.Decode(plain)
	if err != nil {
		return
	}

	upstream, err := net.Dial("tcp", target.String())
	if err != nil {
		return
	}
	defer upstream.Close()

	client := clientEndpoint(conn)
	id := s.collector.AddConnection(common.ProtocolShadowsocks, client, target)
	defer s.collector.RemoveConnection(common.ProtocolShadowsocks, client)

	// cc tallies ciphertext bytes itself (spec §4.2 Open Question 2):
	// relay.Duplex's Counts are plaintext-denominated on the client
	// side of this connection, since Read/Write there cross the
	// encryption boundary. n is the ciphertext length of the header
	// chunk already consumed above.
	cc := &cryptoConn{Conn: conn, session: session, wireUp: int64(n)}

	// Anything left in the first decrypted chunk past the address
	// header is already-decrypted application data; forward it before
	// the relay takes over raw bytes.
	if rest := plain[consumed:]; len(rest) > 0 {
		if _, err := upstream.Write(rest); err != nil {
			return
		}
	}

	relay.Duplex(cc, upstream, common.IdleTimeout(s.timeout))
	s.collector.AddTraffic(common.ProtocolShadowsocks, id, cc.wireUp, cc.wireDown)
}

func clientEndpoint(conn net.Conn) common.Endpoint {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return common.Endpoint{}
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return common.Endpoint{Host: host, Port: uint16(port)}
}

// cryptoConn wraps a raw net.Conn so relay.Duplex can copy plaintext
// in both directions while this connection's wire bytes stay sealed.
// Every Read decrypts one arriving ciphertext chunk; every Write seals
// one plaintext chunk. wireUp/wireDown tally the ciphertext bytes that
// actually crossed the wire in each direction, independent of what
// Read/Write report to their io.Reader/io.Writer callers, so traffic
// accounting stays ciphertext-denominated (spec §4.2 Open Question 2)
// even though relay.Duplex itself only ever sees plaintext lengths on
// this side of the connection.
type cryptoConn struct {
	net.Conn
	session *sscrypto.Session
	pending []byte

	wireUp   int64
	wireDown int64
}

func (c *cryptoConn) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	buf := make([]byte, 16*1024)
	n, err := c.Conn.Read(buf)
	if n == 0 {
		return 0, err
	}
	c.wireUp += int64(n)
	plain, derr := c.session.Open(buf[:n])
	if derr != nil {
		return 0, derr
	}
	copied := copy(p, plain)
	if copied < len(plain) {
		c.pending = plain[copied:]
	}
	return copied, nil
}

func (c *cryptoConn) Write(p []byte) (int, error) {
	sealed := c.session.Seal(p)
	if _, err := c.Conn.Write(sealed); err != nil {
		return 0, err
	}
	c.wireDown += int64(len(sealed))
	return len(p), nil
}
