// Package socks5 implements the SOCKS5 listener (spec §4.4): the
// greeting/auth/request state machine over RFC 1928's wire format,
// followed by a handoff to relay once the target is dialed.
package socks5

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"proxygateway/common"
	apperrors "proxygateway/errors"
	"proxygateway/logger"
	"proxygateway/netaddr"
	"proxygateway/proxy"
	"proxygateway/relay"
	"proxygateway/stats"
)

const (
	version5 = 0x05

	methodNoAuth       = 0x00
	methodUserPass     = 0x02
	methodNoAcceptable = 0xff

	cmdConnect = 0x01

	authVersion = 0x01
	authSuccess = 0x00
	authFailure = 0x01

	repSuccess           = 0x00
	repGeneralFailure    = 0x01
	repConnectionRefused = 0x05
	repCommandNotSupport = 0x07
	repAddrTypeNotSupport = 0x08
)

// handshakeTimeout bounds the whole greeting/auth/request phase.
const handshakeTimeout = 10 * time.Second

// Server is the SOCKS5 listener.
type Server struct {
	*proxy.BaseServer
	username  string
	password  string
	timeout   int
	collector *stats.Collector
}

// New returns a Server for cfg. Username/Password empty means no auth
// is required and method 0x00 is offered.
func New(log *logger.Logger, cfg common.Socks5Config, collector *stats.Collector) *Server {
	return &Server{
		BaseServer: proxy.NewBaseServer(log, common.ProtocolSocks5, cfg.Port),
		username:   cfg.Username,
		password:   cfg.Password,
		timeout:    cfg.Timeout,
		collector:  collector,
	}
}

func (s *Server) requiresAuth() bool {
	return s.username != ""
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	if s.Running {
		return fmt.Errorf("socks5: already running")
	}
	ln, err := s.Listen()
	if err != nil {
		return apperrors.New(apperrors.KindBindFailed, "socks5 listen", err)
	}

	s.Logger.WithFields("socks5 listener started", logger.Fields{"port": s.Port, "auth": s.requiresAuth()})
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.Running {
				s.Logger.ErrorWithFields("socks5 accept failed", logger.Fields{"error": err})
			}
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	if err := s.greet(conn); err != nil {
		return
	}

	if s.requiresAuth() {
		if err := s.authenticate(conn); err != nil {
			return
		}
	}

	target, err := s.request(conn)
	if err != nil {
		return
	}

	conn.SetReadDeadline(time.Time{})

	upstream, err := net.Dial("tcp", target.String())
	if err != nil {
		code := repGeneralFailure
		if isRefused(err) {
			code = repConnectionRefused
		}
		writeReply(conn, byte(code))
		return
	}
	defer upstream.Close()

	if err := writeReply(conn, repSuccess); err != nil {
		return
	}

	client := clientEndpoint(conn)
	id := s.collector.AddConnection(common.ProtocolSocks5, client, target)
	defer s.collector.RemoveConnection(common.ProtocolSocks5, client)

	counts := relay.Duplex(conn, upstream, common.IdleTimeout(s.timeout))
	s.collector.AddTraffic(common.ProtocolSocks5, id, counts.Upload, counts.Download)
}

// greet reads the version/method-list frame and picks a method,
// failing the connection (0xff) if authentication is required but the
// client didn't offer user/pass.
func (s *Server) greet(conn net.Conn) error {
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return err
	}
	if header[0] != version5 {
		return fmt.Errorf("socks5: bad version %d", header[0])
	}

	methods := make([]byte, header[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return err
	}

	want := byte(methodNoAuth)
	if s.requiresAuth() {
		want = methodUserPass
	}

	offered := false
	for _, m := range methods {
		if m == want {
			offered = true
			break
		}
	}
	if !offered {
		conn.Write([]byte{version5, methodNoAcceptable})
		return fmt.Errorf("socks5: client did not offer method %d", want)
	}

	_, err := conn.Write([]byte{version5, want})
	return err
}

// authenticate implements RFC 1929 username/password auth.
func (s *Server) authenticate(conn net.Conn) error {
	header := make([]byte, 2)
	if _, err := io.ReadFull(conn, header); err != nil {
		return err
	}
	if header[0] != authVersion {
		return fmt.Errorf("socks5: bad auth version %d", header[0])
	}

	user := make([]byte, header[1])
	if _, err := io.ReadFull(conn, user); err != nil {
		return err
	}

	plen := make([]byte, 1)
	if _, err := io.ReadFull(conn, plen); err != nil {
		return err
	}
	pass := make([]byte, plen[0])
	if _, err := io.ReadFull(conn, pass); err != nil {
		return err
	}

	if string(user) != s.username || string(pass) != s.password {
		conn.Write([]byte{authVersion, authFailure})
		return fmt.Errorf("socks5: auth failed")
	}

	_, err := conn.Write([]byte{authVersion, authSuccess})
	return err
}

// request reads the CONNECT request and returns the decoded target,
// writing an error reply and returning a non-nil error for any
// unsupported CMD or ATYP.
func (s *Server) request(conn net.Conn) (common.Endpoint, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return common.Endpoint{}, err
	}
	if header[0] != version5 {
		return common.Endpoint{}, fmt.Errorf("socks5: bad request version")
	}
	if header[1] != cmdConnect {
		writeReply(conn, repCommandNotSupport)
		return common.Endpoint{}, fmt.Errorf("socks5: unsupported command %d", header[1])
	}

	// header[3] is ATYP; netaddr.Decode reads the same three address
	// encodings SOCKS5 uses, so assemble the ATYP byte plus the rest of
	// the frame and hand the whole thing to it. The body length isn't
	// known until ATYP (and, for domains, the length byte) is read, so
	// this is staged: io.ReadFull for each piece in turn, never a
	// single blind Read that could return short on a split segment.
	full, err := readAddressBody(conn, header[3])
	if err != nil {
		if err == netaddr.ErrBadAddressType {
			writeReply(conn, repAddrTypeNotSupport)
		} else {
			writeReply(conn, repGeneralFailure)
		}
		return common.Endpoint{}, err
	}

	target, _, err := netaddr.Decode(full)
	if err != nil {
		if err == netaddr.ErrBadAddressType {
			writeReply(conn, repAddrTypeNotSupport)
		} else {
			writeReply(conn, repGeneralFailure)
		}
		return common.Endpoint{}, err
	}

	return target, nil
}

// readAddressBody reads exactly the address body and port netaddr.Decode
// expects for atyp, returning it prefixed with atyp. Every piece is
// read with io.ReadFull so a request split across TCP segments is
// still read in full.
func readAddressBody(conn net.Conn, atyp byte) ([]byte, error) {
	switch atyp {
	case netaddr.TypeIPv4:
		body := make([]byte, 4+2)
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, err
		}
		return append([]byte{atyp}, body...), nil
	case netaddr.TypeIPv6:
		body := make([]byte, 16+2)
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil, err
		}
		return append([]byte{atyp}, body...), nil
	case netaddr.TypeDNS:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			return nil, err
		}
		rest := make([]byte, int(lenByte[0])+2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return nil, err
		}
		return append([]byte{atyp, lenByte[0]}, rest...), nil
	default:
		return nil, netaddr.ErrBadAddressType
	}
}

// writeReply sends a SOCKS5 reply with BND always 0.0.0.0:0, per spec.
func writeReply(conn net.Conn, rep byte) error {
	reply := append([]byte{version5, rep, 0x00}, netaddr.Encode(netaddr.ZeroIPv4)...)
	_, err := conn.Write(reply)
	return err
}

func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
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
