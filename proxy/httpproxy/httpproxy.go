// Package httpproxy implements the HTTP forward proxy listener (spec
// §4.5): CONNECT tunneling and absolute-URI forwarding, both gated by
// optional Proxy-Authorization Basic auth.
package httpproxy

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"proxygateway/common"
	apperrors "proxygateway/errors"
	"proxygateway/logger"
	"proxygateway/proxy"
	"proxygateway/relay"
	"proxygateway/stats"
)

const (
	maxHeaderBytes   = 4 * 1024
	headerTimeout    = 10 * time.Second
	defaultTLSPort   = 443
	defaultPlainPort = 80
)

// Server is the HTTP forward proxy listener.
type Server struct {
	*proxy.BaseServer
	username  string
	password  string
	timeout   int
	collector *stats.Collector
}

// New returns a Server for cfg.
func New(log *logger.Logger, cfg common.HTTPConfig, collector *stats.Collector) *Server {
	return &Server{
		BaseServer: proxy.NewBaseServer(log, common.ProtocolHTTP, cfg.Port),
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
		return fmt.Errorf("httpproxy: already running")
	}
	ln, err := s.Listen()
	if err != nil {
		return apperrors.New(apperrors.KindBindFailed, "http proxy listen", err)
	}

	s.Logger.WithFields("http proxy listener started", logger.Fields{"port": s.Port, "auth": s.requiresAuth()})
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.Running {
				s.Logger.ErrorWithFields("http proxy accept failed", logger.Fields{"error": err})
			}
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(headerTimeout))

	req, err := readRequest(conn)
	if err != nil {
		return
	}

	if s.requiresAuth() && !s.checkAuth(conn, req) {
		return
	}

	conn.SetReadDeadline(time.Time{})

	if req.Method == http.MethodConnect {
		s.handleConnect(conn, req)
		return
	}
	s.handleForward(conn, req)
}

// readRequest reads the request line and headers, up to maxHeaderBytes
// and terminated by a blank line, and parses them with net/http. It
// reads one byte at a time so nothing past the blank line is consumed
// from conn.
func readRequest(conn net.Conn) (*http.Request, error) {
	limited := io.LimitReader(conn, maxHeaderBytes)

	var raw bytes.Buffer
	var line []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(limited, one); err != nil {
			return nil, err
		}
		raw.WriteByte(one[0])
		line = append(line, one[0])
		if one[0] != '\n' {
			continue
		}
		if isBlankLine(line) {
			break
		}
		line = line[:0]
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(raw.Bytes())))
	if err != nil {
		return nil, fmt.Errorf("httpproxy: parse request: %w", err)
	}
	return req, nil
}

func isBlankLine(line []byte) bool {
	trimmed := bytes.TrimRight(line, "\r\n")
	return len(trimmed) == 0
}

// checkAuth enforces Proxy-Authorization Basic auth, writing a 407
// challenge and returning false if it's missing or wrong.
func (s *Server) checkAuth(conn net.Conn, req *http.Request) bool {
	header := req.Header.Get("Proxy-Authorization")
	if header == "" {
		writeProxyAuthRequired(conn)
		return false
	}

	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		writeProxyAuthRequired(conn)
		return false
	}

	decoded, err := decodeBasic(header[len(prefix):])
	if err != nil {
		writeProxyAuthRequired(conn)
		return false
	}

	user, pass, ok := strings.Cut(decoded, ":")
	if !ok || user != s.username || pass != s.password {
		writeProxyAuthRequired(conn)
		return false
	}
	return true
}

func writeProxyAuthRequired(conn net.Conn) {
	resp := "HTTP/1.1 407 Proxy Authentication Required\r\n" +
		"Proxy-Authenticate: Basic realm=\"Proxy\"\r\n" +
		"Connection: close\r\n\r\n"
	conn.Write([]byte(resp))
}

func (s *Server) handleConnect(conn net.Conn, req *http.Request) {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	target, err := withDefaultPort(host, defaultTLSPort)
	if err != nil {
		writeSimpleStatus(conn, 400, "Bad Request")
		return
	}

	upstream, err := net.Dial("tcp", target)
	if err != nil {
		writeSimpleStatus(conn, 502, "Bad Gateway")
		return
	}
	defer upstream.Close()

	if _, err := conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	client := clientEndpoint(conn)
	targetEndpoint := splitEndpoint(target)
	id := s.collector.AddConnection(common.ProtocolHTTP, client, targetEndpoint)
	defer s.collector.RemoveConnection(common.ProtocolHTTP, client)

	counts := relay.Duplex(conn, upstream, common.IdleTimeout(s.timeout))
	s.collector.AddTraffic(common.ProtocolHTTP, id, counts.Upload, counts.Download)
}

// handleForward proxies a non-CONNECT request: it rewrites the request
// line to origin form (path and query only), drops Proxy-Authorization
// and Proxy-Connection, forces Connection: close, writes the headers in
// req.Header to the target, then relays the rest of the connection
// (request body and response) in both directions.
func (s *Server) handleForward(conn net.Conn, req *http.Request) {
	host := req.URL.Host
	if host == "" {
		host = req.Host
	}
	if host == "" {
		writeSimpleStatus(conn, 400, "Bad Request")
		return
	}

	target, err := withDefaultPort(host, defaultPlainPort)
	if err != nil {
		writeSimpleStatus(conn, 400, "Bad Request")
		return
	}

	upstream, err := net.Dial("tcp", target)
	if err != nil {
		writeSimpleStatus(conn, 502, "Bad Gateway")
		return
	}
	defer upstream.Close()

	req.Header.Del("Proxy-Authorization")
	req.Header.Del("Proxy-Connection")
	req.Header.Set("Connection", "close")

	requestURI := req.URL.RequestURI()
	if _, err := fmt.Fprintf(upstream, "%s %s %s\r\n", req.Method, requestURI, req.Proto); err != nil {
		return
	}
	if err := req.Header.Write(upstream); err != nil {
		return
	}
	if _, err := upstream.Write([]byte("\r\n")); err != nil {
		return
	}

	client := clientEndpoint(conn)
	targetEndpoint := splitEndpoint(target)
	id := s.collector.AddConnection(common.ProtocolHTTP, client, targetEndpoint)
	defer s.collector.RemoveConnection(common.ProtocolHTTP, client)

	counts := relay.Duplex(conn, upstream, common.IdleTimeout(s.timeout))
	s.collector.AddTraffic(common.ProtocolHTTP, id, counts.Upload, counts.Download)
}

func withDefaultPort(host string, defaultPort int) (string, error) {
	if host == "" {
		return "", fmt.Errorf("httpproxy: empty host")
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}
	return net.JoinHostPort(host, strconv.Itoa(defaultPort)), nil
}

func splitEndpoint(hostport string) common.Endpoint {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return common.Endpoint{Host: hostport}
	}
	port, _ := strconv.Atoi(portStr)
	return common.Endpoint{Host: host, Port: uint16(port)}
}

func clientEndpoint(conn net.Conn) common.Endpoint {
	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return common.Endpoint{}
	}
	port, _ := strconv.Atoi(portStr)
	return common.Endpoint{Host: host, Port: uint16(port)}
}

func writeSimpleStatus(conn net.Conn, code int, text string) {
	resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nConnection: close\r\n\r\n", code, text)
	conn.Write([]byte(resp))
}

func decodeBasic(encoded string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
