package httpproxy

import (
	"bufio"
	"encoding/base64"
	"net"
	"net/http"
	"testing"

	"proxygateway/common"
	"proxygateway/logger"
	"proxygateway/stats"
)

func TestReadRequestParsesConnect(t *testing.T) {
	local, remote := net.Pipe()
	go func() {
		local.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
	}()

	req, err := readRequest(remote)
	if err != nil {
		t.Fatalf("readRequest: %v", err)
	}
	if req.Method != http.MethodConnect {
		t.Fatalf("got method %q, want CONNECT", req.Method)
	}
	if req.Host != "example.com:443" {
		t.Fatalf("got host %q", req.Host)
	}
}

func TestReadRequestParsesAbsoluteURI(t *testing.T) {
	local, remote := net.Pipe()
	go func() {
		local.Write([]byte("GET http://example.com/path HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	}()

	req, err := readRequest(remote)
	if err != nil {
		t.Fatalf("readRequest: %v", err)
	}
	if req.URL.Host != "example.com" {
		t.Fatalf("got url host %q", req.URL.Host)
	}
	if req.URL.Path != "/path" {
		t.Fatalf("got path %q", req.URL.Path)
	}
}

func TestCheckAuthRejectsMissingHeader(t *testing.T) {
	srv := New(logger.New(), common.HTTPConfig{
		Port:     8888,
		Username: "alice",
		Password: "wonderland",
	}, stats.New())

	local, remote := net.Pipe()
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)

	done := make(chan bool, 1)
	go func() { done <- srv.checkAuth(remote, req) }()

	resp, err := http.ReadResponse(bufio.NewReader(local), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if resp.StatusCode != 407 {
		t.Fatalf("got status %d, want 407", resp.StatusCode)
	}
	if ok := <-done; ok {
		t.Fatal("checkAuth should have failed without a header")
	}
}

func TestCheckAuthAcceptsValidBasicHeader(t *testing.T) {
	srv := New(logger.New(), common.HTTPConfig{
		Port:     8888,
		Username: "alice",
		Password: "wonderland",
	}, stats.New())

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	creds := base64.StdEncoding.EncodeToString([]byte("alice:wonderland"))
	req.Header.Set("Proxy-Authorization", "Basic "+creds)

	_, remote := net.Pipe()
	defer remote.Close()

	if !srv.checkAuth(remote, req) {
		t.Fatal("checkAuth should have accepted matching credentials")
	}
}

func TestWithDefaultPortAddsMissingPort(t *testing.T) {
	got, err := withDefaultPort("example.com", defaultTLSPort)
	if err != nil {
		t.Fatal(err)
	}
	if got != "example.com:443" {
		t.Fatalf("got %q, want example.com:443", got)
	}

	got, err = withDefaultPort("example.com:8443", defaultTLSPort)
	if err != nil {
		t.Fatal(err)
	}
	if got != "example.com:8443" {
		t.Fatalf("got %q, want example.com:8443 (existing port kept)", got)
	}
}
