package socks5

import (
	"io"
	"net"
	"testing"

	"proxygateway/common"
	"proxygateway/logger"
	"proxygateway/netaddr"
	"proxygateway/stats"
)

func TestGreetSelectsNoAuthWhenUnconfigured(t *testing.T) {
	srv := New(logger.New(), common.Socks5Config{Port: 1080}, stats.New())

	local, remote := net.Pipe()
	errc := make(chan error, 1)
	go func() { errc <- srv.greet(remote) }()

	local.Write([]byte{version5, 1, methodNoAuth})

	reply := make([]byte, 2)
	if _, err := io.ReadFull(local, reply); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply[0] != version5 || reply[1] != methodNoAuth {
		t.Fatalf("got reply %v, want [5 0]", reply)
	}
	if err := <-errc; err != nil {
		t.Fatalf("greet returned error: %v", err)
	}
}

func TestGreetRejectsWhenAuthRequiredButNotOffered(t *testing.T) {
	srv := New(logger.New(), common.Socks5Config{
		Port:     1080,
		Username: "alice",
		Password: "wonderland",
	}, stats.New())

	local, remote := net.Pipe()
	errc := make(chan error, 1)
	go func() { errc <- srv.greet(remote) }()

	local.Write([]byte{version5, 1, methodNoAuth})

	reply := make([]byte, 2)
	io.ReadFull(local, reply)
	if reply[1] != methodNoAcceptable {
		t.Fatalf("got method %d, want methodNoAcceptable", reply[1])
	}
	if err := <-errc; err == nil {
		t.Fatal("expected greet to fail")
	}
}

func TestAuthenticateAcceptsMatchingCredentials(t *testing.T) {
	srv := New(logger.New(), common.Socks5Config{
		Port:     1080,
		Username: "alice",
		Password: "wonderland",
	}, stats.New())

	local, remote := net.Pipe()
	errc := make(chan error, 1)
	go func() { errc <- srv.authenticate(remote) }()

	frame := []byte{authVersion, byte(len("alice"))}
	frame = append(frame, "alice"...)
	frame = append(frame, byte(len("wonderland")))
	frame = append(frame, "wonderland"...)
	local.Write(frame)

	reply := make([]byte, 2)
	io.ReadFull(local, reply)
	if reply[1] != authSuccess {
		t.Fatalf("got status %d, want authSuccess", reply[1])
	}
	if err := <-errc; err != nil {
		t.Fatalf("authenticate returned error: %v", err)
	}
}

func TestWriteReplyUsesZeroBoundAddress(t *testing.T) {
	local, remote := net.Pipe()
	go writeReply(remote, repSuccess)

	buf := make([]byte, 10)
	n, err := io.ReadFull(local, buf)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	want := append([]byte{version5, repSuccess, 0x00}, netaddr.Encode(netaddr.ZeroIPv4)...)
	if string(buf[:n]) != string(want) {
		t.Fatalf("got %v, want %v", buf[:n], want)
	}
}
