package shadowsocks

import (
	"net"
	"testing"

	"proxygateway/common"
	"proxygateway/logger"
	"proxygateway/sscrypto"
	"proxygateway/stats"
)

func TestNewRejectsUnsupportedMethod(t *testing.T) {
	_, err := New(logger.New(), common.ShadowsocksConfig{
		Port:     1080,
		Method:   "rot13",
		Password: "secret",
	}, stats.New())
	if err == nil {
		t.Fatal("expected an error for an unsupported method")
	}
}

func TestHandleConnectionClosesSilentlyOnBadIV(t *testing.T) {
	srv, err := New(logger.New(), common.ShadowsocksConfig{
		Port:     1080,
		Method:   string(sscrypto.MethodAES128GCM),
		Password: "secret",
	}, stats.New())
	if err != nil {
		t.Fatal(err)
	}

	clientLocal, clientRemote := net.Pipe()
	done := make(chan struct{})
	go func() {
		srv.handleConnection(clientRemote)
		close(done)
	}()

	// Fewer than the 16 bytes aes-128-gcm needs for its IV.
	clientLocal.Write([]byte{1, 2, 3})
	clientLocal.Close()

	<-done
}

func TestClientEndpointDegradesForPipeAddr(t *testing.T) {
	localConn, remoteConn := net.Pipe()
	defer localConn.Close()
	defer remoteConn.Close()

	// net.Pipe addresses aren't host:port strings, so clientEndpoint
	// should degrade to a zero Endpoint rather than panic.
	ep := clientEndpoint(localConn)
	if ep.Host != "" || ep.Port != 0 {
		t.Fatalf("expected zero endpoint for a pipe conn, got %+v", ep)
	}
}
