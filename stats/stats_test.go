package stats

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"proxygateway/common"
)

func TestAddRemoveConnectionBalances(t *testing.T) {
	c := New()
	client := common.Endpoint{Host: "10.0.0.1", Port: 4000}
	target := common.Endpoint{Host: "example.test", Port: 443}

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cl := client
			cl.Port = uint16(4000 + i)
			c.AddConnection(common.ProtocolShadowsocks, cl, target)
		}(i)
	}
	wg.Wait()

	snap := c.Snapshot()
	if snap.TotalConnections != n {
		t.Fatalf("total connections = %d, want %d", snap.TotalConnections, n)
	}
	if snap.Protocols[common.ProtocolShadowsocks].LiveConnections != n {
		t.Fatalf("live connections = %d, want %d", snap.Protocols[common.ProtocolShadowsocks].LiveConnections, n)
	}

	for i := 0; i < n; i++ {
		cl := client
		cl.Port = uint16(4000 + i)
		c.RemoveConnection(common.ProtocolShadowsocks, cl)
	}

	snap = c.Snapshot()
	if snap.Protocols[common.ProtocolShadowsocks].LiveConnections != 0 {
		t.Fatalf("live connections after removal = %d, want 0", snap.Protocols[common.ProtocolShadowsocks].LiveConnections)
	}
	if snap.Protocols[common.ProtocolShadowsocks].CumulativeConnections != n {
		t.Fatalf("cumulative connections = %d, want %d", snap.Protocols[common.ProtocolShadowsocks].CumulativeConnections, n)
	}
	if snap.ActiveConnections != 0 {
		t.Fatalf("active connections = %d, want 0", snap.ActiveConnections)
	}
}

func TestAddTrafficSumsMatchTotals(t *testing.T) {
	c := New()
	client := common.Endpoint{Host: "10.0.0.2", Port: 5000}
	target := common.Endpoint{Host: "example.test", Port: 443}

	id := c.AddConnection(common.ProtocolSocks5, client, target)
	c.AddTraffic(common.ProtocolSocks5, id, 100, 200)

	client2 := common.Endpoint{Host: "10.0.0.3", Port: 5001}
	id2 := c.AddConnection(common.ProtocolHTTP, client2, target)
	c.AddTraffic(common.ProtocolHTTP, id2, 50, 75)

	snap := c.Snapshot()
	var sumUp int64
	for _, p := range snap.Protocols {
		sumUp += p.Upload
	}
	if sumUp != snap.TotalUpload {
		t.Fatalf("sum of per-protocol upload = %d, want %d", sumUp, snap.TotalUpload)
	}
	if snap.TotalUpload != 150 || snap.TotalDownload != 275 {
		t.Fatalf("totals = (%d, %d), want (150, 275)", snap.TotalUpload, snap.TotalDownload)
	}

	conns := c.ListConnections()
	if len(conns) != 2 {
		t.Fatalf("ListConnections returned %d entries, want 2", len(conns))
	}
}

func TestResetZeroesEverything(t *testing.T) {
	c := New()
	client := common.Endpoint{Host: "10.0.0.4", Port: 6000}
	target := common.Endpoint{Host: "example.test", Port: 80}

	id := c.AddConnection(common.ProtocolHTTP, client, target)
	c.AddTraffic(common.ProtocolHTTP, id, 10, 20)
	c.Reset()

	snap := c.Snapshot()
	if snap.TotalUpload != 0 || snap.TotalDownload != 0 || snap.TotalConnections != 0 || snap.ActiveConnections != 0 {
		t.Fatalf("snapshot after reset not zeroed: %+v", snap)
	}
	if len(c.Hourly()) != 0 {
		t.Fatal("hourly ring not cleared after reset")
	}
}

func TestExportLoadRoundTrip(t *testing.T) {
	c := New()
	client := common.Endpoint{Host: "10.0.0.5", Port: 7000}
	target := common.Endpoint{Host: "example.test", Port: 443}

	id := c.AddConnection(common.ProtocolShadowsocks, client, target)
	c.AddTraffic(common.ProtocolShadowsocks, id, 1024, 2048)

	dir := t.TempDir()
	path := filepath.Join(dir, "stats.json")
	if err := c.ExportToFile(path); err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	c2 := New()
	if err := c2.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	snap := c2.Snapshot()
	if snap.TotalUpload != 1024 || snap.TotalDownload != 2048 {
		t.Fatalf("loaded totals = (%d, %d), want (1024, 2048)", snap.TotalUpload, snap.TotalDownload)
	}
}
