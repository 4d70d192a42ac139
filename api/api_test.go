package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proxygateway/common"
	"proxygateway/logger"
	"proxygateway/stats"
	"proxygateway/supervisor"
)

func TestStatusEndpointReportsNoServersWhenEmpty(t *testing.T) {
	sup := supervisor.NewSupervisor(logger.New(), stats.New())
	srv := New(logger.New(), stats.New(), sup, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if running, _ := body["running"].(bool); running {
		t.Fatal("expected running=false with no listeners registered")
	}
}

func TestTrafficEndpointSumsUploadAndDownload(t *testing.T) {
	collector := stats.New()
	id := collector.AddConnection("shadowsocks", common.Endpoint{}, common.Endpoint{})
	collector.AddTraffic("shadowsocks", id, 100, 50)

	sup := supervisor.NewSupervisor(logger.New(), stats.New())
	srv := New(logger.New(), collector, sup, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/api/traffic", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var body map[string]float64
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["total"] != 150 {
		t.Fatalf("got total %v, want 150", body["total"])
	}
}
