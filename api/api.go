// Package api serves the read-only stats HTTP API (spec §6, §4.12):
// /api/status, /api/stats, /api/connections, /api/traffic, and
// /api/servers, all backed by the stats collector and the listener
// supervisor.
package api

import (
	"net/http"
	"time"

	"proxygateway/logger"
	"proxygateway/router"
	"proxygateway/stats"
	"proxygateway/supervisor"
)

// Server wraps a Router serving the stats API over HTTP.
type Server struct {
	router router.Router
	log    *logger.Logger
}

// New builds a Server with CORS, request-ID, request-logging, and
// per-IP rate-limiting middleware applied to every route.
func New(log *logger.Logger, collector *stats.Collector, sup *supervisor.Supervisor, startTime time.Time) *Server {
	r := router.NewRouter()
	group := r.Group("/api")

	group.GET("/status", Cors(), RequestID(), RequestLogger(log), RateLimit(10, 20), statusHandler(sup, startTime))
	group.GET("/stats", Cors(), RequestID(), RequestLogger(log), RateLimit(10, 20), statsHandler(collector))
	group.GET("/connections", Cors(), RequestID(), RequestLogger(log), RateLimit(10, 20), connectionsHandler(collector))
	group.GET("/traffic", Cors(), RequestID(), RequestLogger(log), RateLimit(10, 20), trafficHandler(collector))
	group.GET("/servers", Cors(), RequestID(), RequestLogger(log), RateLimit(10, 20), serversHandler(sup))

	return &Server{router: r, log: log}
}

// ServeHTTP implements http.Handler, letting Server plug directly into
// http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

func statusHandler(sup *supervisor.Supervisor, startTime time.Time) func(*router.Context) {
	return func(c *router.Context) {
		handles := sup.Status()
		protocols := make([]string, 0, len(handles))
		for _, h := range handles {
			protocols = append(protocols, string(h.Protocol))
		}

		c.JSON(200, map[string]interface{}{
			"running":   len(handles) > 0,
			"timestamp": time.Now().Unix(),
			"servers":   len(handles),
			"protocols": protocols,
		})
	}
}

func statsHandler(collector *stats.Collector) func(*router.Context) {
	return func(c *router.Context) {
		c.JSON(200, collector.Snapshot())
	}
}

func connectionsHandler(collector *stats.Collector) func(*router.Context) {
	return func(c *router.Context) {
		c.JSON(200, map[string]interface{}{
			"connections": collector.ListConnections(),
		})
	}
}

func trafficHandler(collector *stats.Collector) func(*router.Context) {
	return func(c *router.Context) {
		snap := collector.Snapshot()
		c.JSON(200, map[string]interface{}{
			"upload":   snap.TotalUpload,
			"download": snap.TotalDownload,
			"total":    snap.TotalUpload + snap.TotalDownload,
		})
	}
}

func serversHandler(sup *supervisor.Supervisor) func(*router.Context) {
	return func(c *router.Context) {
		handles := sup.Status()
		servers := make(map[string]interface{}, len(handles))
		for _, h := range handles {
			servers[string(h.Protocol)] = map[string]interface{}{
				"port":    h.Port,
				"running": true,
			}
		}
		c.JSON(200, map[string]interface{}{"servers": servers})
	}
}
