package main

import (
	"fmt"
	"net/http"
	"time"

	"proxygateway/api"
	"proxygateway/logger"
	"proxygateway/stats"
	"proxygateway/supervisor"
)

// startDashboard serves the stats HTTP API on its own port in the
// background. Listen failures are logged, not fatal: the gateway's
// proxy listeners keep running even if the dashboard can't bind.
func startDashboard(log *logger.Logger, collector *stats.Collector, sup *supervisor.Supervisor, port int) *http.Server {
	apiServer := api.New(log, collector, sup, time.Now())
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: apiServer,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("dashboard server error: %v", err)
		}
	}()

	log.WithFields("dashboard listening", logger.Fields{"port": port})
	return httpServer
}
