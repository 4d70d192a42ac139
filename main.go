package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proxygateway/config"
	"proxygateway/logger"
	"proxygateway/stats"
	"proxygateway/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	testConfig := flag.Bool("test-config", false, "parse and validate the configuration, then exit")
	generateConfig := flag.Bool("generate-config", false, "print a Clash-compatible client configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	if *testConfig {
		fmt.Println("config ok")
		return 0
	}

	if *generateConfig {
		doc, err := config.GenerateClientConfig(cfg, cfg.Server.Host)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate-config error: %v\n", err)
			return 1
		}
		os.Stdout.Write(doc)
		return 0
	}

	log := logger.NewLoggerWithConfig(logger.Configuration{
		Level:    parseLevel(cfg.Server.LogLevel),
		Console:  true,
		File:     cfg.Server.LogFile != "",
		FilePath: cfg.Server.LogFile,
		Rotation: logger.RotationConfig{
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 10,
			LocalTime:  true,
			Compress:   true,
		},
	})
	defer log.Close()

	collector := stats.New()
	sup := supervisor.NewSupervisor(log, collector)

	if err := sup.Start(cfg); err != nil {
		log.ErrorWithFields("failed to start listeners", logger.Fields{"error": err})
		return 1
	}
	defer sup.Stop()

	log.WithFields("proxygateway started", logger.Fields{"config": *configPath})

	var httpServer *http.Server
	if cfg.Dashboard.Enabled {
		httpServer = startDashboard(log, collector, sup, cfg.Dashboard.Port)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	sup.Stop()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.ErrorWithFields("dashboard shutdown", logger.Fields{"error": err})
		}
	}

	log.Info("exited")
	return 0
}

func parseLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.DEBUG
	case "warn":
		return logger.WARN
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}
