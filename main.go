package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axb35/ecserver/api"
	"github.com/axb35/ecserver/internal/config"
	"github.com/axb35/ecserver/internal/driversvc"
	"github.com/axb35/ecserver/internal/ec"
	"github.com/axb35/ecserver/internal/fanctl"
	"github.com/axb35/ecserver/internal/logging"
	"github.com/axb35/ecserver/internal/monitor"
	"github.com/axb35/ecserver/internal/platform"
	"github.com/axb35/ecserver/internal/power"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the config file")
	bind := flag.String("bind", "", "Override the bind address from the config")
	port := flag.Int("port", 0, "Override the port from the config")
	flag.Parse()

	// Validate platform support
	if err := platform.ValidateSupport(); err != nil {
		log.Fatalf("Platform validation failed: %v", err)
	}

	// Load configuration (creates the file with defaults on first run)
	store, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := store.Snapshot()
	if *bind != "" {
		cfg.Host = *bind
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logger, logFile, err := logging.New(cfg.LogPath)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("EC server starting up...")

	// Make sure the port I/O driver is available before opening the session.
	drivers := driversvc.New(cfg.DriverPath)
	if !drivers.Loaded() {
		logger.Info("WinRing0 driver not loaded, attempting to load...")
		if err := drivers.InstallAndLoad(); err != nil {
			logger.Fatalf("Failed to load WinRing0 driver: %v", err)
		}
		logger.Info("WinRing0 driver loaded successfully")
	} else {
		logger.Info("WinRing0 driver already loaded")
	}

	// The single hardware session. Cooling control has no degraded mode: if
	// this fails the process exits.
	session, err := ec.OpenSession()
	if err != nil {
		logger.Fatalf("Failed to open EC session: %v", err)
	}
	dev := ec.NewDevice(session)
	logger.Info("EC session opened successfully")

	fans := fanctl.NewEngine(dev, store, logger)
	powerCtl := power.NewController(dev, store, logger)

	restoreState(store, fans, powerCtl, logger)

	loop := monitor.NewLoop(dev, fans, time.Second, logger)
	loop.Start()

	server := api.NewServer(dev, store, fans, powerCtl, logger)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutdown requested")
		loop.Stop()
		if err := server.Shutdown(); err != nil {
			logger.Warnf("Error during shutdown: %v", err)
		}
		if err := dev.Close(); err != nil {
			logger.Warnf("Error closing EC session: %v", err)
		}
		logFile.Close()
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Infof("Listening on %s", addr)
	if err := server.Start(addr); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}

// restoreState re-applies persisted operator intent to the hardware so a
// restart does not silently fall back to firmware defaults.
func restoreState(store *config.Store, fans *fanctl.Engine, powerCtl *power.Controller, logger *logrus.Logger) {
	logger.Info("Restoring saved parameters from configuration...")
	snap := store.Snapshot()

	if err := powerCtl.Set(snap.PowerMode); err != nil {
		logger.Warnf("Failed to restore power mode: %v", err)
	}

	// SetMode re-applies the stored level for fixed fans; curve fans resume
	// from their stored level on the first monitor tick.
	for fan := 1; fan <= 3; fan++ {
		if err := fans.SetMode(fan, snap.Fan(fan).Mode); err != nil {
			logger.Warnf("Failed to restore Fan%d mode: %v", fan, err)
		}
	}
	logger.Info("Parameter restoration completed")
}
