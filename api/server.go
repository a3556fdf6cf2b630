package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"

	"github.com/axb35/ecserver/internal/config"
	"github.com/axb35/ecserver/internal/fanctl"
	"github.com/axb35/ecserver/internal/power"
)

// Device is the slice of the EC device the handlers read directly.
type Device interface {
	FirmwareVersion() (string, error)
	Temperature() (byte, error)
	FanRPM(fan int) (uint16, error)
}

// Server translates HTTP requests into calls against the fan engine, power
// controller, config store and EC device.
type Server struct {
	app   *fiber.App
	dev   Device
	store *config.Store
	fans  *fanctl.Engine
	power *power.Controller
	log   *logrus.Logger
}

// NewServer wires the HTTP layer over the already-constructed core
// components.
func NewServer(dev Device, store *config.Store, fans *fanctl.Engine, pwr *power.Controller, log *logrus.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     30 * time.Second,
		IdleTimeout:      120 * time.Second,
		DisableKeepalive: false,
		ServerHeader:     "ecserver",
		AppName:          "EC Control Server v1.0",
	})

	// Middleware
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "*",
	}))

	server := &Server{
		app:   app,
		dev:   dev,
		store: store,
		fans:  fans,
		power: pwr,
		log:   log,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.app.Get("/status", s.getStatus)
	s.app.Get("/metrics", s.getMetrics)
	s.app.Get("/system", s.getSystem)

	s.app.Get("/apu/power_mode", s.getPowerMode)
	s.app.Post("/apu/power_mode", s.setPowerMode)
	s.app.Get("/apu/temp", s.getTemp)

	for id := 1; id <= 3; id++ {
		fan := s.app.Group(fmt.Sprintf("/fan%d", id))
		fan.Get("/rpm", s.getFanRPM(id))
		fan.Get("/mode", s.getFanMode(id))
		fan.Post("/mode", s.setFanMode(id))
		fan.Get("/level", s.getFanLevel(id))
		fan.Post("/level", s.setFanLevel(id))
		fan.Get("/rampup_curve", s.getFanCurve(id, fanctl.Rampup))
		fan.Post("/rampup_curve", s.setFanCurve(id, fanctl.Rampup))
		fan.Get("/rampdown_curve", s.getFanCurve(id, fanctl.Rampdown))
		fan.Post("/rampdown_curve", s.setFanCurve(id, fanctl.Rampdown))
	}
}

// Start starts the API server
func (s *Server) Start(address string) error {
	return s.app.Listen(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
