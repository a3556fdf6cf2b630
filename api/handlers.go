package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/axb35/ecserver/internal/config"
	"github.com/axb35/ecserver/internal/fanctl"
	"github.com/axb35/ecserver/internal/power"
	"github.com/axb35/ecserver/internal/sysinfo"
)

type fanMetrics struct {
	Mode          config.FanMode `json:"mode"`
	Level         int            `json:"level"`
	RPM           uint16         `json:"rpm"`
	RampupCurve   config.Curve   `json:"rampup_curve"`
	RampdownCurve config.Curve   `json:"rampdown_curve"`
}

// statusFor maps core errors onto HTTP status codes: validation failures are
// the caller's fault, everything else is an EC/driver failure.
func statusFor(err error) int {
	if errors.Is(err, fanctl.ErrInvalid) || errors.Is(err, power.ErrInvalidMode) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

// Status endpoint; the firmware version read doubles as the EC health probe.
func (s *Server) getStatus(c *fiber.Ctx) error {
	version, err := s.dev.FirmwareVersion()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "version": version})
}

// Combined metrics endpoint
func (s *Server) getMetrics(c *fiber.Ctx) error {
	mode, err := s.power.Mode()
	if err != nil {
		return fail(c, err)
	}
	temp, err := s.dev.Temperature()
	if err != nil {
		return fail(c, err)
	}

	snap := s.store.Snapshot()
	metrics := fiber.Map{
		"power_mode":  mode,
		"temperature": temp,
	}
	for id := 1; id <= 3; id++ {
		rpm, err := s.dev.FanRPM(id)
		if err != nil {
			return fail(c, err)
		}
		fc := snap.Fan(id)
		metrics[fmt.Sprintf("fan%d", id)] = fanMetrics{
			Mode:          fc.Mode,
			Level:         fc.Level,
			RPM:           rpm,
			RampupCurve:   fc.RampupCurve,
			RampdownCurve: fc.RampdownCurve,
		}
	}
	return c.JSON(metrics)
}

// Host info endpoint
func (s *Server) getSystem(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := sysinfo.Collect(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(info)
}

// Power mode endpoints
func (s *Server) getPowerMode(c *fiber.Ctx) error {
	mode, err := s.power.Mode()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"power_mode": mode})
}

func (s *Server) setPowerMode(c *fiber.Ctx) error {
	var req struct {
		PowerMode config.PowerMode `json:"power_mode"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.power.Set(req.PowerMode); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"power_mode": req.PowerMode})
}

// Temperature endpoint
func (s *Server) getTemp(c *fiber.Ctx) error {
	temp, err := s.dev.Temperature()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"temperature": temp})
}

// Fan endpoints
func (s *Server) getFanRPM(fan int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rpm, err := s.dev.FanRPM(fan)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"rpm": rpm})
	}
}

func (s *Server) getFanMode(fan int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := s.fans.Fan(fan)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"mode": fc.Mode})
	}
}

func (s *Server) setFanMode(fan int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Mode config.FanMode `json:"mode"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := s.fans.SetMode(fan, req.Mode); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"mode": req.Mode})
	}
}

func (s *Server) getFanLevel(fan int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := s.fans.Fan(fan)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"level": fc.Level})
	}
}

func (s *Server) setFanLevel(fan int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Level int `json:"level"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := s.fans.SetLevel(fan, req.Level); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"level": req.Level})
	}
}

func (s *Server) getFanCurve(fan int, dir fanctl.Direction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := s.fans.Fan(fan)
		if err != nil {
			return fail(c, err)
		}
		curve := fc.RampupCurve
		if dir == fanctl.Rampdown {
			curve = fc.RampdownCurve
		}
		return c.JSON(fiber.Map{"curve": curve})
	}
}

func (s *Server) setFanCurve(fan int, dir fanctl.Direction) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Curve []int `json:"curve"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if err := s.fans.SetCurve(fan, dir, req.Curve); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"curve": req.Curve})
	}
}
