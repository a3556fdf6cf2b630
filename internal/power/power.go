// Package power applies and tracks the APU power preset.
package power

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/axb35/ecserver/internal/config"
	"github.com/axb35/ecserver/internal/ec"
)

// ErrInvalidMode marks a request naming an unknown preset; it never reaches
// the hardware.
var ErrInvalidMode = errors.New("invalid power mode")

// Preset codes written to the power mode register.
var modeCodes = map[config.PowerMode]byte{
	config.PowerBalanced:    0x00,
	config.PowerPerformance: 0x01,
	config.PowerQuiet:       0x02,
}

// Device is the slice of the EC device the controller needs.
type Device interface {
	ReadRegister(register byte) (byte, error)
	WriteRegister(register, value byte) error
}

// Controller owns the power preset. Set is atomic from the caller's view:
// either the write lands and is persisted, or it fails and the previous mode
// stays authoritative.
type Controller struct {
	dev   Device
	store *config.Store
	log   *logrus.Logger
}

func NewController(dev Device, store *config.Store, log *logrus.Logger) *Controller {
	return &Controller{dev: dev, store: store, log: log}
}

// Mode reads the active preset from the hardware.
func (c *Controller) Mode() (config.PowerMode, error) {
	value, err := c.dev.ReadRegister(ec.RegAPUPowerMode)
	if err != nil {
		return "", err
	}
	for mode, code := range modeCodes {
		if code == value {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown power mode reading 0x%02X", value)
}

// Set applies a preset with a single EC write and persists it.
func (c *Controller) Set(mode config.PowerMode) error {
	code, ok := modeCodes[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if err := c.dev.WriteRegister(ec.RegAPUPowerMode, code); err != nil {
		return err
	}
	if err := c.store.Update(func(cfg *config.Config) { cfg.PowerMode = mode }); err != nil {
		c.log.Warnf("Failed to persist power mode: %v", err)
	}
	c.log.Infof("APU power mode set to %s", mode)
	return nil
}
