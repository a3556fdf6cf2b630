// Package fanctl drives the three fans: mode switching, fixed levels and
// temperature-curve evaluation with hysteresis. All hardware writes go
// through the EC device, all state changes through the config store.
package fanctl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/axb35/ecserver/internal/config"
)

// ErrInvalid marks a malformed or out-of-range request. Requests failing
// this way never touch the hardware.
var ErrInvalid = errors.New("invalid request")

// Direction selects which of a fan's two threshold curves an operation
// addresses.
type Direction string

const (
	Rampup   Direction = "rampup"
	Rampdown Direction = "rampdown"
)

// Device is the slice of the EC device the engine needs.
type Device interface {
	SetFanControl(fan int, host bool) error
	SetFanLevel(fan, level int) error
}

// Engine is the per-fan control state machine. Fan state itself lives in the
// config store; the engine serializes its own mutations so a mode switch and
// a curve tick cannot race on the same fan.
type Engine struct {
	dev   Device
	store *config.Store
	log   *logrus.Logger

	mu sync.Mutex
}

func NewEngine(dev Device, store *config.Store, log *logrus.Logger) *Engine {
	return &Engine{dev: dev, store: store, log: log}
}

// SetMode switches a fan's operating mode. Entering fixed mode re-applies
// the stored level immediately; entering curve mode only arms evaluation and
// the level resumes from its last value on the next tick.
func (e *Engine) SetMode(fan int, mode config.FanMode) error {
	if !validFan(fan) {
		return fmt.Errorf("%w: invalid fan id %d", ErrInvalid, fan)
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: invalid fan mode %q", ErrInvalid, mode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.dev.SetFanControl(fan, mode != config.ModeAuto); err != nil {
		return err
	}
	if mode == config.ModeFixed {
		snap := e.store.Snapshot()
		level := snap.Fan(fan).Level
		if err := e.dev.SetFanLevel(fan, level); err != nil {
			return err
		}
	}

	e.persist(fan, func(fc *config.FanConfig) { fc.Mode = mode })
	e.log.Infof("Fan%d mode set to %s", fan, mode)
	return nil
}

// SetLevel applies a fixed level to a fan. Only valid while the fan is in
// fixed mode.
func (e *Engine) SetLevel(fan, level int) error {
	if !validFan(fan) {
		return fmt.Errorf("%w: invalid fan id %d", ErrInvalid, fan)
	}
	if level < 0 || level > 5 {
		return fmt.Errorf("%w: fan level must be 0-5", ErrInvalid)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.store.Snapshot()
	if snap.Fan(fan).Mode != config.ModeFixed {
		return fmt.Errorf("%w: fan level can only be set in fixed mode", ErrInvalid)
	}
	if err := e.dev.SetFanLevel(fan, level); err != nil {
		return err
	}

	e.persist(fan, func(fc *config.FanConfig) { fc.Level = level })
	e.log.Infof("Fan%d level set to %d", fan, level)
	return nil
}

// SetCurve replaces one of a fan's threshold curves. The curve must have
// exactly 5 entries in 0-100 degC. Monotonicity is not enforced; evaluation
// applies the per-tick rule to whatever thresholds are stored.
func (e *Engine) SetCurve(fan int, dir Direction, curve []int) error {
	if !validFan(fan) {
		return fmt.Errorf("%w: invalid fan id %d", ErrInvalid, fan)
	}
	if len(curve) != len(config.Curve{}) {
		return fmt.Errorf("%w: curve must have exactly %d entries", ErrInvalid, len(config.Curve{}))
	}
	var stored config.Curve
	for i, t := range curve {
		if t < 0 || t > 100 {
			return fmt.Errorf("%w: curve temperatures must be 0-100", ErrInvalid)
		}
		stored[i] = uint8(t)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.persist(fan, func(fc *config.FanConfig) {
		switch dir {
		case Rampdown:
			fc.RampdownCurve = stored
		default:
			fc.RampupCurve = stored
		}
	})
	e.log.Infof("Fan%d %s curve set to %v", fan, dir, curve)
	return nil
}

// Evaluate runs one curve tick for a fan against the sampled temperature.
// The level moves at most one step per tick: up when the temperature reaches
// the rampup threshold for the current level, down when it falls below the
// rampdown threshold underneath it. The gap between the two curves is the
// hysteresis band that keeps the level stable near a boundary.
func (e *Engine) Evaluate(fan int, temp byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.store.Snapshot()
	fc := snap.Fan(fan)
	if fc == nil || fc.Mode != config.ModeCurve {
		return
	}

	level := fc.Level
	next := level
	switch {
	case level < 5 && temp >= fc.RampupCurve[level]:
		next = level + 1
		e.log.Infof("Fan%d ramping up to level %d (temp: %d, threshold: %d)",
			fan, next, temp, fc.RampupCurve[level])
	case level > 0 && temp < fc.RampdownCurve[level-1]:
		next = level - 1
		e.log.Infof("Fan%d ramping down to level %d (temp: %d, threshold: %d)",
			fan, next, temp, fc.RampdownCurve[level-1])
	}
	if next == level {
		return
	}

	if err := e.dev.SetFanLevel(fan, next); err != nil {
		e.log.Warnf("Fan%d curve tick: %v", fan, err)
		return
	}
	e.persist(fan, func(fc *config.FanConfig) { fc.Level = next })
}

// HasCurveFans reports whether any fan is currently armed for curve
// evaluation.
func (e *Engine) HasCurveFans() bool {
	snap := e.store.Snapshot()
	for fan := 1; fan <= 3; fan++ {
		if snap.Fan(fan).Mode == config.ModeCurve {
			return true
		}
	}
	return false
}

// Fan returns a copy of the fan's persisted state for read handlers.
func (e *Engine) Fan(fan int) (config.FanConfig, error) {
	if !validFan(fan) {
		return config.FanConfig{}, fmt.Errorf("%w: invalid fan id %d", ErrInvalid, fan)
	}
	snap := e.store.Snapshot()
	return *snap.Fan(fan), nil
}

// persist routes a fan state change through the store's single persistence
// path. A failed file write is logged and otherwise ignored: the hardware
// already carries the new state.
func (e *Engine) persist(fan int, mutate func(*config.FanConfig)) {
	err := e.store.Update(func(c *config.Config) { mutate(c.Fan(fan)) })
	if err != nil {
		e.log.Warnf("Failed to persist Fan%d state: %v", fan, err)
	}
}

func validFan(fan int) bool { return fan >= 1 && fan <= 3 }
