// Package monitor runs the recurring sampling tick that feeds curve-mode
// fans with temperature readings.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TempReader samples the APU temperature through the EC device.
type TempReader interface {
	Temperature() (byte, error)
}

// Evaluator is the slice of the fan engine the loop drives.
type Evaluator interface {
	HasCurveFans() bool
	Evaluate(fan int, temp byte)
}

// Loop samples the temperature on a fixed period and evaluates every
// curve-mode fan against the same reading. It runs for the lifetime of the
// process; transient read failures skip the tick, never stop the loop.
type Loop struct {
	dev      TempReader
	fans     Evaluator
	log      *logrus.Logger
	interval time.Duration

	active bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLoop(dev TempReader, fans Evaluator, interval time.Duration, log *logrus.Logger) *Loop {
	return &Loop{dev: dev, fans: fans, interval: interval, log: log}
}

// Start launches the sampling loop in a background goroutine.
func (l *Loop) Start() {
	if l.cancel != nil {
		return
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.wg.Add(1)
	go l.run()
}

// Stop terminates the loop and waits for the in-flight tick to finish.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.wg.Wait()
	l.cancel = nil
}

func (l *Loop) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	hasCurveFans := l.fans.HasCurveFans()
	if hasCurveFans && !l.active {
		l.log.Info("Curve monitoring started - fans in curve mode detected")
		l.active = true
	} else if !hasCurveFans && l.active {
		l.log.Info("Curve monitoring stopped - no fans in curve mode")
		l.active = false
	}
	if !hasCurveFans {
		return
	}

	// One reading per tick; all fans evaluate against the same sample. A
	// failed read skips the whole tick rather than feeding stale data in.
	temp, err := l.dev.Temperature()
	if err != nil {
		l.log.Warnf("Curve monitoring: temperature read failed: %v", err)
		return
	}
	for fan := 1; fan <= 3; fan++ {
		l.fans.Evaluate(fan, temp)
	}
}
