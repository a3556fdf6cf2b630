package monitor

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeTemp struct {
	mu    sync.Mutex
	temp  byte
	fail  bool
	reads int
}

func (f *fakeTemp) Temperature() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.fail {
		return 0, errors.New("ec read failed")
	}
	return f.temp, nil
}

type fakeEvaluator struct {
	mu        sync.Mutex
	curveFans bool
	calls     []struct {
		fan  int
		temp byte
	}
	ticked chan struct{}
}

func (f *fakeEvaluator) HasCurveFans() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.curveFans
}

func (f *fakeEvaluator) Evaluate(fan int, temp byte) {
	f.mu.Lock()
	f.calls = append(f.calls, struct {
		fan  int
		temp byte
	}{fan, temp})
	done := fan == 3
	f.mu.Unlock()
	if done {
		select {
		case f.ticked <- struct{}{}:
		default:
		}
	}
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestTickEvaluatesAllFansWithOneSample(t *testing.T) {
	temps := &fakeTemp{temp: 77}
	fans := &fakeEvaluator{curveFans: true, ticked: make(chan struct{}, 1)}
	loop := NewLoop(temps, fans, 5*time.Millisecond, discardLogger())

	loop.Start()
	defer loop.Stop()

	select {
	case <-fans.ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick observed")
	}
	loop.Stop()

	fans.mu.Lock()
	defer fans.mu.Unlock()
	if len(fans.calls) < 3 {
		t.Fatalf("got %d evaluations, want at least one full tick", len(fans.calls))
	}
	for _, call := range fans.calls[:3] {
		if call.temp != 77 {
			t.Errorf("fan %d saw temp %d, want the shared sample 77", call.fan, call.temp)
		}
	}
	if fans.calls[0].fan != 1 || fans.calls[1].fan != 2 || fans.calls[2].fan != 3 {
		t.Errorf("fan order = %v", fans.calls[:3])
	}
}

func TestTickSkippedWhenNoCurveFans(t *testing.T) {
	temps := &fakeTemp{temp: 50}
	fans := &fakeEvaluator{curveFans: false, ticked: make(chan struct{}, 1)}
	loop := NewLoop(temps, fans, 5*time.Millisecond, discardLogger())

	loop.Start()
	time.Sleep(50 * time.Millisecond)
	loop.Stop()

	temps.mu.Lock()
	defer temps.mu.Unlock()
	if temps.reads != 0 {
		t.Errorf("temperature was sampled %d times with no curve fans", temps.reads)
	}
}

func TestFailedSampleSkipsWholeTick(t *testing.T) {
	temps := &fakeTemp{fail: true}
	fans := &fakeEvaluator{curveFans: true, ticked: make(chan struct{}, 1)}
	loop := NewLoop(temps, fans, 5*time.Millisecond, discardLogger())

	loop.Start()
	time.Sleep(50 * time.Millisecond)
	loop.Stop()

	fans.mu.Lock()
	evaluations := len(fans.calls)
	fans.mu.Unlock()
	if evaluations != 0 {
		t.Errorf("%d evaluations ran despite failed temperature reads", evaluations)
	}

	// The loop must survive the failures and keep sampling.
	temps.mu.Lock()
	reads := temps.reads
	temps.mu.Unlock()
	if reads < 2 {
		t.Errorf("loop stopped sampling after a failure (reads = %d)", reads)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	temps := &fakeTemp{}
	fans := &fakeEvaluator{ticked: make(chan struct{}, 1)}
	loop := NewLoop(temps, fans, time.Millisecond, discardLogger())

	loop.Start()
	loop.Stop()
	loop.Stop()
	loop.Start()
	loop.Stop()
}
