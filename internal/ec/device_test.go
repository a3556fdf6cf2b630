package ec

import (
	"errors"
	"sync"
	"testing"
)

// simPort emulates the EC's command/data port protocol over an in-memory
// register file. It flags any interleaving of two transactions, which the
// Device mutex must prevent.
type simPort struct {
	mu   sync.Mutex
	regs [256]byte

	// protocol state
	expect    string // "", "read-addr", "write-addr", "write-data"
	addr      byte
	output    byte
	hasOutput bool

	inFlight    int
	maxInFlight int
	violations  int

	failOps int // fail this many port operations before behaving again
}

func (p *simPort) failNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOps = n
}

func (p *simPort) shouldFail() bool {
	if p.failOps > 0 {
		p.failOps--
		return true
	}
	return false
}

func (p *simPort) InB(port uint16) (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shouldFail() {
		return 0, errors.New("simulated port failure")
	}
	switch port {
	case commandPort:
		if p.hasOutput {
			return statusOutputBufferFull, nil
		}
		return 0, nil
	case dataPort:
		if !p.hasOutput {
			p.violations++
			return 0, nil
		}
		p.hasOutput = false
		p.endTransaction()
		return p.output, nil
	}
	return 0, errors.New("unknown port")
}

func (p *simPort) OutB(port uint16, value byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shouldFail() {
		return errors.New("simulated port failure")
	}
	switch port {
	case commandPort:
		if p.expect != "" || p.hasOutput {
			p.violations++
		}
		p.inFlight++
		if p.inFlight > p.maxInFlight {
			p.maxInFlight = p.inFlight
		}
		switch value {
		case cmdReadRegister:
			p.expect = "read-addr"
		case cmdWriteRegister:
			p.expect = "write-addr"
		default:
			p.violations++
			p.endTransaction()
		}
	case dataPort:
		switch p.expect {
		case "read-addr":
			p.addr = value
			p.output = p.regs[value]
			p.hasOutput = true
			p.expect = ""
		case "write-addr":
			p.addr = value
			p.expect = "write-data"
		case "write-data":
			p.regs[p.addr] = value
			p.expect = ""
			p.endTransaction()
		default:
			p.violations++
		}
	}
	return nil
}

func (p *simPort) endTransaction() {
	if p.inFlight > 0 {
		p.inFlight--
	}
}

func (p *simPort) Close() error { return nil }

func TestReadWriteRegister(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	if err := dev.WriteRegister(0x31, 0x02); err != nil {
		t.Fatalf("WriteRegister failed: %v", err)
	}
	value, err := dev.ReadRegister(0x31)
	if err != nil {
		t.Fatalf("ReadRegister failed: %v", err)
	}
	if value != 0x02 {
		t.Errorf("read back 0x%02X, want 0x02", value)
	}
	if port.violations != 0 {
		t.Errorf("protocol violations: %d", port.violations)
	}
}

func TestTransientFailureIsRetried(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)
	port.regs[0x70] = 55

	port.failNext(1)
	value, err := dev.ReadRegister(0x70)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if value != 55 {
		t.Errorf("read %d, want 55", value)
	}
}

func TestPersistentFailureSurfacesEcError(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	port.failNext(1 << 20)
	_, err := dev.ReadRegister(0x70)
	if err == nil {
		t.Fatal("expected error")
	}
	var ecErr *Error
	if !errors.As(err, &ecErr) {
		t.Errorf("expected *ec.Error, got %T", err)
	}
}

// Concurrent callers must never interleave at the port level: the simulated
// EC counts transactions that are open at the same time.
func TestConcurrentOperationsAreSerialized(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if g%2 == 0 {
					_, _ = dev.ReadRegister(byte(i))
				} else {
					_ = dev.WriteRegister(byte(i), byte(g))
				}
			}
		}(g)
	}
	wg.Wait()

	if port.maxInFlight > 1 {
		t.Errorf("observed %d concurrent transactions, want at most 1", port.maxInFlight)
	}
	if port.violations != 0 {
		t.Errorf("protocol violations: %d", port.violations)
	}
}

func TestFanLevelEncoding(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	for level := 0; level <= 5; level++ {
		if err := dev.SetFanLevel(2, level); err != nil {
			t.Fatalf("SetFanLevel(2, %d) failed: %v", level, err)
		}
		got, err := dev.FanLevel(2)
		if err != nil {
			t.Fatalf("FanLevel failed: %v", err)
		}
		if got != level {
			t.Errorf("level round trip: got %d, want %d", got, level)
		}
	}

	// Raw register check: level 1 on fan 2 is base 0x20 plus nibble 0x2.
	if err := dev.SetFanLevel(2, 1); err != nil {
		t.Fatal(err)
	}
	if port.regs[0x24] != 0x22 {
		t.Errorf("level register holds 0x%02X, want 0x22", port.regs[0x24])
	}

	if err := dev.SetFanLevel(1, 6); err == nil {
		t.Error("expected error for level 6")
	}
	if err := dev.SetFanLevel(4, 0); err == nil {
		t.Error("expected error for fan 4")
	}
}

func TestFanRPM(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	port.regs[0x35] = 0x0B // fan1 high byte
	port.regs[0x36] = 0xB8 // fan1 low byte
	rpm, err := dev.FanRPM(1)
	if err != nil {
		t.Fatalf("FanRPM failed: %v", err)
	}
	if rpm != 3000 {
		t.Errorf("rpm = %d, want 3000", rpm)
	}

	// Fan3 reports 8000 while spinning down; that reading maps to 0.
	port.regs[0x28] = 0x1F
	port.regs[0x29] = 0x40
	rpm, err = dev.FanRPM(3)
	if err != nil {
		t.Fatalf("FanRPM failed: %v", err)
	}
	if rpm != 0 {
		t.Errorf("fan3 spurious reading: rpm = %d, want 0", rpm)
	}
}

func TestFirmwareVersion(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	port.regs[RegFirmwareMajor] = 1
	port.regs[RegFirmwareMinor] = 4
	version, err := dev.FirmwareVersion()
	if err != nil {
		t.Fatalf("FirmwareVersion failed: %v", err)
	}
	if version != "1.04" {
		t.Errorf("version = %q, want \"1.04\"", version)
	}

	port.regs[RegFirmwareMajor] = 0
	port.regs[RegFirmwareMinor] = 0
	if _, err := dev.FirmwareVersion(); err == nil {
		t.Error("expected error for all-zero firmware reading")
	}
}

func TestSetFanControl(t *testing.T) {
	port := &simPort{}
	dev := NewDevice(port)

	if err := dev.SetFanControl(3, true); err != nil {
		t.Fatal(err)
	}
	if port.regs[0x25] != 0x31 {
		t.Errorf("mode register holds 0x%02X, want 0x31", port.regs[0x25])
	}

	if err := dev.SetFanControl(3, false); err != nil {
		t.Fatal(err)
	}
	if port.regs[0x25] != 0x30 {
		t.Errorf("mode register holds 0x%02X, want 0x30", port.regs[0x25])
	}
}
