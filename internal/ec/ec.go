// Package ec talks to the embedded controller over its command/data port
// pair. All register operations go through Device, which holds the single
// open hardware session and serializes every transaction.
package ec

import (
	"fmt"
	"sync"
)

// EC port-level protocol constants. The EC exposes a command port and a data
// port; a register access is a multi-step exchange gated by the status bits.
const (
	commandPort uint16 = 0x66
	dataPort    uint16 = 0x62

	cmdReadRegister  byte = 0x80
	cmdWriteRegister byte = 0x81

	statusOutputBufferFull byte = 0x01
	statusInputBufferFull  byte = 0x02

	// Bounded status polls per wait; the port round trip paces the loop.
	statusPolls = 500
	maxRetries  = 5
)

// Register addresses, from the vendor's Linux driver.
const (
	RegFirmwareMajor byte = 0x00
	RegFirmwareMinor byte = 0x01
	RegAPUPowerMode  byte = 0x31
	RegAPUTemp       byte = 0x70
)

// Port is raw byte-wide I/O port access, normally backed by the WinRing0
// kernel driver session.
type Port interface {
	InB(port uint16) (byte, error)
	OutB(port uint16, value byte) error
	Close() error
}

// Error reports a failed exchange with the embedded controller.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ec: %s failed", e.Op)
	}
	return fmt.Sprintf("ec: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func ecErr(op string, err error) *Error { return &Error{Op: op, Err: err} }

// Device owns the open hardware channel. The mutex spans the complete
// command/address/data exchange of a register operation, including status
// waits and retries, so transactions from different goroutines never
// interleave on the bus.
type Device struct {
	mu   sync.Mutex
	port Port
}

// NewDevice wraps an open port session. The session is owned by the Device
// from this point on and is released by Close.
func NewDevice(port Port) *Device {
	return &Device{port: port}
}

// Close releases the underlying hardware session.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}

// ReadRegister reads one EC register. Blocks until the bus is free.
func (d *Device) ReadRegister(register byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		value, err := d.tryRead(register)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return 0, ecErr(fmt.Sprintf("read register 0x%02X", register), lastErr)
}

// WriteRegister writes one EC register. Blocks until the bus is free.
func (d *Device) WriteRegister(register, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := d.tryWrite(register, value)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return ecErr(fmt.Sprintf("write register 0x%02X", register), lastErr)
}

func (d *Device) tryRead(register byte) (byte, error) {
	if !d.waitInputClear() {
		return 0, fmt.Errorf("timeout waiting for input buffer before command")
	}
	if err := d.port.OutB(commandPort, cmdReadRegister); err != nil {
		return 0, err
	}
	if !d.waitInputClear() {
		return 0, fmt.Errorf("timeout waiting for input buffer after command")
	}
	if err := d.port.OutB(dataPort, register); err != nil {
		return 0, err
	}
	if !d.waitInputClear() || !d.waitOutputFull() {
		return 0, fmt.Errorf("timeout waiting for data")
	}
	return d.port.InB(dataPort)
}

func (d *Device) tryWrite(register, value byte) error {
	if !d.waitInputClear() {
		return fmt.Errorf("timeout waiting for input buffer before command")
	}
	if err := d.port.OutB(commandPort, cmdWriteRegister); err != nil {
		return err
	}
	if !d.waitInputClear() {
		return fmt.Errorf("timeout waiting for input buffer after command")
	}
	if err := d.port.OutB(dataPort, register); err != nil {
		return err
	}
	if !d.waitInputClear() {
		return fmt.Errorf("timeout waiting for input buffer after register")
	}
	return d.port.OutB(dataPort, value)
}

// waitInputClear polls until the EC is ready to accept a command or data
// byte (input buffer full bit clear).
func (d *Device) waitInputClear() bool {
	for i := 0; i < statusPolls; i++ {
		status, err := d.port.InB(commandPort)
		if err != nil {
			return false
		}
		if status&statusInputBufferFull == 0 {
			return true
		}
	}
	return false
}

// waitOutputFull polls until the EC has a data byte ready for us (output
// buffer full bit set).
func (d *Device) waitOutputFull() bool {
	for i := 0; i < statusPolls; i++ {
		status, err := d.port.InB(commandPort)
		if err != nil {
			return false
		}
		if status&statusOutputBufferFull != 0 {
			return true
		}
	}
	return false
}
