//go:build windows

package ec

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WinRing0 device interface. The OLS ioctl codes are derived the same way
// the driver's own headers build them.
const (
	winRing0Device = `\\.\WinRing0_1_2_0`

	olsType = 40000

	ioctlReadIOPortByte  = olsType<<16 | 1<<14 | 0x833<<2
	ioctlWriteIOPortByte = olsType<<16 | 2<<14 | 0x836<<2
)

type writeIOPortInput struct {
	PortNumber uint32
	Value      byte
}

// winRing0Session is a Port backed by an open handle to the WinRing0 kernel
// driver.
type winRing0Session struct {
	handle windows.Handle
}

// OpenSession opens the WinRing0 device. There is exactly one session per
// process; it cannot be recovered if this fails.
func OpenSession() (Port, error) {
	name, err := windows.UTF16PtrFromString(winRing0Device)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("open WinRing0 driver: %w", err)
	}
	return &winRing0Session{handle: handle}, nil
}

func (s *winRing0Session) InB(port uint16) (byte, error) {
	in := uint32(port)
	var out uint32
	var returned uint32
	err := windows.DeviceIoControl(
		s.handle,
		ioctlReadIOPortByte,
		(*byte)(unsafe.Pointer(&in)),
		uint32(unsafe.Sizeof(in)),
		(*byte)(unsafe.Pointer(&out)),
		uint32(unsafe.Sizeof(out)),
		&returned,
		nil,
	)
	if err != nil {
		return 0, fmt.Errorf("read io port 0x%X: %w", port, err)
	}
	return byte(out & 0xFF), nil
}

func (s *winRing0Session) OutB(port uint16, value byte) error {
	in := writeIOPortInput{PortNumber: uint32(port), Value: value}
	var returned uint32
	err := windows.DeviceIoControl(
		s.handle,
		ioctlWriteIOPortByte,
		(*byte)(unsafe.Pointer(&in)),
		uint32(unsafe.Sizeof(in)),
		nil,
		0,
		&returned,
		nil,
	)
	if err != nil {
		return fmt.Errorf("write io port 0x%X: %w", port, err)
	}
	return nil
}

func (s *winRing0Session) Close() error {
	return windows.CloseHandle(s.handle)
}
