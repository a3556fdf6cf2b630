//go:build windows

package driversvc

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const (
	deviceName  = `\\.\WinRing0_1_2_0`
	serviceName = "WinRing0_1_2_0"
)

// Loaded reports whether the WinRing0 device can currently be opened.
func (m *Manager) Loaded() bool {
	name, err := windows.UTF16PtrFromString(deviceName)
	if err != nil {
		return false
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
		return false
	}
	windows.CloseHandle(handle)
	return true
}

// InstallAndLoad registers the kernel driver service and starts it. If a
// stale service registration blocks installation it is removed and the
// install retried once.
func (m *Manager) InstallAndLoad() error {
	driverFile := "WinRing0.sys"
	if runtime.GOARCH == "amd64" {
		driverFile = "WinRing0x64.sys"
	}

	driverPath := filepath.Join(m.driverPath, driverFile)
	if _, err := os.Stat(driverPath); err != nil {
		return fmt.Errorf("driver file not found: %s", driverPath)
	}
	absPath, err := filepath.Abs(driverPath)
	if err != nil {
		return fmt.Errorf("resolve driver path: %w", err)
	}

	if err := m.installAndStart(absPath); err == nil {
		time.Sleep(500 * time.Millisecond)
		return nil
	}

	// A leftover registration from a previous run can hold the name; drop it
	// and retry once.
	_ = m.Remove()
	time.Sleep(2 * time.Second)

	if err := m.installAndStart(absPath); err != nil {
		return fmt.Errorf("install driver after retry: %w", err)
	}
	time.Sleep(500 * time.Millisecond)
	return nil
}

func (m *Manager) installAndStart(driverPath string) error {
	scm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service control manager: %w", err)
	}
	defer scm.Disconnect()

	service, err := scm.CreateService(serviceName, driverPath, mgr.Config{
		ServiceType:  windows.SERVICE_KERNEL_DRIVER,
		StartType:    mgr.StartManual,
		ErrorControl: mgr.ErrorNormal,
		DisplayName:  serviceName,
	})
	if err != nil {
		// Already registered: open the existing service and just start it.
		service, err = scm.OpenService(serviceName)
		if err != nil {
			return fmt.Errorf("open driver service: %w", err)
		}
	}
	defer service.Close()

	if err := service.Start(); err != nil {
		if err != windows.ERROR_SERVICE_ALREADY_RUNNING {
			return fmt.Errorf("start driver service: %w", err)
		}
	}
	return nil
}

// Remove stops and deletes the driver service registration.
func (m *Manager) Remove() error {
	scm, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service control manager: %w", err)
	}
	defer scm.Disconnect()

	service, err := scm.OpenService(serviceName)
	if err != nil {
		// Not registered; nothing to remove.
		return nil
	}
	defer service.Close()

	_, _ = service.Control(svc.Stop)
	if err := service.Delete(); err != nil {
		return fmt.Errorf("delete driver service: %w", err)
	}
	return nil
}
