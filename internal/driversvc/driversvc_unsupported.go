//go:build !windows

package driversvc

import (
	"fmt"
	"runtime"
)

// Loaded always reports false off Windows; there is no port I/O driver.
func (m *Manager) Loaded() bool { return false }

// InstallAndLoad fails: the kernel driver only exists for Windows.
func (m *Manager) InstallAndLoad() error {
	return fmt.Errorf("kernel driver loading is not supported on %s", runtime.GOOS)
}

// Remove is a no-op off Windows.
func (m *Manager) Remove() error { return nil }
