// Package driversvc installs and starts the WinRing0 kernel driver service
// that backs the EC port session. On non-Windows builds it only reports that
// driver loading is unavailable.
package driversvc

// Manager controls the lifecycle of the port I/O kernel driver.
type Manager struct {
	driverPath string
}

// New returns a manager that looks for the driver binaries under driverPath.
func New(driverPath string) *Manager {
	return &Manager{driverPath: driverPath}
}
