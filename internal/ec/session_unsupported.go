//go:build !windows

package ec

import (
	"fmt"
	"runtime"
)

// OpenSession fails on platforms without the WinRing0 port I/O driver.
func OpenSession() (Port, error) {
	return nil, fmt.Errorf("EC port access is not supported on %s", runtime.GOOS)
}
