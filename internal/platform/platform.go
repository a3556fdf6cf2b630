package platform

import (
	"fmt"
	"runtime"
)

// ValidateSupport returns an error when the current OS cannot host the EC
// server. Port I/O through WinRing0 only exists on Windows; everywhere else
// the hardware session cannot be opened.
func ValidateSupport() error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("unsupported operating system: %s. EC register access requires the WinRing0 driver (windows only)", runtime.GOOS)
	}
	return nil
}
