// Package config owns the persisted server configuration: connection
// settings, per-fan control state and the active power mode. The Store is
// the only writer of the config file; every state-changing operation in the
// server routes through Store.Update.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// FanMode selects how a fan's level is driven.
type FanMode string

const (
	ModeAuto  FanMode = "auto"
	ModeFixed FanMode = "fixed"
	ModeCurve FanMode = "curve"
)

// Valid reports whether m is one of the three known modes.
func (m FanMode) Valid() bool {
	return m == ModeAuto || m == ModeFixed || m == ModeCurve
}

// PowerMode is the APU power preset.
type PowerMode string

const (
	PowerBalanced    PowerMode = "balanced"
	PowerPerformance PowerMode = "performance"
	PowerQuiet       PowerMode = "quiet"
)

// Valid reports whether m is one of the three known presets.
func (m PowerMode) Valid() bool {
	return m == PowerBalanced || m == PowerPerformance || m == PowerQuiet
}

// Curve is a 5-entry temperature threshold array, one threshold per level
// transition.
type Curve [5]uint8

// FanConfig is the persisted control state of one fan.
type FanConfig struct {
	Mode          FanMode `json:"mode"`
	Level         int     `json:"level"`
	RampupCurve   Curve   `json:"rampup_curve"`
	RampdownCurve Curve   `json:"rampdown_curve"`
}

// Config is the unit of persistence. It is written out as a whole object on
// every mutation.
type Config struct {
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	LogPath    string    `json:"log_path"`
	DriverPath string    `json:"driver_path"`
	PowerMode  PowerMode `json:"apu_power_mode"`
	Fan1       FanConfig `json:"fan1"`
	Fan2       FanConfig `json:"fan2"`
	Fan3       FanConfig `json:"fan3"`
}

// Fan returns the state record for fan id 1..3, or nil for any other id.
func (c *Config) Fan(id int) *FanConfig {
	switch id {
	case 1:
		return &c.Fan1
	case 2:
		return &c.Fan2
	case 3:
		return &c.Fan3
	}
	return nil
}

// BaseDir is where the config file, log file and driver binaries live by
// default.
func BaseDir() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SYSTEMDRIVE")
		if drive == "" {
			drive = "C:"
		}
		return filepath.Join(drive+string(filepath.Separator), "ProgramData", "ecserver")
	}
	return "/var/lib/ecserver"
}

// DefaultPath is the config file location used when no -config flag is given.
func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.json")
}

// Default returns the documented default configuration. Fan3 sits over the
// SSD and runs a lower-threshold curve than the two APU fans.
func Default() Config {
	base := BaseDir()
	apuFan := FanConfig{
		Mode:          ModeAuto,
		Level:         0,
		RampupCurve:   Curve{60, 70, 83, 95, 97},
		RampdownCurve: Curve{40, 50, 80, 94, 96},
	}
	ssdFan := FanConfig{
		Mode:          ModeAuto,
		Level:         0,
		RampupCurve:   Curve{20, 60, 83, 95, 97},
		RampdownCurve: Curve{0, 50, 80, 94, 96},
	}
	return Config{
		Host:       "127.0.0.1",
		Port:       8395,
		LogPath:    filepath.Join(base, "server.log"),
		DriverPath: filepath.Join(base, "winring0"),
		PowerMode:  PowerBalanced,
		Fan1:       apuFan,
		Fan2:       apuFan,
		Fan3:       ssdFan,
	}
}
