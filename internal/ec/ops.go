package ec

import "fmt"

// Per-fan register assignments. The fan level register sits directly after
// the mode register.
var fanModeRegs = map[int]byte{1: 0x21, 2: 0x23, 3: 0x25}

var fanSpeedRegs = map[int][2]byte{
	1: {0x35, 0x36},
	2: {0x37, 0x38},
	3: {0x28, 0x29},
}

// Mode/level writes carry a per-fan base nibble in the high bits.
var fanBase = map[int]byte{1: 0x10, 2: 0x20, 3: 0x30}

// Fan level encoding used by the EC firmware. Level 0 is off; levels 1-5 map
// to 20%..100% duty.
var levelToNibble = [6]byte{0x7, 0x2, 0x3, 0x4, 0x5, 0x6}

func nibbleToLevel(n byte) int {
	for level, nibble := range levelToNibble {
		if nibble == n&0xF {
			return level
		}
	}
	return 0
}

// ValidFan reports whether id addresses one of the three fans.
func ValidFan(id int) bool { return id >= 1 && id <= 3 }

// FirmwareVersion reads the EC firmware revision and formats it as
// "major.minor" with a zero-padded minor. All-zero and all-FF readings mean
// the controller is not responding meaningfully.
func (d *Device) FirmwareVersion() (string, error) {
	major, err := d.ReadRegister(RegFirmwareMajor)
	if err != nil {
		return "", err
	}
	minor, err := d.ReadRegister(RegFirmwareMinor)
	if err != nil {
		return "", err
	}
	if (major == 0 && minor == 0) || (major == 0xFF && minor == 0xFF) {
		return "", ecErr("firmware version", fmt.Errorf("invalid reading %d.%d", major, minor))
	}
	return fmt.Sprintf("%d.%02d", major, minor), nil
}

// Temperature reads the APU temperature in degrees Celsius.
func (d *Device) Temperature() (byte, error) {
	return d.ReadRegister(RegAPUTemp)
}

// FanRPM reads the rotation speed of a fan. Fan3 reports a bogus 8000 RPM
// while spinning down; that reading is reported as 0.
func (d *Device) FanRPM(fan int) (uint16, error) {
	regs, ok := fanSpeedRegs[fan]
	if !ok {
		return 0, ecErr("fan rpm", fmt.Errorf("invalid fan id %d", fan))
	}
	high, err := d.ReadRegister(regs[0])
	if err != nil {
		return 0, err
	}
	low, err := d.ReadRegister(regs[1])
	if err != nil {
		return 0, err
	}
	rpm := uint16(high)<<8 | uint16(low)
	if fan == 3 && rpm == 8000 {
		rpm = 0
	}
	return rpm, nil
}

// SetFanControl switches a fan between firmware control (auto) and host
// control. Fixed and curve operation both run with host control engaged.
func (d *Device) SetFanControl(fan int, host bool) error {
	modeReg, ok := fanModeRegs[fan]
	if !ok {
		return ecErr("fan control", fmt.Errorf("invalid fan id %d", fan))
	}
	value := fanBase[fan]
	if host {
		value++
	}
	return d.WriteRegister(modeReg, value)
}

// HostControlled reports whether a fan is under host control rather than EC
// firmware control.
func (d *Device) HostControlled(fan int) (bool, error) {
	modeReg, ok := fanModeRegs[fan]
	if !ok {
		return false, ecErr("fan control", fmt.Errorf("invalid fan id %d", fan))
	}
	value, err := d.ReadRegister(modeReg)
	if err != nil {
		return false, err
	}
	return value == fanBase[fan]+1, nil
}

// FanLevel reads the current level (0-5) of a fan from its level register.
func (d *Device) FanLevel(fan int) (int, error) {
	modeReg, ok := fanModeRegs[fan]
	if !ok {
		return 0, ecErr("fan level", fmt.Errorf("invalid fan id %d", fan))
	}
	value, err := d.ReadRegister(modeReg + 1)
	if err != nil {
		return 0, err
	}
	return nibbleToLevel(value), nil
}

// SetFanLevel applies a level (0-5) to a fan.
func (d *Device) SetFanLevel(fan, level int) error {
	modeReg, ok := fanModeRegs[fan]
	if !ok {
		return ecErr("fan level", fmt.Errorf("invalid fan id %d", fan))
	}
	if level < 0 || level > 5 {
		return ecErr("fan level", fmt.Errorf("level %d out of range", level))
	}
	return d.WriteRegister(modeReg+1, fanBase[fan]+levelToNibble[level])
}
