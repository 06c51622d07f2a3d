// Package srf01 provides a Go library for communicating with Devantech SRF01
// ultrasonic rangefinders over a shared half-duplex serial bus.
package srf01

import "fmt"

// Command codes per the SRF01 technical documentation.
const (
	CmdRangeInches       byte = 0x50 // Start ranging in inches, result via GetRange
	CmdRangeCM           byte = 0x51 // Start ranging in centimeters, result via GetRange
	CmdRangeInchesReply  byte = 0x53 // Range in inches, sensor replies after ~70ms
	CmdRangeCMReply      byte = 0x54 // Range in centimeters, sensor replies after ~70ms
	CmdFakeRangeInches   byte = 0x56 // Ranging without burst, inches
	CmdFakeRangeCM       byte = 0x57 // Ranging without burst, centimeters
	CmdFakeRangeInReply  byte = 0x59 // Fake ranging with reply, inches
	CmdFakeRangeCMReply  byte = 0x5A // Fake ranging with reply, centimeters
	CmdBurst             byte = 0x5C // Transmit an 8-cycle burst, no ranging
	CmdSoftwareVersion   byte = 0x5D // Reply: 1 byte
	CmdGetRange          byte = 0x5E // Reply: 2 bytes, last measured range
	CmdStatus            byte = 0x5F // Reply: 1 byte, mode/lock flags
	CmdSleep             byte = 0x60 // Enter low-power sleep
	CmdUnlock            byte = 0x61 // Unlock (advanced mode transducer check)
	CmdSetAdvancedMode   byte = 0x62 // Enable ranging down to zero
	CmdClearAdvancedMode byte = 0x63 // Restore standard mode (~18cm floor)
	CmdBaud19200         byte = 0x64 // Switch sensor to 19200 baud
	CmdBaud38400         byte = 0x65 // Switch sensor to 38400 baud
	CmdWakeup            byte = 0xFF // Wake from sleep
)

// Address-change unlock sequence. The three magic commands must be written
// back to back, followed by the new address as the fourth command.
const (
	cmdChangeAddr1 byte = 0xA0
	cmdChangeAddr2 byte = 0xAA
	cmdChangeAddr3 byte = 0xA5
)

// Address limits. Address 0 broadcasts to every sensor on the bus and is
// valid only for commands that never produce a reply.
const (
	BroadcastAddr = 0
	MinAddr       = 1
	MaxAddr       = 16
)

// NoReading is returned by blocking reads when the sensor did not respond
// within the timeout window. Version, status and range values are all
// non-negative, so it is distinguishable from any legitimate reading.
const NoReading = -1

// Unit selects the measurement unit of a ranging command.
type Unit int

const (
	Centimeters Unit = iota
	Inches
)

// ParseUnit converts the wire-level unit names "cm" and "in".
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "cm":
		return Centimeters, nil
	case "in":
		return Inches, nil
	}
	return Centimeters, fmt.Errorf("%w: %q", ErrInvalidUnit, s)
}

func (u Unit) String() string {
	if u == Inches {
		return "in"
	}
	return "cm"
}

func (u Unit) valid() bool {
	return u == Centimeters || u == Inches
}

// rangeCommand selects the ranging opcode for a unit, the blocking (reply)
// variant, and the fake (burst-less) variant.
func rangeCommand(unit Unit, reply, fake bool) byte {
	switch {
	case fake && reply:
		if unit == Inches {
			return CmdFakeRangeInReply
		}
		return CmdFakeRangeCMReply
	case fake:
		if unit == Inches {
			return CmdFakeRangeInches
		}
		return CmdFakeRangeCM
	case reply:
		if unit == Inches {
			return CmdRangeInchesReply
		}
		return CmdRangeCMReply
	default:
		if unit == Inches {
			return CmdRangeInches
		}
		return CmdRangeCM
	}
}

// Command builds the 2-byte wire frame for a command. Pure function over
// pre-validated inputs.
func Command(addr, cmd byte) []byte {
	return []byte{addr, cmd}
}

// DecodeRange reconstructs a range value from the bytes the sensor returned.
// The reply is high byte first; a single byte is taken as-is.
func DecodeRange(data []byte) int {
	switch len(data) {
	case 0:
		return NoReading
	case 1:
		return int(data[0])
	default:
		return int(data[0])<<8 | int(data[1])
	}
}

// Status is the 1-byte reply to CmdStatus.
type Status int

// Status flags.
const (
	statusLocked   = 1 << 0
	statusAdvanced = 1 << 1
)

// Locked reports whether the transducer check passed.
func (s Status) Locked() bool {
	return s >= 0 && s&statusLocked != 0
}

// Advanced reports whether the sensor is in advanced mode. A locked sensor
// in advanced mode can measure all the way down to zero.
func (s Status) Advanced() bool {
	return s >= 0 && s&statusAdvanced != 0
}

func (s Status) String() string {
	if s < 0 {
		return "unknown"
	}
	mode := "standard"
	if s.Advanced() {
		mode = "advanced"
	}
	lock := "unlocked"
	if s.Locked() {
		lock = "locked"
	}
	return fmt.Sprintf("%s mode, %s", mode, lock)
}
