// Package protocol implements the DLTS wire protocol, version 190425.
//
// Every command starts with a fixed 3-byte ASCII header: a command class
// byte (set/get/action) followed by subject bytes. Set commands carry a
// big-endian uint16 payload after the header; get and action commands are
// header-only. Responses start with a 3-byte ASCII header which is one of
// "ack" (no payload), "err" (followed by a CRLF-terminated message line)
// or "dat" (followed by a payload whose length the caller knows from the
// command semantics).
package protocol

// Response headers and framing constants.
const (
	CommandHeaderLength  = 3
	ResponseHeaderLength = 3

	ResponseAcknowledge = "ack"
	ResponseError       = "err"
	ResponseData        = "dat"

	LineTerminator = "\r\n"

	// Payload length of the autofocus action response.
	AutofocusResponseLength = 10
)

// Command classes.
const (
	classSet    = "s"
	classGet    = "g"
	classAction = "a"
)

// Command subjects.
const (
	subjectPosition     = "p"
	subjectStepSize     = "s"
	subjectDelay        = "d"
	subjectBoundaryLow  = "l"
	subjectBoundaryHigh = "h"

	subjectLaser     = "l"
	subjectScan      = "s"
	subjectAutomatic = "a"
)

// Subject parameters.
const (
	axisX    = "x"
	axisY    = "y"
	axisZ    = "z"
	axisTilt = "t"

	// Intensity sweep axis of multi-intensity scans.
	axisIntensity = "i"

	laserIntensity      = "i"
	laserMinIntensity   = "e"
	laserMaxIntensity   = "g"
	laserPulseIntensity = "p"
	laserPulseFrequency = "f"

	delayLatchupTurnOffMicro = "u"
	delayLatchupTurnOffMilli = "m"

	delayPixel = "p"
	delayLine  = "l"

	scanPoint     = "p"
	scanLine      = "l"
	scanArea      = "a"
	scanLatchup   = "u"
	scanCurrent   = "c"
	scanParallel  = "m"
	scanMultiScan = "n"
	scanAutofocus = "J"
	scanStop      = "s"

	laserPulse     = "p"
	automaticFocus = "f"
)

// CommandHeader returns the 3-byte ASCII header of an encoded command.
// Shorter commands are returned whole.
func CommandHeader(command []byte) string {
	if len(command) > CommandHeaderLength {
		command = command[:CommandHeaderLength]
	}
	return string(command)
}
