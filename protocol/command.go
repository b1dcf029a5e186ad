package protocol

import (
	"encoding/binary"
	"fmt"
)

// OverflowError reports a value which does not fit the protocol's uint16
// payload encoding.
type OverflowError struct {
	Value int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("cannot encode %d as uint16", e.Value)
}

func encodeUint16(value int) ([]byte, error) {
	if value < 0 || value > 0xffff {
		return nil, &OverflowError{Value: value}
	}
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(value))
	return payload, nil
}

// SetUInt16 builds a set command for the given subject with a big-endian
// uint16 payload.
func SetUInt16(subject string, value int) ([]byte, error) {
	payload, err := encodeUint16(value)
	if err != nil {
		return nil, err
	}
	return append([]byte(classSet+subject), payload...), nil
}

// GetUInt16 builds a get command for the given subject.
func GetUInt16(subject string) []byte {
	return []byte(classGet + subject)
}

// Action builds an action command for the given subject.
func Action(subject string) []byte {
	return []byte(classAction + subject)
}

// Axis position commands.

func SetPosition(axis string, position int) ([]byte, error) {
	return SetUInt16(subjectPosition+axis, position)
}

func SetXPosition(position int) ([]byte, error) { return SetPosition(axisX, position) }
func SetYPosition(position int) ([]byte, error) { return SetPosition(axisY, position) }
func SetZPosition(position int) ([]byte, error) { return SetPosition(axisZ, position) }
func SetXTilt(position int) ([]byte, error)     { return SetPosition(axisTilt, position) }

func GetPosition(axis string) []byte { return GetUInt16(subjectPosition + axis) }

func GetXPosition() []byte { return GetPosition(axisX) }
func GetYPosition() []byte { return GetPosition(axisY) }
func GetZPosition() []byte { return GetPosition(axisZ) }
func GetXTilt() []byte     { return GetPosition(axisTilt) }

// Scan boundary commands. Boundaries are addressed axis-first, so the
// subject is e.g. "xl" for the low x boundary.

func SetScanAxisBoundary(axis, boundaryEnd string, boundary int) ([]byte, error) {
	return SetUInt16(axis+boundaryEnd, boundary)
}

func SetScanXLowBoundary(boundary int) ([]byte, error) {
	return SetScanAxisBoundary(axisX, subjectBoundaryLow, boundary)
}

func SetScanXHighBoundary(boundary int) ([]byte, error) {
	return SetScanAxisBoundary(axisX, subjectBoundaryHigh, boundary)
}

func SetScanYLowBoundary(boundary int) ([]byte, error) {
	return SetScanAxisBoundary(axisY, subjectBoundaryLow, boundary)
}

func SetScanYHighBoundary(boundary int) ([]byte, error) {
	return SetScanAxisBoundary(axisY, subjectBoundaryHigh, boundary)
}

// Step size commands.

func SetScanAxisStepSize(axis string, stepSize int) ([]byte, error) {
	return SetUInt16(subjectStepSize+axis, stepSize)
}

func SetScanXStepSize(stepSize int) ([]byte, error) { return SetScanAxisStepSize(axisX, stepSize) }
func SetScanYStepSize(stepSize int) ([]byte, error) { return SetScanAxisStepSize(axisY, stepSize) }

// SetLaserIntensityStep sets the laser intensity step of a multi-intensity
// sweep. The firmware treats the intensity sweep as a third scan axis.
func SetLaserIntensityStep(stepSize int) ([]byte, error) {
	return SetScanAxisStepSize(axisIntensity, stepSize)
}

// Delay commands. The pixel delay applies per step in x, the line delay
// per step in y.

func SetDelay(delayParameter string, delay int) ([]byte, error) {
	return SetUInt16(subjectDelay+delayParameter, delay)
}

func SetScanXDelay(delay int) ([]byte, error) { return SetDelay(delayPixel, delay) }
func SetScanYDelay(delay int) ([]byte, error) { return SetDelay(delayLine, delay) }

func SetLatchupTurnOffDelayMilliseconds(delay int) ([]byte, error) {
	return SetDelay(delayLatchupTurnOffMilli, delay)
}

func SetLatchupTurnOffDelayMicroseconds(delay int) ([]byte, error) {
	return SetDelay(delayLatchupTurnOffMicro, delay)
}

// Laser parameter commands.

func SetLaserParameter(laserParameter string, value int) ([]byte, error) {
	return SetUInt16(subjectLaser+laserParameter, value)
}

func SetLaserIntensity(intensity int) ([]byte, error) {
	return SetLaserParameter(laserIntensity, intensity)
}

func SetLaserMinIntensity(intensity int) ([]byte, error) {
	return SetLaserParameter(laserMinIntensity, intensity)
}

func SetLaserMaxIntensity(intensity int) ([]byte, error) {
	return SetLaserParameter(laserMaxIntensity, intensity)
}

func SetLaserPulseIntensity(intensity int) ([]byte, error) {
	return SetLaserParameter(laserPulseIntensity, intensity)
}

func SetLaserPulseFrequency(frequency int) ([]byte, error) {
	return SetLaserParameter(laserPulseFrequency, frequency)
}

func GetLaserParameter(laserParameter string) []byte {
	return GetUInt16(subjectLaser + laserParameter)
}

func GetLaserIntensity() []byte      { return GetLaserParameter(laserIntensity) }
func GetLaserPulseIntensity() []byte { return GetLaserParameter(laserPulseIntensity) }
func GetLaserPulseFrequency() []byte { return GetLaserParameter(laserPulseFrequency) }

// Action commands.

func ActionScan(scanParameter string) []byte { return Action(subjectScan + scanParameter) }

func ActionScanPoint() []byte     { return ActionScan(scanPoint) }
func ActionScanLine() []byte      { return ActionScan(scanLine) }
func ActionScanArea() []byte      { return ActionScan(scanArea) }
func ActionScanLatchup() []byte   { return ActionScan(scanLatchup) }
func ActionScanCurrent() []byte   { return ActionScan(scanCurrent) }
func ActionScanParallel() []byte  { return ActionScan(scanParallel) }
func ActionScanMultiScan() []byte { return ActionScan(scanMultiScan) }
func ActionScanAutofocus() []byte { return ActionScan(scanAutofocus) }
func ActionScanStop() []byte      { return ActionScan(scanStop) }

func ActionAutomatic(automaticParameter string) []byte {
	return Action(subjectAutomatic + automaticParameter)
}

func ActionAutofocus() []byte { return ActionAutomatic(automaticFocus) }

func ActionLaser(laserParameter string) []byte { return Action(subjectLaser + laserParameter) }

func ActionLaserPulse() []byte { return ActionLaser(laserPulse) }
