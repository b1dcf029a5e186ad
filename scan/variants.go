package scan

import (
	"dltsctl/dlts"
	"dltsctl/protocol"
)

// Raw point lengths of the scan variants.
const (
	reflectionPointSize     = 1
	latchupPointSize        = 2
	currentPointSize        = 6
	parallelPointSize       = 6
	multiIntensityPointSize = 8
)

// Channel image names. Several variants report the same physical
// channel under the same name.
const (
	imageNameReflectionMicroscope = "Laser Scanning Microscope"
	imageNameLatchups             = "Single Event Latch-Ups"
	imageNameLatchupCurrent       = "Latch-Up Current Image"
	imageNameReflection           = "Reflection Scan Image"
	imageNameBaseCurrent          = "Base Current Image"
	imageNameVoltage              = "Voltage Scan Image"
	imageNameLaserIntensity       = "Laser Intensity"
)

// abortSweep performs the abort handshake shared by all variants: the
// stop action is sent while point payloads may still be in flight, so
// the acknowledgement has to be skipped to rather than read directly.
func abortSweep(conn *dlts.Connection) error {
	return conn.CommandSkipUntilResponse(protocol.ActionScanStop(), protocol.ResponseAcknowledge)
}

// readPoint reads one fixed-length point payload off the device.
func readPoint(conn *dlts.Connection, size int) (DataPoint, error) {
	raw, err := conn.Read(size, true)
	if err != nil {
		return nil, err
	}
	return DataPoint(raw), nil
}

// runAutofocus triggers the firmware autofocus and discards its fixed
// focus report.
func runAutofocus(conn *dlts.Connection) error {
	_, err := conn.CommandDataRetrieval(protocol.ActionScanAutofocus(), protocol.AutofocusResponseLength)
	return err
}

// Reflection sweeps the area once and records the laser reflection per
// position. This is the plain laser microscope mode.
type Reflection struct{}

// NewReflection creates the reflection scan variant.
func NewReflection() *Reflection { return &Reflection{} }

func (*Reflection) Name() string { return "Laser Microscope Scan" }

func (*Reflection) OnScanStart(conn *dlts.Connection, _ *Scan) error {
	return conn.CommandScanStart(protocol.ActionScanArea())
}

func (*Reflection) OnScanAbort(conn *dlts.Connection) error {
	return abortSweep(conn)
}

func (*Reflection) OnReceiveDataPoint(conn *dlts.Connection) (DataPoint, error) {
	return readPoint(conn, reflectionPointSize)
}

func (*Reflection) CreateImages(points []DataPoint, s *Scan) []*Image {
	meta := s.imageMeta()
	return []*Image{
		newImage(imageNameReflectionMicroscope, points, meta, func(p DataPoint) int {
			return p.tailUint(1, 0)
		}),
	}
}

// Latchup sweeps the area and records the latch-up current per
// position. After each detected latch-up the firmware cuts the power
// supply of the device under test for the configured turn-off delay.
type Latchup struct {
	turnOffDelayMs int
}

// NewLatchup creates the latch-up scan variant with the given power
// turn-off delay in milliseconds.
func NewLatchup(turnOffDelayMs int) *Latchup {
	return &Latchup{turnOffDelayMs: turnOffDelayMs}
}

func (*Latchup) Name() string { return "Single Event Latch-Up Scan" }

// TurnOffDelayMilliseconds returns the configured power turn-off delay.
func (v *Latchup) TurnOffDelayMilliseconds() int { return v.turnOffDelayMs }

func (v *Latchup) OnScanStart(conn *dlts.Connection, _ *Scan) error {
	command, err := protocol.SetLatchupTurnOffDelayMilliseconds(v.turnOffDelayMs)
	if err != nil {
		return err
	}
	if err := conn.CommandSet(command); err != nil {
		return err
	}
	return conn.CommandScanStart(protocol.ActionScanLatchup())
}

func (*Latchup) OnScanAbort(conn *dlts.Connection) error {
	return abortSweep(conn)
}

func (*Latchup) OnReceiveDataPoint(conn *dlts.Connection) (DataPoint, error) {
	return readPoint(conn, latchupPointSize)
}

func (*Latchup) CreateImages(points []DataPoint, s *Scan) []*Image {
	meta := s.imageMeta()
	return []*Image{
		newImage(imageNameLatchups, points, meta, func(p DataPoint) int {
			return p.tailUint(2, 0)
		}),
	}
}

// Current sweeps the area and records latch-up current, reflection and
// base current per position in a single pass.
type Current struct{}

// NewCurrent creates the current scan variant.
func NewCurrent() *Current { return &Current{} }

func (*Current) Name() string { return "Current Scan" }

func (*Current) OnScanStart(conn *dlts.Connection, _ *Scan) error {
	return conn.CommandScanStart(protocol.ActionScanCurrent())
}

func (*Current) OnScanAbort(conn *dlts.Connection) error {
	return abortSweep(conn)
}

func (*Current) OnReceiveDataPoint(conn *dlts.Connection) (DataPoint, error) {
	return readPoint(conn, currentPointSize)
}

func (*Current) CreateImages(points []DataPoint, s *Scan) []*Image {
	meta := s.imageMeta()
	return []*Image{
		newImage(imageNameLatchupCurrent, points, meta, func(p DataPoint) int {
			return p.tailUint(4, 2)
		}),
		newImage(imageNameReflection, points, meta, func(p DataPoint) int {
			return p.tailUint(6, 4)
		}),
		newImage(imageNameBaseCurrent, points, meta, func(p DataPoint) int {
			return p.tailUint(2, 0)
		}),
	}
}

// Parallel sweeps the area and records latch-up current, reflection
// and latch-up voltage per position in a single pass. It supports the
// firmware autofocus.
type Parallel struct{}

// NewParallel creates the parallel scan variant.
func NewParallel() *Parallel { return &Parallel{} }

func (*Parallel) Name() string { return "Parallel Scan" }

func (*Parallel) OnScanStart(conn *dlts.Connection, _ *Scan) error {
	return conn.CommandScanStart(protocol.ActionScanParallel())
}

func (*Parallel) AutoFocus(conn *dlts.Connection) error {
	return runAutofocus(conn)
}

func (*Parallel) OnScanAbort(conn *dlts.Connection) error {
	return abortSweep(conn)
}

func (*Parallel) OnReceiveDataPoint(conn *dlts.Connection) (DataPoint, error) {
	return readPoint(conn, parallelPointSize)
}

func (*Parallel) CreateImages(points []DataPoint, s *Scan) []*Image {
	meta := s.imageMeta()
	return []*Image{
		newImage(imageNameLatchupCurrent, points, meta, func(p DataPoint) int {
			return p.tailUint(4, 2)
		}),
		newImage(imageNameReflection, points, meta, func(p DataPoint) int {
			return p.tailUint(6, 4)
		}),
		newImage(imageNameVoltage, points, meta, func(p DataPoint) int {
			return p.tailUint(2, 0)
		}),
	}
}

// MultiIntensity sweeps the area once per laser intensity step between
// the configured minimum and maximum and records reflection, applied
// laser intensity, latch-up current and latch-up voltage per reading.
// It supports the firmware autofocus and the laser intensity sweep
// parameters.
type MultiIntensity struct {
	turnOffDelayMs int
}

// NewMultiIntensity creates the multi intensity scan variant with the
// given power turn-off delay in milliseconds.
func NewMultiIntensity(turnOffDelayMs int) *MultiIntensity {
	return &MultiIntensity{turnOffDelayMs: turnOffDelayMs}
}

func (*MultiIntensity) Name() string { return "Multi Intensity Scan" }

// TurnOffDelayMilliseconds returns the configured power turn-off delay.
func (v *MultiIntensity) TurnOffDelayMilliseconds() int { return v.turnOffDelayMs }

func (v *MultiIntensity) OnScanStart(conn *dlts.Connection, _ *Scan) error {
	command, err := protocol.SetLatchupTurnOffDelayMilliseconds(v.turnOffDelayMs)
	if err != nil {
		return err
	}
	if err := conn.CommandSet(command); err != nil {
		return err
	}
	return conn.CommandScanStart(protocol.ActionScanMultiScan())
}

func (*MultiIntensity) AutoFocus(conn *dlts.Connection) error {
	return runAutofocus(conn)
}

func (*MultiIntensity) SetLaserMinIntensity(conn *dlts.Connection, value int) error {
	command, err := protocol.SetLaserMinIntensity(value)
	if err != nil {
		return err
	}
	return conn.CommandSet(command)
}

func (*MultiIntensity) SetLaserMaxIntensity(conn *dlts.Connection, value int) error {
	command, err := protocol.SetLaserMaxIntensity(value)
	if err != nil {
		return err
	}
	return conn.CommandSet(command)
}

func (*MultiIntensity) SetLaserStepIntensity(conn *dlts.Connection, value int) error {
	command, err := protocol.SetLaserIntensityStep(value)
	if err != nil {
		return err
	}
	return conn.CommandSet(command)
}

func (*MultiIntensity) OnScanAbort(conn *dlts.Connection) error {
	return abortSweep(conn)
}

func (*MultiIntensity) OnReceiveDataPoint(conn *dlts.Connection) (DataPoint, error) {
	return readPoint(conn, multiIntensityPointSize)
}

func (*MultiIntensity) CreateImages(points []DataPoint, s *Scan) []*Image {
	meta := s.imageMeta()
	return []*Image{
		newImage(imageNameLatchupCurrent, points, meta, func(p DataPoint) int {
			return p.tailUint(4, 2)
		}),
		newImage(imageNameLaserIntensity, points, meta, func(p DataPoint) int {
			return p.tailUint(6, 4)
		}),
		newImage(imageNameReflection, points, meta, func(p DataPoint) int {
			return p.tailUint(8, 6)
		}),
		newImage(imageNameVoltage, points, meta, func(p DataPoint) int {
			return p.tailUint(2, 0)
		}),
	}
}
