// Package scan implements the DLTS scan engine: bounded 2D area sweeps
// which stream per-point binary data off the device and periodically
// assemble the accumulated points into sample images.
package scan

import (
	"dltsctl/dlts"
	"dltsctl/protocol"
)

// AreaConfig is an immutable description of a rectangular sweep: the
// inclusive per-axis bounds, the step sizes and the per-step delays.
type AreaConfig struct {
	xLow, xHigh int
	yLow, yHigh int

	xStep, yStep int

	xDelayMs, yDelayMs int

	// Number of intensity levels swept per position by
	// multi-intensity scans.
	intensityMultiplier int
}

// NewAreaConfig builds a sweep over [xLow, xHigh] x [yLow, yHigh] with
// the given step sizes and per-step delays in milliseconds.
func NewAreaConfig(xLow, xHigh, yLow, yHigh, xStep, yStep, xDelayMs, yDelayMs int) AreaConfig {
	return AreaConfig{
		xLow: xLow, xHigh: xHigh,
		yLow: yLow, yHigh: yHigh,
		xStep: xStep, yStep: yStep,
		xDelayMs: xDelayMs, yDelayMs: yDelayMs,
		intensityMultiplier: 1,
	}
}

// NewPointAreaConfig builds a single-point sweep at (x, y).
func NewPointAreaConfig(x, y int) AreaConfig {
	return NewAreaConfig(x, x, y, y, 1, 1, 0, 0)
}

// NewXLineAreaConfig builds a horizontal line sweep at height y.
func NewXLineAreaConfig(xLow, xHigh, y, stepSize, stepDelayMs int) AreaConfig {
	return NewAreaConfig(xLow, xHigh, y, y, stepSize, 1, stepDelayMs, 0)
}

// NewYLineAreaConfig builds a vertical line sweep at column x.
func NewYLineAreaConfig(x, yLow, yHigh, stepSize, stepDelayMs int) AreaConfig {
	return NewAreaConfig(x, x, yLow, yHigh, 1, stepSize, 0, stepDelayMs)
}

// WithIntensityMultiplier returns a copy of the configuration with the
// given number of intensity levels per position.
func (c AreaConfig) WithIntensityMultiplier(multiplier int) AreaConfig {
	if multiplier < 1 {
		multiplier = 1
	}
	c.intensityMultiplier = multiplier
	return c
}

func (c AreaConfig) XBounds() (low, high int) { return c.xLow, c.xHigh }
func (c AreaConfig) YBounds() (low, high int) { return c.yLow, c.yHigh }

// MinPosition returns the lowest position of the sweep, its starting
// corner.
func (c AreaConfig) MinPosition() (x, y int) { return c.xLow, c.yLow }

// MaxPosition returns the highest position of the sweep.
func (c AreaConfig) MaxPosition() (x, y int) { return c.xHigh, c.yHigh }

func (c AreaConfig) StepSize() (x, y int) { return c.xStep, c.yStep }

func (c AreaConfig) StepDelayMs() (x, y int) { return c.xDelayMs, c.yDelayMs }

func (c AreaConfig) IntensityMultiplier() int { return c.intensityMultiplier }

// IsPointScan reports whether the sweep covers a single position.
func (c AreaConfig) IsPointScan() bool {
	return c.xLow == c.xHigh && c.yLow == c.yHigh
}

// IsLineScan reports whether the sweep covers a single line.
func (c AreaConfig) IsLineScan() bool {
	return (c.xLow == c.xHigh) != (c.yLow == c.yHigh)
}

// IsAreaScan reports whether the sweep covers a rectangular area.
func (c AreaConfig) IsAreaScan() bool {
	return c.xLow != c.xHigh && c.yLow != c.yHigh
}

// PositionsCountInX returns the number of sweep positions along x.
// The count floors the distance/step quotient; the device moves in
// whole steps from the low bound and never passes the high bound.
func (c AreaConfig) PositionsCountInX() int {
	return (c.xHigh-c.xLow)/c.xStep + 1
}

// PositionsCountInY returns the number of sweep positions along y.
func (c AreaConfig) PositionsCountInY() int {
	return (c.yHigh-c.yLow)/c.yStep + 1
}

// PositionsCount returns the total number of sweep positions.
func (c AreaConfig) PositionsCount() int {
	return c.PositionsCountInX() * c.PositionsCountInY()
}

// Resolution returns the number of sweep positions along x and y.
func (c AreaConfig) Resolution() (x, y int) {
	return c.PositionsCountInX(), c.PositionsCountInY()
}

// ImageSize returns the real-world length covered along x and y.
func (c AreaConfig) ImageSize() (x, y int) {
	return c.PositionsCountInX() * c.xStep, c.PositionsCountInY() * c.yStep
}

// TotalDelayTimeMs returns the accumulated per-step delay of the whole
// sweep in milliseconds.
func (c AreaConfig) TotalDelayTimeMs() int {
	return c.PositionsCountInX()*c.xDelayMs + c.PositionsCountInY()*c.yDelayMs
}

// ConfigureDevice pushes the sweep parameters to the device. The
// command order is fixed: bounds before steps before delays, low before
// high per axis, since firmware revisions validate bounds incrementally.
func (c AreaConfig) ConfigureDevice(conn *dlts.Connection) error {
	builders := []func() ([]byte, error){
		func() ([]byte, error) { return protocol.SetScanXLowBoundary(c.xLow) },
		func() ([]byte, error) { return protocol.SetScanXHighBoundary(c.xHigh) },
		func() ([]byte, error) { return protocol.SetScanYLowBoundary(c.yLow) },
		func() ([]byte, error) { return protocol.SetScanYHighBoundary(c.yHigh) },
		func() ([]byte, error) { return protocol.SetScanXStepSize(c.xStep) },
		func() ([]byte, error) { return protocol.SetScanYStepSize(c.yStep) },
		func() ([]byte, error) { return protocol.SetScanXDelay(c.xDelayMs) },
		func() ([]byte, error) { return protocol.SetScanYDelay(c.yDelayMs) },
	}
	for _, build := range builders {
		command, err := build()
		if err != nil {
			return err
		}
		if err := conn.CommandSet(command); err != nil {
			return err
		}
	}
	return nil
}
