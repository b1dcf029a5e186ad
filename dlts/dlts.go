package dlts

import (
	"dltsctl/protocol"
)

// Scan is one bounded sweep run. The engine lives in package scan; the
// facade only drives its lifecycle.
type Scan interface {
	// Start begins the scan on the given connection. It returns
	// immediately; the scan runs on its own goroutines.
	Start(connection *Connection)

	// Abort requests a cooperative abort of a running scan.
	Abort()

	IsRunning() bool
	IsFinished() bool
	IsAborted() bool
	IsCompleted() bool
}

// Dlts is the high-level device interface. It exposes typed accessors
// for the device parameters and keeps track of the running scan and a
// bounded LIFO history of finished ones.
//
// Dlts is not safe for concurrent use; callers drive it from one
// goroutine. The scans it starts do their protocol work on their own
// goroutines through the connection's exclusivity lock.
type Dlts struct {
	conn        *Connection
	scan        Scan
	history     []Scan
	historySize int
}

// NewDlts creates a device interface on the given connection keeping up
// to historySize finished scans.
func NewDlts(connection *Connection, historySize int) *Dlts {
	if historySize < 0 {
		historySize = 0
	}
	return &Dlts{conn: connection, historySize: historySize}
}

// IsConnected reports whether the device connection is open.
func (d *Dlts) IsConnected() bool {
	return d.conn != nil && d.conn.IsOpen()
}

// Connection returns the underlying device connection.
func (d *Dlts) Connection() *Connection {
	return d.conn
}

// SetConnection replaces the underlying connection. Fails while a scan
// is running.
func (d *Dlts) SetConnection(connection *Connection) error {
	if d.IsConnected() && d.IsScanRunning() {
		return &ControlFlowError{Reason: "cannot change the connection during a running scan"}
	}
	d.conn = connection
	return nil
}

// connection returns the connection guarded against misuse: commanding
// a disconnected device or one that is busy scanning is a caller error.
func (d *Dlts) connection() (*Connection, error) {
	if !d.IsConnected() {
		return nil, &ControlFlowError{Reason: "cannot command the device while it is not connected"}
	}
	if d.IsScanRunning() {
		return nil, &ControlFlowError{Reason: "cannot command the device while it is running a scan"}
	}
	return d.conn, nil
}

// Scan returns the most recently started scan, if any.
func (d *Dlts) Scan() Scan {
	return d.scan
}

// IsScanRunning reports whether the most recent scan is still running.
func (d *Dlts) IsScanRunning() bool {
	return d.scan != nil && d.scan.IsRunning()
}

// ScanHistory returns the finished scans, most recently demoted first.
func (d *Dlts) ScanHistory() []Scan {
	history := make([]Scan, len(d.history))
	copy(history, d.history)
	return history
}

// StartScan starts the given scan and demotes the current one into the
// history buffer. Fails while another scan is running.
func (d *Dlts) StartScan(scan Scan) error {
	if d.IsScanRunning() {
		return &ControlFlowError{Reason: "cannot run two scans at the same time"}
	}

	conn, err := d.connection()
	if err != nil {
		return err
	}

	if d.scan != nil {
		d.history = append([]Scan{d.scan}, d.history...)
		if len(d.history) > d.historySize {
			d.history = d.history[:d.historySize]
		}
	}

	d.scan = scan
	d.scan.Start(conn)
	return nil
}

func (d *Dlts) commandSet(command []byte, buildErr error) error {
	if buildErr != nil {
		return buildErr
	}
	conn, err := d.connection()
	if err != nil {
		return err
	}
	return conn.CommandSet(command)
}

func (d *Dlts) commandGetUInt16(command []byte) (int, error) {
	conn, err := d.connection()
	if err != nil {
		return 0, err
	}
	return conn.CommandGetUInt16(command)
}

// SetX moves the x axis to the given position.
func (d *Dlts) SetX(x int) error {
	return d.commandSet(protocol.SetXPosition(x))
}

// X returns the current x axis position.
func (d *Dlts) X() (int, error) {
	return d.commandGetUInt16(protocol.GetXPosition())
}

// SetY moves the y axis to the given position.
func (d *Dlts) SetY(y int) error {
	return d.commandSet(protocol.SetYPosition(y))
}

// Y returns the current y axis position.
func (d *Dlts) Y() (int, error) {
	return d.commandGetUInt16(protocol.GetYPosition())
}

// SetZ moves the z (focus) axis to the given position.
func (d *Dlts) SetZ(z int) error {
	return d.commandSet(protocol.SetZPosition(z))
}

// Z returns the current z (focus) axis position.
func (d *Dlts) Z() (int, error) {
	return d.commandGetUInt16(protocol.GetZPosition())
}

// SetXTilt moves the x tilt axis to the given position.
func (d *Dlts) SetXTilt(xTilt int) error {
	return d.commandSet(protocol.SetXTilt(xTilt))
}

// XTilt returns the current x tilt position.
func (d *Dlts) XTilt() (int, error) {
	return d.commandGetUInt16(protocol.GetXTilt())
}

// SetLaserIntensity sets the continuous laser intensity.
func (d *Dlts) SetLaserIntensity(intensity int) error {
	return d.commandSet(protocol.SetLaserIntensity(intensity))
}

// LaserIntensity returns the continuous laser intensity.
func (d *Dlts) LaserIntensity() (int, error) {
	return d.commandGetUInt16(protocol.GetLaserIntensity())
}

// SetLaserPulseIntensity sets the laser pulse intensity.
func (d *Dlts) SetLaserPulseIntensity(intensity int) error {
	return d.commandSet(protocol.SetLaserPulseIntensity(intensity))
}

// LaserPulseIntensity returns the laser pulse intensity.
func (d *Dlts) LaserPulseIntensity() (int, error) {
	return d.commandGetUInt16(protocol.GetLaserPulseIntensity())
}

// SetLaserPulseFrequency sets the laser pulse frequency.
func (d *Dlts) SetLaserPulseFrequency(frequency int) error {
	return d.commandSet(protocol.SetLaserPulseFrequency(frequency))
}

// LaserPulseFrequency returns the laser pulse frequency.
func (d *Dlts) LaserPulseFrequency() (int, error) {
	return d.commandGetUInt16(protocol.GetLaserPulseFrequency())
}

// SetLatchupTurnOffDelay sets the delay after which the device cuts
// power to the sample once a latch-up has been detected.
func (d *Dlts) SetLatchupTurnOffDelay(milliseconds, microseconds int) error {
	if err := d.commandSet(protocol.SetLatchupTurnOffDelayMilliseconds(milliseconds)); err != nil {
		return err
	}
	return d.commandSet(protocol.SetLatchupTurnOffDelayMicroseconds(microseconds))
}

// FireLaserPulse fires a single laser pulse. Negative intensity or
// frequency values leave the respective pulse parameter unchanged.
func (d *Dlts) FireLaserPulse(intensity, frequency int) error {
	if intensity >= 0 {
		if err := d.commandSet(protocol.SetLaserPulseIntensity(intensity)); err != nil {
			return err
		}
	}
	if frequency >= 0 {
		if err := d.commandSet(protocol.SetLaserPulseFrequency(frequency)); err != nil {
			return err
		}
	}

	conn, err := d.connection()
	if err != nil {
		return err
	}
	return conn.CommandWithAcknowledge(protocol.ActionLaserPulse())
}

// LaserReflectionValue reads the laser reflection at the current
// position. The firmware has no dedicated point read, so a single-point
// area scan is configured and started, and the position is restored
// afterwards.
func (d *Dlts) LaserReflectionValue() (int, error) {
	conn, err := d.connection()
	if err != nil {
		return 0, err
	}

	conn.Acquire(true, -1)
	defer conn.Release()

	x, err := d.X()
	if err != nil {
		return 0, err
	}
	y, err := d.Y()
	if err != nil {
		return 0, err
	}

	if err := d.configurePointArea(conn, x, y); err != nil {
		return 0, err
	}

	value, err := conn.CommandGetUInt8(protocol.ActionScanArea())
	if err != nil {
		return 0, err
	}

	if err := d.SetX(x); err != nil {
		return value, err
	}
	if err := d.SetY(y); err != nil {
		return value, err
	}
	return value, nil
}

// configurePointArea pushes a single-point scan area at (x, y). Command
// order matches the regular area configuration push.
func (d *Dlts) configurePointArea(conn *Connection, x, y int) error {
	builders := []func() ([]byte, error){
		func() ([]byte, error) { return protocol.SetScanXLowBoundary(x) },
		func() ([]byte, error) { return protocol.SetScanXHighBoundary(x) },
		func() ([]byte, error) { return protocol.SetScanYLowBoundary(y) },
		func() ([]byte, error) { return protocol.SetScanYHighBoundary(y) },
		func() ([]byte, error) { return protocol.SetScanXStepSize(1) },
		func() ([]byte, error) { return protocol.SetScanYStepSize(1) },
		func() ([]byte, error) { return protocol.SetScanXDelay(0) },
		func() ([]byte, error) { return protocol.SetScanYDelay(0) },
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
