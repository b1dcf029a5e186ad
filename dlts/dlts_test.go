package dlts

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"dltsctl/protocol"
)

// fakeScan finishes instantly unless pinned running.
type fakeScan struct {
	running bool
	started bool
	conn    *Connection
}

func (f *fakeScan) Start(conn *Connection) {
	f.started = true
	f.conn = conn
}

func (f *fakeScan) Abort()            {}
func (f *fakeScan) IsRunning() bool   { return f.running }
func (f *fakeScan) IsFinished() bool  { return f.started && !f.running }
func (f *fakeScan) IsAborted() bool   { return false }
func (f *fakeScan) IsCompleted() bool { return f.IsFinished() }

func testDlts(transport Transport, historySize int) *Dlts {
	return NewDlts(NewConnection(transport), historySize)
}

func TestStartScanHistoryIsBoundedLIFO(t *testing.T) {
	d := testDlts(script(), 2)

	scans := []*fakeScan{{}, {}, {}, {}}
	for _, s := range scans {
		if err := d.StartScan(s); err != nil {
			t.Fatalf("StartScan() error: %v", err)
		}
		if !s.started {
			t.Fatal("scan not started")
		}
	}

	if d.Scan() != Scan(scans[3]) {
		t.Fatal("current scan mismatch")
	}
	want := []Scan{scans[2], scans[1]}
	if got := d.ScanHistory(); !reflect.DeepEqual(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
}

func TestStartScanWhileRunning(t *testing.T) {
	d := testDlts(script(), 1)

	running := &fakeScan{running: true}
	if err := d.StartScan(running); err != nil {
		t.Fatalf("StartScan() error: %v", err)
	}

	err := d.StartScan(&fakeScan{})
	var controlErr *ControlFlowError
	if !errors.As(err, &controlErr) {
		t.Fatalf("error = %v, want ControlFlowError", err)
	}
	if len(d.ScanHistory()) != 0 {
		t.Fatal("rejected scan touched the history")
	}
}

func TestStartScanDisconnected(t *testing.T) {
	transport := script()
	transport.closed = true
	d := testDlts(transport, 1)

	err := d.StartScan(&fakeScan{})
	var controlErr *ControlFlowError
	if !errors.As(err, &controlErr) {
		t.Fatalf("error = %v, want ControlFlowError", err)
	}
}

func TestCommandsRejectedDuringScan(t *testing.T) {
	d := testDlts(script(), 1)

	if err := d.StartScan(&fakeScan{running: true}); err != nil {
		t.Fatalf("StartScan() error: %v", err)
	}

	if _, err := d.X(); err == nil {
		t.Fatal("X() succeeded during a running scan")
	}
	if err := d.SetX(1); err == nil {
		t.Fatal("SetX() succeeded during a running scan")
	}
	var controlErr *ControlFlowError
	if err := d.SetConnection(NewConnection(script())); !errors.As(err, &controlErr) {
		t.Fatalf("SetConnection() error = %v, want ControlFlowError", err)
	}
}

func TestSetPositionOverflow(t *testing.T) {
	d := testDlts(script(), 1)

	err := d.SetX(0x10000)
	var overflowErr *protocol.OverflowError
	if !errors.As(err, &overflowErr) {
		t.Fatalf("error = %v, want OverflowError", err)
	}
	if overflowErr.Value != 0x10000 {
		t.Fatalf("value = %d", overflowErr.Value)
	}
}

func TestFireLaserPulse(t *testing.T) {
	transport := script([]byte("ackackack"))
	d := testDlts(transport, 1)

	if err := d.FireLaserPulse(300, 70); err != nil {
		t.Fatalf("FireLaserPulse() error: %v", err)
	}
	want := []string{"slp", "slf", "alp"}
	if got := transport.writtenHeaders(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestFireLaserPulseKeepsNegativeParameters(t *testing.T) {
	transport := script([]byte("ack"))
	d := testDlts(transport, 1)

	if err := d.FireLaserPulse(-1, -1); err != nil {
		t.Fatalf("FireLaserPulse() error: %v", err)
	}
	want := []string{"alp"}
	if got := transport.writtenHeaders(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestSetLatchupTurnOffDelay(t *testing.T) {
	transport := script([]byte("ackack"))
	d := testDlts(transport, 1)

	if err := d.SetLatchupTurnOffDelay(5, 250); err != nil {
		t.Fatalf("SetLatchupTurnOffDelay() error: %v", err)
	}
	want := []string{"sdm", "sdu"}
	if got := transport.writtenHeaders(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
}

func TestLaserReflectionValue(t *testing.T) {
	transport := script(
		[]byte("dat"), []byte{0x00, 0x05}, // x position
		[]byte("dat"), []byte{0x00, 0x07}, // y position
		[]byte("ackackackackackackackack"), // point area push
		[]byte("dat"), []byte{42},          // single point sweep
		[]byte("ackack"),                   // position restore
	)
	d := testDlts(transport, 1)

	value, err := d.LaserReflectionValue()
	if err != nil {
		t.Fatalf("LaserReflectionValue() error: %v", err)
	}
	if value != 42 {
		t.Fatalf("value = %d, want 42", value)
	}

	want := []string{
		"gpx", "gpy",
		"sxl", "sxh", "syl", "syh", "ssx", "ssy", "sdp", "sdl",
		"asa",
		"spx", "spy",
	}
	if got := transport.writtenHeaders(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}

	// the point area was pinned to the current position and the
	// position was restored afterwards
	restoreX := transport.writes[11]
	if !bytes.Equal(restoreX, []byte{'s', 'p', 'x', 0x00, 0x05}) {
		t.Fatalf("x restore = %v", restoreX)
	}
	if d.Connection().IsAcquired() {
		t.Fatal("connection still acquired")
	}
}
