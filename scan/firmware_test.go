package scan

import (
	"math"
	"sync"
	"testing"
	"time"
)

// simFirmware is an in-memory stand-in for the device firmware. It
// parses the commands written to it, keeps the set registers, answers
// with the wire responses of the real device and streams generated
// point payloads while a sweep is active.
type simFirmware struct {
	mu      sync.Mutex
	closed  bool
	pending []byte
	out     []byte

	// registers keyed by command subject, e.g. "pt" for the x tilt.
	registers map[string]int

	// commands holds every received command header in order.
	commands []string

	scanning   bool
	pointsSent int

	// pointLimit caps how many points the firmware produces; reads
	// beyond it starve.
	pointLimit int

	// pointDelay throttles point generation, like a device stepping
	// between positions.
	pointDelay time.Duration

	// nextPoint generates the payload of the i-th point.
	nextPoint func(i int) []byte

	// stopResidue is emitted before the stop acknowledgement, like
	// stale point data still in flight.
	stopResidue []byte

	// focusResidue trails the fixed autofocus report.
	focusResidue []byte
}

func newSimFirmware(nextPoint func(i int) []byte) *simFirmware {
	return &simFirmware{
		registers:  make(map[string]int),
		pointLimit: math.MaxInt,
		nextPoint:  nextPoint,
	}
}

func (f *simFirmware) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *simFirmware) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *simFirmware) Write(data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending = append(f.pending, data...)
	for len(f.pending) >= 3 {
		header := string(f.pending[:3])

		if header[0] == 's' {
			if len(f.pending) < 5 {
				break
			}
			value := int(f.pending[3])<<8 | int(f.pending[4])
			f.pending = f.pending[5:]
			f.commands = append(f.commands, header)
			f.registers[header[1:]] = value
			f.out = append(f.out, "ack"...)
			continue
		}

		f.pending = f.pending[3:]
		f.commands = append(f.commands, header)

		switch {
		case header[0] == 'g':
			value := f.registers[header[1:]]
			f.out = append(f.out, "dat"...)
			f.out = append(f.out, byte(value>>8), byte(value))
		case header == "ass":
			f.scanning = false
			f.out = append(f.out, f.stopResidue...)
			f.out = append(f.out, "ack"...)
		case header == "asJ":
			f.out = append(f.out, "dat"...)
			f.out = append(f.out, make([]byte, 10)...)
			f.out = append(f.out, f.focusResidue...)
		case header[0] == 'a' && header[1] == 's':
			f.scanning = true
			f.out = append(f.out, "dat"...)
		default:
			f.out = append(f.out, "ack"...)
		}
	}
	return len(data), nil
}

func (f *simFirmware) Read(size int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.out) < size && f.scanning && f.pointsSent < f.pointLimit {
		if f.pointDelay > 0 {
			time.Sleep(f.pointDelay)
		}
		f.out = append(f.out, f.nextPoint(f.pointsSent)...)
		f.pointsSent++
	}

	n := size
	if n > len(f.out) {
		n = len(f.out)
	}
	data := make([]byte, n)
	copy(data, f.out[:n])
	f.out = f.out[n:]
	return data, nil
}

func (f *simFirmware) ReadAll() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := f.out
	f.out = nil
	return data, nil
}

func (f *simFirmware) setRegister(subject string, value int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers[subject] = value
}

// register returns the last value set for the given command subject.
func (f *simFirmware) register(subject string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.registers[subject]
	return value, ok
}

// receivedCommands returns a copy of the command headers seen so far.
func (f *simFirmware) receivedCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	commands := make([]string, len(f.commands))
	copy(commands, f.commands)
	return commands
}

func (f *simFirmware) setPointLimit(limit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pointLimit = limit
}

// waitFor polls the condition until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
