package dlts

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialTransport is a Transport backed by a serial port.
type SerialTransport struct {
	port serial.Port
	open bool
}

// OpenSerial opens the named serial port in 8N1 mode with the given baud
// rate and per-read timeout and wraps it as a Transport.
func OpenSerial(portName string, baudRate int, readTimeout time.Duration) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	return &SerialTransport{port: port, open: true}, nil
}

func (t *SerialTransport) IsOpen() bool {
	return t.open
}

func (t *SerialTransport) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	return t.port.Close()
}

func (t *SerialTransport) Write(data []byte) (int, error) {
	return t.port.Write(data)
}

// Read accumulates up to size bytes. The port returns whatever arrives
// within its read timeout; a zero-byte read means the timeout elapsed and
// ends the accumulation, yielding a short (soft) result.
func (t *SerialTransport) Read(size int) ([]byte, error) {
	received := make([]byte, 0, size)
	buf := make([]byte, size)
	for len(received) < size {
		n, err := t.port.Read(buf[:size-len(received)])
		if err != nil {
			return received, fmt.Errorf("serial read failed: %w", err)
		}
		if n == 0 {
			break
		}
		received = append(received, buf[:n]...)
	}
	return received, nil
}

// ReadAll drains bytes until a read times out.
func (t *SerialTransport) ReadAll() ([]byte, error) {
	var received []byte
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return received, fmt.Errorf("serial read failed: %w", err)
		}
		if n == 0 {
			return received, nil
		}
		received = append(received, buf[:n]...)
	}
}
