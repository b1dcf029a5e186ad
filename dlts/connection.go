package dlts

import (
	"bytes"
	"encoding/binary"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"dltsctl/protocol"
)

// Connection implements the DLTS request/response protocol on top of a
// Transport and serializes access to it.
//
// Each protocol exchange holds the connection's exclusivity lock for its
// duration; a goroutine which needs an uninterrupted sequence of
// exchanges (a scan) acquires the connection once around the whole
// sequence with Acquire/Release. The lock is reentrant for the holding
// goroutine, so nested exchanges pass through, while exchanges from any
// other goroutine fail with an AcquisitionError instead of blocking.
type Connection struct {
	transport Transport
	lock      *comLock
	acquired  atomic.Bool
}

// NewConnection wraps the given transport.
func NewConnection(transport Transport) *Connection {
	return &Connection{transport: transport, lock: newComLock()}
}

// IsOpen reports whether the underlying transport is open.
func (c *Connection) IsOpen() bool {
	return c.transport.IsOpen()
}

// Close closes the underlying transport.
func (c *Connection) Close() error {
	return c.transport.Close()
}

// IsAcquired reports whether any goroutine holds the connection.
func (c *Connection) IsAcquired() bool {
	return c.acquired.Load()
}

// isAcquiredByMe reports whether the calling goroutine holds the
// connection.
func (c *Connection) isAcquiredByMe() bool {
	if !c.lock.tryAcquire() {
		return false
	}
	acquired := c.acquired.Load()
	c.lock.release()
	return acquired
}

// Acquire takes exclusive ownership of the connection for the calling
// goroutine. Repeated calls by the holder have no effect. With block
// set the call waits up to timeout (forever when negative), otherwise
// it fails fast. Reports whether ownership was obtained.
func (c *Connection) Acquire(block bool, timeout time.Duration) bool {
	ok := c.lock.acquire(block, timeout)
	if ok {
		if c.acquired.Load() {
			c.lock.release()
		} else {
			c.acquired.Store(true)
		}
	}
	return ok
}

// Release gives up ownership of the connection. Releasing without a
// prior Acquire is a no-op.
func (c *Connection) Release() {
	if c.isAcquiredByMe() {
		c.acquired.Store(false)
	}
	c.lock.release()
}

// acquireTemp claims the connection for one protocol primitive. It
// succeeds immediately when the calling goroutine already holds the
// connection and fails with an AcquisitionError when another goroutine
// does.
func (c *Connection) acquireTemp() error {
	if !c.lock.tryAcquire() {
		return &AcquisitionError{}
	}
	return nil
}

func (c *Connection) releaseTemp() {
	c.lock.release()
}

// Write sends the given bytes to the device.
func (c *Connection) Write(data []byte) (int, error) {
	if err := c.acquireTemp(); err != nil {
		return 0, err
	}
	defer c.releaseTemp()

	return c.transport.Write(data)
}

// Read reads size bytes from the device. When force is set a short read
// fails with a TimeoutError, otherwise the short result is returned.
func (c *Connection) Read(size int, force bool) ([]byte, error) {
	if err := c.acquireTemp(); err != nil {
		return nil, err
	}
	defer c.releaseTemp()

	return c.readLocked(size, force)
}

func (c *Connection) readLocked(size int, force bool) ([]byte, error) {
	received, err := c.transport.Read(size)
	if err != nil {
		return nil, err
	}
	if force && len(received) < size {
		return nil, &TimeoutError{Expected: size, Received: len(received)}
	}
	return received, nil
}

// ReadUntil reads byte-by-byte until the terminator sequence ends the
// accumulated buffer. A negative size disables the size cap. When force
// is set, a starved single-byte read fails with a TimeoutError.
//
// May block forever if the transport has no read timeout configured.
func (c *Connection) ReadUntil(terminator []byte, size int, force bool) ([]byte, error) {
	if err := c.acquireTemp(); err != nil {
		return nil, err
	}
	defer c.releaseTemp()

	return c.readUntilLocked(terminator, size, force)
}

func (c *Connection) readUntilLocked(terminator []byte, size int, force bool) ([]byte, error) {
	var received []byte

	// XXX the cap comparison permits no further reads once a
	// non-negative size is given; kept as the firmware tooling has
	// always behaved. Callers pass a negative size.
	for !bytes.HasSuffix(received, terminator) && (size < 0 || size < len(received)) {
		b, err := c.transport.Read(1)
		if err != nil {
			return nil, err
		}
		if len(b) == 0 {
			if force {
				return nil, &TimeoutError{Expected: len(received) + 1, Received: len(received)}
			}
			continue
		}
		received = append(received, b...)
	}
	return received, nil
}

// ReadAll drains whatever the device has sent. May block forever if the
// transport has no read timeout configured.
func (c *Connection) ReadAll() ([]byte, error) {
	if err := c.acquireTemp(); err != nil {
		return nil, err
	}
	defer c.releaseTemp()

	return c.transport.ReadAll()
}

// Command sends the given command and validates the response header.
// On an "err" response the device's message line is read and returned
// as a FirmwareError; on any other unexpected header the remaining
// input is drained to resynchronize the stream and a ProtocolError is
// returned. On success the responseDataSize payload bytes, if any, are
// read (forced) and returned.
func (c *Connection) Command(command []byte, expectedHeader string, responseDataSize int) ([]byte, error) {
	if err := c.acquireTemp(); err != nil {
		return nil, err
	}
	defer c.releaseTemp()

	if _, err := c.transport.Write(command); err != nil {
		return nil, err
	}

	headerBytes, err := c.readLocked(protocol.ResponseHeaderLength, true)
	if err != nil {
		return nil, err
	}
	header := string(headerBytes)

	if header != expectedHeader {
		commandHeader := protocol.CommandHeader(command)

		if header == protocol.ResponseError {
			line, err := c.readUntilLocked([]byte(protocol.LineTerminator), -1, true)
			if err != nil {
				return nil, err
			}
			message := strings.TrimSuffix(string(line), protocol.LineTerminator)
			return nil, &FirmwareError{Message: message, Command: commandHeader}
		}

		// unknown response, clear the input to avoid further
		// unexpected behaviour
		drained, _ := c.transport.ReadAll()
		log.Debug().
			Str("command", commandHeader).
			Str("header", header).
			Int("drained", len(drained)).
			Msg("unexpected response header")
		return nil, &ProtocolError{Got: header, Expected: expectedHeader, Command: commandHeader}
	}

	var data []byte
	if responseDataSize > 0 {
		data, err = c.readLocked(responseDataSize, true)
		if err != nil {
			return nil, err
		}
	}

	log.Trace().
		Str("command", protocol.CommandHeader(command)).
		Str("header", header).
		Hex("data", data).
		Msg("command exchange")

	return data, nil
}

// CommandSkipUntilResponse sends the given command and discards
// incoming bytes until the expected response header text arrives. Used
// for abort handshakes where stale in-flight data may still arrive.
func (c *Connection) CommandSkipUntilResponse(command []byte, expectedHeader string) error {
	if err := c.acquireTemp(); err != nil {
		return err
	}
	defer c.releaseTemp()

	if _, err := c.transport.Write(command); err != nil {
		return err
	}
	_, err := c.readUntilLocked([]byte(expectedHeader), -1, true)
	return err
}

// CommandSet sends a set command which the device acknowledges.
func (c *Connection) CommandSet(command []byte) error {
	return c.CommandWithAcknowledge(command)
}

// CommandWithAcknowledge sends a command expecting a bare "ack".
func (c *Connection) CommandWithAcknowledge(command []byte) error {
	_, err := c.Command(command, protocol.ResponseAcknowledge, 0)
	return err
}

// CommandScanStart sends a scan start command. The device answers with
// a "dat" header and no payload.
func (c *Connection) CommandScanStart(command []byte) error {
	_, err := c.Command(command, protocol.ResponseData, 0)
	return err
}

// CommandDataRetrieval sends a command expecting a "dat" response with
// dataSize payload bytes and returns the payload.
func (c *Connection) CommandDataRetrieval(command []byte, dataSize int) ([]byte, error) {
	return c.Command(command, protocol.ResponseData, dataSize)
}

// CommandGetUInt8 sends a get command and returns its one-byte unsigned
// response.
func (c *Connection) CommandGetUInt8(command []byte) (int, error) {
	data, err := c.CommandDataRetrieval(command, 1)
	if err != nil {
		return 0, err
	}
	return int(data[0]), nil
}

// CommandGetUInt16 sends a get command and returns its two-byte
// big-endian unsigned response.
func (c *Connection) CommandGetUInt16(command []byte) (int, error) {
	data, err := c.CommandDataRetrieval(command, 2)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(data)), nil
}
