package dlts

// Transport is a bidirectional byte stream to a DLTS, typically a serial
// port. Reads are soft: a Read may return fewer bytes than requested when
// the implementation's read timeout elapses, without an error. Transports
// do no buffering or framing of their own.
type Transport interface {
	// IsOpen reports whether the stream is usable.
	IsOpen() bool

	// Close closes the stream.
	Close() error

	// Write sends the given bytes and returns the number written.
	Write(data []byte) (int, error)

	// Read returns up to size bytes. Fewer bytes mean the read timed
	// out; implementations without a timeout may block indefinitely.
	Read(size int) ([]byte, error)

	// ReadAll drains whatever is currently available. May block
	// indefinitely if the transport has no timeout configured.
	ReadAll() ([]byte, error)
}
