package dlts

import "fmt"

// TimeoutError reports a forced read which the device under-delivered.
type TimeoutError struct {
	Expected int
	Received int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("read timed out: expected %d bytes but received only %d", e.Expected, e.Received)
}

// AcquisitionError reports that the connection is exclusively held by
// another goroutine.
type AcquisitionError struct{}

func (e *AcquisitionError) Error() string {
	return "connection is already acquired by another goroutine"
}

// ProtocolError reports an unexpected response header. The remaining
// input has been drained to resynchronize the stream.
type ProtocolError struct {
	Got      string
	Expected string
	Command  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("device responded with %q to command %q but %q was expected",
		e.Got, e.Command, e.Expected)
}

// FirmwareError reports a failure signaled by the device itself.
type FirmwareError struct {
	Message string
	Command string
}

func (e *FirmwareError) Error() string {
	return fmt.Sprintf("device responded with error %q to command %q", e.Message, e.Command)
}

// ControlFlowError reports misuse of the high-level interface, such as
// commanding the device while a scan is running.
type ControlFlowError struct {
	Reason string
}

func (e *ControlFlowError) Error() string {
	return e.Reason
}
