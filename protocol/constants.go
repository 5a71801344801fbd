package protocol

import "fmt"

// Result codes returned by Device.Download, following libusb conventions:
// zero or positive values report success (bytes accepted), negative values
// report transport failures.
const (
	// ResultIO is a low-level input/output error. Devices that reset
	// themselves immediately after a completed download commonly produce
	// this code on the final status read, so callers may treat it as an
	// ambiguous success.
	ResultIO = -1

	// ResultInvalidParam indicates an invalid parameter
	ResultInvalidParam = -2

	// ResultAccess indicates insufficient permissions
	ResultAccess = -3

	// ResultNoDevice indicates the device has disconnected
	ResultNoDevice = -4

	// ResultNotFound indicates the requested entity was not found
	ResultNotFound = -5

	// ResultBusy indicates the resource is busy
	ResultBusy = -6

	// ResultTimeout indicates the operation timed out
	ResultTimeout = -7

	// ResultOverflow indicates the device sent more data than requested
	ResultOverflow = -8

	// ResultPipe indicates the control request was stalled
	ResultPipe = -9

	// ResultInterrupted indicates the call was interrupted
	ResultInterrupted = -10

	// ResultNoMem indicates a memory allocation failure
	ResultNoMem = -11

	// ResultNotSupported indicates an unsupported operation
	ResultNotSupported = -12

	// ResultOther is any other transport error
	ResultOther = -99
)

// ResultName returns a human-readable name for a result code.
func ResultName(code int) string {
	if code >= 0 {
		return "success"
	}
	switch code {
	case ResultIO:
		return "input/output error"
	case ResultInvalidParam:
		return "invalid parameter"
	case ResultAccess:
		return "access denied"
	case ResultNoDevice:
		return "no such device"
	case ResultNotFound:
		return "entity not found"
	case ResultBusy:
		return "resource busy"
	case ResultTimeout:
		return "operation timed out"
	case ResultOverflow:
		return "overflow"
	case ResultPipe:
		return "pipe error"
	case ResultInterrupted:
		return "system call interrupted"
	case ResultNoMem:
		return "insufficient memory"
	case ResultNotSupported:
		return "operation not supported"
	case ResultOther:
		return "other error"
	default:
		return fmt.Sprintf("unknown error %d", code)
	}
}

// DefaultTransferSize is the fallback block size used when a device does
// not advertise a transfer size in its DFU functional descriptor.
const DefaultTransferSize = 1024
