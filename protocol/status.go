package protocol

import (
	"fmt"
	"time"
)

// State is a DFU protocol state per DFU 1.1 section 6.1.2.
type State byte

// DFU protocol states.
const (
	// StateAppIdle: device is running its normal application
	StateAppIdle State = 0

	// StateAppDetach: device received DFU_DETACH, waiting for reset
	StateAppDetach State = 1

	// StateDFUIdle: device is in DFU mode, ready for a transfer
	StateDFUIdle State = 2

	// StateDownloadSync: device received a block, waiting for status
	StateDownloadSync State = 3

	// StateDownloadBusy: device is programming a received block
	StateDownloadBusy State = 4

	// StateDownloadIdle: device is mid-download, expecting more blocks
	StateDownloadIdle State = 5

	// StateManifestSync: download complete, waiting for status
	StateManifestSync State = 6

	// StateManifest: device is manifesting the new firmware
	StateManifest State = 7

	// StateManifestWaitReset: device awaits USB reset to finish
	StateManifestWaitReset State = 8

	// StateUploadIdle: device is mid-upload
	StateUploadIdle State = 9

	// StateError: device detected an error; cleared by DFU_CLRSTATUS
	StateError State = 10
)

// String returns the dfu-util style state name.
func (s State) String() string {
	switch s {
	case StateAppIdle:
		return "appIDLE"
	case StateAppDetach:
		return "appDETACH"
	case StateDFUIdle:
		return "dfuIDLE"
	case StateDownloadSync:
		return "dfuDNLOAD-SYNC"
	case StateDownloadBusy:
		return "dfuDNBUSY"
	case StateDownloadIdle:
		return "dfuDNLOAD-IDLE"
	case StateManifestSync:
		return "dfuMANIFEST-SYNC"
	case StateManifest:
		return "dfuMANIFEST"
	case StateManifestWaitReset:
		return "dfuMANIFEST-WAIT-RESET"
	case StateUploadIdle:
		return "dfuUPLOAD-IDLE"
	case StateError:
		return "dfuERROR"
	default:
		return fmt.Sprintf("unknown state %d", byte(s))
	}
}

// Status is the device-reported result of a DFU_GETSTATUS round-trip.
type Status struct {
	// State is the protocol state the device will enter after this
	// status request
	State State

	// Code is the bStatus error code, zero (statusOK) unless the device
	// detected an error
	Code byte

	// PollTimeout is the minimum time the host should wait before the
	// next status request
	PollTimeout time.Duration
}

// OK reports whether the device signalled no error.
func (s Status) OK() bool {
	return s.Code == 0
}
