package protocol

import "time"

// DeviceMatch selects a logical DFU target. A physical device may expose
// several alternate settings on its DFU interface, each one a distinct
// flashable region (bootloader stage, raw storage, etc.); AltName narrows
// the match to one of them.
type DeviceMatch struct {
	// VendorID is the USB vendor ID to match
	VendorID uint16

	// ProductID is the USB product ID to match
	ProductID uint16

	// AltName is the alternate-setting name to match.
	// Empty matches any alternate setting.
	AltName string
}

// DeviceInfo describes a matched DFU target.
type DeviceInfo struct {
	// VendorID is the device USB vendor ID
	VendorID uint16

	// ProductID is the device USB product ID
	ProductID uint16

	// Interface is the DFU interface number
	Interface int

	// AltSetting is the alternate setting number for this target
	AltSetting int

	// AltName is the alternate-setting name, empty if the device
	// does not name it
	AltName string

	// HasAltSetting reports whether the interface exposes more than one
	// alternate setting. When false, alternate-setting selection is
	// skipped before a transfer.
	HasAltSetting bool

	// TransferSize is the maximum bytes per download transaction as
	// advertised by the device's DFU functional descriptor.
	// Zero means the device did not advertise one.
	TransferSize int
}

// Device is one open DFU target. Implementations own the underlying USB
// handle; Close must always be called exactly once, after which the Device
// must not be used.
//
// All methods are blocking protocol round-trips.
type Device interface {
	// Info returns the descriptor data captured when the device was probed.
	Info() DeviceInfo

	// Claim takes exclusive ownership of the DFU interface.
	Claim() error

	// Release gives up the DFU interface. Safe to call after Claim
	// regardless of intervening errors.
	Release() error

	// SelectAlt activates the alternate setting this target was matched
	// on. Callers skip it when Info().HasAltSetting is false.
	SelectAlt() error

	// Status runs a DFU_GETSTATUS round-trip.
	Status() (Status, error)

	// ClearStatus runs DFU_CLRSTATUS, moving the device out of the
	// error state.
	ClearStatus() error

	// Abort runs DFU_ABORT, cancelling an in-progress transfer.
	Abort() error

	// Download sends one block of firmware data and returns a libusb
	// convention result code: zero or positive on success, negative on
	// failure (see Result* constants). An empty block completes the
	// transfer and triggers manifestation.
	Download(data []byte) int

	// Detach requests the device leave DFU mode and return to its
	// run-time firmware within the given timeout.
	Detach(timeout time.Duration) error

	// Reset performs a USB port reset of the device.
	Reset() error

	// Close releases the device handle.
	Close() error
}

// Prober enumerates DFU targets. Each call discards any previously probed
// device list and re-scans the bus, so a device mid re-enumeration is picked
// up by a later call.
//
// The caller owns every returned Device and must Close each one.
type Prober interface {
	Probe(match DeviceMatch) ([]Device, error)
}
