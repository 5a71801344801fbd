package session

import (
	"fmt"

	"github.com/t3gemstone/dfuflash/protocol"
)

// DeviceNotFoundError indicates that no device matching the requested
// criteria appeared within the bounded discovery retry loop.
type DeviceNotFoundError struct {
	Match    protocol.DeviceMatch
	Attempts int
}

func (e *DeviceNotFoundError) Error() string {
	if e.Match.AltName != "" {
		return fmt.Sprintf("no DFU device %04x:%04x (alt %q) found after %d attempts",
			e.Match.VendorID, e.Match.ProductID, e.Match.AltName, e.Attempts)
	}
	return fmt.Sprintf("no DFU device %04x:%04x found after %d attempts",
		e.Match.VendorID, e.Match.ProductID, e.Attempts)
}

// InterfaceClaimError indicates the DFU interface could not be claimed.
type InterfaceClaimError struct {
	Err error
}

func (e *InterfaceClaimError) Error() string {
	return fmt.Sprintf("cannot claim DFU interface: %v", e.Err)
}

func (e *InterfaceClaimError) Unwrap() error { return e.Err }

// AltSettingError indicates the alternate interface setting could not be
// activated.
type AltSettingError struct {
	Alt int
	Err error
}

func (e *AltSettingError) Error() string {
	return fmt.Sprintf("cannot set alternate interface #%d: %v", e.Alt, e.Err)
}

func (e *AltSettingError) Unwrap() error { return e.Err }

// StatusQueryError indicates that the pre-transfer status handshake failed.
// Op names the protocol operation that failed: the initial status query, a
// status clear, a transfer abort, or one of the follow-up re-queries.
type StatusQueryError struct {
	Op  string
	Err error
}

func (e *StatusQueryError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StatusQueryError) Unwrap() error { return e.Err }

// TransferError indicates the firmware download failed. Code is the
// transport result code when the device rejected a block; Err is set when
// reading the source file failed instead.
type TransferError struct {
	Code int
	Sent int64
	Err  error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer failed after %d bytes: %v", e.Sent, e.Err)
	}
	return fmt.Sprintf("transfer failed after %d bytes: %s (%d)",
		e.Sent, protocol.ResultName(e.Code), e.Code)
}

func (e *TransferError) Unwrap() error { return e.Err }
