// Package protocol defines the USB DFU protocol-primitive API consumed by
// the session and campaign layers.
//
// # Overview
//
// The package deliberately contains no wire-level code. It models the DFU
// class protocol as a small capability surface:
//
//   - DeviceMatch / DeviceInfo identify a logical flashable target
//     (vendor, product, alternate-setting name)
//   - Prober enumerates targets, re-scanning the bus on every call
//   - Device drives one open target: claim, alternate-setting selection,
//     status query/clear/abort, block download, detach, reset
//
// Transport implementations (see the usb package) supply these primitives;
// higher layers never construct raw USB requests.
//
// # Result Codes
//
// Device.Download reports a libusb-convention integer result code instead
// of an error so callers can distinguish the one benign failure mode:
//
//	code := dev.Download(block)
//	switch {
//	case code >= 0:
//	    // block accepted
//	case code == protocol.ResultIO:
//	    // device likely reset mid-acknowledgement; ambiguous success
//	default:
//	    // real transfer failure
//	}
//
// # Device Lifetime
//
// A Device wraps exactly one open USB handle. Devices returned by a Prober
// are owned by the caller and must be closed exactly once. Because DFU
// targets physically disconnect and re-enumerate between bootloader stages,
// a Device is never valid across a device reset; probe again instead.
package protocol
