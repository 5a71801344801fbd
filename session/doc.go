// Package session drives one DFU device through a single firmware transfer.
//
// # Overview
//
// A Controller owns the per-transfer protocol state machine:
//
//	discover -> claim -> select alt -> normalize status -> download
//	         -> [detach -> reset] -> close
//
// Discovery retries a bounded number of times because the device may still
// be completing a prior reset when the session starts. Before any download,
// the device status is queried and normalized: an error state is cleared
// once, a stale download or upload is aborted once; each recovery is
// attempted a single time, never in a loop.
//
// # Basic Usage
//
//	usbCtx := usb.NewContext()
//	defer usbCtx.Close()
//
//	ctrl := session.New(usbCtx)
//	err := ctrl.Flash(context.Background(), "tiboot3.bin", protocol.DeviceMatch{
//	    VendorID:  0x0451,
//	    ProductID: 0x6165,
//	    AltName:   "bootloader",
//	}, true)
//
// # Ambiguous Success
//
// Some devices reset themselves immediately after a completed download, so
// the final status read fails with an I/O error even though every byte was
// written. The controller treats exactly that one result code as success;
// every other negative code fails the session.
//
// # Lifecycle
//
// A Controller may be reused, but each Flash call opens and closes its own
// device handle. Sessions are never carried across a device reset: the
// handle is invalidated by the disconnect, so each campaign stage creates a
// fresh session.
package session
