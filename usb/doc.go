// Package usb binds the DFU protocol layer to real hardware through
// libusb.
//
// Context enumerates the bus and implements protocol.Prober; each probed
// device wraps an open gousb handle and speaks the DFU 1.1 class
// requests over endpoint zero. The standard descriptor data comes from
// gousb; the class-specific DFU functional descriptor (wTransferSize)
// and the per-alternate-setting names are read from the raw
// configuration descriptor, which gousb does not surface.
//
// Access to USB devices typically requires udev permissions or root.
package usb
