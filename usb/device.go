package usb

import (
	"errors"
	"time"

	"github.com/google/gousb"
	"github.com/rs/zerolog"

	"github.com/t3gemstone/dfuflash/protocol"
)

// DFU class request codes, DFU 1.1 section 3.
const (
	reqDetach    = 0x00
	reqDnload    = 0x01
	reqGetStatus = 0x03
	reqClrStatus = 0x04
	reqAbort     = 0x06
)

// Class request types targeting the DFU interface.
const (
	rtOut = uint8(gousb.ControlOut | gousb.ControlClass | gousb.ControlInterface)
	rtIn  = uint8(gousb.ControlIn | gousb.ControlClass | gousb.ControlInterface)
)

const statusLen = 6

// device implements protocol.Device over a gousb handle.
type device struct {
	dev    *gousb.Device
	info   protocol.DeviceInfo
	cfgNum int
	log    zerolog.Logger

	cfg  *gousb.Config
	intf *gousb.Interface

	// block is the wValue block counter for DFU_DNLOAD
	block uint16
}

func (d *device) Info() protocol.DeviceInfo { return d.info }

// Claim detaches any kernel driver and takes the DFU interface. When the
// interface exposes several alternate settings the claim starts on
// setting zero and SelectAlt switches afterwards.
func (d *device) Claim() error {
	if err := d.dev.SetAutoDetach(true); err != nil {
		d.log.Debug().Err(err).Msg("auto-detach not supported")
	}

	cfg, err := d.dev.Config(d.cfgNum)
	if err != nil {
		return &protocol.TransportError{Op: "set configuration", Code: resultCode(err)}
	}
	d.cfg = cfg

	alt := 0
	if !d.info.HasAltSetting {
		alt = d.info.AltSetting
	}
	intf, err := cfg.Interface(d.info.Interface, alt)
	if err != nil {
		return &protocol.TransportError{Op: "claim interface", Code: resultCode(err)}
	}
	d.intf = intf
	return nil
}

func (d *device) SelectAlt() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	intf, err := d.cfg.Interface(d.info.Interface, d.info.AltSetting)
	if err != nil {
		return &protocol.TransportError{Op: "set alternate setting", Code: resultCode(err)}
	}
	d.intf = intf
	return nil
}

func (d *device) Release() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	return nil
}

func (d *device) Status() (protocol.Status, error) {
	buf := make([]byte, statusLen)
	if _, err := d.control(rtIn, reqGetStatus, 0, buf); err != nil {
		return protocol.Status{}, &protocol.TransportError{Op: "DFU_GETSTATUS", Code: resultCode(err)}
	}

	poll := int(buf[1]) | int(buf[2])<<8 | int(buf[3])<<16
	return protocol.Status{
		State:       protocol.State(buf[4]),
		Code:        buf[0],
		PollTimeout: time.Duration(poll) * time.Millisecond,
	}, nil
}

func (d *device) ClearStatus() error {
	if _, err := d.control(rtOut, reqClrStatus, 0, nil); err != nil {
		return &protocol.TransportError{Op: "DFU_CLRSTATUS", Code: resultCode(err)}
	}
	return nil
}

func (d *device) Abort() error {
	if _, err := d.control(rtOut, reqAbort, 0, nil); err != nil {
		return &protocol.TransportError{Op: "DFU_ABORT", Code: resultCode(err)}
	}
	return nil
}

// Download sends one DFU_DNLOAD block and polls status until the device
// leaves dfuDNBUSY. The result follows libusb conventions: bytes accepted
// on success, a negative code on failure. Devices that reset themselves
// right after the final zero-length block commonly fail the trailing
// status read with an input/output error; that code is passed through for
// the caller to judge.
func (d *device) Download(data []byte) int {
	n, err := d.control(rtOut, reqDnload, d.block, data)
	if err != nil {
		return resultCode(err)
	}
	d.block++

	for {
		status, err := d.Status()
		if err != nil {
			var te *protocol.TransportError
			if errors.As(err, &te) {
				return te.Code
			}
			return protocol.ResultOther
		}
		if !status.OK() {
			d.log.Warn().
				Str("state", status.State.String()).
				Uint8("code", status.Code).
				Msg("device reported download error")
			return protocol.ResultOther
		}
		if status.State != protocol.StateDownloadBusy {
			break
		}
		if status.PollTimeout > 0 {
			time.Sleep(status.PollTimeout)
		}
	}

	return n
}

func (d *device) Detach(timeout time.Duration) error {
	ms := uint16(timeout / time.Millisecond)
	if _, err := d.control(rtOut, reqDetach, ms, nil); err != nil {
		return &protocol.TransportError{Op: "DFU_DETACH", Code: resultCode(err)}
	}
	return nil
}

func (d *device) Reset() error {
	if err := d.dev.Reset(); err != nil {
		return &protocol.TransportError{Op: "reset", Code: resultCode(err)}
	}
	return nil
}

func (d *device) Close() error {
	if d.intf != nil {
		d.intf.Close()
		d.intf = nil
	}
	if d.cfg != nil {
		if err := d.cfg.Close(); err != nil {
			d.log.Debug().Err(err).Msg("closing configuration")
		}
		d.cfg = nil
	}
	return d.dev.Close()
}

// control issues a class request against the DFU interface. DFU uses
// wValue for the detach timeout and the block counter; wIndex always
// carries the interface number.
func (d *device) control(rType, request uint8, value uint16, data []byte) (int, error) {
	return d.dev.Control(rType, request, value, uint16(d.info.Interface), data)
}

// resultCode maps a gousb error to its libusb result code.
func resultCode(err error) int {
	var ge gousb.Error
	if errors.As(err, &ge) {
		return int(ge)
	}
	return protocol.ResultOther
}
