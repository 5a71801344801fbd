package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/t3gemstone/dfuflash/protocol"
)

// Controller takes one device exclusively through the DFU protocol states
// to deliver one firmware image. A Controller is created per transfer; the
// device physically disconnects and re-enumerates between campaign stages,
// so sessions are never reused.
type Controller struct {
	prober protocol.Prober
	config Config
}

// New creates a Controller probing for devices through the given prober.
func New(prober protocol.Prober, opts ...Option) *Controller {
	if prober == nil {
		panic("prober cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Controller{
		prober: prober,
		config: cfg,
	}
}

// Flash delivers the file at filePath to the device selected by match:
//  1. Discover the device with bounded retries
//  2. Claim the DFU interface and select the alternate setting
//  3. Normalize the pre-transfer status (clear error, abort stale transfer)
//  4. Download the file in device-sized blocks
//  5. Optionally detach and reset the device back to run-time mode
//
// The device handle is always closed before Flash returns. Detach and
// reset failures after a completed transfer are logged but not fatal.
func (c *Controller) Flash(ctx context.Context, filePath string, match protocol.DeviceMatch, resetAfter bool) error {
	f, err := os.Open(filePath)
	if err != nil {
		return &TransferError{Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return &TransferError{Err: err}
	}
	total := fi.Size()

	c.report(Progress{Phase: PhaseDiscovering})

	dev, err := c.discover(ctx, match)
	if err != nil {
		return err
	}

	info := dev.Info()
	c.config.Logger.Info().
		Str("vendor", formatID(info.VendorID)).
		Str("product", formatID(info.ProductID)).
		Int("interface", info.Interface).
		Int("alt", info.AltSetting).
		Str("alt_name", info.AltName).
		Msg("found DFU device")

	c.report(Progress{Phase: PhaseClaiming, TotalBytes: total})

	if err := dev.Claim(); err != nil {
		dev.Close()
		return &InterfaceClaimError{Err: err}
	}

	if info.HasAltSetting {
		c.config.Logger.Debug().Int("alt", info.AltSetting).Msg("setting alternate interface")
		if err := dev.SelectAlt(); err != nil {
			dev.Release()
			dev.Close()
			return &AltSettingError{Alt: info.AltSetting, Err: err}
		}
	}

	c.report(Progress{Phase: PhasePreparing, TotalBytes: total})

	if err := c.prepare(dev); err != nil {
		dev.Release()
		dev.Close()
		return err
	}

	xferErr := c.transfer(ctx, dev, f, total)

	// Release before reporting any claimed-state failure.
	dev.Release()

	if xferErr != nil {
		dev.Close()
		return xferErr
	}

	c.finish(dev, resetAfter)

	c.report(Progress{Phase: PhaseComplete, BytesSent: total, TotalBytes: total, Percentage: 100})
	return nil
}

// discover probes the bus until a matching device appears, waiting
// RetryInterval between attempts. Each probe discards the previous device
// list, so a device finishing its re-enumeration is picked up.
func (c *Controller) discover(ctx context.Context, match protocol.DeviceMatch) (protocol.Device, error) {
	for attempt := 0; attempt < c.config.DiscoveryAttempts; attempt++ {
		if attempt > 0 {
			c.config.Logger.Debug().Int("retry", attempt).Msg("searching for DFU device")
			if err := sleepCtx(ctx, c.config.RetryInterval); err != nil {
				return nil, err
			}
		}

		devs, err := c.prober.Probe(match)
		if err != nil {
			c.config.Logger.Warn().Err(err).Msg("probe failed")
			continue
		}
		if len(devs) == 0 {
			continue
		}

		// Use the first device found.
		for _, extra := range devs[1:] {
			extra.Close()
		}
		return devs[0], nil
	}

	return nil, &DeviceNotFoundError{Match: match, Attempts: c.config.DiscoveryAttempts}
}

// prepare normalizes the device into a transfer-ready state. An error
// status is cleared once and re-queried; a stale download or upload is
// aborted once and re-queried. There is no retry loop here, only the
// single recovery attempt per condition.
func (c *Controller) prepare(dev protocol.Device) error {
	st, err := dev.Status()
	if err != nil {
		return &StatusQueryError{Op: "get status", Err: err}
	}
	c.config.Logger.Debug().
		Stringer("state", st.State).
		Uint8("status", st.Code).
		Msg("device status")

	if st.State == protocol.StateError {
		c.config.Logger.Debug().Msg("clearing error status")
		if err := dev.ClearStatus(); err != nil {
			return &StatusQueryError{Op: "clear status", Err: err}
		}
		st, err = dev.Status()
		if err != nil {
			return &StatusQueryError{Op: "get status", Err: err}
		}
	}

	if st.State == protocol.StateDownloadIdle || st.State == protocol.StateUploadIdle {
		c.config.Logger.Debug().Msg("aborting previous incomplete transfer")
		if err := dev.Abort(); err != nil {
			return &StatusQueryError{Op: "abort transfer", Err: err}
		}
		if _, err := dev.Status(); err != nil {
			return &StatusQueryError{Op: "get status", Err: err}
		}
	}

	return nil
}

// transfer downloads the file block by block. A ResultIO code is treated
// as ambiguous success: devices commonly reset and drop off the bus
// mid-acknowledgement once the last block has been written, so the final
// status read legitimately fails.
func (c *Controller) transfer(ctx context.Context, dev protocol.Device, r io.Reader, total int64) error {
	blockSize := dev.Info().TransferSize
	if blockSize <= 0 {
		blockSize = c.config.FallbackBlockSize
	}
	c.config.Logger.Debug().Int("block_size", blockSize).Int64("total", total).Msg("starting download")

	buf := make([]byte, blockSize)
	var sent int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			code := dev.Download(buf[:n])
			if code == protocol.ResultIO {
				c.config.Logger.Warn().Int64("sent", sent).
					Msg("download ended with I/O error, device likely reset after completing the write")
				return nil
			}
			if code < 0 {
				return &TransferError{Code: code, Sent: sent}
			}

			sent += int64(n)
			c.report(Progress{
				Phase:      PhaseTransferring,
				BytesSent:  sent,
				TotalBytes: total,
				Percentage: percentage(sent, total),
			})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return &TransferError{Sent: sent, Err: rerr}
		}
	}

	// Zero-length download completes the transfer and starts
	// manifestation on the device.
	if code := dev.Download(nil); code < 0 {
		if code == protocol.ResultIO {
			c.config.Logger.Debug().Msg("final status read failed with I/O error, treating as completed")
			return nil
		}
		return &TransferError{Code: code, Sent: sent}
	}

	c.config.Logger.Info().Int64("bytes", sent).Msg("download complete")
	return nil
}

// finish detaches and resets the device when requested, then closes the
// handle. Neither detach nor reset failures are fatal: some devices handle
// detach differently, and a device that already reset itself reports as
// gone, which is the expected outcome.
func (c *Controller) finish(dev protocol.Device, resetAfter bool) {
	defer dev.Close()

	if !resetAfter {
		return
	}

	c.report(Progress{Phase: PhaseFinishing, Percentage: 100})

	c.config.Logger.Debug().Msg("detaching from DFU mode")
	if err := dev.Detach(c.config.DetachTimeout); err != nil {
		c.config.Logger.Warn().Err(err).Msg("detach failed")
	}

	c.config.Logger.Debug().Msg("resetting USB to switch back to run-time mode")
	if err := dev.Reset(); err != nil && !protocol.IsDeviceGone(err) {
		c.config.Logger.Warn().Err(err).Msg("device reset failed")
	}
}

func (c *Controller) report(p Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(p)
	}
}

func percentage(sent, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(sent) / float64(total) * 100
}

func formatID(id uint16) string {
	return fmt.Sprintf("%04x", id)
}

// sleepCtx waits for the given duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
