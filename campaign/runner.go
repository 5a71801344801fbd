package campaign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/t3gemstone/dfuflash/image"
	"github.com/t3gemstone/dfuflash/protocol"
	"github.com/t3gemstone/dfuflash/session"
)

// Overall progress bands, mirroring the stage boundaries users see:
// image download 5-40, extraction 40-50, bootloader stages 55-75, raw
// storage image 80-100.
const (
	progressImageStart  = 5
	progressPlanCheck   = 52
	progressStagesStart = 55
	progressStagesEnd   = 75
	progressImageWait   = 78
	progressImageSend   = 80
	progressDone        = 100
)

// Runner executes a flash campaign end to end: optional image
// acquisition, the ordered bootloader stages, then the raw-storage image
// transfer, reporting one monotonic progress stream and a single terminal
// event.
type Runner struct {
	prober protocol.Prober
	config Config
}

// New creates a Runner probing for devices through the given prober.
func New(prober protocol.Prober, opts ...Option) *Runner {
	if prober == nil {
		panic("prober cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Runner{
		prober: prober,
		config: cfg,
	}
}

// Run starts the campaign on its own goroutine and returns its event
// stream. The stream carries progress and status events followed by
// exactly one terminal event, then closes. The caller must drain the
// channel promptly; events are advisory and never acknowledge back into
// the campaign.
//
// An incomplete selector skips image acquisition and the raw-storage
// stage; the campaign then consists of the plan's bootloader stages only.
func (r *Runner) Run(ctx context.Context, plan Plan, sel image.Selector) <-chan Event {
	events := make(chan Event, r.config.EventBuffer)
	go r.run(ctx, plan, sel, events)
	return events
}

// execution tracks one campaign run's event stream and enforces the
// monotonic percentage.
type execution struct {
	events  chan<- Event
	percent int
}

func (e *execution) progress(pct int, msg string) {
	if pct < e.percent {
		pct = e.percent
	}
	e.percent = pct
	e.events <- Event{Type: EventProgress, Percent: pct, Message: msg}
}

func (e *execution) status(msg string) {
	e.events <- Event{Type: EventStatus, Percent: e.percent, Message: msg}
}

func (e *execution) fail(err error) {
	e.events <- Event{Type: EventError, Percent: e.percent, Message: err.Error(), Err: err}
}

func (e *execution) succeed() {
	e.events <- Event{Type: EventSuccess, Percent: e.percent, Message: "done"}
}

func (r *Runner) run(ctx context.Context, plan Plan, sel image.Selector, events chan<- Event) {
	defer close(events)

	exec := &execution{events: events}
	exec.status("Initializing DFU...")

	// Step 1: acquire the disk image when one is selected. Any failure
	// here aborts before the device is ever touched.
	var staging string
	removeStaging := func() {
		if staging == "" {
			return
		}
		r.config.Logger.Debug().Str("path", staging).Msg("removing staging file")
		if err := os.Remove(staging); err != nil && !os.IsNotExist(err) {
			r.config.Logger.Warn().Err(err).Msg("cannot remove staging file")
		}
		staging = ""
	}

	if sel.Complete() {
		exec.progress(progressImageStart, "Preparing to download system image...")

		acquirer := r.config.Acquirer
		if acquirer == nil {
			acquirer = image.New(image.WithLogger(r.config.Logger))
		}

		var err error
		staging, err = acquirer.Acquire(ctx, sel, exec.progress)
		if err != nil {
			r.config.Logger.Error().Err(err).Msg("image acquisition failed")
			exec.fail(err)
			return
		}
	}

	// Step 2: validate the plan up front so a missing file never leaves
	// the device mid-sequence.
	exec.progress(progressPlanCheck, "Preparing bootloader files...")
	if err := plan.Validate(); err != nil {
		removeStaging()
		exec.fail(err)
		return
	}

	// Step 3: bootloader stages, strictly in order, one fresh session
	// each. The device disconnects and re-enumerates after every stage.
	exec.progress(progressStagesStart, "Sending bootloader files...")

	current := progressStagesStart
	if n := len(plan.Stages); n > 0 {
		share := (progressStagesEnd - progressStagesStart) / n

		for i, stage := range plan.Stages {
			name := filepath.Base(stage.FilePath)
			exec.progress(current, fmt.Sprintf("Sending %s...", name))

			ctrl := session.New(r.prober, r.stageOptions(name)...)
			if err := ctrl.Flash(ctx, stage.FilePath, stage.match(r.config.Match), stage.ResetAfter); err != nil {
				r.config.Logger.Error().Err(err).Str("stage", name).Msg("stage failed")
				removeStaging()
				exec.fail(fmt.Errorf("sending %s: %w", name, err))
				return
			}

			current += share
			exec.progress(current, fmt.Sprintf("%s sent successfully", name))

			// Give the device time to re-enumerate, except after the
			// last stage.
			if i < n-1 {
				exec.status("Waiting for device to reconnect...")
				if err := sleepCtx(ctx, r.config.StageSettle); err != nil {
					removeStaging()
					exec.fail(err)
					return
				}
			}
		}
	}

	exec.progress(progressStagesEnd, "Bootloader files sent successfully")

	// Step 4: send the disk image to raw storage. The raw-storage alt
	// setting appears some time after the last bootloader stage, hence
	// the longer settle.
	if staging != "" {
		exec.progress(progressImageWait, "Waiting for device to enter image transfer mode...")
		if err := sleepCtx(ctx, r.config.ImageSettle); err != nil {
			removeStaging()
			exec.fail(err)
			return
		}

		exec.progress(progressImageSend, "Sending system image to device (this may take several minutes)...")

		opts := append(r.stageOptions("image"), session.WithProgressCallback(func(p session.Progress) {
			if p.Phase == session.PhaseTransferring {
				pct := progressImageSend + int(p.Percentage)*(progressDone-1-progressImageSend)/100
				exec.progress(pct, "Sending system image to device...")
			}
		}))

		ctrl := session.New(r.prober, opts...)
		match := protocol.DeviceMatch{
			VendorID:  r.config.Match.VendorID,
			ProductID: r.config.Match.ProductID,
			AltName:   r.config.RawAltName,
		}
		err := ctrl.Flash(ctx, staging, match, true)
		removeStaging()
		if err != nil {
			r.config.Logger.Error().Err(err).Msg("image transfer failed")
			exec.fail(fmt.Errorf("sending system image: %w", err))
			return
		}

		exec.progress(progressDone, "System image sent successfully!")
	} else {
		exec.progress(progressDone, "All bootloader files sent successfully. Device should boot now.")
	}

	exec.succeed()
}

// stageOptions builds the session options for one stage: campaign logger
// first so caller-provided session options can override it.
func (r *Runner) stageOptions(stage string) []session.Option {
	opts := []session.Option{
		session.WithLogger(r.config.Logger.With().Str("stage", stage).Logger()),
	}
	return append(opts, r.config.SessionOptions...)
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
