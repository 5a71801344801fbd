// Package campaign sequences a multi-stage DFU flash operation end to end.
//
// # Overview
//
// A campaign optionally acquires a disk image, validates its transfer
// plan, then drives one fresh session per bootloader stage, in order,
// waiting a fixed settle interval between stages while the device
// disconnects and re-enumerates into its next boot stage. When an image
// was acquired, a final session delivers it to the device's raw-storage
// alternate setting.
//
//	runner := campaign.New(usbCtx)
//	events := runner.Run(ctx, campaign.DefaultPlan("/path/to/files"), image.Selector{
//	    Board:     "j721e-sk",
//	    ImageType: "minimal",
//	    Distro:    "debian",
//	})
//	for ev := range events {
//	    fmt.Printf("%3d%% %s\n", ev.Percent, ev.Message)
//	}
//
// # Event Stream
//
// The whole campaign runs on one background goroutine; the caller watches
// an ordered event stream: progress and status events, then exactly one
// terminal success or error event, then channel close. The reported
// percentage never decreases. Events are advisory; the campaign never
// waits for the consumer beyond channel capacity, so drain promptly.
//
// # Failure Policy
//
// Any fatal stage error aborts the whole campaign immediately; there are
// no cross-stage retries beyond the bounded discovery loop inside each
// session. Temporary staging files are removed on every exit path; the
// persistent cache slot is intentionally kept.
package campaign
