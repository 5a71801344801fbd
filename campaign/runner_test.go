package campaign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/t3gemstone/dfuflash/image"
	"github.com/t3gemstone/dfuflash/protocol"
	"github.com/t3gemstone/dfuflash/session"
)

// stubDevice is a happy-path DFU target whose download results can be
// scripted.
type stubDevice struct {
	info          protocol.DeviceInfo
	downloadCodes []int
	closed        int
}

func newStubDevice(altName string) *stubDevice {
	return &stubDevice{info: protocol.DeviceInfo{
		VendorID:      DefaultVendorID,
		ProductID:     DefaultProductID,
		AltName:       altName,
		HasAltSetting: true,
		TransferSize:  4096,
	}}
}

func (d *stubDevice) Info() protocol.DeviceInfo { return d.info }
func (d *stubDevice) Claim() error              { return nil }
func (d *stubDevice) Release() error            { return nil }
func (d *stubDevice) SelectAlt() error          { return nil }
func (d *stubDevice) ClearStatus() error        { return nil }
func (d *stubDevice) Abort() error              { return nil }

func (d *stubDevice) Status() (protocol.Status, error) {
	return protocol.Status{State: protocol.StateDFUIdle}, nil
}

func (d *stubDevice) Download(data []byte) int {
	if len(d.downloadCodes) > 0 {
		code := d.downloadCodes[0]
		d.downloadCodes = d.downloadCodes[1:]
		return code
	}
	return len(data)
}

func (d *stubDevice) Detach(time.Duration) error { return nil }
func (d *stubDevice) Reset() error               { return nil }

func (d *stubDevice) Close() error {
	d.closed++
	return nil
}

// seqProber hands out scripted devices one probe at a time and records
// every match it was asked for. Alt names listed in unavailable never
// yield a device.
type seqProber struct {
	devices     []*stubDevice
	matches     []protocol.DeviceMatch
	unavailable map[string]bool
}

func (p *seqProber) Probe(match protocol.DeviceMatch) ([]protocol.Device, error) {
	p.matches = append(p.matches, match)
	if p.unavailable[match.AltName] || len(p.devices) == 0 {
		return nil, nil
	}
	d := p.devices[0]
	p.devices = p.devices[1:]
	return []protocol.Device{d}, nil
}

func (p *seqProber) altNamesProbed() []string {
	var names []string
	for _, m := range p.matches {
		names = append(names, m.AltName)
	}
	return names
}

// fastOptions makes campaigns run instantly in tests.
func fastOptions(extra ...Option) []Option {
	opts := []Option{
		WithStageSettle(0),
		WithImageSettle(0),
		WithSessionOptions(
			session.WithDiscoveryAttempts(2),
			session.WithRetryInterval(0),
		),
	}
	return append(opts, extra...)
}

// writeStageFiles creates a three-stage plan with real files.
func writeStageFiles(t *testing.T) Plan {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"tiboot3.bin", "tispl.bin", "u-boot.img"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name+" payload"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return DefaultPlan(dir)
}

// collect drains the stream and sanity-checks its shape: monotonic
// percentage, exactly one terminal event, terminal last.
func collect(t *testing.T, events <-chan Event) (all []Event, terminal Event) {
	t.Helper()
	terminals := 0
	percent := 0
	for ev := range events {
		all = append(all, ev)
		if ev.Percent < percent {
			t.Errorf("progress decreased: %d -> %d (%s)", percent, ev.Percent, ev.Message)
		}
		percent = ev.Percent
		if ev.Terminal() {
			terminals++
			terminal = ev
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminals)
	}
	if !all[len(all)-1].Terminal() {
		t.Error("terminal event must be the last on the stream")
	}
	return all, terminal
}

func TestCampaignAllStagesSucceed(t *testing.T) {
	plan := writeStageFiles(t)
	prober := &seqProber{devices: []*stubDevice{
		newStubDevice("bootloader"),
		newStubDevice("tispl.bin"),
		newStubDevice("u-boot.img"),
	}}

	runner := New(prober, fastOptions()...)
	all, terminal := collect(t, runner.Run(context.Background(), plan, image.Selector{}))

	if terminal.Type != EventSuccess {
		t.Fatalf("expected success, got %v: %v", terminal.Type, terminal.Err)
	}

	if got := prober.altNamesProbed(); len(got) != 3 ||
		got[0] != "bootloader" || got[1] != "tispl.bin" || got[2] != "u-boot.img" {
		t.Errorf("stages must run in plan order, probed %v", got)
	}

	sawCeiling := false
	for _, ev := range all {
		if ev.Type == EventProgress && ev.Percent == progressStagesEnd {
			sawCeiling = true
		}
	}
	if !sawCeiling {
		t.Errorf("expected progress to reach the bootloader ceiling %d", progressStagesEnd)
	}
	if terminal.Percent != progressDone {
		t.Errorf("terminal percent = %d, want %d", terminal.Percent, progressDone)
	}
}

func TestCampaignMissingFileFailsBeforeDeviceInteraction(t *testing.T) {
	plan := writeStageFiles(t)
	if err := os.Remove(plan.Stages[1].FilePath); err != nil {
		t.Fatal(err)
	}
	prober := &seqProber{devices: []*stubDevice{newStubDevice("bootloader")}}

	runner := New(prober, fastOptions()...)
	_, terminal := collect(t, runner.Run(context.Background(), plan, image.Selector{}))

	if terminal.Type != EventError {
		t.Fatal("expected the campaign to fail")
	}
	var fnf *FileNotFoundError
	if !errors.As(terminal.Err, &fnf) {
		t.Fatalf("expected FileNotFoundError, got %v", terminal.Err)
	}
	if len(prober.matches) != 0 {
		t.Error("no session may be constructed when a plan file is missing")
	}
}

func TestCampaignDiscoveryFailureAbortsRemainingStages(t *testing.T) {
	plan := writeStageFiles(t)
	prober := &seqProber{
		devices: []*stubDevice{
			newStubDevice("bootloader"),
			newStubDevice("tispl.bin"),
		},
		unavailable: map[string]bool{"u-boot.img": true},
	}

	runner := New(prober, fastOptions()...)
	all, terminal := collect(t, runner.Run(context.Background(), plan, image.Selector{}))

	if terminal.Type != EventError {
		t.Fatal("expected the campaign to fail")
	}
	var nfe *session.DeviceNotFoundError
	if !errors.As(terminal.Err, &nfe) {
		t.Fatalf("expected DeviceNotFoundError, got %v", terminal.Err)
	}

	// The first two stages reported their own success before the failure.
	success := map[string]bool{}
	for _, ev := range all {
		if ev.Type == EventProgress {
			success[ev.Message] = true
		}
	}
	if !success["tiboot3.bin sent successfully"] || !success["tispl.bin sent successfully"] {
		t.Error("prior stages must report success before the failing stage")
	}
}

func TestCampaignBenignIOCodeProceedsToNextStage(t *testing.T) {
	plan := writeStageFiles(t)
	first := newStubDevice("bootloader")
	first.downloadCodes = []int{protocol.ResultIO}
	prober := &seqProber{devices: []*stubDevice{
		first,
		newStubDevice("tispl.bin"),
		newStubDevice("u-boot.img"),
	}}

	runner := New(prober, fastOptions()...)
	_, terminal := collect(t, runner.Run(context.Background(), plan, image.Selector{}))

	if terminal.Type != EventSuccess {
		t.Fatalf("ambiguous I/O result must not fail the campaign, got %v", terminal.Err)
	}
	if got := len(prober.matches); got != 3 {
		t.Errorf("all three stages must run, probed %d times", got)
	}
}

func TestCampaignTransferFailureCleansUpStaging(t *testing.T) {
	plan := writeStageFiles(t)
	staging := filepath.Join(t.TempDir(), "image.img")
	if err := os.WriteFile(staging, []byte("decompressed image"), 0644); err != nil {
		t.Fatal(err)
	}

	prober := &seqProber{} // no devices: stage A discovery fails
	runner := New(prober, fastOptions(WithAcquirer(stubAcquirer{path: staging}))...)

	sel := image.Selector{Board: "j721e-sk", ImageType: "minimal", Distro: "debian"}
	_, terminal := collect(t, runner.Run(context.Background(), plan, sel))

	if terminal.Type != EventError {
		t.Fatal("expected the campaign to fail")
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Error("staging file must be removed when a stage fails")
	}
}

func TestCampaignImageStageRunsAfterBootloader(t *testing.T) {
	plan := writeStageFiles(t)
	staging := filepath.Join(t.TempDir(), "image.img")
	if err := os.WriteFile(staging, []byte("decompressed image"), 0644); err != nil {
		t.Fatal(err)
	}

	prober := &seqProber{devices: []*stubDevice{
		newStubDevice("bootloader"),
		newStubDevice("tispl.bin"),
		newStubDevice("u-boot.img"),
		newStubDevice("rawemmc"),
	}}
	runner := New(prober, fastOptions(WithAcquirer(stubAcquirer{path: staging}))...)

	sel := image.Selector{Board: "j721e-sk", ImageType: "minimal", Distro: "debian"}
	_, terminal := collect(t, runner.Run(context.Background(), plan, sel))

	if terminal.Type != EventSuccess {
		t.Fatalf("expected success, got %v", terminal.Err)
	}

	names := prober.altNamesProbed()
	if len(names) != 4 || names[3] != DefaultRawAltName {
		t.Errorf("raw-storage stage must run last, probed %v", names)
	}
	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Error("staging file must be removed after the image stage")
	}
}

func TestCampaignAcquisitionFailureAbortsBeforeDevices(t *testing.T) {
	plan := writeStageFiles(t)
	prober := &seqProber{devices: []*stubDevice{newStubDevice("bootloader")}}
	runner := New(prober, fastOptions(WithAcquirer(stubAcquirer{
		err: &image.FetchError{URL: "http://example.invalid/img.xz", StatusCode: 404},
	}))...)

	sel := image.Selector{Board: "j721e-sk", ImageType: "minimal", Distro: "debian"}
	_, terminal := collect(t, runner.Run(context.Background(), plan, sel))

	if terminal.Type != EventError {
		t.Fatal("expected the campaign to fail")
	}
	var fe *image.FetchError
	if !errors.As(terminal.Err, &fe) {
		t.Fatalf("expected FetchError, got %v", terminal.Err)
	}
	if len(prober.matches) != 0 {
		t.Error("acquisition failure must abort before any device interaction")
	}
}

// stubAcquirer returns a fixed staging path or error.
type stubAcquirer struct {
	path string
	err  error
}

func (a stubAcquirer) Acquire(ctx context.Context, sel image.Selector, progress image.ProgressFunc) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if progress != nil {
		progress(40, "Using cached image file")
		progress(50, "Image extracted successfully")
	}
	return a.path, nil
}
