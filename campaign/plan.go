package campaign

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/t3gemstone/dfuflash/protocol"
)

// Default identifiers for TI J7-class devices in DFU boot mode.
const (
	DefaultVendorID  uint16 = 0x0451
	DefaultProductID uint16 = 0x6165

	// DefaultRawAltName is the alternate setting exposing raw storage
	// once the bootloader chain is up
	DefaultRawAltName = "rawemmc"
)

// Stage is one file transfer in a campaign. Stage order is significant:
// each stage depends on the device re-enumerating into the next alternate
// setting after the previous reset, so stages are never reordered or
// parallelized.
type Stage struct {
	// FilePath is the firmware file to send
	FilePath string

	// AltName selects the alternate setting to send it to
	AltName string

	// ResetAfter detaches and resets the device once the transfer
	// completes
	ResetAfter bool
}

// Plan is the ordered bootloader stage sequence of a campaign.
type Plan struct {
	Stages []Stage
}

// DefaultPlan returns the TI J7 three-stage bootloader sequence rooted at
// dir. Every stage resets the device so it re-enumerates into the next
// boot stage.
func DefaultPlan(dir string) Plan {
	return Plan{Stages: []Stage{
		{FilePath: filepath.Join(dir, "tiboot3.bin"), AltName: "bootloader", ResetAfter: true},
		{FilePath: filepath.Join(dir, "tispl.bin"), AltName: "tispl.bin", ResetAfter: true},
		{FilePath: filepath.Join(dir, "u-boot.img"), AltName: "u-boot.img", ResetAfter: true},
	}}
}

// Validate checks that every stage file exists before any device
// interaction begins, so a foreseeable error never leaves the device
// mid-sequence.
func (p Plan) Validate() error {
	for _, stage := range p.Stages {
		if _, err := os.Stat(stage.FilePath); err != nil {
			return &FileNotFoundError{Path: stage.FilePath}
		}
	}
	return nil
}

// FileNotFoundError indicates a stage file named by the plan is missing.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("bootloader file not found: %s", e.Path)
}

// match builds the per-stage device match from the campaign's base
// vendor/product identifiers.
func (s Stage) match(base protocol.DeviceMatch) protocol.DeviceMatch {
	return protocol.DeviceMatch{
		VendorID:  base.VendorID,
		ProductID: base.ProductID,
		AltName:   s.AltName,
	}
}
