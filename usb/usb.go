package usb

import (
	"fmt"
	"sort"

	"github.com/google/gousb"
	"github.com/rs/zerolog"

	"github.com/t3gemstone/dfuflash/protocol"
)

// Context owns a libusb context and enumerates DFU targets on the bus.
// It implements protocol.Prober. Close releases the underlying context;
// devices probed from it must be closed first.
type Context struct {
	ctx *gousb.Context
	log zerolog.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets a logger for enumeration and transfer diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Context) {
		c.log = logger
	}
}

// NewContext initializes libusb.
func NewContext(opts ...Option) *Context {
	c := &Context{
		ctx: gousb.NewContext(),
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the libusb context.
func (c *Context) Close() error {
	return c.ctx.Close()
}

// Probe re-scans the bus and opens every device matching the given
// vendor/product pair that exposes a DFU interface with a matching
// alternate setting. An empty AltName matches the interface's first
// alternate setting. The caller owns the returned devices.
func (c *Context) Probe(match protocol.DeviceMatch) ([]protocol.Device, error) {
	opened, err := c.openMatching(match.VendorID, match.ProductID)
	if err != nil && len(opened) == 0 {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("partial enumeration")
	}

	var matched []protocol.Device
	for _, dev := range opened {
		d, ok := c.inspect(dev, match.AltName)
		if !ok {
			dev.Close()
			continue
		}
		matched = append(matched, d)
	}
	return matched, nil
}

// List enumerates every flashable region on matching devices without
// keeping them open. Zero identifiers match any vendor or product.
func (c *Context) List(match protocol.DeviceMatch) ([]protocol.DeviceInfo, error) {
	opened, err := c.openMatching(match.VendorID, match.ProductID)
	if err != nil && len(opened) == 0 {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	var infos []protocol.DeviceInfo
	for _, dev := range opened {
		_, dfu, err := c.findDFU(dev)
		if err != nil {
			dev.Close()
			continue
		}

		for _, target := range dfu.targets {
			info := protocol.DeviceInfo{
				VendorID:      uint16(dev.Desc.Vendor),
				ProductID:     uint16(dev.Desc.Product),
				Interface:     dfu.number,
				AltSetting:    target.alt,
				AltName:       c.targetName(dev, target),
				HasAltSetting: len(dfu.targets) > 1,
				TransferSize:  dfu.transferSize,
			}
			if match.AltName == "" || match.AltName == info.AltName {
				infos = append(infos, info)
			}
		}
		dev.Close()
	}
	return infos, nil
}

// openMatching opens every device with the given identifiers. Zero
// matches any value.
func (c *Context) openMatching(vendor, product uint16) ([]*gousb.Device, error) {
	return c.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if vendor != 0 && uint16(desc.Vendor) != vendor {
			return false
		}
		if product != 0 && uint16(desc.Product) != product {
			return false
		}
		return true
	})
}

// inspect checks one open device for a DFU interface with an alternate
// setting matching altName, and wraps it when found.
func (c *Context) inspect(dev *gousb.Device, altName string) (protocol.Device, bool) {
	cfgNum, dfu, err := c.findDFU(dev)
	if err != nil {
		c.log.Debug().
			Err(err).
			Uint16("vendor", uint16(dev.Desc.Vendor)).
			Uint16("product", uint16(dev.Desc.Product)).
			Msg("skipping device without DFU interface")
		return nil, false
	}

	for _, target := range dfu.targets {
		name := c.targetName(dev, target)
		if altName != "" && name != altName {
			continue
		}

		c.log.Debug().
			Uint16("vendor", uint16(dev.Desc.Vendor)).
			Uint16("product", uint16(dev.Desc.Product)).
			Int("interface", dfu.number).
			Int("alt", target.alt).
			Str("name", name).
			Int("transfer_size", dfu.transferSize).
			Msg("matched DFU target")

		return &device{
			dev:    dev,
			cfgNum: cfgNum,
			log:    c.log,
			info: protocol.DeviceInfo{
				VendorID:      uint16(dev.Desc.Vendor),
				ProductID:     uint16(dev.Desc.Product),
				Interface:     dfu.number,
				AltSetting:    target.alt,
				AltName:       name,
				HasAltSetting: len(dfu.targets) > 1,
				TransferSize:  dfu.transferSize,
			},
		}, true
	}
	return nil, false
}

// findDFU locates the device's DFU interface: the configuration number to
// claim and the parsed interface data including wTransferSize.
func (c *Context) findDFU(dev *gousb.Device) (int, dfuInterface, error) {
	numbers := make([]int, 0, len(dev.Desc.Configs))
	for num := range dev.Desc.Configs {
		numbers = append(numbers, num)
	}
	sort.Ints(numbers)

	// The configuration descriptor index is its position in descriptor
	// order, not the bConfigurationValue used to select it.
	for index, num := range numbers {
		raw, err := readConfigDescriptor(dev, index)
		if err != nil {
			return 0, dfuInterface{}, err
		}
		dfu, err := parseConfigDescriptor(raw)
		if err != nil {
			continue
		}
		return num, dfu, nil
	}
	return 0, dfuInterface{}, errNoDFUInterface
}

// targetName resolves the alternate setting's string descriptor, empty
// when the device does not name it.
func (c *Context) targetName(dev *gousb.Device, target dfuTarget) string {
	if target.nameIndex == 0 {
		return ""
	}
	name, err := dev.GetStringDescriptor(target.nameIndex)
	if err != nil {
		c.log.Debug().Err(err).Int("index", target.nameIndex).Msg("cannot read string descriptor")
		return ""
	}
	return name
}
