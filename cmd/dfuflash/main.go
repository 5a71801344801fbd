// Command dfuflash flashes TI J7-class boards over USB DFU: the staged
// bootloader files and, optionally, a full disk image downloaded from the
// package server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/t3gemstone/dfuflash/campaign"
	"github.com/t3gemstone/dfuflash/image"
	"github.com/t3gemstone/dfuflash/protocol"
	"github.com/t3gemstone/dfuflash/usb"
)

var args struct {
	Verbose bool   `help:"Enable debug logging." short:"v"`
	Vendor  string `help:"USB vendor ID to match, hex." default:"0451"`
	Product string `help:"USB product ID to match, hex." default:"6165"`

	Flash struct {
		Dir       string `arg:"" help:"Directory containing tiboot3.bin, tispl.bin and u-boot.img." type:"existingdir"`
		Board     string `help:"Board name for the system image download (e.g. j721e-sk)." env:"DFUFLASH_BOARD"`
		ImageType string `help:"Image type, optionally with a variant as type/variant (e.g. minimal, desktop/full)." env:"DFUFLASH_IMAGE_TYPE"`
		Distro    string `help:"Distribution the image is built for (e.g. debian)." env:"DFUFLASH_DISTRO"`
		Release   string `help:"Image release tag." default:"" env:"DFUFLASH_RELEASE"`
		BaseURL   string `help:"Package server base URL." default:"" env:"DFUFLASH_BASE_URL"`
		NoCache   bool   `help:"Ignore and bypass the local download cache."`
		RawAlt    string `help:"Alternate setting receiving the system image." default:"rawemmc"`
	} `cmd:"" help:"Flash the bootloader stages and optionally a system image."`

	List struct{} `cmd:"" help:"List DFU devices currently visible on the bus."`
}

func main() {
	cli := kong.Parse(&args,
		kong.Name("dfuflash"),
		kong.Description("DFU flashing tool for TI J7-class boards."),
	)

	logger := newLogger(args.Verbose)

	vendor, err := parseID(args.Vendor)
	if err != nil {
		logger.Fatal().Err(err).Str("value", args.Vendor).Msg("invalid vendor ID")
	}
	product, err := parseID(args.Product)
	if err != nil {
		logger.Fatal().Err(err).Str("value", args.Product).Msg("invalid product ID")
	}
	match := protocol.DeviceMatch{VendorID: vendor, ProductID: product}

	usbCtx := usb.NewContext(usb.WithLogger(logger))
	defer usbCtx.Close()

	switch cli.Command() {
	case "flash <dir>":
		os.Exit(runFlash(usbCtx, match, logger))
	case "list":
		os.Exit(runList(usbCtx, match, logger))
	default:
		panic(cli.Command())
	}
}

func runFlash(usbCtx *usb.Context, match protocol.DeviceMatch, logger zerolog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sel image.Selector
	if args.Flash.Board != "" || args.Flash.ImageType != "" || args.Flash.Distro != "" {
		sel = image.Selector{
			Board:     args.Flash.Board,
			ImageType: args.Flash.ImageType,
			Distro:    args.Flash.Distro,
		}
		if !sel.Complete() {
			logger.Fatal().Msg("an image download needs --board, --image-type and --distro together")
		}
	}

	var imageOpts []image.Option
	imageOpts = append(imageOpts, image.WithLogger(logger))
	if args.Flash.Release != "" {
		imageOpts = append(imageOpts, image.WithRelease(args.Flash.Release))
	}
	if args.Flash.BaseURL != "" {
		imageOpts = append(imageOpts, image.WithBaseURL(args.Flash.BaseURL))
	}
	if args.Flash.NoCache {
		imageOpts = append(imageOpts, image.WithCaching(false))
	}

	runner := campaign.New(usbCtx,
		campaign.WithMatch(match),
		campaign.WithRawAltName(args.Flash.RawAlt),
		campaign.WithLogger(logger),
		campaign.WithAcquirer(image.New(imageOpts...)),
	)

	plan := campaign.DefaultPlan(args.Flash.Dir)
	for ev := range runner.Run(ctx, plan, sel) {
		switch ev.Type {
		case campaign.EventProgress:
			fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Message)
		case campaign.EventStatus:
			fmt.Printf("       %s\n", ev.Message)
		case campaign.EventSuccess:
			fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Message)
		case campaign.EventError:
			logger.Error().Err(ev.Err).Msg("flash failed")
			return 1
		}
	}
	return 0
}

func runList(usbCtx *usb.Context, match protocol.DeviceMatch, logger zerolog.Logger) int {
	infos, err := usbCtx.List(protocol.DeviceMatch{
		VendorID:  match.VendorID,
		ProductID: match.ProductID,
	})
	if err != nil {
		logger.Error().Err(err).Msg("cannot enumerate devices")
		return 1
	}
	if len(infos) == 0 {
		fmt.Println("no DFU devices found")
		return 0
	}

	for _, info := range infos {
		name := info.AltName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%04x:%04x  interface %d  alt %d  %-24s  transfer size %d\n",
			info.VendorID, info.ProductID, info.Interface, info.AltSetting, name, info.TransferSize)
	}
	return 0
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// parseID parses a USB identifier given as hex, with or without an 0x
// prefix.
func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
