package usb

import (
	"fmt"

	"github.com/google/gousb"
)

// Descriptor constants from the USB 2.0 and DFU 1.1 specifications.
const (
	reqGetDescriptor = 0x06

	descTypeConfig        = 0x02
	descTypeInterface     = 0x04
	descTypeDFUFunctional = 0x21

	classAppSpecific = 0xFE
	subclassDFU      = 0x01

	// configHeaderLen is enough of the configuration descriptor to read
	// wTotalLength
	configHeaderLen = 9
)

// dfuTarget is one flashable region: an alternate setting of the DFU
// interface together with its string-descriptor name index.
type dfuTarget struct {
	alt       int
	nameIndex int
}

// dfuInterface is the DFU interface found in a configuration descriptor.
type dfuInterface struct {
	number  int
	targets []dfuTarget

	// transferSize is wTransferSize from the DFU functional descriptor,
	// zero when the device does not carry one
	transferSize int
}

// parseConfigDescriptor walks a raw configuration descriptor looking for
// an interface of the DFU class (0xFE/0x01) and its functional
// descriptor. gousb parses standard descriptors but does not surface
// class-specific ones, so wTransferSize and the per-alternate string
// indexes have to come from the raw bytes.
func parseConfigDescriptor(raw []byte) (dfuInterface, error) {
	var (
		found  bool
		result dfuInterface
		inDFU  bool
	)

	offset := 0
	for offset+2 <= len(raw) {
		length := int(raw[offset])
		if length < 2 || offset+length > len(raw) {
			return dfuInterface{}, fmt.Errorf("malformed descriptor at offset %d", offset)
		}
		desc := raw[offset : offset+length]

		switch desc[1] {
		case descTypeInterface:
			if length < 9 {
				return dfuInterface{}, fmt.Errorf("short interface descriptor at offset %d", offset)
			}
			number := int(desc[2])
			alt := int(desc[3])
			class := desc[5]
			subclass := desc[6]

			inDFU = class == classAppSpecific && subclass == subclassDFU
			if inDFU {
				if !found {
					found = true
					result.number = number
				}
				if number == result.number {
					result.targets = append(result.targets, dfuTarget{
						alt:       alt,
						nameIndex: int(desc[8]),
					})
				}
			}

		case descTypeDFUFunctional:
			if inDFU && length >= 7 {
				result.transferSize = int(desc[5]) | int(desc[6])<<8
			}
		}

		offset += length
	}

	if !found {
		return dfuInterface{}, errNoDFUInterface
	}
	return result, nil
}

var errNoDFUInterface = fmt.Errorf("no DFU interface in configuration descriptor")

// readConfigDescriptor fetches the raw configuration descriptor at the
// given index: a header read for wTotalLength, then the full descriptor.
func readConfigDescriptor(dev *gousb.Device, index int) ([]byte, error) {
	value := uint16(descTypeConfig)<<8 | uint16(index)

	header := make([]byte, configHeaderLen)
	if _, err := dev.Control(gousb.ControlIn, reqGetDescriptor, value, 0, header); err != nil {
		return nil, fmt.Errorf("reading configuration header: %w", err)
	}

	total := int(header[2]) | int(header[3])<<8
	if total < configHeaderLen {
		return nil, fmt.Errorf("configuration descriptor reports total length %d", total)
	}

	raw := make([]byte, total)
	n, err := dev.Control(gousb.ControlIn, reqGetDescriptor, value, 0, raw)
	if err != nil {
		return nil, fmt.Errorf("reading configuration descriptor: %w", err)
	}
	return raw[:n], nil
}
