package usb

import (
	"errors"
	"testing"
)

// buildConfig assembles a raw configuration descriptor from the given
// descriptor bodies, filling in wTotalLength.
func buildConfig(descriptors ...[]byte) []byte {
	total := 9
	for _, d := range descriptors {
		total += len(d)
	}
	raw := []byte{
		9, 0x02, // bLength, bDescriptorType
		byte(total), byte(total >> 8), // wTotalLength
		1,    // bNumInterfaces
		1,    // bConfigurationValue
		0,    // iConfiguration
		0x80, // bmAttributes
		250,  // bMaxPower
	}
	for _, d := range descriptors {
		raw = append(raw, d...)
	}
	return raw
}

func interfaceDesc(number, alt int, class, subclass, nameIndex byte) []byte {
	return []byte{9, descTypeInterface, byte(number), byte(alt), 0, class, subclass, 2, nameIndex}
}

func dfuFunctional(transferSize int) []byte {
	return []byte{
		9, descTypeDFUFunctional,
		0x0D,       // bmAttributes
		0xE8, 0x03, // wDetachTimeOut
		byte(transferSize), byte(transferSize >> 8), // wTransferSize
		0x10, 0x01, // bcdDFUVersion
	}
}

func TestParseConfigDescriptorMultipleAlternates(t *testing.T) {
	raw := buildConfig(
		interfaceDesc(0, 0, classAppSpecific, subclassDFU, 4),
		interfaceDesc(0, 1, classAppSpecific, subclassDFU, 5),
		interfaceDesc(0, 2, classAppSpecific, subclassDFU, 6),
		dfuFunctional(4096),
	)

	dfu, err := parseConfigDescriptor(raw)
	if err != nil {
		t.Fatal(err)
	}
	if dfu.number != 0 {
		t.Errorf("interface = %d, want 0", dfu.number)
	}
	if len(dfu.targets) != 3 {
		t.Fatalf("targets = %d, want 3", len(dfu.targets))
	}
	for i, want := range []int{4, 5, 6} {
		if dfu.targets[i].alt != i {
			t.Errorf("target %d alt = %d", i, dfu.targets[i].alt)
		}
		if dfu.targets[i].nameIndex != want {
			t.Errorf("target %d name index = %d, want %d", i, dfu.targets[i].nameIndex, want)
		}
	}
	if dfu.transferSize != 4096 {
		t.Errorf("transfer size = %d, want 4096", dfu.transferSize)
	}
}

func TestParseConfigDescriptorIgnoresOtherInterfaces(t *testing.T) {
	raw := buildConfig(
		interfaceDesc(0, 0, 0x08, 0x06, 0), // mass storage
		interfaceDesc(1, 0, classAppSpecific, subclassDFU, 3),
		dfuFunctional(1024),
	)

	dfu, err := parseConfigDescriptor(raw)
	if err != nil {
		t.Fatal(err)
	}
	if dfu.number != 1 {
		t.Errorf("interface = %d, want 1", dfu.number)
	}
	if len(dfu.targets) != 1 || dfu.targets[0].nameIndex != 3 {
		t.Errorf("unexpected targets %+v", dfu.targets)
	}
	if dfu.transferSize != 1024 {
		t.Errorf("transfer size = %d, want 1024", dfu.transferSize)
	}
}

func TestParseConfigDescriptorNoTransferSize(t *testing.T) {
	raw := buildConfig(interfaceDesc(0, 0, classAppSpecific, subclassDFU, 0))

	dfu, err := parseConfigDescriptor(raw)
	if err != nil {
		t.Fatal(err)
	}
	if dfu.transferSize != 0 {
		t.Errorf("transfer size = %d, want 0 when no functional descriptor", dfu.transferSize)
	}
}

func TestParseConfigDescriptorNoDFU(t *testing.T) {
	raw := buildConfig(interfaceDesc(0, 0, 0x03, 0x01, 0))

	_, err := parseConfigDescriptor(raw)
	if !errors.Is(err, errNoDFUInterface) {
		t.Fatalf("expected errNoDFUInterface, got %v", err)
	}
}

func TestParseConfigDescriptorMalformed(t *testing.T) {
	raw := buildConfig(interfaceDesc(0, 0, classAppSpecific, subclassDFU, 0))
	raw = append(raw, 200, descTypeInterface) // length past end of buffer

	if _, err := parseConfigDescriptor(raw); err == nil {
		t.Fatal("expected an error for a truncated descriptor")
	}
}
