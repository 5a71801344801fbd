package protocol

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Op: "claim interface", Code: ResultAccess}

	errMsg := err.Error()

	if !strings.Contains(errMsg, "claim interface") {
		t.Errorf("error message should contain the operation, got: %s", errMsg)
	}

	if !strings.Contains(errMsg, "access denied") {
		t.Errorf("error message should contain the code name, got: %s", errMsg)
	}
}

func TestTransportErrorDeviceGone(t *testing.T) {
	tests := []struct {
		code int
		gone bool
	}{
		{ResultNoDevice, true},
		{ResultNotFound, true},
		{ResultIO, false},
		{ResultAccess, false},
		{ResultTimeout, false},
	}

	for _, tt := range tests {
		err := &TransportError{Op: "reset", Code: tt.code}
		if err.DeviceGone() != tt.gone {
			t.Errorf("DeviceGone() for code %d = %v, want %v", tt.code, !tt.gone, tt.gone)
		}
	}
}

func TestIsDeviceGone(t *testing.T) {
	gone := &TransportError{Op: "reset", Code: ResultNoDevice}

	if !IsDeviceGone(gone) {
		t.Error("IsDeviceGone should be true for a no-device transport error")
	}

	if !IsDeviceGone(fmt.Errorf("resetting: %w", gone)) {
		t.Error("IsDeviceGone should unwrap wrapped errors")
	}

	if IsDeviceGone(errors.New("some other failure")) {
		t.Error("IsDeviceGone should be false for unrelated errors")
	}

	if IsDeviceGone(&TransportError{Op: "reset", Code: ResultIO}) {
		t.Error("IsDeviceGone should be false for I/O errors")
	}
}

func TestResultName(t *testing.T) {
	if got := ResultName(0); got != "success" {
		t.Errorf("ResultName(0) = %q, want success", got)
	}

	if got := ResultName(512); got != "success" {
		t.Errorf("positive codes are successes, got %q", got)
	}

	if got := ResultName(ResultIO); !strings.Contains(got, "input/output") {
		t.Errorf("ResultName(ResultIO) = %q", got)
	}

	if got := ResultName(-1000); !strings.Contains(got, "unknown") {
		t.Errorf("ResultName for unmapped code = %q", got)
	}
}
