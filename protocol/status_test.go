package protocol

import (
	"strings"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateAppIdle, "appIDLE"},
		{StateAppDetach, "appDETACH"},
		{StateDFUIdle, "dfuIDLE"},
		{StateDownloadSync, "dfuDNLOAD-SYNC"},
		{StateDownloadBusy, "dfuDNBUSY"},
		{StateDownloadIdle, "dfuDNLOAD-IDLE"},
		{StateManifestSync, "dfuMANIFEST-SYNC"},
		{StateManifest, "dfuMANIFEST"},
		{StateManifestWaitReset, "dfuMANIFEST-WAIT-RESET"},
		{StateUploadIdle, "dfuUPLOAD-IDLE"},
		{StateError, "dfuERROR"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", byte(tt.state), got, tt.want)
		}
	}
}

func TestStateStringUnknown(t *testing.T) {
	got := State(42).String()
	if !strings.Contains(got, "unknown") {
		t.Errorf("unknown state should stringify as unknown, got %q", got)
	}
}

func TestStatusOK(t *testing.T) {
	if !(Status{State: StateDFUIdle}).OK() {
		t.Error("status with zero code should be OK")
	}

	if (Status{State: StateError, Code: 0x0B}).OK() {
		t.Error("status with nonzero code should not be OK")
	}
}
