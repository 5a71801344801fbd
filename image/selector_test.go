package image

import "testing"

func TestSelectorFilename(t *testing.T) {
	tests := []struct {
		name string
		sel  Selector
		want string
	}{
		{
			name: "explicit variant",
			sel:  Selector{Board: "j721e-sk", ImageType: "kiosk", Distro: "debian", Variant: "full"},
			want: "gemstone-full-v2025.12-debian-kiosk-j721e-sk.img.xz",
		},
		{
			name: "variant defaults to minimal",
			sel:  Selector{Board: "j721e-sk", ImageType: "desktop", Distro: "ubuntu"},
			want: "gemstone-minimal-v2025.12-ubuntu-desktop-j721e-sk.img.xz",
		},
		{
			name: "variant embedded in image type",
			sel:  Selector{Board: "am62x", ImageType: "kiosk/lite", Distro: "pardus"},
			want: "gemstone-lite-v2025.12-pardus-kiosk-am62x.img.xz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sel.Filename(DefaultRelease); got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectorURL(t *testing.T) {
	sel := Selector{Board: "j721e-sk", ImageType: "minimal", Distro: "debian"}

	want := "https://packages.t3gemstone.org/images/debian/minimal/j721e-sk/" +
		"gemstone-minimal-v2025.12-debian-minimal-j721e-sk.img.xz"
	if got := sel.URL(DefaultBaseURL, DefaultRelease); got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	// Trailing slash on the base URL must not double up.
	if got := sel.URL(DefaultBaseURL+"/", DefaultRelease); got != want {
		t.Errorf("URL() with trailing slash = %q, want %q", got, want)
	}
}

func TestSelectorComplete(t *testing.T) {
	if (Selector{}).Complete() {
		t.Error("empty selector must not be complete")
	}
	if (Selector{Board: "j721e-sk", ImageType: "minimal"}).Complete() {
		t.Error("selector without distro must not be complete")
	}
	if !(Selector{Board: "j721e-sk", ImageType: "minimal", Distro: "debian"}).Complete() {
		t.Error("selector with board, type and distro must be complete")
	}
}

func TestIdentityStableAndDistinct(t *testing.T) {
	a := Identity("gemstone-minimal-v2025.12-debian-minimal-j721e-sk.img.xz")
	b := Identity("gemstone-minimal-v2025.12-debian-minimal-j721e-sk.img.xz")
	c := Identity("gemstone-minimal-v2025.12-ubuntu-minimal-j721e-sk.img.xz")

	if a != b {
		t.Error("identity must be deterministic")
	}
	if a == c {
		t.Error("different filenames must produce different identities")
	}
	if len(a) != 64 {
		t.Errorf("identity should be a sha256 hex digest, got length %d", len(a))
	}
}
