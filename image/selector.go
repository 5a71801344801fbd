package image

import (
	"fmt"
	"strings"
)

// Default image repository coordinates.
const (
	// DefaultBaseURL is the image package repository root
	DefaultBaseURL = "https://packages.t3gemstone.org/images"

	// DefaultRelease is the release tag images are published under
	DefaultRelease = "v2025.12"

	// defaultVariant is assumed when a selector names no variant
	defaultVariant = "minimal"
)

// Selector identifies a disk image by board, image type and distribution.
// The image filename is fully determined by these fields plus a release
// tag, so the image's cache identity is known before any byte is fetched.
type Selector struct {
	// Board is the target board name, e.g. "j721e-sk"
	Board string

	// ImageType is the image flavor: minimal, kiosk, desktop.
	// A "type/variant" value also carries the variant.
	ImageType string

	// Distro is the distribution: debian, ubuntu, pardus
	Distro string

	// Variant overrides the variant encoded in ImageType.
	// Empty falls back to "minimal".
	Variant string
}

// Complete reports whether the selector names an image. Campaigns without
// a complete selector skip image acquisition entirely.
func (s Selector) Complete() bool {
	return s.Board != "" && s.ImageType != "" && s.Distro != ""
}

// split resolves the effective image type and variant, honoring the
// "type/variant" shorthand.
func (s Selector) split() (imageType, variant string) {
	imageType, variant = s.ImageType, s.Variant
	if t, v, ok := strings.Cut(imageType, "/"); ok {
		imageType, variant = t, v
	}
	if variant == "" {
		variant = defaultVariant
	}
	return imageType, variant
}

// Filename returns the deterministic archive filename for this selector
// under the given release tag:
//
//	gemstone-{variant}-{release}-{distro}-{type}-{board}.img.xz
func (s Selector) Filename(release string) string {
	imageType, variant := s.split()
	return fmt.Sprintf("gemstone-%s-%s-%s-%s-%s.img.xz",
		variant, release, s.Distro, imageType, s.Board)
}

// URL returns the download URL for this selector.
func (s Selector) URL(baseURL, release string) string {
	imageType, _ := s.split()
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		strings.TrimSuffix(baseURL, "/"), s.Distro, imageType, s.Board, s.Filename(release))
}
