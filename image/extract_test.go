package image

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"
)

// xzCompress builds an xz archive of data for test fixtures.
func xzCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractXZ(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("raw disk image contents "), 40000)

	src := filepath.Join(dir, "image.img.xz")
	if err := os.WriteFile(src, xzCompress(t, payload), 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "image.img")

	var last int64
	if err := extractXZ(src, dst, func(written int64) {
		if written < last {
			t.Errorf("written count decreased: %d -> %d", last, written)
		}
		last = written
	}); err != nil {
		t.Fatalf("extractXZ failed: %v", err)
	}

	out, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, payload) {
		t.Error("extracted contents differ from original payload")
	}
	if last != int64(len(payload)) {
		t.Errorf("final progress = %d, want %d", last, len(payload))
	}
}

func TestExtractXZInvalidFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "not-an-archive.img.xz")
	if err := os.WriteFile(src, []byte("definitely not xz data"), 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.img")

	err := extractXZ(src, dst, nil)

	var ee *ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if ee.Kind != ExtractFormat {
		t.Errorf("kind = %v, want %v", ee.Kind, ExtractFormat)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("partial output must be removed on failure")
	}
}

func TestExtractXZCorruptData(t *testing.T) {
	dir := t.TempDir()
	archive := xzCompress(t, bytes.Repeat([]byte("payload"), 20000))

	// Valid header, mangled payload.
	for i := len(archive) / 2; i < len(archive)/2+32; i++ {
		archive[i] ^= 0xFF
	}

	src := filepath.Join(dir, "corrupt.img.xz")
	if err := os.WriteFile(src, archive, 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "out.img")

	err := extractXZ(src, dst, nil)

	var ee *ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if ee.Kind == ExtractFormat {
		t.Errorf("corrupt payload should not classify as a format error")
	}
}

func TestExtractErrorMessage(t *testing.T) {
	err := &ExtractError{Kind: ExtractFormat, Err: errors.New("xz: invalid header magic bytes")}
	if msg := err.Error(); msg == "" || !bytes.Contains([]byte(msg), []byte("invalid format")) {
		t.Errorf("unexpected message: %q", msg)
	}
}
