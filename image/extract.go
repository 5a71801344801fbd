package image

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

const extractBufferSize = 64 * 1024

// extractXZ streams the xz archive at src into dst chunk by chunk,
// reporting the decompressed byte count after each written chunk. On
// failure the partial output file is removed.
func extractXZ(src, dst string, progress func(written int64)) error {
	in, err := os.Open(src)
	if err != nil {
		return &ExtractError{Kind: ExtractData, Err: err}
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return &ExtractError{Kind: ExtractData, Err: err}
	}

	fail := func(e *ExtractError) error {
		out.Close()
		os.Remove(dst)
		return e
	}

	r, err := xz.NewReader(bufio.NewReaderSize(in, extractBufferSize))
	if err != nil {
		return fail(classifyExtract(err))
	}

	buf := make([]byte, extractBufferSize)
	var written int64

	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return fail(&ExtractError{Kind: ExtractData, Err: werr})
			}
			written += int64(n)
			if progress != nil {
				progress(written)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fail(classifyExtract(rerr))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return &ExtractError{Kind: ExtractData, Err: err}
	}
	return nil
}

// classifyExtract maps decoder errors onto the format/data/memory
// taxonomy. The xz package reports failures as plain errors, so header and
// magic problems are recognized by message.
func classifyExtract(err error) *ExtractError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "header"),
		strings.Contains(msg, "magic"),
		strings.Contains(msg, "format"):
		return &ExtractError{Kind: ExtractFormat, Err: err}
	case strings.Contains(msg, "memory"),
		strings.Contains(msg, "allocat"):
		return &ExtractError{Kind: ExtractMemory, Err: err}
	default:
		return &ExtractError{Kind: ExtractData, Err: err}
	}
}
