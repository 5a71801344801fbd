package image

import "fmt"

// FetchError indicates the image download failed. StatusCode is set when
// the server responded with an error status; Err is set for transport or
// local write failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download system image from %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to download system image from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractKind classifies a decompression failure.
type ExtractKind int

const (
	// ExtractData: the archive payload is corrupt
	ExtractData ExtractKind = iota

	// ExtractFormat: the input is not a valid xz stream
	ExtractFormat

	// ExtractMemory: the decoder ran out of memory
	ExtractMemory
)

func (k ExtractKind) String() string {
	switch k {
	case ExtractFormat:
		return "invalid format"
	case ExtractMemory:
		return "memory error"
	default:
		return "corrupt data"
	}
}

// ExtractError indicates streaming decompression of the image archive
// failed.
type ExtractError struct {
	Kind ExtractKind
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("decompression failed: %s: %v", e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
