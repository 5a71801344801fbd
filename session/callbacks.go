package session

// Phase names the step a session is currently performing.
const (
	// PhaseDiscovering: probing the bus for a matching device
	PhaseDiscovering = "discovering"

	// PhaseClaiming: claiming the interface and selecting the alt setting
	PhaseClaiming = "claiming"

	// PhasePreparing: querying and normalizing the pre-transfer status
	PhasePreparing = "preparing"

	// PhaseTransferring: downloading firmware blocks
	PhaseTransferring = "transferring"

	// PhaseFinishing: detaching and resetting the device
	PhaseFinishing = "finishing"

	// PhaseComplete: the transfer finished successfully
	PhaseComplete = "complete"
)

// Progress describes the state of an in-flight transfer.
// Passed to ProgressCallback while a session runs.
type Progress struct {
	// Phase is the current session phase
	Phase string

	// BytesSent is the number of firmware bytes accepted by the device
	BytesSent int64

	// TotalBytes is the size of the file being transferred
	TotalBytes int64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64
}

// ProgressCallback is called while a transfer runs to report progress.
// Implementations should return quickly to avoid stalling the protocol
// round-trips.
type ProgressCallback func(Progress)
