package common

//go:generate go run github.com/dmarkham/enumer -json -type Outcome -trimprefix Outcome
//go:generate go run github.com/dmarkham/enumer -json -type Phase -trimprefix Phase
//go:generate go run github.com/dmarkham/enumer -json -type Status -trimprefix Status

// Outcome of a reactivation request
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDeclined
)

// Phase of the acquisition
type Phase int

const (
	PhaseInit Phase = iota
	PhaseClassifying
	PhaseAllOnline
	PhaseRequesting
	PhaseDownloading
	PhaseWaiting
	PhaseReclassifying
	PhaseDone
	PhaseAborted
)

// Status of a finished acquisition
type Status int

const (
	StatusDone         Status = iota // All the products have been downloaded
	StatusStillOffline               // Some products never came online (max rounds or staleness timeout)
	StatusAborted                    // Error or cancellation
)
