package common

import (
	"time"
)

//go:generate go run github.com/dmarkham/enumer -json -type EventType -trimprefix Event

// EventType is the kind of an acquisition event
type EventType int

const (
	EventQueried               EventType = iota // Products: the candidates
	EventClassifying                            // Products: the products being checked
	EventClassified                             // Online/Offline: the sizes of the partition
	EventRoundStarted                           // Round, Offline
	EventReactivationRequested                  // Product, Outcome
	EventRoundFinished                          // Round, Accepted, Declined (of the round)
	EventWaiting                                // Wait
	EventDownloadStarted                        // Products
	EventDownloadFinished                       // Products: the downloaded products
	EventDownloadFailed                         // Products: the failed products, Error
	EventStale                                  // Products: the products that will not be requested anymore
	EventDone                                   // Status, Products: the products still offline
	EventAborted                                // Phase, Error
)

// Event is emitted by the acquisition loop to the reporters
type Event struct {
	Run      string      `json:"run"`
	Type     EventType   `json:"type"`
	Phase    Phase       `json:"phase"`
	Round    int         `json:"round"`
	Product  ProductID   `json:"product,omitempty"`
	Products []ProductID `json:"products,omitempty"`
	Outcome  *Outcome    `json:"outcome,omitempty"`
	Status   *Status     `json:"status,omitempty"`
	Online   int         `json:"online"`
	Offline  int         `json:"offline"`
	Accepted int         `json:"accepted"`
	Declined int         `json:"declined"`
	Wait     Duration    `json:"wait,omitempty"`
	Error    string      `json:"error,omitempty"`
	Time     time.Time   `json:"time"`
}

// Duration is a time.Duration marshalled as a human readable string ("1m30s")
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
