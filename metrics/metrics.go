package metrics

import "time"

// Recorder knows how to measure different kind of metrics.
type Recorder interface {
	// WithID will set the ID name to the recorder and every metric
	// measured with the obtained recorder will be identified with
	// the name.
	WithID(id string) Recorder
	// SetOutstandingConnections sets the number of admitted connections that have not been released.
	SetOutstandingConnections(quantity int)
	// SetWaitingAdmissions sets the number of admissions waiting for a free slot.
	SetWaitingAdmissions(quantity int)
	// IncAdmission increments the number of admissions, waited tells if the
	// admission had to wait for a free slot.
	IncAdmission(waited bool)
	// ObserveAdmissionWait measures the time an admission waited for a free slot.
	ObserveAdmissionWait(start time.Time)
	// IncCanceledAdmission increments the number of admissions canceled while waiting.
	IncCanceledAdmission()
	// IncLeakedGuard increments the number of guards released by the garbage collector.
	IncLeakedGuard()
	// IncAcceptError increments the number of accept errors by classification.
	IncAcceptError(class string)
	// ObserveAcceptBackoff measures the wait before retrying a failed accept.
	ObserveAcceptBackoff(d time.Duration)
	// IncAcceptRateLimited increments the number of accepts delayed by the rate limit.
	IncAcceptRateLimited()
}

// Dummy is a recorder that doesn't measure anything.
var Dummy Recorder = dummy{}

type dummy struct{}

func (d dummy) WithID(id string) Recorder            { return d }
func (dummy) SetOutstandingConnections(quantity int) {}
func (dummy) SetWaitingAdmissions(quantity int)      {}
func (dummy) IncAdmission(waited bool)               {}
func (dummy) ObserveAdmissionWait(start time.Time)   {}
func (dummy) IncCanceledAdmission()                  {}
func (dummy) IncLeakedGuard()                        {}
func (dummy) IncAcceptError(class string)            {}
func (dummy) ObserveAcceptBackoff(d time.Duration)   {}
func (dummy) IncAcceptRateLimited()                  {}
