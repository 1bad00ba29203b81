package session

import (
	"time"

	"github.com/Ayash-Bera/felicity/internal/classify"
	"github.com/Ayash-Bera/felicity/internal/felicity"
)

// Status names the variant a State holds.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// State is one of Idle, Pending, Success or Failed.
type State interface {
	Status() Status
	isState()
}

// Idle is the state of a session that has not searched yet.
type Idle struct{}

// Pending is an unresolved search. Progress holds the latest label the
// service reported for it, if any.
type Pending struct {
	Query      string
	Progress   string
	Generation uint64
}

// Success holds the last response and its classification.
type Success struct {
	Query      string
	Response   *felicity.SearchResponse
	Outcome    classify.Outcome
	Generation uint64
	Elapsed    time.Duration
}

// Failed holds the reason a search could not complete.
type Failed struct {
	Query      string
	Reason     string
	Err        error
	Generation uint64
	Elapsed    time.Duration
}

func (Idle) Status() Status    { return StatusIdle }
func (Pending) Status() Status { return StatusPending }
func (Success) Status() Status { return StatusSuccess }
func (Failed) Status() Status  { return StatusError }

func (Idle) isState()    {}
func (Pending) isState() {}
func (Success) isState() {}
func (Failed) isState()  {}
