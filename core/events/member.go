package events

import (
	"time"

	"github.com/kilianp07/antsid/core/discharge"
)

// MemberFitted carries the best parameters found for one ensemble member.
type MemberFitted struct {
	RunID       string
	Member      string
	Params      discharge.Params
	Objective   float64
	Evaluations int
	Iterations  int
	Status      string
	Duration    time.Duration
}

// MemberFailed is published when the optimizer returns an error.
type MemberFailed struct {
	RunID  string
	Member string
	Err    error
}
