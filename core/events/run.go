package events

import "time"

// RunStarted is published once per calibration run.
type RunStarted struct {
	RunID   string
	Members int
	Time    time.Time
}

// RunCompleted is published when a calibration run ends, successfully or not.
type RunCompleted struct {
	RunID    string
	Fitted   int
	Failed   int
	Duration time.Duration
	Err      error
}
