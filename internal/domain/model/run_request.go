package model

import "time"

// RunRequest asks the worker pool to run one calculator.
type RunRequest struct {
	ID         string    // unique id, used for log correlation
	Calculator string    // registered calculator name
	Collection string    // watched collection whose change caused the request; empty for on-demand
	TS         time.Time // enqueue time
}

// NotifyResult lists the calculators a change notification scheduled and the
// ones it folded into an already pending run.
type NotifyResult struct {
	Scheduled []string `json:"scheduled"`
	Coalesced []string `json:"coalesced"`
}
