package harness

import "fmt"

// TraceStep is one prompt/response pair captured while a scripted driver
// drives a session: the context rendering the scheduler showed, and the
// action text the script fed back.
type TraceStep struct {
	Rendering string `json:"rendering"`
	Action    string `json:"action"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true if the session ran to completion or expected blockage
	// and every assertion held.
	Pass bool `json:"pass"`

	// Trace records every rendering/action pair, in order.
	Trace []TraceStep `json:"trace"`

	// Answer holds the root promise's rendered content, if fulfilled by
	// the time the session blocked or ended.
	Answer string `json:"answer,omitempty"`

	// Fulfilled reports whether the root promise was fulfilled.
	Fulfilled bool `json:"fulfilled"`

	// Errors accumulates assertion and execution failures. Empty iff Pass.
	Errors []string `json:"errors,omitempty"`
}

func newResult() *Result {
	return &Result{Pass: true}
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
