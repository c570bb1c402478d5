// Package harness provides conformance testing for the HCH engine.
//
// The harness loads scenario files, drives a scheduler session through a
// scripted sequence of driver responses, and validates the resulting
// answer and rendering trace as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: trivial_reply
//	description: "the root promise resolves directly from a reply"
//	question: "hi"
//	steps:
//	  - expect_contains: "hi"
//	    action: "reply hello"
//	assertions:
//	  - type: answer_equals
//	    value: hello
//
// # Step Semantics
//
// Each step corresponds to one Prompt call the scheduler makes against the
// harness's scripted driver: expect_contains (optional) asserts a substring
// of the rendering shown at that point, and action is the response text fed
// back as if a human had typed it. Steps are consumed strictly in order.
//
// A scenario's steps do not need to cover every context the scheduler ever
// creates: HCH is lazy, so once the root promise is fulfilled a scripted
// run that runs out of steps stops cleanly instead of failing, the same
// way a human walks away once their question is answered without ever
// looking at sub-questions nobody unlocked. Running out of steps before the
// root promise is fulfilled is still a failure, as is a rendering that
// doesn't contain an expected substring.
//
// # Assertion Types
//
//   - answer_equals: the root promise's rendered content equals a value
//   - answer_contains: the root promise's rendered content contains a substring
//   - no_answer: the root promise must remain unfulfilled
//   - trace_never_contains: no recorded rendering contains a substring,
//     used to assert a lazily-spawned context was never shown to the driver
package harness
