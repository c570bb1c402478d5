package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hchlab/hch/internal/datastore"
	"github.com/hchlab/hch/internal/scheduler"
)

// errStop signals that a scriptedDriver's script ran out after the root
// promise was already fulfilled: a human satisfied with their answer stops
// consulting the scheduler rather than being forced to resolve every
// sub-question the engine happened to spawn along the way (HCH's laziness
// property — nothing requires an unconsulted child to ever be visited).
// runOn treats it as a clean stop, the same way cli.ErrQuit ends a session
// without being reported as a failure.
var errStop = errors.New("harness: driver stopped once the root answer was fulfilled")

// scriptedDriver implements scheduler.Driver by replaying a fixed
// transcript: each Prompt call is checked against the next scripted step's
// ExpectContains (if any) and answered with that step's Action. A script
// that runs out before the root answer is fulfilled is a driver-level
// error; one that runs out after is treated as the driver walking away
// satisfied.
type scriptedDriver struct {
	steps      []Step
	idx        int
	result     *Result
	isAnswered func() bool
}

func newScriptedDriver(steps []Step, result *Result, isAnswered func() bool) *scriptedDriver {
	return &scriptedDriver{steps: steps, result: result, isAnswered: isAnswered}
}

func (d *scriptedDriver) Prompt(rendering string) (string, error) {
	if d.idx >= len(d.steps) {
		if d.isAnswered != nil && d.isAnswered() {
			return "", errStop
		}
		return "", fmt.Errorf("harness: script exhausted, but scheduler prompted with rendering %q", rendering)
	}
	step := d.steps[d.idx]
	if step.ExpectContains != "" && !strings.Contains(rendering, step.ExpectContains) {
		return "", fmt.Errorf("harness: step %d: rendering does not contain %q:\n%s", d.idx, step.ExpectContains, rendering)
	}
	d.result.Trace = append(d.result.Trace, TraceStep{Rendering: rendering, Action: step.Action})
	d.idx++
	return step.Action, nil
}

func (d *scriptedDriver) ReportError(err error) {
	d.result.addError("driver reported error: %v", err)
}

// exhaustedDriver never scripts a response; it fails any Prompt call. It is
// used to assert full automation replay (spec §8 scenario 5): if the
// automation cache doesn't answer every context on its own, the session
// falls through to Prompt and this driver flags the failure.
type exhaustedDriver struct{ result *Result }

func (d *exhaustedDriver) Prompt(rendering string) (string, error) {
	return "", fmt.Errorf("harness: unexpected prompt during automated replay:\n%s", rendering)
}

func (d *exhaustedDriver) ReportError(err error) {
	d.result.addError("driver reported error: %v", err)
}

// Run executes scenario against a fresh scheduler and datastore, driving it
// with a scriptedDriver, then checks the configured assertions against the
// final root answer.
func Run(scenario *Scenario) (*Result, error) {
	sched := scheduler.New(datastore.New(), nil, discardLogger())
	return runOn(sched, scenario)
}

// RunAutomated re-asks scenario.Question on sched — an existing scheduler,
// typically one that has already run the same question to completion via
// Run — with a driver that fails on any prompt. It exists for spec §8
// scenario 5: rerunning an identical root question in a fresh session that
// shares the automation cache should reach the same answer purely from
// cache, issuing zero prompts.
func RunAutomated(sched *scheduler.Scheduler, scenario *Scenario) (*Result, error) {
	result := newResult()
	sess, err := sched.NewSession(scenario.Question)
	if err != nil {
		return nil, fmt.Errorf("harness: start automated session: %w", err)
	}
	driver := &exhaustedDriver{result: result}
	if err := sched.RunSession(sess, driver); err != nil {
		result.addError("automated run failed: %v", err)
		return result, nil
	}
	finishResult(sched, sess, result)
	checkAssertions(scenario, result)
	return result, nil
}

func runOn(sched *scheduler.Scheduler, scenario *Scenario) (*Result, error) {
	result := newResult()
	sess, err := sched.NewSession(scenario.Question)
	if err != nil {
		return nil, fmt.Errorf("harness: start session: %w", err)
	}
	driver := newScriptedDriver(scenario.Steps, result, func() bool {
		return sched.Store().IsFulfilled(sess.RootAnswer)
	})
	if err := sched.RunSession(sess, driver); err != nil && !errors.Is(err, errStop) {
		result.addError("session failed: %v", err)
		return result, nil
	}
	finishResult(sched, sess, result)
	checkAssertions(scenario, result)
	return result, nil
}

func finishResult(sched *scheduler.Scheduler, sess *scheduler.Session, result *Result) {
	if sched.Store().IsFulfilled(sess.RootAnswer) {
		content, _ := sched.Store().Lookup(sched.Store().Resolve(sess.RootAnswer))
		result.Fulfilled = true
		result.Answer = content.Canonical(sched.Store())
	}
}

func checkAssertions(scenario *Scenario, result *Result) {
	for _, a := range scenario.Assertions {
		switch a.Type {
		case AssertAnswerEquals:
			if !result.Fulfilled {
				result.addError("assertion %s: root answer was never fulfilled", AssertAnswerEquals)
			} else if result.Answer != a.Value {
				result.addError("assertion %s: got %q, want %q", AssertAnswerEquals, result.Answer, a.Value)
			}
		case AssertAnswerContains:
			if !result.Fulfilled {
				result.addError("assertion %s: root answer was never fulfilled", AssertAnswerContains)
			} else if !strings.Contains(result.Answer, a.Contains) {
				result.addError("assertion %s: %q does not contain %q", AssertAnswerContains, result.Answer, a.Contains)
			}
		case AssertNoAnswer:
			if result.Fulfilled {
				result.addError("assertion %s: root answer was unexpectedly fulfilled with %q", AssertNoAnswer, result.Answer)
			}
		case AssertTraceNeverContain:
			for _, step := range result.Trace {
				if strings.Contains(step.Rendering, a.Contains) {
					result.addError("assertion %s: rendering unexpectedly contains %q:\n%s", AssertTraceNeverContain, a.Contains, step.Rendering)
					break
				}
			}
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
