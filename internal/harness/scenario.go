package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines an end-to-end HCH conformance test: a root question,
// a scripted sequence of driver responses, and assertions on the final
// answer.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Question is the root question text the session is started with.
	Question string `yaml:"question"`

	// Steps is the scripted driver transcript, consumed in order as the
	// scheduler prompts for actions.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final answer.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted driver response.
type Step struct {
	// ExpectContains, if set, must be a substring of the rendering shown
	// at this step; a mismatch fails the scenario immediately.
	ExpectContains string `yaml:"expect_contains,omitempty"`

	// Action is the action text returned to the scheduler as if typed by
	// a human.
	Action string `yaml:"action"`
}

// Assertion validates the scenario's outcome after the session blocks.
type Assertion struct {
	// Type is one of answer_equals, answer_contains, no_answer,
	// trace_never_contains.
	Type string `yaml:"type"`

	// Value is the expected exact answer text (answer_equals).
	Value string `yaml:"value,omitempty"`

	// Contains is the expected answer substring (answer_contains), or the
	// substring that must never appear in any recorded rendering
	// (trace_never_contains).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertAnswerEquals      = "answer_equals"
	AssertAnswerContains    = "answer_contains"
	AssertNoAnswer          = "no_answer"
	AssertTraceNeverContain = "trace_never_contains"
)

// LoadScenario reads and strictly parses a scenario YAML file, rejecting
// unknown fields so a typo'd key fails loudly instead of silently no-oping.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("harness: parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Question == "" {
		return fmt.Errorf("question is required")
	}
	for i, step := range s.Steps {
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertAnswerEquals:
			if a.Value == "" {
				return fmt.Errorf("assertions[%d]: value is required for %s", i, AssertAnswerEquals)
			}
		case AssertAnswerContains:
			if a.Contains == "" {
				return fmt.Errorf("assertions[%d]: contains is required for %s", i, AssertAnswerContains)
			}
		case AssertNoAnswer:
			// no fields required
		case AssertTraceNeverContain:
			if a.Contains == "" {
				return fmt.Errorf("assertions[%d]: contains is required for %s", i, AssertTraceNeverContain)
			}
		case "":
			return fmt.Errorf("assertions[%d]: type is required", i)
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}
