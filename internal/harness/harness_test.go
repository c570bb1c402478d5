package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func TestTrivialReply(t *testing.T) {
	scenario := loadScenario(t, "trivial_reply")
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "hello", result.Answer)
}

func TestSingleSubQuestion(t *testing.T) {
	scenario := loadScenario(t, "single_sub_question")
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "2", result.Answer)
}

func TestLaziness(t *testing.T) {
	scenario := loadScenario(t, "laziness")
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "done", result.Answer)
	// Only the three scripted prompts (root, successor after "ask A",
	// successor after "ask B $a1") were ever shown to the driver; the
	// children spawned for A and B sat unconsulted in the ready queue.
	assert.Len(t, result.Trace, 3)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "trivial_reply.yaml"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "typo.yaml")
	data := "name: typo\ndescription: d\nquestion: q\nquestoin: misspelled\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	_, err = LoadScenario(path)
	assert.Error(t, err)
}

func TestLoadScenarioMissingFileFails(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "does_not_exist.yaml"))
	assert.Error(t, err)
}

func TestValidateScenarioRejectsMissingQuestion(t *testing.T) {
	s := &Scenario{Name: "x", Description: "d"}
	err := validateScenario(s)
	assert.Error(t, err)
}

func TestValidateScenarioRejectsUnknownAssertionType(t *testing.T) {
	s := &Scenario{
		Name: "x", Description: "d", Question: "q",
		Steps:      []Step{{Action: "reply x"}},
		Assertions: []Assertion{{Type: "not_a_real_type"}},
	}
	err := validateScenario(s)
	assert.Error(t, err)
}
