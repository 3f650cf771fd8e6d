package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/patientsim/core"
)

func TestTranscriptLabelsSpeakers(t *testing.T) {
	s := Default()

	turns := []core.Turn{
		{Speaker: core.SpeakerUser, Content: "Hello, what brings you to call today?"},
		{Speaker: core.SpeakerAgent, Content: "My belly hurts, low down."},
		{Speaker: core.SpeakerSystem, Content: "internal marker"},
		{Speaker: core.SpeakerUser, Content: "When did the pain start?"},
	}

	got := s.Transcript(turns)
	want := strings.Join([]string{
		"Student: Hello, what brings you to call today?",
		"Patient: My belly hurts, low down.",
		"Student: When did the pain start?",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestTranscriptCustomLabels(t *testing.T) {
	s := Scenario{StudentLabel: "Nurse", PatientLabel: "Caller"}

	got := s.Transcript([]core.Turn{
		{Speaker: core.SpeakerUser, Content: "Hi"},
		{Speaker: core.SpeakerAgent, Content: "Hello"},
	})
	assert.Equal(t, "Nurse: Hi\nCaller: Hello", got)
}

func TestTranscriptEmptyWindow(t *testing.T) {
	assert.Empty(t, Default().Transcript(nil))
}

func TestDebriefPromptContainsWholeConversation(t *testing.T) {
	s := Default()

	turns := []core.Turn{
		{Speaker: core.SpeakerUser, Content: "Good morning, this is the nursing hotline."},
		{Speaker: core.SpeakerAgent, Content: "Hello, I've got this pain low down in my belly."},
		{Speaker: core.SpeakerUser, Content: "Is the wound red or warm?"},
		{Speaker: core.SpeakerAgent, Content: "Yes, it's red and it hurts when I touch it."},
	}

	prompt, err := s.DebriefPrompt(turns)
	require.NoError(t, err)

	// Every turn shows up, first and last included.
	assert.Contains(t, prompt, "Student: Good morning, this is the nursing hotline.")
	assert.Contains(t, prompt, "Patient: Yes, it's red and it hurts when I touch it.")

	assert.Contains(t, prompt, "Problem identification")
	assert.Contains(t, prompt, "Assessment")
	assert.Contains(t, prompt, "Coping and decision")
	assert.Contains(t, prompt, "Points for improvement")
	assert.NotContains(t, prompt, "{{")
}

func TestDefaultScenarioComplete(t *testing.T) {
	s := Default()

	assert.NotEmpty(t, s.Name)
	assert.Equal(t, "Anna", s.PatientName)
	assert.Equal(t, "Student", s.StudentLabel)
	assert.Equal(t, "Patient", s.PatientLabel)
	assert.NotEmpty(t, s.Instructions)
	assert.NotEmpty(t, s.Briefing)
	assert.Contains(t, s.RubricTemplate, "{{.Transcript}}")
}
