// Package scenario defines the simulated patient: persona instructions that
// keep the model in character, the chart briefing shown to the trainee before
// the call, and the rubric used to evaluate the finished conversation.
package scenario

import (
	"strings"

	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/internal/util"
)

// Scenario is a complete simulated case.
type Scenario struct {
	// Name identifies the case.
	Name string
	// PatientName is the persona's name, used as the sender label on agent
	// turns.
	PatientName string
	// StudentLabel and PatientLabel prefix transcript lines handed to the
	// evaluation rubric.
	StudentLabel string
	PatientLabel string
	// Instructions is the system prompt that holds the model in character.
	Instructions string
	// Briefing is the chart summary the trainee reads before the call.
	Briefing string
	// RubricTemplate is a text/template rendered with the labeled transcript
	// to produce the debrief prompt.
	RubricTemplate string
}

// Transcript renders turns as labeled lines, one per turn. User turns carry
// the student label, agent turns the patient label. Other speakers are
// omitted.
func (s Scenario) Transcript(turns []core.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		var label string
		switch turn.Speaker {
		case core.SpeakerUser:
			label = s.StudentLabel
		case core.SpeakerAgent:
			label = s.PatientLabel
		default:
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(turn.Content)
	}

	return b.String()
}

// DebriefPrompt renders the rubric template over the full labeled transcript.
func (s Scenario) DebriefPrompt(turns []core.Turn) (string, error) {
	return util.RenderTemplate(s.RubricTemplate, map[string]any{
		"Transcript":   s.Transcript(turns),
		"PatientName":  s.PatientName,
		"StudentLabel": s.StudentLabel,
		"PatientLabel": s.PatientLabel,
	})
}
