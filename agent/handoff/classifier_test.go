package handoff

import (
	"testing"

	"github.com/BaSui01/agentdesk/testutil/fixtures"
	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(fixtures.TriageAgent)
	tests := []struct {
		name    string
		author  string
		content string
		want    Label
	}{
		{"triage normal", fixtures.TriageAgent, "Hello! How can I help you today?", LabelNormal},
		{"triage textual transfer", fixtures.TriageAgent, "I will transfer you to our seat specialist.", LabelTextualHandoff},
		{"triage soft handoff", fixtures.TriageAgent, "Please hold, connecting you to the HR team.", LabelTextualHandoff},
		{"triage forwarding", fixtures.TriageAgent, "Forwarding you to FlightStatusAgent now", LabelTextualHandoff},
		{"triage refusal is not out of scope", fixtures.TriageAgent, "I can't help with this.", LabelNormal},
		{"specialist refusal exact", fixtures.SeatBookingAgent, "I don't have information about that", LabelOutOfScope},
		{"specialist refusal curly apostrophe", fixtures.HRAgent, "Sorry, that’s outside my area.", LabelOutOfScope},
		{"specialist refusal uppercase", fixtures.TechSupportAgent, "I CANNOT HELP WITH THIS request", LabelOutOfScope},
		{"specialist mentioning transfer", fixtures.SeatBookingAgent, "Your seat transfer is done.", LabelNormal},
		{"specialist normal", fixtures.FlightStatusAgent, "Flight JJ1234 departs at 10:00.", LabelNormal},
		{"system author", "", "I can't help with this", LabelNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.author, tt.content))
		})
	}
}

func TestClassifier_CustomPhrases(t *testing.T) {
	c := NewClassifierWithPhrases("Triagem", []string{"Transferindo"}, []string{"não posso ajudar"})

	assert.Equal(t, LabelTextualHandoff, c.Classify("Triagem", "transferindo você agora"))
	assert.Equal(t, LabelOutOfScope, c.Classify("RH", "Não posso ajudar com isso"))
	assert.Equal(t, LabelNormal, c.Classify("Triagem", "I will transfer you"))
}
