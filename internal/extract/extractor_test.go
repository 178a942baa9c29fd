package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palinopr/leadrouter/internal/lead"
)

func candidateByName(t *testing.T, candidates []lead.EvidenceField, name string) lead.EvidenceField {
	t.Helper()
	for _, c := range candidates {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no candidate for field %q in %v", name, candidates)
	return lead.EvidenceField{}
}

func hasCandidate(candidates []lead.EvidenceField, name string) bool {
	for _, c := range candidates {
		if c.Name == name {
			return true
		}
	}
	return false
}

func TestExtractGreetingYieldsNothing(t *testing.T) {
	e := NewPatternExtractor()
	candidates, err := e.Extract("hola", nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestExtractBusinessAndGoal(t *testing.T) {
	e := NewPatternExtractor()
	candidates, err := e.Extract("tengo un restaurante y estoy perdiendo clientes", nil)
	require.NoError(t, err)

	business := candidateByName(t, candidates, lead.FieldBusinessType)
	assert.Equal(t, "restaurante", business.Value)
	assert.GreaterOrEqual(t, business.Confidence, 0.7)

	goal := candidateByName(t, candidates, lead.FieldGoal)
	assert.Equal(t, "perdiendo clientes", goal.Value)
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"me llamo Maria Garcia", "Maria Garcia"},
		{"mi nombre es Carlos", "Carlos"},
		{"soy Pedro, tengo una tienda", "Pedro"},
		{"my name is John Smith", "John Smith"},
		{"I'm Sarah", "Sarah"},
		{"this is Ana", "Ana"},
	}
	e := NewPatternExtractor()

	for _, tt := range tests {
		candidates, err := e.Extract(tt.text, nil)
		require.NoError(t, err)
		got := candidateByName(t, candidates, lead.FieldName)
		assert.Equal(t, tt.want, got.Value, "text %q", tt.text)
	}
}

func TestExtractDoesNotMistakeAdjectivesForNames(t *testing.T) {
	e := NewPatternExtractor()
	for _, text := range []string{"soy nuevo aqui", "i'm interested in your service", "soy dueño de un cafe"} {
		candidates, err := e.Extract(text, nil)
		require.NoError(t, err)
		assert.False(t, hasCandidate(candidates, lead.FieldName), "text %q", text)
	}
}

func TestExtractBudget(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		minConf float64
	}{
		{"mi presupuesto es $500", "$500", 0.8},
		{"puedo invertir 500 usd", "500 usd", 0.8},
		{"puedo pagar como 2k al mes", "2k", 0.8},
		{"mi presupuesto es 800", "800", 0.7},
	}
	e := NewPatternExtractor()

	for _, tt := range tests {
		candidates, err := e.Extract(tt.text, nil)
		require.NoError(t, err)
		got := candidateByName(t, candidates, lead.FieldBudget)
		assert.Equal(t, tt.want, got.Value, "text %q", tt.text)
		assert.GreaterOrEqual(t, got.Confidence, tt.minConf, "text %q", tt.text)
	}
}

func TestExtractBudgetNeedsContext(t *testing.T) {
	e := NewPatternExtractor()
	candidates, err := e.Extract("tenemos 12 mesas en el restaurante", nil)
	require.NoError(t, err)
	assert.False(t, hasCandidate(candidates, lead.FieldBudget), "bare numbers without budget context are not budgets")
}

func TestExtractContactDetails(t *testing.T) {
	e := NewPatternExtractor()
	candidates, err := e.Extract("mi correo es maria@restaurante.mx y mi cel es 305-555-0100", nil)
	require.NoError(t, err)

	email := candidateByName(t, candidates, lead.FieldEmail)
	assert.Equal(t, "maria@restaurante.mx", email.Value)

	phone := candidateByName(t, candidates, lead.FieldPhone)
	assert.Equal(t, "+13055550100", phone.Value)
}

func TestExtractUrgency(t *testing.T) {
	e := NewPatternExtractor()

	candidates, err := e.Extract("necesito esto urgente", nil)
	require.NoError(t, err)
	urgency := candidateByName(t, candidates, lead.FieldUrgency)
	assert.Equal(t, "high", urgency.Value)

	candidates, err = e.Extract("no rush, just exploring options", nil)
	require.NoError(t, err)
	urgency = candidateByName(t, candidates, lead.FieldUrgency)
	assert.Equal(t, "low", urgency.Value)
}

func TestExtractDeterministic(t *testing.T) {
	e := NewPatternExtractor()
	text := "soy Laura, tengo una clinica dental y quiero mas citas, presupuesto $1,500"

	first, err := e.Extract(text, nil)
	require.NoError(t, err)
	second, err := e.Extract(text, nil)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].Value, second[i].Value)
		assert.Equal(t, first[i].Confidence, second[i].Confidence)
	}
}
