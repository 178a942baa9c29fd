package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palinopr/leadrouter/internal/lead"
	"github.com/palinopr/leadrouter/internal/routing"
)

func profileWith(fields map[string]string) lead.Profile {
	p := lead.Profile{}
	for name, value := range fields {
		p[name] = lead.EvidenceField{
			Name:        name,
			Value:       value,
			Confidence:  0.9,
			Source:      lead.SourceCurrent,
			ExtractedAt: time.Now(),
		}
	}
	return p
}

func TestColdHandlerGreets(t *testing.T) {
	reply, err := NewColdHandler().Respond(context.Background(), Turn{Profile: lead.Profile{}})
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "negocio")
	assert.False(t, reply.EscalationRequested)
}

func TestColdHandlerUsesKnownBusiness(t *testing.T) {
	turn := Turn{Profile: profileWith(map[string]string{lead.FieldBusinessType: "restaurante"})}
	reply, err := NewColdHandler().Respond(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "restaurante")
}

func TestColdHandlerDegraded(t *testing.T) {
	reply, err := NewColdHandler().Respond(context.Background(), Turn{Degraded: true})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Text)
	assert.NotContains(t, reply.Text, "negocio")
}

func TestWarmHandlerAsksNextMissingField(t *testing.T) {
	tests := []struct {
		name string
		turn Turn
		want string
	}{
		{
			name: "asks for name first",
			turn: Turn{
				Profile:          lead.Profile{},
				NextMissingField: lead.FieldName,
				MissingMandatory: []string{routing.RequirementName, routing.RequirementContact, routing.RequirementBudget},
			},
			want: "¿cómo te llamas?",
		},
		{
			name: "asks for budget once goal is known",
			turn: Turn{
				Profile: profileWith(map[string]string{
					lead.FieldName:         "Carlos",
					lead.FieldBusinessType: "tienda",
					lead.FieldGoal:         "mas clientes",
				}),
				NextMissingField: lead.FieldBudget,
				MissingMandatory: []string{routing.RequirementContact, routing.RequirementBudget},
			},
			want: "invertir",
		},
		{
			name: "asks for contact when ask-order fields are done",
			turn: Turn{
				Profile: profileWith(map[string]string{
					lead.FieldName:         "Carlos",
					lead.FieldBusinessType: "tienda",
					lead.FieldGoal:         "mas clientes",
					lead.FieldBudget:       "500",
				}),
				NextMissingField: "",
				MissingMandatory: []string{routing.RequirementContact},
			},
			want: "correo o teléfono",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := NewWarmHandler().Respond(context.Background(), tt.turn)
			require.NoError(t, err)
			assert.Contains(t, reply.Text, tt.want)
			assert.False(t, reply.EscalationRequested)
		})
	}
}

func TestWarmHandlerNeverAsksForPresentField(t *testing.T) {
	turn := Turn{
		Profile: profileWith(map[string]string{
			lead.FieldName: "Maria",
		}),
		NextMissingField: lead.FieldBusinessType,
		MissingMandatory: []string{routing.RequirementContact, routing.RequirementBudget},
	}
	reply, err := NewWarmHandler().Respond(context.Background(), turn)
	require.NoError(t, err)
	assert.NotContains(t, reply.Text, "llamas")
	assert.Contains(t, reply.Text, "negocio")
	assert.Contains(t, reply.Text, "Maria")
}

func TestWarmHandlerEscalatesWhenMandatoryComplete(t *testing.T) {
	turn := Turn{
		Profile: profileWith(map[string]string{
			lead.FieldName:   "Carlos",
			lead.FieldEmail:  "carlos@tienda.mx",
			lead.FieldBudget: "500",
		}),
		MissingMandatory: nil,
	}
	reply, err := NewWarmHandler().Respond(context.Background(), turn)
	require.NoError(t, err)
	assert.True(t, reply.EscalationRequested)
	// The tier may stay warm when the score is short of hot, so this reply
	// can surface on consecutive turns. It must not promise a hand-off.
	assert.NotContains(t, reply.Text, "conectar")
	assert.NotEmpty(t, reply.Text)
}

func TestWarmHandlerLowBudgetNudge(t *testing.T) {
	turn := Turn{
		Profile: profileWith(map[string]string{
			lead.FieldName:         "Carlos",
			lead.FieldBusinessType: "tienda",
			lead.FieldGoal:         "mas clientes",
			lead.FieldBudget:       "100",
			lead.FieldEmail:        "carlos@tienda.mx",
		}),
		NextMissingField: "",
		MissingMandatory: []string{routing.RequirementBudget},
	}
	reply, err := NewWarmHandler().Respond(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "presupuesto")
	assert.False(t, reply.EscalationRequested)
}

func TestHotHandlerReferencesProfile(t *testing.T) {
	turn := Turn{
		Profile: profileWith(map[string]string{
			lead.FieldName:         "Carlos Ruiz",
			lead.FieldBusinessType: "restaurante",
			lead.FieldEmail:        "carlos@mail.com",
			lead.FieldBudget:       "800",
		}),
	}
	reply, err := NewHotHandler().Respond(context.Background(), turn)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Carlos")
	assert.Contains(t, reply.Text, "restaurante")
	assert.Contains(t, reply.Text, "agendar")
}

func TestSetForTier(t *testing.T) {
	set := DefaultSet()
	assert.IsType(t, &ColdHandler{}, set.For(routing.TierCold))
	assert.IsType(t, &WarmHandler{}, set.For(routing.TierWarm))
	assert.IsType(t, &HotHandler{}, set.For(routing.TierHot))
}

func TestNewSetRejectsNil(t *testing.T) {
	_, err := NewSet(NewColdHandler(), nil, NewHotHandler())
	require.Error(t, err)
}
