package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/palinopr/leadrouter/internal/lead"
	"github.com/palinopr/leadrouter/internal/routing"
)

// ColdHandler serves unqualified conversations: greet, and probe for the
// business context that moves the lead forward.
type ColdHandler struct{}

// NewColdHandler creates the cold-tier handler.
func NewColdHandler() *ColdHandler { return &ColdHandler{} }

// Respond implements Handler.
func (h *ColdHandler) Respond(_ context.Context, turn Turn) (Reply, error) {
	if turn.Degraded {
		return Reply{Text: "¡Gracias por escribirnos! En un momento te atendemos."}, nil
	}
	if turn.Profile.Has(lead.FieldBusinessType) {
		return Reply{Text: fmt.Sprintf(
			"¡Qué bien que tienes un %s! Cuéntame, ¿cuál es el mayor reto que estás enfrentando?",
			turn.Profile.Value(lead.FieldBusinessType))}, nil
	}
	return Reply{Text: "¡Hola! Soy el asistente de ventas. ¿Me cuentas un poco sobre tu negocio?"}, nil
}

// warmQuestions maps each missing field or requirement to the single
// question that elicits it. One question per turn, in canonical order.
var warmQuestions = map[string]string{
	lead.FieldName:             "Para darte mejor seguimiento, ¿cómo te llamas?",
	lead.FieldBusinessType:     "¿Qué tipo de negocio tienes?",
	lead.FieldGoal:             "¿Qué es lo principal que te gustaría lograr?",
	lead.FieldBudget:           "¿Cuánto estarías dispuesto a invertir al mes para resolverlo?",
	routing.RequirementContact: "¿A qué correo o teléfono te podemos contactar?",
}

// WarmHandler's job is to elicit the missing mandatory fields, one at a
// time, never asking for information already in the profile.
type WarmHandler struct{}

// NewWarmHandler creates the warm-tier handler.
func NewWarmHandler() *WarmHandler { return &WarmHandler{} }

// Respond implements Handler. When the turn shows no mandatory field left to
// collect, the handler requests escalation so the state machine can promote
// the thread within the same turn. The promotion replaces this reply with
// the hot handler's, so the text here must not promise a hand-off: it is
// what the user sees when the score has not caught up yet.
func (h *WarmHandler) Respond(_ context.Context, turn Turn) (Reply, error) {
	if len(turn.MissingMandatory) == 0 {
		return Reply{
			Text:                "¡Perfecto, gracias por la información! ¿Hay algo más de tu negocio que deba saber?",
			EscalationRequested: true,
		}, nil
	}

	if question := h.nextQuestion(turn); question != "" {
		return Reply{Text: acknowledge(turn) + question}, nil
	}
	// Every ask-order field is present yet a mandatory requirement is
	// unmet - only a below-minimum budget reaches here.
	return Reply{Text: "¿Habría forma de ajustar tu presupuesto? Nuestros planes inician un poco más arriba."}, nil
}

func (h *WarmHandler) nextQuestion(turn Turn) string {
	if turn.NextMissingField != "" {
		return warmQuestions[turn.NextMissingField]
	}
	for _, requirement := range turn.MissingMandatory {
		if requirement == routing.RequirementContact {
			return warmQuestions[routing.RequirementContact]
		}
	}
	return ""
}

// acknowledge prefixes the question with a short nod to what the user just
// shared, when there is something to nod to.
func acknowledge(turn Turn) string {
	if turn.Profile.Has(lead.FieldName) && turn.NextMissingField == lead.FieldBusinessType {
		return fmt.Sprintf("¡Mucho gusto, %s! ", firstName(turn.Profile.Value(lead.FieldName)))
	}
	if turn.Profile.Has(lead.FieldGoal) && turn.NextMissingField == lead.FieldBudget {
		return "Entiendo, eso lo podemos resolver. "
	}
	return ""
}

func firstName(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return full
	}
	return parts[0]
}

// HotHandler closes: the hand-off to the human/booking flow. The routing
// engine guarantees every mandatory field is present before this runs.
type HotHandler struct{}

// NewHotHandler creates the hot-tier handler.
func NewHotHandler() *HotHandler { return &HotHandler{} }

// Respond implements Handler.
func (h *HotHandler) Respond(_ context.Context, turn Turn) (Reply, error) {
	name := firstName(turn.Profile.Value(lead.FieldName))
	business := turn.Profile.Value(lead.FieldBusinessType)

	text := fmt.Sprintf("%s, ya tengo todo para ayudarte", name)
	if business != "" {
		text += fmt.Sprintf(" con tu %s", business)
	}
	text += ". Te voy a agendar con nuestro especialista, ¿te funciona mañana?"
	return Reply{Text: text}, nil
}
