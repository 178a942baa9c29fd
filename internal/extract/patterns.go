package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"

	"github.com/palinopr/leadrouter/internal/identity"
)

// ---------- package-level compiled regexes ----------

var (
	emailRE = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRE = regexp.MustCompile(`\+?\d[\d\s().\-]{6,}\d`)

	// Money amounts with an optional currency marker: "$500", "500 usd",
	// "2k al mes", "1,500 pesos".
	amountRE = regexp.MustCompile(`(?i)(\$\s*)?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k\b|mil\b|usd\b|d[oó]lares\b|dollars\b|pesos\b|mxn\b)?`)

	budgetContextRE = regexp.MustCompile(`(?i)presupuesto|budget|invertir|inversi[oó]n|invest|gastar|spend|pagar|pay|mensual|al mes|por mes|a month|per month|monthly|\$`)
)

const nameWord = `[\p{L}][\p{L}\p{M}'\-]*`

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)my name is\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	regexp.MustCompile(`(?i)\bi'?m\s+(` + nameWord + `(?:\s+` + nameWord + `)?)(?:\s|,|\.|!|$)`),
	regexp.MustCompile(`(?i)\bi am\s+(` + nameWord + `(?:\s+` + nameWord + `)?)(?:\s|,|\.|!|$)`),
	regexp.MustCompile(`(?i)this is\s+(` + nameWord + `)`),
	regexp.MustCompile(`(?i)me llamo\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	regexp.MustCompile(`(?i)mi nombre es\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	regexp.MustCompile(`(?i)\bsoy\s+(` + nameWord + `(?:\s+` + nameWord + `)?)(?:\s|,|\.|!|$)`),
}

// ---------- business type patterns ----------

// businessTypePatterns maps inbound phrasing to a canonical business category.
// Ordered by specificity — longer/more specific terms first.
var businessTypePatterns = []struct {
	pattern string
	name    string
}{
	{"food truck", "food truck"},
	{"restaurante", "restaurante"},
	{"restaurant", "restaurante"},
	{"taqueria", "restaurante"},
	{"cafeteria", "cafe"},
	{"coffee shop", "cafe"},
	{"cafe", "cafe"},
	{"panaderia", "panaderia"},
	{"bakery", "panaderia"},
	{"barberia", "barberia"},
	{"barbershop", "barberia"},
	{"salon de belleza", "salon"},
	{"beauty salon", "salon"},
	{"salon", "salon"},
	{"peluqueria", "salon"},
	{"gimnasio", "gimnasio"},
	{"gym", "gimnasio"},
	{"clinica dental", "clinica"},
	{"dental clinic", "clinica"},
	{"clinica", "clinica"},
	{"clinic", "clinica"},
	{"consultorio", "clinica"},
	{"agencia de marketing", "agencia"},
	{"marketing agency", "agencia"},
	{"agencia", "agencia"},
	{"agency", "agencia"},
	{"inmobiliaria", "inmobiliaria"},
	{"real estate", "inmobiliaria"},
	{"ecommerce", "ecommerce"},
	{"e-commerce", "ecommerce"},
	{"tienda en linea", "ecommerce"},
	{"online store", "ecommerce"},
	{"tienda", "tienda"},
	{"store", "tienda"},
	{"shop", "tienda"},
	{"ferreteria", "ferreteria"},
	{"taller", "taller"},
	{"spa", "spa"},
	{"hotel", "hotel"},
	{"negocio", "negocio"},
	{"business", "negocio"},
}

// ownershipRE guards the generic catch-alls: "negocio"/"business" only counts
// when the user claims ownership, not when merely mentioning the word.
var ownershipRE = regexp.MustCompile(`(?i)tengo|mi |nuestro|i have|i own|i run|we have|we run|my `)

// ---------- goal patterns ----------

var goalPatterns = []struct {
	pattern string
	name    string
}{
	{"perdiendo clientes", "perdiendo clientes"},
	{"losing customers", "perdiendo clientes"},
	{"losing clients", "perdiendo clientes"},
	{"mas clientes", "conseguir mas clientes"},
	{"more customers", "conseguir mas clientes"},
	{"more clients", "conseguir mas clientes"},
	{"aumentar ventas", "aumentar ventas"},
	{"subir ventas", "aumentar ventas"},
	{"increase sales", "aumentar ventas"},
	{"more sales", "aumentar ventas"},
	{"vender mas", "aumentar ventas"},
	{"automatizar", "automatizar procesos"},
	{"automate", "automatizar procesos"},
	{"responder mensajes", "automatizar respuestas"},
	{"answer messages", "automatizar respuestas"},
	{"crecer", "crecer el negocio"},
	{"grow my business", "crecer el negocio"},
	{"grow the business", "crecer el negocio"},
	{"reservas", "mas reservas"},
	{"bookings", "mas reservas"},
	{"citas", "mas citas"},
	{"appointments", "mas citas"},
	{"marketing", "marketing"},
	{"publicidad", "marketing"},
	{"ads", "marketing"},
}

// ---------- urgency patterns ----------

var urgencyPatterns = []struct {
	pattern string
	name    string
}{
	{"urgente", "high"},
	{"urgent", "high"},
	{"asap", "high"},
	{"lo antes posible", "high"},
	{"cuanto antes", "high"},
	{"esta semana", "high"},
	{"this week", "high"},
	{"right away", "high"},
	{"pronto", "medium"},
	{"soon", "medium"},
	{"este mes", "medium"},
	{"this month", "medium"},
	{"no hay prisa", "low"},
	{"no rush", "low"},
	{"sin prisa", "low"},
	{"just looking", "low"},
	{"solo viendo", "low"},
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)estamos en\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	regexp.MustCompile(`(?i)estoy en\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	regexp.MustCompile(`(?i)based in\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
	regexp.MustCompile(`(?i)located in\s+(` + nameWord + `(?:\s+` + nameWord + `)?)`),
}

// ---------- field finders ----------

func findName(text string) string {
	normalized := strings.NewReplacer("’", "'", "‘", "'").Replace(text)
	for _, pattern := range namePatterns {
		match := pattern.FindStringSubmatch(normalized)
		if len(match) < 2 {
			continue
		}
		name := cleanName(match[1])
		if name != "" {
			return name
		}
	}
	return ""
}

func cleanName(raw string) string {
	words := strings.Fields(strings.TrimSpace(raw))
	kept := make([]string, 0, 2)
	for _, word := range words {
		word = strings.Trim(word, ".,!?\"()")
		if !looksLikeNameWord(word) {
			break
		}
		kept = append(kept, capitalize(word))
		if len(kept) == 2 {
			break
		}
	}
	return strings.Join(kept, " ")
}

func looksLikeNameWord(word string) bool {
	count := utf8.RuneCountInString(word)
	if count < 2 || count > 30 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(word)
	if !unicode.IsLetter(first) {
		return false
	}
	return !commonWords[strings.ToLower(word)]
}

func capitalize(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	if first == utf8.RuneError || size == 0 {
		return word
	}
	return strings.ToUpper(string(first)) + strings.ToLower(word[size:])
}

// commonWords are words that follow a name pattern but are not names
// ("soy nuevo", "i'm interested", "i'm looking").
var commonWords = map[string]bool{
	"interested": true, "looking": true, "trying": true, "writing": true,
	"wondering": true, "new": true, "not": true, "here": true, "just": true,
	"so": true, "very": true, "really": true, "good": true, "sure": true,
	"sorry": true, "un": true, "una": true, "el": true, "la": true,
	"nuevo": true, "nueva": true, "dueno": true, "dueño": true, "duena": true,
	"interesado": true, "interesada": true, "buscando": true, "perdiendo": true,
	"de": true, "del": true, "the": true, "a": true, "an": true,
}

func findBusinessType(text string) string {
	lower := strings.ToLower(text)
	for _, b := range businessTypePatterns {
		if !strings.Contains(lower, b.pattern) {
			continue
		}
		if (b.pattern == "negocio" || b.pattern == "business") && !ownershipRE.MatchString(lower) {
			continue
		}
		return b.name
	}
	return ""
}

func findGoal(text string) string {
	lower := normalizeAccents(strings.ToLower(text))
	for _, g := range goalPatterns {
		if strings.Contains(lower, g.pattern) {
			return g.name
		}
	}
	return ""
}

func findBudget(text string) (value string, confidence float64) {
	if !budgetContextRE.MatchString(text) {
		return "", 0
	}
	match := amountRE.FindStringSubmatch(text)
	if len(match) == 0 {
		return "", 0
	}
	dollar := strings.TrimSpace(match[1])
	amount := match[2]
	unit := strings.ToLower(strings.TrimSpace(match[3]))
	if amount == "" {
		return "", 0
	}

	hadUnit := unit != ""
	switch unit {
	case "k", "mil":
		amount += "k"
		unit = ""
	}

	value = amount
	if unit != "" {
		value += " " + unit
	}
	if dollar != "" {
		value = "$" + value
	}

	// An explicit currency marker is strong evidence; a bare number near
	// budget context words is weaker but still above the acceptance gate.
	if dollar != "" || hadUnit {
		return value, confKeyword
	}
	return value, 0.75
}

func findEmail(text string) string {
	return emailRE.FindString(text)
}

func findPhone(text string) (string, float64) {
	for _, raw := range phoneRE.FindAllString(text, -1) {
		parsed, err := phonenumbers.Parse(raw, identity.DefaultRegion)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164), confValidated
		}
	}
	// A digit run that fails validation is still offered, below the gate.
	if raw := phoneRE.FindString(text); raw != "" {
		if normalized := identity.NormalizePhone(raw); normalized != "" {
			return normalized, confWeak
		}
	}
	return "", 0
}

func findUrgency(text string) string {
	lower := normalizeAccents(strings.ToLower(text))
	for _, u := range urgencyPatterns {
		if strings.Contains(lower, u.pattern) {
			return u.name
		}
	}
	return ""
}

func findLocation(text string) string {
	for _, pattern := range locationPatterns {
		match := pattern.FindStringSubmatch(text)
		if len(match) < 2 {
			continue
		}
		return strings.TrimSpace(match[1])
	}
	return ""
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
)

func normalizeAccents(text string) string {
	return accentReplacer.Replace(text)
}
