// Package guide answers questions from a fixed, ordered keyword rule table.
package guide

import (
	"context"
	"strings"

	"fabricguide/internal/models"
)

// Rule maps a set of keywords to a canned response. A rule matches when the
// lower-cased input contains any of its keywords.
type Rule struct {
	Keywords []string
	Response string
}

// DefaultResponse is returned when no rule matches.
const DefaultResponse = "Interessante vraag! Binnen de Lestel Fabric architectuur focussen we op een soepele transitie van BW naar Azure. Kan ik je specifiek helpen met een van de 7 stappen of de koppelmomenten?"

// Rule order is significant: keyword sets overlap and the first match wins.
var defaultRules = []Rule{
	{
		Keywords: []string{"stap 1", "bron"},
		Response: "Bij Stap 1 (BW Bronnen) richten we ons op de inventarisatie van Cube-definities en ABAP-logica. Het Technisch team voert hier de regie om te bepalen wat 'cloud-ready' is.",
	},
	{
		Keywords: []string{"golden layer", "stap 5"},
		Response: "De Golden Layer is onze 'Single Source of Truth'. Hier ontsluiten we de definitieve datasets voor PowerBI en AI-toepassingen. Het is cruciaal dat hier de data-lineage volledig transparant is.",
	},
	{
		Keywords: []string{"ai", "agentic"},
		Response: "Agentic AI binnen het Lestel domein wordt ingezet op de Golden Layer. We gebruiken POC's om te verkennen hoe we complexe juridische of procesmatige vragen kunnen automatiseren.",
	},
	{
		Keywords: []string{"governance", "avg"},
		Response: "Governance wordt gewaarborgd door Microsoft Purview en strikte NL Data Residency in de West Europe regio. Stap 7 (Koppelmomenten) bevat alle security-checks.",
	},
}

// DefaultRules returns a copy of the built-in rule table in evaluation order.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	for i, r := range defaultRules {
		out[i] = Rule{Keywords: append([]string(nil), r.Keywords...), Response: r.Response}
	}
	return out
}

// Selector picks canned responses. The zero value is not usable; use New or
// NewWithRules.
type Selector struct {
	rules    []Rule
	fallback string
}

// New returns a Selector over the built-in rules.
func New() *Selector {
	return NewWithRules(DefaultRules(), DefaultResponse)
}

// NewWithRules returns a Selector over custom rules, evaluated in order.
func NewWithRules(rules []Rule, fallback string) *Selector {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(kw)
			if kw == "" {
				continue
			}
			kws = append(kws, kw)
		}
		normalized = append(normalized, Rule{Keywords: kws, Response: r.Response})
	}
	return &Selector{rules: normalized, fallback: fallback}
}

// Select returns the response of the first rule with a keyword contained in
// input, or the fallback response.
func (s *Selector) Select(input string) string {
	low := strings.ToLower(input)
	for _, r := range s.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(low, kw) {
				return r.Response
			}
		}
	}
	return s.fallback
}

// Reply implements the turn engine's responder contract. History is ignored.
func (s *Selector) Reply(_ context.Context, _ []*models.Message, input string) (string, error) {
	return s.Select(input), nil
}

// Select answers input with the built-in rules.
func Select(input string) string {
	return builtin.Select(input)
}

var builtin = New()
