package ai

import (
	"context"
	"errors"
	"strings"

	"fabricguide/internal/models"
)

// SystemInstruction frames every remote request.
const SystemInstruction = `Je bent de Lestel Fabric Gids, een ervaren data-architect die het team begeleidt bij de migratie van SAP BW naar Microsoft Fabric op Azure.
Beantwoord vragen over de architectuur (bronnen, Bronze/Silver/Golden lagen, semantische modellen, Agentic AI) en over de 7 stappen van de roadmap en de koppelmomenten.
Antwoord beknopt en zakelijk in het Nederlands. Verwijs waar relevant naar de stap of laag in de blauwdruk.`

// FallbackReply is stored as the assistant reply when a remote call fails.
const FallbackReply = "Sorry, er ging iets mis bij het ophalen van een antwoord. Probeer het later opnieuw."

const preambleHeading = "Gebruik de volgende achtergrondkennis uit de Lestel kennisbank waar relevant:"

var (
	// ErrEmptyResponse is returned when the provider answers without text.
	ErrEmptyResponse = errors.New("empty response from provider")
	// ErrUnknownProvider is returned for provider names without an implementation.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Request is one outbound completion request. History is oldest first and
// does not contain Input.
type Request struct {
	History  []*models.Message
	Input    string
	Snippets []*models.KnowledgeSnippet
	Search   bool
}

// Client produces a reply for a request.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BuildPreamble renders the active snippets under a fixed heading. It returns
// an empty string when no snippet is active.
func BuildPreamble(snippets []*models.KnowledgeSnippet) string {
	var blocks []string
	for _, sn := range snippets {
		if sn == nil || !sn.Active {
			continue
		}
		blocks = append(blocks, "### "+sn.Title+"\n"+sn.Body)
	}
	if len(blocks) == 0 {
		return ""
	}
	return preambleHeading + "\n\n" + strings.Join(blocks, "\n\n")
}

// AugmentInput prefixes input with the snippet preamble.
func AugmentInput(input string, snippets []*models.KnowledgeSnippet) string {
	preamble := BuildPreamble(snippets)
	if preamble == "" {
		return input
	}
	return preamble + "\n\n" + input
}

// splitHistory separates system messages from the dialogue turns.
func splitHistory(history []*models.Message) (system []string, turns []*models.Message) {
	for _, msg := range history {
		if msg == nil {
			continue
		}
		if msg.Role == models.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	return system, turns
}

func instructionWith(system []string) string {
	if len(system) == 0 {
		return SystemInstruction
	}
	return SystemInstruction + "\n\n" + strings.Join(system, "\n\n")
}
