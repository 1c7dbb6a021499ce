// Package blueprint holds the fixed architecture nodes, timeline steps and
// compliance rules rendered by the Lestel Fabric Blueprint.
package blueprint

import "fabricguide/internal/models"

const (
	// DefaultStep is the step expanded when the page first loads.
	DefaultStep = 1
	// DefaultNode is the node highlighted when the page first loads.
	DefaultNode = "sap-bw"
	// ExportRegionID is the DOM id of the region rasterized by the export.
	ExportRegionID = "architecture-plaat"
)

var nodes = []models.ArchitectureNode{
	{ID: "sap-bw", Label: "BW Sources", Category: models.CategorySource, Description: "Basis voor analyse en inventarisatie.", Icon: "fa-database", Color: "bg-blue-600"},
	{ID: "fabric-df", Label: "Ontsluiting", Category: models.CategoryIngestion, Description: "Verplaatsen van data naar Azure.", Icon: "fa-shuffle", Color: "bg-blue-600"},
	{ID: "fabric-onelake", Label: "Lakehouse", Category: models.CategoryStorage, Description: "Data Landing & Storage.", Icon: "fa-cloud", Color: "bg-blue-400"},
	{ID: "fabric-modeling", Label: "Modellering", Category: models.CategoryProcessing, Description: "Opzet van Data Marts.", Icon: "fa-sitemap", Color: "bg-green-600"},
	{ID: "golden-layer-process", Label: "Bouw Proces", Category: models.CategoryProcessing, Description: "ETL Pipelines voor de Golden Layer.", Icon: "fa-gears", Color: "bg-yellow-600"},
	{ID: "golden-layer", Label: "Golden Layer", Category: models.CategoryServing, Description: "De definitieve dataset.", Icon: "fa-star", Color: "bg-yellow-500"},
	{ID: "powerbi", Label: "Power BI", Category: models.CategoryServing, Description: "Rapporten & Visualisaties.", Icon: "fa-chart-pie", Color: "bg-orange-500"},
	{ID: "agentic-ai", Label: "Agentic AI", Category: models.CategoryAI, Description: "Automatisering & POCs.", Icon: "fa-robot", Color: "bg-orange-600"},
}

var steps = []models.TimelineStep{
	{
		Number:      1,
		Title:       "BW Bronnen - Analyse en Inventarisatie",
		Owner:       "Technisch team",
		Icon:        "fa-search",
		ColorClass:  "border-blue-100 bg-blue-600",
		Description: "Alle bestaande BW-bronnen in kaart brengen. Focus op technische structuur en businesslogica.",
		Milestones:  []string{"Data mapping", "Structuur inzicht", "Kwaliteitschecks"},
		Goal:        "Begrijpen welke data al ontsloten is en welke data geschikt is voor Azure.",
		Details: []models.DetailBlock{
			{Title: "Legacy Scan", Text: "Cubes en DSO mapping."},
		},
	},
	{
		Number:      2,
		Title:       "Ontsluiten naar Azure",
		Owner:       "Wordt later bepaald",
		Icon:        "fa-cloud-arrow-up",
		ColorClass:  "border-blue-100 bg-blue-600",
		Description: "Data uit BW toegankelijk maken in Azure (Fabric/OneLake). Veilig en efficiënt overbrengen.",
		Milestones:  []string{"Rechtenbeheer", "Technische ontsluiting"},
		Goal:        "Landing in de Bronze zone.",
		Details: []models.DetailBlock{
			{Title: "Landing Zone", Text: "Rechtenbeheer op OneLake; data-lineage vanaf bron."},
		},
	},
	{
		Number:      3,
		Title:       "Data Modellering op Azure",
		Owner:       "Data engineers bouwen, wij ontwerpen",
		Icon:        "fa-sitemap",
		ColorClass:  "border-green-100 bg-green-600",
		Description: "Domeingerichte modellen maken (Data Marts) die aansluiten op de businessbehoefte.",
		Milestones:  []string{"Datakwaliteit", "Standaardisatie"},
		Details: []models.DetailBlock{
			{Title: "Silver layer", Text: "Gezamenlijk ontwerp van Star Schema's in de Silver layer."},
		},
	},
	{
		Number:      4,
		Title:       "Bouwen van de Golden Layer",
		Owner:       "Data engineers",
		Icon:        "fa-industry",
		ColorClass:  "border-yellow-100 bg-yellow-500",
		Description: "Gestructureerde ETL-processen (Pipelines) in Fabric.",
		Milestones:  []string{"Pipelines", "ETL Processen", "Logging"},
		Details: []models.DetailBlock{
			{Title: "Kwaliteit", Text: "Focus op consistente datakwaliteit."},
		},
	},
	{
		Number:      5,
		Title:       "Golden Layer – Definitieve Dataset",
		Owner:       "Allen betrokken",
		Icon:        "fa-star",
		ColorClass:  "border-yellow-100 bg-yellow-500",
		Description: "De gezuiverde, beheerde eindlaag. Het vertrekpunt voor alle analyses.",
		Milestones:  []string{"Governance", "Single Source of Truth"},
		Details: []models.DetailBlock{
			{Title: "Direct Lake", Text: "Direct Lake verbinding voor PowerBI."},
		},
	},
	{
		Number:      6,
		Title:       "Gebruik: PowerBI & Agentic AI",
		Owner:       "BI-team / AI-team",
		Icon:        "fa-robot",
		ColorClass:  "border-orange-100 bg-orange-600",
		Description: "Rapportages en exploratory analysis via AI-agents.",
		Milestones:  []string{"PowerBI", "AI Agents POC"},
		Details: []models.DetailBlock{
			{Title: "Agentic AI", Text: "Agentic AI faciliteert interactie met de Golden Layer voor complexe businessvragen."},
		},
	},
	{
		Number:      7,
		Title:       "Koppelmomenten & Overlays",
		Owner:       "Allen betrokken",
		Icon:        "fa-link",
		ColorClass:  "border-indigo-100 bg-slate-900",
		Description: "Overkoepelende controlemomenten die alle stappen verbinden.",
		Milestones:  []string{"Data Mapping", "Rechtenbeheer", "Datakwaliteit", "Governance"},
	},
}

var complianceRules = []models.ComplianceRule{
	{Name: "BIO (Baseline Informatiebeveiliging Overheid)", Icon: "fa-building-columns", Status: "Active"},
	{Name: "AVG / GDPR", Icon: "fa-user-lock", Status: "Active"},
	{Name: "NL Data Residency (West Europe)", Icon: "fa-map-location-dot", Status: "Active"},
	{Name: "Microsoft Purview", Icon: "fa-eye", Status: "Active"},
}

// Nodes returns the architecture nodes in display order.
func Nodes() []models.ArchitectureNode {
	out := make([]models.ArchitectureNode, len(nodes))
	copy(out, nodes)
	return out
}

// Steps returns the timeline steps in display order.
func Steps() []models.TimelineStep {
	out := make([]models.TimelineStep, len(steps))
	for i, s := range steps {
		s.Milestones = append([]string(nil), s.Milestones...)
		s.Details = append([]models.DetailBlock(nil), s.Details...)
		out[i] = s
	}
	return out
}

// ComplianceRules returns the compliance dashboard entries.
func ComplianceRules() []models.ComplianceRule {
	out := make([]models.ComplianceRule, len(complianceRules))
	copy(out, complianceRules)
	return out
}

// FindNode looks up a node by id.
func FindNode(id string) (models.ArchitectureNode, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return models.ArchitectureNode{}, false
}

// FindStep looks up a step by its number.
func FindStep(number int) (models.TimelineStep, bool) {
	for _, s := range Steps() {
		if s.Number == number {
			return s, true
		}
	}
	return models.TimelineStep{}, false
}
