package models

// Category classifies an architecture node.
type Category string

const (
	CategorySource     Category = "Source"
	CategoryIngestion  Category = "Ingestion"
	CategoryStorage    Category = "Storage"
	CategoryProcessing Category = "Processing"
	CategoryServing    Category = "Serving"
	CategoryAI         Category = "AI"
	CategoryGovernance Category = "Governance"
)

// ArchitectureNode is a static infrastructure component card.
type ArchitectureNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Color       string   `json:"color"`
}

// DetailBlock is a small titled note shown when a step is expanded.
type DetailBlock struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// TimelineStep is one numbered phase of the migration timeline.
type TimelineStep struct {
	Number      int           `json:"number"`
	Title       string        `json:"title"`
	Owner       string        `json:"owner"`
	Icon        string        `json:"icon"`
	ColorClass  string        `json:"color_class"`
	Description string        `json:"description"`
	Milestones  []string      `json:"milestones"`
	Goal        string        `json:"goal,omitempty"`
	Details     []DetailBlock `json:"details,omitempty"`
}

// ComplianceRule names a compliance regime shown on the dashboard.
type ComplianceRule struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Status string `json:"status"`
}
