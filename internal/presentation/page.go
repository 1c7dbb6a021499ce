package presentation

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"

	"fabricguide/internal/blueprint"
	"fabricguide/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// ConversationView is the chat panel content.
type ConversationView struct {
	Conversation *models.Conversation
	Messages     []*models.Message
	Typing       bool
}

// PageData is everything needed to render the blueprint page.
type PageData struct {
	Selection     Selection
	Conversation  *ConversationView
	Conversations []*models.Conversation
	IgnoreClass   string
}

type stepView struct {
	models.TimelineStep
	Expanded bool
	Href     string
}

type nodeView struct {
	models.ArchitectureNode
	Active bool
	Href   string
}

type messageView struct {
	Role models.Role
	Body template.HTML
}

type pageView struct {
	Export         bool
	IgnoreClass    string
	RegionID       string
	Steps          []stepView
	Nodes          []nodeView
	ActiveNode     *models.ArchitectureNode
	Compliance     []models.ComplianceRule
	Conversation   *models.Conversation
	Conversations  []*models.Conversation
	Messages       []messageView
	Typing         bool
	ConversationID int64
}

// Renderer renders the blueprint page.
type Renderer struct {
	tmpl *template.Template
	md   goldmark.Markdown
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("page.html").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, md: newMarkdown()}, nil
}

// Render writes the page for data to w.
func (r *Renderer) Render(w io.Writer, data PageData) error {
	view, err := r.build(data)
	if err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(w, "page.html", view)
}

func (r *Renderer) build(data PageData) (*pageView, error) {
	sel := data.Selection
	ignore := data.IgnoreClass
	if ignore == "" {
		ignore = "export-ignore"
	}
	view := &pageView{
		Export:        sel.Export,
		IgnoreClass:   ignore,
		RegionID:      blueprint.ExportRegionID,
		Compliance:    blueprint.ComplianceRules(),
		Conversations: data.Conversations,
	}
	if data.Conversation != nil && data.Conversation.Conversation != nil {
		view.Conversation = data.Conversation.Conversation
		view.ConversationID = data.Conversation.Conversation.ID
		view.Typing = data.Conversation.Typing
	}

	for _, step := range blueprint.Steps() {
		view.Steps = append(view.Steps, stepView{
			TimelineStep: step,
			Expanded:     sel.StepExpanded(step.Number),
			Href:         sel.ToggleStep(step.Number).Query(view.ConversationID),
		})
	}
	for _, node := range blueprint.Nodes() {
		nv := nodeView{
			ArchitectureNode: node,
			Active:           sel.Node == node.ID,
			Href:             sel.SelectNode(node.ID).Query(view.ConversationID),
		}
		if nv.Active {
			n := node
			view.ActiveNode = &n
		}
		view.Nodes = append(view.Nodes, nv)
	}

	if data.Conversation != nil {
		for _, msg := range data.Conversation.Messages {
			mv := messageView{Role: msg.Role}
			if msg.Role == models.RoleAssistant {
				body, err := renderMarkdown(r.md, msg.Content)
				if err != nil {
					return nil, fmt.Errorf("render message %d: %w", msg.ID, err)
				}
				mv.Body = body
			} else {
				mv.Body = template.HTML(template.HTMLEscapeString(msg.Content))
			}
			view.Messages = append(view.Messages, mv)
		}
	}
	return view, nil
}
