package presentation

import (
	"net/url"
	"strconv"

	"fabricguide/internal/blueprint"
)

// Selection is the view state of the blueprint page: at most one expanded
// timeline step and one highlighted architecture node.
type Selection struct {
	Step   int    // 0 means no step expanded
	Node   string // empty means no node highlighted
	Export bool   // export mode expands every step and hides controls
}

// DefaultSelection is the state of a freshly opened page.
func DefaultSelection() Selection {
	return Selection{Step: blueprint.DefaultStep, Node: blueprint.DefaultNode}
}

// ToggleStep expands step n, or collapses it when it is already expanded.
func (s Selection) ToggleStep(n int) Selection {
	if s.Step == n {
		s.Step = 0
		return s
	}
	s.Step = n
	return s
}

// SelectNode highlights the node with id.
func (s Selection) SelectNode(id string) Selection {
	s.Node = id
	return s
}

// StepExpanded reports whether step n renders expanded.
func (s Selection) StepExpanded(n int) bool {
	return s.Export || s.Step == n
}

// ParseSelection reads the selection from query parameters. Missing
// parameters keep their defaults; "step=0" and "node=" clear them.
func ParseSelection(q url.Values) Selection {
	sel := DefaultSelection()
	if q.Has("step") {
		n, err := strconv.Atoi(q.Get("step"))
		if err == nil {
			if _, ok := blueprint.FindStep(n); ok || n == 0 {
				sel.Step = n
			}
		}
	}
	if q.Has("node") {
		id := q.Get("node")
		if _, ok := blueprint.FindNode(id); ok || id == "" {
			sel.Node = id
		}
	}
	switch q.Get("export") {
	case "1", "true":
		sel.Export = true
	}
	return sel
}

// Query encodes the selection, keeping conversation when set.
func (s Selection) Query(conversationID int64) string {
	q := url.Values{}
	q.Set("step", strconv.Itoa(s.Step))
	q.Set("node", s.Node)
	if conversationID > 0 {
		q.Set("conversation", strconv.FormatInt(conversationID, 10))
	}
	if s.Export {
		q.Set("export", "1")
	}
	return "?" + q.Encode()
}
