package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodesOrderAndLookup(t *testing.T) {
	ns := Nodes()
	require.Len(t, ns, 8)
	assert.Equal(t, DefaultNode, ns[0].ID)
	assert.Equal(t, "agentic-ai", ns[len(ns)-1].ID)

	n, ok := FindNode("golden-layer")
	require.True(t, ok)
	assert.Equal(t, "Golden Layer", n.Label)

	_, ok = FindNode("missing")
	assert.False(t, ok)
}

func TestStepsAreNumberedSequentially(t *testing.T) {
	ss := Steps()
	require.Len(t, ss, 7)
	for i, s := range ss {
		assert.Equal(t, i+1, s.Number)
		assert.NotEmpty(t, s.Milestones, "step %d", s.Number)
	}
	_, ok := FindStep(8)
	assert.False(t, ok)
}

func TestAccessorsReturnCopies(t *testing.T) {
	ss := Steps()
	ss[0].Milestones[0] = "changed"
	ns := Nodes()
	ns[0].Label = "changed"

	assert.Equal(t, "Data mapping", Steps()[0].Milestones[0])
	assert.Equal(t, "BW Sources", Nodes()[0].Label)
	assert.Len(t, ComplianceRules(), 4)
}
