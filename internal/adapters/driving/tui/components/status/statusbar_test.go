package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBar_View(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetMessage("Iteration 1/3: researching")
	bar.SetCost(0.0125)

	view := bar.View()
	assert.Contains(t, view, "Iteration 1/3: researching")
	assert.Contains(t, view, "$0.0125")
	assert.Contains(t, view, "cancel")

	bar.SetState(StateFinished)
	assert.Contains(t, bar.View(), "quit")

	bar.SetState(StateError)
	bar.SetMessage("boom")
	assert.Contains(t, bar.View(), "Error: boom")
	assert.Equal(t, StateError, bar.State())
}
