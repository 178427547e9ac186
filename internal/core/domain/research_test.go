package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "continue", DecisionContinue.String())
	assert.Equal(t, "terminate", DecisionTerminate.String())
}

func TestRunRequest_Validate(t *testing.T) {
	valid := RunRequest{Title: "T", Outline: "1. A", MaxIterations: 1, ConfidenceThreshold: 0.8}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*RunRequest)
	}{
		{"missing title", func(r *RunRequest) { r.Title = "" }},
		{"zero iterations", func(r *RunRequest) { r.MaxIterations = 0 }},
		{"threshold above one", func(r *RunRequest) { r.ConfidenceThreshold = 1.1 }},
		{"negative threshold", func(r *RunRequest) { r.ConfidenceThreshold = -0.1 }},
		{"negative budget", func(r *RunRequest) { r.Budget = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.ErrorIs(t, req.Validate(), ErrInvalidInput)
		})
	}
}

func TestStepForSeq(t *testing.T) {
	assert.Equal(t, StepOutline, StepForSeq(0))
	assert.Equal(t, StepResearch, StepForSeq(1))
	assert.Equal(t, StepEnhance, StepForSeq(2))
	assert.Equal(t, StepResearch, StepForSeq(3))
	assert.Equal(t, StepEnhance, StepForSeq(4))
}
