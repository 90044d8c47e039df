package queuenames

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextWorkflowStep(t *testing.T) {
	for _, tc := range []struct {
		input, output string
	}{
		{WorkflowFetchVideo, WorkflowFetchTranscript},
		{WorkflowFetchTranscript, WorkflowGenerate},
		{WorkflowGenerate, WorkflowPersist},
		{WorkflowPersist, ""},
		{ObjectDelete, ""},
	} {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)

			a.Equal(tc.output, NextWorkflowStep(tc.input))
		})
	}
}
