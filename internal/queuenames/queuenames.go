package queuenames

const (
	WorkflowFetchVideo      = "workflow_fetch_video"
	WorkflowFetchTranscript = "workflow_fetch_transcript"
	WorkflowGenerate        = "workflow_generate"
	WorkflowPersist         = "workflow_persist"
	VideoDeleteAsset        = "video_delete_asset"
	ObjectDelete            = "object_delete"
)

// Workflow is the step order of a generation run.
var Workflow = []string{
	WorkflowFetchVideo,
	WorkflowFetchTranscript,
	WorkflowGenerate,
	WorkflowPersist,
}

// NextWorkflowStep returns the queue after name, or "" for the last step.
func NextWorkflowStep(name string) string {
	for i, e := range Workflow {
		if e == name && i+1 < len(Workflow) {
			return Workflow[i+1]
		}
	}

	return ""
}
