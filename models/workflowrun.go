package models

import (
	"time"

	"fknsrs.biz/p/vidshare/internal/sqlbuilderutil"
)

var (
	WorkflowRunTable *sqlbuilderutil.Table
)

func init() {
	WorkflowRunTable = sqlbuilderutil.MustMakeTable(WorkflowRun{})
}

const (
	WorkflowKindTitle       = "title"
	WorkflowKindDescription = "description"
)

const (
	WorkflowStatusPending   = "pending"
	WorkflowStatusRunning   = "running"
	WorkflowStatusSucceeded = "succeeded"
	WorkflowStatusFailed    = "failed"
)

type WorkflowRun struct {
	ID         int       `sql:",table:workflow_runs" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	RunID      string    `json:"runId"`
	Kind       string    `json:"kind"`
	VideoID    int       `json:"videoId"`
	UserID     int       `json:"-"`
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Transcript *string   `json:"-"`
	Result     *string   `json:"result"`
	Error      *string   `json:"error"`
}
