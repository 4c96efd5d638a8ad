// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

// TaskState is the lifecycle state of a published task.
type TaskState string

const (
	TaskStateOpen        TaskState = "open"        // published, no candidate currently offered
	TaskStateOffered     TaskState = "offered"     // offered to one candidate, awaiting accept/decline
	TaskStateMatched     TaskState = "matched"     // accepted by a provider, execution in progress
	TaskStateNoProviders TaskState = "no_providers" // every candidate declined or none were online
	TaskStateCancelled   TaskState = "cancelled"
	TaskStateCompleted   TaskState = "completed" // provider reported task_settled after a matched run
)

// Task is one publish_task request and its matching state. Owned
// exclusively by the hub loop.
type Task struct {
	ID          string
	RequesterID string

	Tool              string
	Model             string
	Task              string
	Description       string
	EstimatedDuration int
	Credits           float64
	WorkspaceID       string

	State      TaskState
	ProviderID string // set once matched

	declined map[string]bool // provider IDs that have declined this task
}

func (t *Task) hasDeclined(peerID string) bool {
	return t.declined[peerID]
}

func (t *Task) markDeclined(peerID string) {
	if t.declined == nil {
		t.declined = make(map[string]bool)
	}
	t.declined[peerID] = true
}

// Summary reduces a Task to what a candidate provider is shown in a
// new_task frame.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{
		TaskID:            t.ID,
		Tool:              t.Tool,
		Model:             t.Model,
		Task:              t.Task,
		Description:       t.Description,
		EstimatedDuration: t.EstimatedDuration,
		Credits:           t.Credits,
	}
}
